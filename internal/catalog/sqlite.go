package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bull/docqa/internal/domain"
)

// SQLite is a Catalog persisted in a single SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the catalog database at path. ":memory:" gives
// a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if path == ":memory:" {
		// each connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		filename    TEXT NOT NULL,
		title       TEXT NOT NULL,
		author      TEXT,
		page_count  INTEGER NOT NULL DEFAULT 0,
		source_type TEXT NOT NULL,
		ingested_at TEXT NOT NULL,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		summary     TEXT,
		keywords    TEXT,
		body        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_ingested ON documents(ingested_at DESC);
	`)
	return err
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Put(ctx context.Context, doc domain.Document) error {
	keywords, err := json.Marshal(doc.Metadata.Keywords)
	if err != nil {
		return domain.E(domain.KindInternal, "catalog.Put", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, title, author, page_count, source_type,
			ingested_at, chunk_count, summary, keywords, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename, title = excluded.title, author = excluded.author,
			page_count = excluded.page_count, source_type = excluded.source_type,
			ingested_at = excluded.ingested_at, chunk_count = excluded.chunk_count,
			summary = excluded.summary, keywords = excluded.keywords, body = excluded.body`,
		doc.ID, doc.Filename, doc.Metadata.Title, doc.Metadata.Author, doc.Metadata.PageCount,
		doc.Metadata.SourceType, doc.Metadata.IngestedAt.UTC().Format(time.RFC3339Nano),
		doc.ChunkCount, doc.Metadata.Summary, string(keywords), doc.Text)
	if err != nil {
		return domain.E(domain.KindInternal, "catalog.Put", err)
	}
	return nil
}

const selectDocument = `SELECT id, filename, title, author, page_count, source_type,
	ingested_at, chunk_count, summary, keywords, body FROM documents`

func (s *SQLite) Get(ctx context.Context, id string) (domain.Document, error) {
	row := s.db.QueryRowContext(ctx, selectDocument+` WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, notFound("catalog.Get", id)
	}
	if err != nil {
		return domain.Document{}, domain.E(domain.KindInternal, "catalog.Get", err)
	}
	return doc, nil
}

func (s *SQLite) List(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, selectDocument+` ORDER BY ingested_at DESC, id`)
	if err != nil {
		return nil, domain.E(domain.KindInternal, "catalog.List", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, domain.E(domain.KindInternal, "catalog.List", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.E(domain.KindInternal, "catalog.List", err)
	}
	return docs, nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return domain.E(domain.KindInternal, "catalog.Delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("catalog.Delete", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (domain.Document, error) {
	var (
		doc             domain.Document
		author, summary sql.NullString
		keywords        sql.NullString
		ingestedAt      string
	)
	err := sc.Scan(&doc.ID, &doc.Filename, &doc.Metadata.Title, &author, &doc.Metadata.PageCount,
		&doc.Metadata.SourceType, &ingestedAt, &doc.ChunkCount, &summary, &keywords, &doc.Text)
	if err != nil {
		return doc, err
	}
	doc.Metadata.Author = author.String
	doc.Metadata.Summary = summary.String
	if doc.Metadata.IngestedAt, err = time.Parse(time.RFC3339Nano, ingestedAt); err != nil {
		return doc, fmt.Errorf("parse ingested_at: %w", err)
	}
	if keywords.Valid && keywords.String != "" && keywords.String != "null" {
		if err := json.Unmarshal([]byte(keywords.String), &doc.Metadata.Keywords); err != nil {
			return doc, fmt.Errorf("parse keywords: %w", err)
		}
	}
	return doc, nil
}
