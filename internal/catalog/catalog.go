// Package catalog keeps the record of ingested documents. The vector index
// only holds chunks; listing, lookup and deletion go through the catalog.
package catalog

import (
	"context"

	"github.com/bull/docqa/internal/domain"
)

// Catalog stores document records. Get and Delete fail with
// domain.KindDocumentNotFound for unknown ids.
type Catalog interface {
	Put(ctx context.Context, doc domain.Document) error
	Get(ctx context.Context, id string) (domain.Document, error)
	// List returns documents newest first.
	List(ctx context.Context) ([]domain.Document, error)
	Delete(ctx context.Context, id string) error
}

func notFound(op, id string) error {
	return domain.Errorf(domain.KindDocumentNotFound, op, "no document with id %q", id)
}
