package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/bull/docqa/internal/domain"
)

// Memory is an in-process Catalog.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]domain.Document
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]domain.Document)}
}

func (m *Memory) Put(_ context.Context, doc domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.Document{}, notFound("catalog.Get", id)
	}
	return doc, nil
}

func (m *Memory) List(context.Context) ([]domain.Document, error) {
	m.mu.RLock()
	out := make([]domain.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d)
	}
	m.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return notFound("catalog.Delete", id)
	}
	delete(m.docs, id)
	return nil
}

func sortNewestFirst(docs []domain.Document) {
	sort.Slice(docs, func(i, j int) bool {
		a, b := docs[i].Metadata.IngestedAt, docs[j].Metadata.IngestedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return docs[i].ID < docs[j].ID
	})
}
