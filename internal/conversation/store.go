// Package conversation keeps per-conversation turn history.
package conversation

import (
	"context"
	"time"

	"github.com/bull/docqa/internal/domain"
)

// Store holds conversation turns keyed by conversation id.
//
// Append is atomic for all turns passed in one call and serialised per id;
// appends to different ids never wait on each other. Timestamps are forced
// strictly increasing within a conversation. History returns at most limit of
// the most recent turns, oldest first (limit <= 0 means all).
type Store interface {
	Append(ctx context.Context, id string, turns ...domain.Turn) error
	History(ctx context.Context, id string, limit int) ([]domain.Turn, error)
	Drop(ctx context.Context, id string) error
}

// stamp assigns timestamps so that every turn is strictly after last.
func stamp(last time.Time, turns []domain.Turn, now time.Time) []domain.Turn {
	out := make([]domain.Turn, len(turns))
	for i, t := range turns {
		if t.Timestamp.IsZero() {
			t.Timestamp = now
		}
		if !t.Timestamp.After(last) {
			t.Timestamp = last.Add(time.Nanosecond)
		}
		last = t.Timestamp
		out[i] = t
	}
	return out
}

func tail(turns []domain.Turn, limit int) []domain.Turn {
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]domain.Turn(nil), turns...)
}
