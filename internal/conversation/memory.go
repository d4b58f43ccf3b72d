package conversation

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/bull/docqa/internal/domain"
)

const shardCount = 32

// MemoryStore keeps conversations in process memory for the life of the process.
// The id space is split over shards so that creating or dropping a
// conversation only locks its shard; appends then lock only the
// conversation itself.
type MemoryStore struct {
	shards [shardCount]shard
	now    func() time.Time
}

type shard struct {
	mu    sync.RWMutex
	convs map[string]*thread
}

type thread struct {
	mu    sync.Mutex
	turns []domain.Turn
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{now: time.Now}
	for i := range s.shards {
		s.shards[i].convs = make(map[string]*thread)
	}
	return s
}

func (s *MemoryStore) shard(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.shards[h.Sum32()%shardCount]
}

func (s *MemoryStore) thread(id string, create bool) *thread {
	sh := s.shard(id)
	sh.mu.RLock()
	t := sh.convs[id]
	sh.mu.RUnlock()
	if t != nil || !create {
		return t
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if t = sh.convs[id]; t == nil {
		t = &thread{}
		sh.convs[id] = t
	}
	return t
}

func (s *MemoryStore) Append(ctx context.Context, id string, turns ...domain.Turn) error {
	if id == "" {
		return domain.Errorf(domain.KindInvalidRequest, "conversation.Append", "empty conversation id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}
	t := s.thread(id, true)
	t.mu.Lock()
	defer t.mu.Unlock()
	var last time.Time
	if n := len(t.turns); n > 0 {
		last = t.turns[n-1].Timestamp
	}
	t.turns = append(t.turns, stamp(last, turns, s.now())...)
	return nil
}

func (s *MemoryStore) History(_ context.Context, id string, limit int) ([]domain.Turn, error) {
	t := s.thread(id, false)
	if t == nil {
		return nil, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return tail(t.turns, limit), nil
}

func (s *MemoryStore) Drop(_ context.Context, id string) error {
	sh := s.shard(id)
	sh.mu.Lock()
	delete(sh.convs, id)
	sh.mu.Unlock()
	return nil
}
