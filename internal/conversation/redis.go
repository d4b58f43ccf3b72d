package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bull/docqa/internal/domain"
)

const (
	keyPrefix      = "docqa:conversation:"
	maxTxnAttempts = 50
)

// RedisStore keeps each conversation in a Redis list of JSON turns with a
// sliding TTL. Appends run under WATCH so concurrent writers to the same
// conversation are serialised by optimistic retry.
type RedisStore struct {
	rdb *goredis.Client
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore connects to addr and verifies it with a ping.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb, ttl: ttl, now: time.Now}, nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

func key(id string) string { return keyPrefix + id }

func (s *RedisStore) Append(ctx context.Context, id string, turns ...domain.Turn) error {
	if id == "" {
		return domain.Errorf(domain.KindInvalidRequest, "conversation.Append", "empty conversation id")
	}
	if len(turns) == 0 {
		return nil
	}
	k := key(id)
	txn := func(tx *goredis.Tx) error {
		var last time.Time
		raw, err := tx.LIndex(ctx, k, -1).Result()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return err
		default:
			var prev domain.Turn
			if err := json.Unmarshal([]byte(raw), &prev); err != nil {
				return fmt.Errorf("decode last turn: %w", err)
			}
			last = prev.Timestamp
		}

		stamped := stamp(last, turns, s.now())
		values := make([]any, len(stamped))
		for i, t := range stamped {
			b, err := json.Marshal(t)
			if err != nil {
				return err
			}
			values[i] = b
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.RPush(ctx, k, values...)
			if s.ttl > 0 {
				pipe.Expire(ctx, k, s.ttl)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txn, k)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("append to conversation %s: %w", id, err)
		}
		return nil
	}
	return fmt.Errorf("append to conversation %s: too much contention", id)
}

func (s *RedisStore) History(ctx context.Context, id string, limit int) ([]domain.Turn, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raws, err := s.rdb.LRange(ctx, key(id), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read conversation %s: %w", id, err)
	}
	turns := make([]domain.Turn, 0, len(raws))
	for _, raw := range raws {
		var t domain.Turn
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *RedisStore) Drop(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("drop conversation %s: %w", id, err)
	}
	return nil
}
