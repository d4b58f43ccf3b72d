// Package retry gives adapter calls one bounded retry with exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy configures the backoff between attempts.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
}

// Default is a single retry after roughly half a second.
var Default = Policy{
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     10 * time.Second,
	MaxRetries:      1,
}

func (p Policy) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)
}

// Do runs op, retrying per the policy while transient(err) is true.
// Non-transient errors are returned immediately.
func (p Policy) Do(ctx context.Context, op func() error, transient func(error) bool) error {
	operation := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if transient != nil && !transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(operation, p.backoff(ctx))
}

// Once is Default.Do.
func Once(ctx context.Context, op func() error, transient func(error) bool) error {
	return Default.Do(ctx, op, transient)
}

// Persistent retries until MaxElapsedTime. Used for startup health checks.
func Persistent(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}
