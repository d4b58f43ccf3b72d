package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var fast = Policy{InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, MaxRetries: 1}

func TestRetriesTransientOnce(t *testing.T) {
	calls := 0
	errDown := errors.New("unavailable")

	err := fast.Do(context.Background(), func() error {
		calls++
		return errDown
	}, func(error) bool { return true })

	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, 2, calls)
}

func TestSucceedsOnRetry(t *testing.T) {
	calls := 0
	err := fast.Do(context.Background(), func() error {
		calls++
		if calls == 1 {
			return errors.New("blip")
		}
		return nil
	}, nil)

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestPermanentNotRetried(t *testing.T) {
	calls := 0
	errBad := errors.New("bad request")

	err := fast.Do(context.Background(), func() error {
		calls++
		return errBad
	}, func(error) bool { return false })

	assert.ErrorIs(t, err, errBad)
	assert.Equal(t, 1, calls)
}

func TestCancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0

	err := Policy{InitialInterval: time.Second, MaxInterval: time.Second, MaxRetries: 3}.Do(ctx, func() error {
		calls++
		return errors.New("down")
	}, nil)

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
