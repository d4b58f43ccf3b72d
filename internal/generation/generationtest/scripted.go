// Package generationtest provides a scripted Generator for tests.
package generationtest

import (
	"context"
	"strings"
	"sync"

	"github.com/bull/docqa/internal/generation"
)

// Scripted replays Fragments. If FailAfter > 0, the stream fails with Err
// after that many fragments; otherwise Err (if set) is returned by the call.
// When Hold is non-nil, every fragment after the first waits for a receive
// on it or for the context to end.
type Scripted struct {
	Fragments []string
	Err       error
	FailAfter int
	Hold      chan struct{}

	mu      sync.Mutex
	prompts []string
	closed  bool
	emitted int
}

func (s *Scripted) record(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
}

// Prompts returns every prompt received.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Emitted returns how many fragments the last stream produced.
func (s *Scripted) Emitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted
}

// Closed reports whether the last stream was closed.
func (s *Scripted) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Scripted) Complete(ctx context.Context, prompt string) (string, error) {
	s.record(prompt)
	if s.Err != nil {
		return "", s.Err
	}
	return strings.Join(s.Fragments, ""), ctx.Err()
}

func (s *Scripted) Stream(ctx context.Context, prompt string) (generation.Stream, error) {
	s.record(prompt)
	if s.Err != nil && s.FailAfter == 0 {
		return nil, s.Err
	}
	s.mu.Lock()
	s.closed, s.emitted = false, 0
	s.mu.Unlock()
	return &stream{ctx: ctx, s: s}, nil
}

type stream struct {
	ctx  context.Context
	s    *Scripted
	i    int
	cur  string
	err  error
	done bool
}

func (st *stream) Next() bool {
	if st.done {
		return false
	}
	if st.s.FailAfter > 0 && st.i == st.s.FailAfter {
		st.err, st.done = st.s.Err, true
		return false
	}
	if st.i >= len(st.s.Fragments) {
		st.done = true
		return false
	}
	if st.i > 0 && st.s.Hold != nil {
		select {
		case <-st.s.Hold:
		case <-st.ctx.Done():
			st.err, st.done = st.ctx.Err(), true
			return false
		}
	}
	if err := st.ctx.Err(); err != nil {
		st.err, st.done = err, true
		return false
	}
	st.cur = st.s.Fragments[st.i]
	st.i++
	st.s.mu.Lock()
	st.s.emitted++
	st.s.mu.Unlock()
	return true
}

func (st *stream) Fragment() string { return st.cur }
func (st *stream) Err() error       { return st.err }

func (st *stream) Close() error {
	st.done = true
	st.s.mu.Lock()
	st.s.closed = true
	st.s.mu.Unlock()
	return nil
}
