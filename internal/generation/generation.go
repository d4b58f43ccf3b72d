// Package generation talks to the language model that writes answers.
package generation

import "context"

// Stream yields answer fragments in order. Callers loop on Next, read
// Fragment, then check Err; Close releases the underlying connection and
// may be called at any time to stop production.
type Stream interface {
	Next() bool
	Fragment() string
	Err() error
	Close() error
}

// Generator produces answers from an assembled prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string) (Stream, error)
}
