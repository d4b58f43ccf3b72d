package domain

import (
	"context"
	"errors"
	"fmt"
)

// Kind is a stable error category surfaced to callers.
type Kind string

const (
	KindInvalidRequest       Kind = "invalid_request"
	KindRetrievalUnavailable Kind = "retrieval_unavailable"
	KindEmbeddingUnavailable Kind = "embedding_unavailable"
	KindGeneration           Kind = "generation_error"
	KindExtraction           Kind = "extraction_error"
	KindUnsupportedFormat    Kind = "unsupported_format"
	KindDocumentNotFound     Kind = "document_not_found"
	KindTimeout              Kind = "timeout"
	KindInternal             Kind = "internal"
)

// Sentinels, one per kind, so callers can use errors.Is.
var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	ErrGeneration           = errors.New("generation failed")
	ErrExtraction           = errors.New("text extraction failed")
	ErrUnsupportedFormat    = errors.New("unsupported format")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrTimeout              = errors.New("timed out")
	ErrInternal             = errors.New("internal error")

	// ErrNoContent is returned when a document yields no text to index.
	// It carries KindExtraction.
	ErrNoContent = errors.New("document has no extractable text")
)

var sentinels = map[Kind]error{
	KindInvalidRequest:       ErrInvalidRequest,
	KindRetrievalUnavailable: ErrRetrievalUnavailable,
	KindEmbeddingUnavailable: ErrEmbeddingUnavailable,
	KindGeneration:           ErrGeneration,
	KindExtraction:           ErrExtraction,
	KindUnsupportedFormat:    ErrUnsupportedFormat,
	KindDocumentNotFound:     ErrDocumentNotFound,
	KindTimeout:              ErrTimeout,
	KindInternal:             ErrInternal,
}

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if s, ok := sentinels[e.Kind]; ok {
		msg = s.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrXxx) true for every Error of the matching kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// E builds an Error. A context deadline in err turns the kind into KindTimeout
// so that hung upstreams are reported distinctly from failing ones.
func E(kind Kind, op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an Error with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the Kind of err. Errors that carry no Kind are KindInternal,
// except bare context deadlines which are KindTimeout.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}
