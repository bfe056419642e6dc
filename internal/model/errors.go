package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure by how it must be handled.
type ErrorKind int

const (
	// KindNone is the kind of a nil error.
	KindNone ErrorKind = iota

	// KindPath is a missing or non-directory path. It aborts the run
	// before any download starts.
	KindPath

	// KindResolution means a single input link could not be turned into
	// an id. The link is dropped, the others continue.
	KindResolution

	// KindFetchFatal is a permanent refusal (403, 404, error page).
	KindFetchFatal

	// KindFetchRetryable is a transient failure (400, 429, 503, resets,
	// timeouts). The id is re-queued.
	KindFetchRetryable

	// KindFetchUnknown is any other fetch failure. It is logged and the
	// id is dropped.
	KindFetchUnknown

	// KindRename means the cosmetic rename after a download failed. The
	// downloaded bytes are kept.
	KindRename

	// KindPoolExhausted means no usable proxy identity is left. Proxying
	// is disabled for the rest of the run.
	KindPoolExhausted
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPath:
		return "path"
	case KindResolution:
		return "resolution"
	case KindFetchFatal:
		return "fatal"
	case KindFetchRetryable:
		return "retryable"
	case KindFetchUnknown:
		return "unknown"
	case KindRename:
		return "rename"
	case KindPoolExhausted:
		return "pool exhausted"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is an error tagged with its kind and, when known, the id it
// concerns.
type Error struct {
	Kind ErrorKind
	ID   ResourceID
	Err  error
}

func (e *Error) Error() string {
	var msg string
	if e.ID.Valid() {
		msg = fmt.Sprintf("%s error for %d", e.Kind, e.ID)
	} else {
		msg = fmt.Sprintf("%s error", e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with kind and id.
func NewError(kind ErrorKind, id ResourceID, err error) *Error {
	return &Error{Kind: kind, ID: id, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
// It returns KindNone for nil and KindFetchUnknown for untagged errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFetchUnknown
}
