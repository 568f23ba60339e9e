package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch outcome so callers branch on kind, never on
// message text. Cancelled is informational, not a failure: it means the
// attempt was superseded and its result is no longer relevant.
type Kind string

const (
	KindCancelled    Kind = "cancelled"
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindServerError  Kind = "server_error"
	KindNetworkError Kind = "network_error"
	KindInvalidShape Kind = "invalid_response_shape"
)

// Error is the typed failure surfaced by the fetch layer.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status when one was received, 0 otherwise
	Message string // upstream-provided detail, if any
	Err     error  // underlying cause
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the classification from an error chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// IsCancelled reports whether err marks a superseded attempt.
func IsCancelled(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindCancelled
}
