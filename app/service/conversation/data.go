package conversation

import (
	"context"
	"errors"
	"fmt"
)

// ErrBusy rejects a send while another request is outstanding. The remote
// conversation is a strictly ordered single thread, so there is never more
// than one request in flight.
var ErrBusy = errors.New("conversation request already in flight")

// ErrNoSession rejects a send before StartSession (or after Close).
var ErrNoSession = errors.New("no active conversation session")

type ErrorKind int

const (
	// ErrorTransient covers network and service failures; the exchange may
	// be retried by the user.
	ErrorTransient ErrorKind = iota
	// ErrorEmptyResponse covers successful calls that produced no usable
	// text.
	ErrorEmptyResponse
)

// APIError classifies a failed exchange. Each kind maps to exactly one
// user-facing fallback message; neither kind triggers an automatic retry.
type APIError struct {
	Kind ErrorKind
	Err  error
}

func (e *APIError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("conversation error (kind %d)", e.Kind)
	}

	return e.Err.Error()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Classify extracts the error kind, defaulting to transient.
func Classify(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}

	return ErrorTransient
}

// ChatAPI opens conversation sessions against the generative backend.
type ChatAPI interface {
	StartSession(ctx context.Context) (SessionHandle, error)
}

// SessionHandle is one stateful remote conversation thread.
type SessionHandle interface {
	SendMessage(ctx context.Context, text string) (string, error)
}
