package api

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionExpired is returned when the refresh flow cannot produce a
	// usable access token: the refresh token is missing, the refresh call was
	// rejected, or a replayed request was rejected a second time.
	ErrSessionExpired = errors.New("session expired")

	// ErrNoSession is returned by session restore when the persisted
	// credential set is incomplete.
	ErrNoSession = errors.New("no session found")
)

// APIError is a non-2xx server response outside the expired-session case.
// Message carries the server-provided envelope message when present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// NetworkError wraps a transport failure where no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StorageError wraps a credential store read or write failure.
type StorageError struct {
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: key %q: %v", e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ResponseError maps a non-2xx server response to an APIError carrying the
// envelope message. Returns nil for 2xx statuses.
func ResponseError(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	return &APIError{Status: status, Message: EnvelopeMessage(body)}
}

// IsUnauthorized reports whether err is an APIError with a 401 status.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 401
}
