// Package transport executes single HTTP requests against the attendance
// backend. It carries no retry or authentication logic; that belongs to the
// pipeline layered on top.
package transport

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout matches the mobile client's 30 second request budget.
const DefaultTimeout = 30 * time.Second

// File is an in-memory form attachment. Content is held as bytes rather than
// a reader so the request can be rebuilt when the pipeline replays it.
type File struct {
	Field       string
	Name        string
	ContentType string
	Content     []byte
}

// Form describes a multipart/form-data body.
type Form struct {
	Fields map[string]string
	Files  []File
}

// Request describes one call to the backend. Body is JSON-encoded unless
// Form is set, in which case a multipart body is built instead.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Form    *Form
	Headers http.Header

	// Replays counts how many times this request has been re-issued after a
	// token refresh. The pipeline caps it at one.
	Replays int
}

// Header returns the request's header map, allocating it on first use.
func (r *Request) Header() http.Header {
	if r.Headers == nil {
		r.Headers = make(http.Header)
	}
	return r.Headers
}

// Response is the outcome of a request that reached the server.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Sender executes a single request. Implemented by HTTPTransport and by the
// authenticated pipeline, so domain services can be built over either.
type Sender interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}
