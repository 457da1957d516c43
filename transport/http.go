package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/tktapps/arrivals-client/api"
)

var _ Sender = (*HTTPTransport)(nil)

// HTTPTransport sends requests to a single base URL with a default timeout
// and JSON content type, both overridable per request.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// HTTPTransportOption modifies an HTTPTransport instance.
type HTTPTransportOption func(*HTTPTransport)

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.client.Timeout = d
	}
}

// WithHTTPClient replaces the underlying http.Client (primarily for testing).
func WithHTTPClient(c *http.Client) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// WithLogger sets the transport's logger.
func WithLogger(l zerolog.Logger) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.logger = l
	}
}

// NewHTTPTransport creates a transport rooted at baseURL.
func NewHTTPTransport(baseURL string, options ...HTTPTransportOption) *HTTPTransport {
	t := &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Send executes req and returns the server's response, however it answered.
// A nil error with a non-2xx status is still a response; errors are reserved
// for failures where no response was received.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	body, contentType, err := t.encodeBody(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.url(req), body)
	if err != nil {
		return nil, errors.Wrap(err, "[HTTPTransport.Send] build request")
	}

	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Content-Type") == "" && contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		t.logger.Debug().Str("method", req.Method).Str("path", req.Path).Err(err).Msg("request failed")
		return nil, &api.NetworkError{Op: req.Method + " " + req.Path, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &api.NetworkError{Op: req.Method + " " + req.Path, Err: err}
	}

	t.logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", httpResp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request complete")

	return &Response{
		Status:  httpResp.StatusCode,
		Headers: httpResp.Header,
		Body:    respBody,
	}, nil
}

func (t *HTTPTransport) url(req *Request) string {
	u := t.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

// encodeBody renders the request body and reports its content type. The body
// is rebuilt from the descriptor on every call, so replays after a token
// refresh see a fresh reader.
func (t *HTTPTransport) encodeBody(req *Request) (io.Reader, string, error) {
	if req.Form != nil {
		return encodeMultipart(req.Form)
	}
	if req.Body == nil {
		return nil, "", nil
	}
	data, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", errors.Wrap(err, "[HTTPTransport.encodeBody] marshal body")
	}
	return bytes.NewReader(data), "application/json", nil
}

func encodeMultipart(form *Form) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for field, value := range form.Fields {
		if err := w.WriteField(field, value); err != nil {
			return nil, "", errors.Wrap(err, "[encodeMultipart] write field")
		}
	}

	for _, f := range form.Files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			`form-data; name="`+escapeQuotes(f.Field)+`"; filename="`+escapeQuotes(f.Name)+`"`)
		contentType := f.ContentType
		if contentType == "" {
			contentType = "image/jpeg"
		}
		header.Set("Content-Type", contentType)

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", errors.Wrap(err, "[encodeMultipart] create part")
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", errors.Wrap(err, "[encodeMultipart] write file")
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "[encodeMultipart] close writer")
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// escapeQuotes keeps quotes and backslashes in field or file names from
// breaking the Content-Disposition header out of its quoted string.
func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
