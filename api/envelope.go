// Package api defines the backend's generic response envelope and the typed
// errors surfaced by the client.
package api

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Envelope is the wrapper every backend response follows: {success, data, message}.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// ParseEnvelope decodes a raw response body into an Envelope.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrap(err, "[ParseEnvelope] malformed response body")
	}
	return &env, nil
}

// EnvelopeMessage best-effort extracts the server message from a response
// body. Used for error reporting, so a malformed body yields an empty string.
func EnvelopeMessage(body []byte) string {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Message
}

// Decode unmarshals an envelope's data payload into T.
func Decode[T any](env *Envelope) (T, error) {
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, errors.Wrap(err, "[Decode] envelope data")
	}
	return v, nil
}
