// Package envelope decodes the backend's response envelope and normalizes
// failed responses into a single APIError.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 64 << 10

// Envelope is the wrapper the backend puts around every task payload.
type Envelope[T any] struct {
	Success    bool   `json:"success"`
	Data       *T     `json:"data,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// APIError is a non-2xx response reduced to its status and a human-readable
// message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// errorBody is the lenient shape used to pull a message out of a failed
// response. "error" is sometimes an object, so it is decoded lazily.
type errorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

// FromResponse reads resp's body and returns an *APIError. The message is the
// body's "message", else its "error" string, else a short plain-text body,
// else a generic fallback naming the status.
func FromResponse(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    messageFrom(resp.StatusCode, data),
	}
}

func messageFrom(status int, data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		if msg := strings.TrimSpace(body.Message); msg != "" {
			return msg
		}
		var s string
		if len(body.Error) > 0 && json.Unmarshal(body.Error, &s) == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	} else if text := strings.TrimSpace(string(data)); text != "" && len(text) <= 200 && !strings.ContainsAny(text, "\n<{") {
		return text
	}
	return Fallback(status)
}

// Fallback is the message used when a failed response carries none.
func Fallback(status int) string {
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("request failed: %d %s", status, text)
	}
	return fmt.Sprintf("request failed: status %d", status)
}

// Decode reads a successful response body into an Envelope.
func Decode[T any](r io.Reader) (Envelope[T], error) {
	var env Envelope[T]
	if err := json.NewDecoder(r).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		return env, fmt.Errorf("invalid response: %w", err)
	}
	return env, nil
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 APIError.
func IsUnauthorized(err error) bool { return StatusCode(err) == http.StatusUnauthorized }

// IsForbidden reports whether err is a 403 APIError.
func IsForbidden(err error) bool { return StatusCode(err) == http.StatusForbidden }

// IsNotFound reports whether err is a 404 APIError.
func IsNotFound(err error) bool { return StatusCode(err) == http.StatusNotFound }
