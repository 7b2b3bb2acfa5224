package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/errors/v5"
)

// FieldError is a single validation failure reported by the backend.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Error is a non-2xx response from the backend.
type Error struct {
	StatusCode int
	Message    string
	Errors     []FieldError
}

func newError(status int, body []byte) *Error {
	e := &Error{StatusCode: status}

	payload := struct {
		Message string       `json:"message"`
		Error   string       `json:"error"`
		Errors  []FieldError `json:"errors"`
	}{}
	if err := json.Unmarshal(body, &payload); err == nil {
		e.Errors = payload.Errors
		e.Message = payload.Message
		if e.Message == "" {
			e.Message = payload.Error
		}
	}

	return e
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}

	return fmt.Sprintf("api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// FieldMessages joins the messages of the validation failures in err, or returns
// the empty string when err carries none.
func FieldMessages(err error) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) || len(apiErr.Errors) == 0 {
		return ""
	}

	msgs := make([]string, 0, len(apiErr.Errors))
	for _, fe := range apiErr.Errors {
		if fe.Message != "" {
			msgs = append(msgs, fe.Message)
		}
	}

	return strings.Join(msgs, ", ")
}

// Message extracts the human readable message the backend attached to err. Transport
// and decoding failures have no user facing message and yield the empty string.
func Message(err error) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return ""
	}

	return apiErr.Message
}

// HasStatus reports whether err is an API error with the given status code.
func HasStatus(err error, status int) bool {
	var apiErr *Error

	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
