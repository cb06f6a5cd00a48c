package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnavailable marks transport failures, 5xx answers and an open breaker.
// These are transient: callers surface a generic retryable message.
var ErrUnavailable = errors.New("commerce backend unavailable")

// Error is a validation or availability answer from the backend. Message is
// shown to the user verbatim.
type Error struct {
	Status  int    `json:"-"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s (%d): %s", e.Type, e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (%d): %s", e.Status, e.Message)
}

// AsError extracts a backend Error from err.
func AsError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// IsNotFound reports a 404 answer.
func IsNotFound(err error) bool {
	be, ok := AsError(err)
	return ok && be.Status == http.StatusNotFound
}

func parseError(status int, body []byte) error {
	var be Error
	_ = json.Unmarshal(body, &be)
	be.Status = status
	if strings.TrimSpace(be.Message) == "" {
		be.Message = strings.TrimSpace(string(body))
	}
	if be.Message == "" {
		be.Message = http.StatusText(status)
	}
	if status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", ErrUnavailable, be.Error())
	}
	return &be
}
