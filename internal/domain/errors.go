package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrNoCart is returned when the session holds no cart identity.
	ErrNoCart = errors.New("no cart for session")
	// ErrInvalidInput marks caller mistakes that are reported verbatim.
	ErrInvalidInput = errors.New("invalid input")
)

// Redirect is a control-flow signal handing the caller off to another view.
// It travels as an error so it can unwind through call chains, but it is
// never shown to the user as a failure.
type Redirect struct {
	Location string
}

func (r *Redirect) Error() string {
	return fmt.Sprintf("redirect to %s", r.Location)
}

// AsRedirect extracts a redirect signal from err.
func AsRedirect(err error) (*Redirect, bool) {
	var r *Redirect
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// Invalid wraps a message as an ErrInvalidInput.
func Invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
