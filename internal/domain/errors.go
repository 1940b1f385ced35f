package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidEmail is returned by client-side email checks.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrNoSession indicates no usable cart session is available.
	ErrNoSession = errors.New("no cart session")
	// ErrSessionExpired is the sentinel form of a 410 session expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrStepLocked is returned when editing a checkout step not yet reached.
	ErrStepLocked = errors.New("checkout step locked")
	// ErrSubmitInProgress rejects a second concurrent order submission.
	ErrSubmitInProgress = errors.New("order submission in progress")
)

// APIError is the single normalized error produced by the backend gateway.
type APIError struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"status_code"`
	Details    interface{} `json:"details,omitempty"`
	RequestID  string      `json:"request_id,omitempty"`
	Err        error       `json:"-"`
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("backend: %s", e.Message)
	}
	return fmt.Sprintf("backend: %d %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// StatusOf returns the HTTP status carried by an APIError in err's chain, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsSessionExpired reports whether err is the backend's session-expiry signal.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired) || StatusOf(err) == http.StatusGone
}
