// Package apperrors defines the error taxonomy shared by every client-side
// component. Each public operation of the core returns either a success value
// or one of these classified errors, and callers decide the user-facing message.
//
// Use errors.As to inspect typed errors and errors.Is for the sentinels:
//
//	var verr *apperrors.ValidationError
//	if errors.As(err, &verr) && verr.StatusCode == http.StatusConflict {
//	    // email already registered
//	}
//	if errors.Is(err, apperrors.ErrNoDispenser) {
//	    // send the user to the QR scan screen
//	}
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUninitialized is returned when the credential cache is used before
	// Initialize has loaded the persisted token.
	ErrUninitialized = errors.New("credential cache is not initialized")

	// ErrNoDispenser is returned when an intake is requested without a
	// registered dispenser. No request reaches the backend in that case.
	ErrNoDispenser = errors.New("no dispenser registered")

	// ErrIntakeInFlight is returned when an intake workflow is started while
	// another one is still requesting or polling.
	ErrIntakeInFlight = errors.New("intake request already in progress")
)

// ValidationError reports a 4xx rejection from the backend, or a local
// pre-flight check that would have been rejected anyway (StatusCode 0).
type ValidationError struct {
	StatusCode int    // HTTP status, 0 for local validation
	Body       string // Raw server body when one was returned
	Message    string // Server "message" field or local reason
}

func (e *ValidationError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("request rejected (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request rejected (HTTP %d)", e.StatusCode)
}

// NetworkError reports connectivity failures and connect/read/write timeouts.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// UnknownError is the fallback classification (5xx, undecodable bodies, ...).
type UnknownError struct {
	Err error
}

func (e *UnknownError) Error() string {
	return e.Err.Error()
}

func (e *UnknownError) Unwrap() error {
	return e.Err
}

// DeleteFailedError reports a profile deletion answered with a non-2xx status.
type DeleteFailedError struct {
	StatusCode int
}

func (e *DeleteFailedError) Error() string {
	return fmt.Sprintf("delete failed (HTTP %d)", e.StatusCode)
}

// RegistrationError reports a dispenser registration answered with a non-2xx status.
type RegistrationError struct {
	StatusCode int
	Body       string
}

func (e *RegistrationError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("dispenser registration failed (HTTP %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("dispenser registration failed (HTTP %d)", e.StatusCode)
}

// Validation builds a local ValidationError without a status code.
func Validation(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// StatusCode extracts the HTTP status carried by a classified error.
// Returns 0 when the error carries none.
func StatusCode(err error) int {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.StatusCode
	}
	var derr *DeleteFailedError
	if errors.As(err, &derr) {
		return derr.StatusCode
	}
	var rerr *RegistrationError
	if errors.As(err, &rerr) {
		return rerr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 from the backend, which callers
// should answer by prompting for re-authentication.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsNetwork reports whether err was classified as a network failure.
func IsNetwork(err error) bool {
	var nerr *NetworkError
	return errors.As(err, &nerr)
}
