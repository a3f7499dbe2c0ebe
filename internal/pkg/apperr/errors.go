// Package apperr holds the terminal outcomes services report to callers.
// Version conflicts never reach this level; see package occ.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the targeted entity did not exist when it was looked up.
	ErrNotFound = errors.New("not found")

	// ErrAuthFailed covers both an unknown login and a wrong password.
	ErrAuthFailed = errors.New("authentication failed")
)

// InvalidRequestError reports caller data that breaks a business rule.
// Reason is safe to show to the end user.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

// Invalid builds an InvalidRequestError from a format string.
func Invalid(format string, args ...any) error {
	return &InvalidRequestError{Reason: fmt.Sprintf(format, args...)}
}

// IsInvalid reports whether err is an InvalidRequestError and returns it.
func IsInvalid(err error) (*InvalidRequestError, bool) {
	var ire *InvalidRequestError
	if errors.As(err, &ire) {
		return ire, true
	}
	return nil, false
}
