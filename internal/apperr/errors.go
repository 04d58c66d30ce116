// Package apperr holds the sentinel errors shared by services and transports.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrFeatureLocked = errors.New("feature not available on current plan")
	ErrLimitReached  = errors.New("plan limit reached")
	ErrForbidden     = errors.New("forbidden")
)

// Invalid marks err as a client input error while keeping it inspectable.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}
