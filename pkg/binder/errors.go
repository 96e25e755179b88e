package binder

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrAlreadyInProgress   = errors.New("bind already in progress")
	ErrUnbindFailed        = errors.New("unbind failed")
	ErrPlatformUnavailable = errors.New("platform unavailable")
)

// UnbindError is returned when the platform refuses to clear the override.
// The bound network is still recorded, so the call can be retried.
type UnbindError struct {
	Handle Handle
	Err    error
}

func (e *UnbindError) Error() string {
	return fmt.Sprintf("unbind network %s: %v", e.Handle, e.Err)
}

func (e *UnbindError) Is(target error) bool {
	return target == ErrUnbindFailed
}

func (e *UnbindError) Unwrap() error {
	return e.Err
}

func platformError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPlatformUnavailable, op, err)
}
