package middlewares

import (
	"errors"

	"github.com/dmitrymomot/keel/internal"
)

// PanicError is the error Recover returns for a recovered panic.
type PanicError = internal.PanicError

// TimeoutError is the error Timeout returns once its deadline passes.
type TimeoutError = internal.TimeoutError

// IsPanicError returns true if the error is a PanicError.
func IsPanicError(err error) bool {
	return internal.IsPanicError(err)
}

// IsTimeoutError returns true if the error is a TimeoutError.
func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// AsPanicError extracts the PanicError from an error if present.
func AsPanicError(err error) (*PanicError, bool) {
	pe := internal.AsPanicError(err)
	return pe, pe != nil
}

// AsTimeoutError extracts the TimeoutError from an error if present.
func AsTimeoutError(err error) (*TimeoutError, bool) {
	var te *TimeoutError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
