// Package errors wraps the wire-stable constants.ErrorCode kinds (spec §7)
// into a Go error, the way the teacher's errors.NewError(code, cause)
// wraps pitaya's string error codes.
package errors

import (
	"fmt"

	"github.com/ulala-x/playhouse/constants"
)

// Error pairs a stable ErrorCode with an optional underlying cause.
type Error struct {
	Code  constants.ErrorCode
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error from a code with no underlying cause.
func New(code constants.ErrorCode) *Error {
	return &Error{Code: code}
}

// Wrap builds an *Error from a code and an underlying cause.
func Wrap(code constants.ErrorCode, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

// ToErrorCode extracts the wire ErrorCode from any error, defaulting to
// SystemError for errors that didn't originate from this package.
func ToErrorCode(err error) constants.ErrorCode {
	if err == nil {
		return constants.Success
	}
	var pe *Error
	if asError(err, &pe) {
		return pe.Code
	}
	return constants.SystemError
}

func asError(err error, target **Error) bool {
	for err != nil {
		if pe, ok := err.(*Error); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
