package services

import "errors"

var (
	// ErrInvalidInput matches every caller-side validation failure.
	ErrInvalidInput = errors.New("invalid input")
	ErrUserNotFound = errors.New("User not found")
)

// inputError carries the message shown to callers and matches ErrInvalidInput.
type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func (e *inputError) Is(target error) bool { return target == ErrInvalidInput }

var (
	ErrInvalidUsername error = &inputError{msg: "Invalid username."}
	ErrInvalidDate     error = &inputError{msg: "Invalid date."}
	ErrInvalidDuration error = &inputError{msg: "Invalid duration."}
)
