package domain

import "errors"

var (
	// ErrValidation marks input that fails domain validation.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a missing certificate or print request.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an operation rejected because of current state.
	ErrConflict = errors.New("conflict")

	// ErrProtocolViolation marks a print provider response that breaks the
	// agreed response contract. It is fatal for that single response and is
	// never mapped to a guessed status.
	ErrProtocolViolation = errors.New("print provider protocol violation")
)
