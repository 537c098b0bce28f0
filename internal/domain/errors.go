package domain

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist.
	// Keeping the sentinel here lets handlers map it consistently to 404.
	ErrNotFound = errors.New("resource not found")
	// ErrUnauthorized covers both missing identity and bad webhook signatures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict signals a state-machine violation, e.g. crediting an order
	// that another writer already completed.
	ErrConflict = errors.New("conflict")
	// ErrTransient marks gateway timeouts and network failures. The order
	// stays PENDING and the caller may retry verification.
	ErrTransient = errors.New("transient gateway failure")
	// ErrInvalidInput rejects non-positive amounts and malformed requests
	// before any state is touched.
	ErrInvalidInput = errors.New("invalid input")
)
