package interview

import "errors"

var (
	// ErrInvalidCategory is returned by Start for a category the bank does not know.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrSessionNotFound is returned for ids that are not live.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidSessionState is returned when an operation does not fit the
	// session state, e.g. a response submitted after completion.
	ErrInvalidSessionState = errors.New("invalid session state")
	// ErrGeneration marks a failed model call. It is recovered with fallback
	// text and only surfaces in logs.
	ErrGeneration = errors.New("generation failed")
	// ErrPersistence is returned when a session cannot be saved.
	ErrPersistence = errors.New("persistence failed")
)
