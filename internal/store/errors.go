package store

import "errors"

var (
	// ErrConflict is the expected outcome of losing a booking race: the
	// slot's partial unique index rejected the write at commit time.
	ErrConflict = errors.New("slot conflict")

	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnavailable is returned once transient storage failures have
	// exhausted their bounded retries.
	ErrUnavailable = errors.New("storage unavailable")
)
