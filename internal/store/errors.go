package store

import "errors"

var (
	// ErrConflict is returned by Create when a row with the given TxHash
	// already exists. Intake treats this as "return the existing row
	// unchanged", since TxHash is the sole idempotency key.
	ErrConflict = errors.New("store: job already exists")

	// ErrNotFound is returned by Get and the Mark*/Requeue* mutators when no
	// row exists for the given TxHash.
	ErrNotFound = errors.New("store: job not found")

	// ErrNoJobs is returned by OldestByStatus when no row matches.
	ErrNoJobs = errors.New("store: no jobs")
)
