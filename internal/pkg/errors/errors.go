package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDuplicate marks an item or row that already exists. Callers treat it as a no-op.
	ErrDuplicate = errors.New("duplicate")
	// ErrRejected marks a normal negative ingestion outcome (irrelevant, out of era, unlocatable).
	ErrRejected = errors.New("rejected")
	// ErrDeferred marks work that could not run now (gate timeout, rate limit) and should be retried later
	// without counting as a failure.
	ErrDeferred = errors.New("deferred")
	// ErrPermanent marks configuration problems that retrying cannot fix.
	ErrPermanent = errors.New("permanent")
)
