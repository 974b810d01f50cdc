package domain

import "errors"

// Error taxonomy for the scoring pipeline. The HTTP layer maps these to
// status codes; lower layers wrap them with context via fmt.Errorf and %w.
var (
	// ErrValidation marks malformed caller input. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrModelNotLoaded means scoring was invoked before a model artifact
	// was present. Fatal to the request, safe for the caller to retry later.
	ErrModelNotLoaded = errors.New("model not loaded")

	// ErrStoreUnavailable marks a transient profile-store or cache failure.
	// Reads degrade to defaults; failed writes are logged and counted.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInternal marks an unexpected failure in feature math or model
	// invocation. Aborts the single request without side effects.
	ErrInternal = errors.New("internal error")

	// ErrNotFound is returned for lookups of records that do not exist.
	ErrNotFound = errors.New("not found")
)
