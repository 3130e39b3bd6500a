package cli

import "errors"

// CLI-specific sentinel errors.
// These are validation/usage errors that don't belong to domain packages.

var (
	// ErrAPIKeyMissing indicates OPENAI_API_KEY environment variable is not set.
	ErrAPIKeyMissing = errors.New("OPENAI_API_KEY environment variable not set")

	// ErrStoreURLMissing indicates no queue store URL was configured.
	ErrStoreURLMissing = errors.New("store URL not set")

	// ErrInvalidLogLevel indicates an unknown --log-level value.
	ErrInvalidLogLevel = errors.New("invalid log level")
)
