package worker

// WithCleanup exposes withCleanup for tests.
var WithCleanup = withCleanup
