package queue

import "errors"

// ErrNotFound indicates the job id is unknown to the store.
var ErrNotFound = errors.New("job not found")

// ErrAlreadyClaimed indicates a claim lost the race: the job is no longer
// pending. The loser gets this explicit rejection, never a silent success.
var ErrAlreadyClaimed = errors.New("job already claimed")

// ErrInvalidTransition indicates a complete or fail request for a job that
// is not currently processing.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrUnauthorized indicates the bearer credential was missing or wrong.
var ErrUnauthorized = errors.New("unauthorized")
