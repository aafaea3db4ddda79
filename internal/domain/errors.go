package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the store
	ErrJobNotFound = errors.New("job not found")

	// ErrListingNotFound is returned when a listing cannot be found in the store
	ErrListingNotFound = errors.New("listing not found")

	// ErrBookmarkNotFound is returned when a bookmark cannot be found in the store
	ErrBookmarkNotFound = errors.New("bookmark not found")

	// ErrDuplicateBookmark is returned when the owner already bookmarked the listing
	ErrDuplicateBookmark = errors.New("listing already bookmarked")

	// ErrStatusConflict is returned when a compare-and-set status update finds
	// the job in a different status than expected
	ErrStatusConflict = errors.New("job status changed concurrently")

	// ErrInvalidTransition is returned when a status change would move the lifecycle backwards
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrUnknownStatus is returned when a status string has an unknown kind
	ErrUnknownStatus = errors.New("unknown job status")

	// ErrInvalidQuery is returned when job query parameters are out of range
	ErrInvalidQuery = errors.New("invalid job query")

	// ErrMalformedRecord is returned when a single connector record cannot be normalized
	ErrMalformedRecord = errors.New("malformed record")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
