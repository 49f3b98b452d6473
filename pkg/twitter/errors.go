package twitter

import (
	"errors"

	internalTypes "github.com/eshaffer321/steamtotwitter-go/internal/types"
)

var (
	// ErrNotAuthenticated is returned when the request signature is rejected
	ErrNotAuthenticated = internalTypes.ErrNotAuthenticated

	// ErrRateLimited is returned when rate limited
	ErrRateLimited = internalTypes.ErrRateLimited

	// ErrTimeout is returned on timeout
	ErrTimeout = internalTypes.ErrTimeout

	// ErrServerError is returned for server errors
	ErrServerError = internalTypes.ErrServerError

	// ErrUnexpectedResponse is returned when a response lacks the success marker
	ErrUnexpectedResponse = internalTypes.ErrUnexpectedResponse
)

// Error represents an API error
type Error = internalTypes.Error

// IsAuthError checks if error is authentication related
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthenticated)
}

// IsRetryable checks if error is retryable
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrServerError) {
		return true
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == 429
	}

	return false
}
