package types

import (
	"errors"
	"time"
)

const (
	// DefaultBaseURL is the default publishing API base URL
	DefaultBaseURL = "https://api.twitter.com"

	// StatusUpdatePath is the path of the status publishing endpoint
	StatusUpdatePath = "/1.1/statuses/update.json"

	// VerifyCredentialsPath is the path of the credential check endpoint
	VerifyCredentialsPath = "/1.1/account/verify_credentials.json"

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second

	// UserAgent is the user agent string
	UserAgent = "steamtotwitter-go/1.0.0"
)

// Common errors
var (
	// ErrNotAuthenticated is returned when the remote rejects the request signature
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrRateLimited is returned when rate limited
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout is returned on timeout
	ErrTimeout = errors.New("request timeout")

	// ErrNotFound is returned when resource not found
	ErrNotFound = errors.New("resource not found")

	// ErrServerError is returned for server errors
	ErrServerError = errors.New("server error")

	// ErrUnexpectedResponse is returned when a 200 response lacks the success marker
	ErrUnexpectedResponse = errors.New("unexpected response")
)
