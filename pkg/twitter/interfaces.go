package twitter

import "context"

// Publisher publishes a message with a trailing link
type Publisher interface {
	// Publish posts the status; nil means success
	Publish(ctx context.Context, message, link string) error
}

// Verifier checks the configured credentials
type Verifier interface {
	// VerifyCredentials returns the authenticated account
	VerifyCredentials(ctx context.Context) (*Account, error)
}

var (
	_ Publisher = (*Client)(nil)
	_ Verifier  = (*Client)(nil)
)
