// Package twitter publishes short status updates through the v1.1 REST API
// using OAuth 1.0a user-context signing.
package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/eshaffer321/steamtotwitter-go/internal/oauth1"
	"github.com/eshaffer321/steamtotwitter-go/internal/transport"
	internalTypes "github.com/eshaffer321/steamtotwitter-go/internal/types"
	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
)

const (
	// DefaultBaseURL is the default API base URL
	DefaultBaseURL = internalTypes.DefaultBaseURL

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = internalTypes.DefaultTimeout

	// DefaultMaxMessageLength leaves room for a space and a 23 character
	// shortened link in a 140 character status
	DefaultMaxMessageLength = 117

	// Ellipsis marks a truncated message
	Ellipsis = "…"

	createdAtMarker  = `"created_at"`
	screenNameMarker = `"screen_name"`
)

// Credentials are the consumer and access token pairs of the posting account
type Credentials = oauth1.Credentials

// Client is the publishing API client
type Client struct {
	transport Transport
	options   *ClientOptions
}

// ClientOptions configures the client
type ClientOptions struct {
	// BaseURL overrides the default API base URL
	BaseURL string

	// HTTPClient allows using a custom HTTP client
	HTTPClient *http.Client

	// Timeout sets the HTTP client timeout
	Timeout time.Duration

	// Credentials sign every request
	Credentials Credentials

	// MaxMessageLength caps the free text of a status, link excluded
	MaxMessageLength int

	// Logger for debug logging
	Logger Logger

	// RetryConfig configures retry behavior. Defaults to one immediate retry.
	RetryConfig *internalTypes.RetryConfig

	// Hooks for observability
	Hooks *internalTypes.Hooks

	// SentryDSN enables Sentry error tracking when set
	SentryDSN string

	// SentryOptions allows custom Sentry configuration
	SentryOptions *sentry.ClientOptions
}

// Logger interface for logging
type Logger = internalTypes.Logger

// Transport executes signed requests
type Transport interface {
	Do(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// NewClient creates a new client
func NewClient(opts *ClientOptions) (*Client, error) {
	if opts == nil {
		opts = &ClientOptions{}
	}

	if err := opts.Credentials.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid credentials")
	}

	// Initialize Sentry if DSN is provided
	if opts.SentryDSN != "" || opts.SentryOptions != nil {
		sentryOpts := sentry.ClientOptions{}

		if opts.SentryOptions != nil {
			sentryOpts = *opts.SentryOptions
		}

		if opts.SentryDSN != "" {
			sentryOpts.Dsn = opts.SentryDSN
		}

		if sentryOpts.Environment == "" {
			sentryOpts.Environment = "production"
		}

		if err := sentry.Init(sentryOpts); err != nil {
			// Log error but don't fail client creation
			if opts.Logger != nil {
				opts.Logger.Error("Failed to initialize Sentry", "error", err)
			}
		}
	}

	// Set defaults
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: DefaultTimeout,
		}
	}

	if opts.Timeout > 0 {
		opts.HTTPClient.Timeout = opts.Timeout
	}

	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = DefaultMaxMessageLength
	}

	if opts.RetryConfig == nil {
		opts.RetryConfig = internalTypes.DefaultRetryConfig()
	}

	trans := transport.NewRESTTransport(&transport.Options{
		BaseURL:     opts.BaseURL,
		HTTPClient:  opts.HTTPClient,
		Signer:      oauth1.NewSigner(opts.Credentials),
		RetryConfig: opts.RetryConfig,
		Logger:      opts.Logger,
		Hooks:       opts.Hooks,
	})

	return &Client{
		transport: trans,
		options:   opts,
	}, nil
}

// Publish posts "<message> <link>" as a status. The message is truncated to
// MaxMessageLength first. A nil error means the status was created.
func (c *Client) Publish(ctx context.Context, message, link string) error {
	message = Truncate(message, c.options.MaxMessageLength)

	status := message
	if link != "" {
		status = message + " " + link
	}

	if c.options.Logger != nil {
		c.options.Logger.Info("Tweeting", "message", message, "link", link)
	}

	resp, err := c.transport.Do(ctx, &transport.Request{
		Method:        http.MethodPost,
		Path:          internalTypes.StatusUpdatePath,
		Params:        url.Values{"status": {status}},
		SuccessMarker: createdAtMarker,
	})
	if err != nil {
		attempts := 0
		if resp != nil {
			attempts = resp.Attempts
		}
		c.capture(ctx, err, "publish", map[string]interface{}{
			"attempts": attempts,
			"link":     link,
		})
		return errors.Wrapf(err, "failed to publish status after %d attempt(s)", attempts)
	}

	if c.options.Logger != nil {
		c.options.Logger.Debug("Tweet sent", "attempts", resp.Attempts)
	}

	return nil
}

// VerifyCredentials returns the account the credentials belong to
func (c *Client) VerifyCredentials(ctx context.Context) (*Account, error) {
	resp, err := c.transport.Do(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   internalTypes.VerifyCredentialsPath,
		Params: url.Values{
			"skip_status":      {"true"},
			"include_entities": {"false"},
			"include_email":    {"false"},
		},
		SuccessMarker: screenNameMarker,
	})
	if err != nil {
		c.capture(ctx, err, "verify_credentials", nil)
		return nil, errors.Wrap(err, "failed to verify credentials")
	}

	var account Account
	if err := json.Unmarshal(resp.Body, &account); err != nil {
		return nil, errors.Wrap(err, "failed to parse account")
	}

	return &account, nil
}

// Close flushes any pending Sentry events
func (c *Client) Close() {
	sentry.Flush(2 * time.Second)
}

// capture reports err to Sentry with the operation tagged
func (c *Client) capture(ctx context.Context, err error, operation string, extra map[string]interface{}) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("twitter.operation", operation)
		if extra != nil {
			scope.SetContext("twitter", extra)
		}
		hub.CaptureException(err)
	})
}
