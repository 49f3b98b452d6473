// Package transport issues signed form requests against the publishing API.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/eshaffer321/steamtotwitter-go/internal/types"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

const (
	authHeaderKey   = "Authorization"
	formContentType = "application/x-www-form-urlencoded"
	acceptType      = "application/json"
)

type ctxKey int

const (
	markerKey ctxKey = iota
	attemptsKey
)

// RESTTransport handles signed HTTP communication
type RESTTransport struct {
	baseURL     string
	httpClient  *http.Client
	retryClient *retryablehttp.Client
	headers     map[string]string
	logger      types.Logger
	hooks       *types.Hooks
}

// Request describes one logical call. Retries reuse it.
type Request struct {
	Method string
	Path   string
	Params url.Values

	// SuccessMarker must appear in a 200 body for the call to count as
	// successful. Empty means any 200 is a success.
	SuccessMarker string
}

// Response is the final response of a call
type Response struct {
	StatusCode int
	Body       []byte
	Attempts   int
}

// Options for REST transport
type Options struct {
	BaseURL     string
	HTTPClient  *http.Client
	Signer      HeaderSigner
	Headers     map[string]string
	RetryConfig *types.RetryConfig
	Logger      types.Logger
	Hooks       *types.Hooks
}

// NewRESTTransport creates a new REST transport. The HTTP client's round
// tripper is wrapped so every attempt is signed separately.
func NewRESTTransport(opts *Options) *RESTTransport {
	if opts == nil {
		opts = &Options{}
	}

	// Set defaults
	if opts.BaseURL == "" {
		opts.BaseURL = types.DefaultBaseURL
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: types.DefaultTimeout,
		}
	}

	httpClient := opts.HTTPClient
	if opts.Signer != nil {
		signed := *opts.HTTPClient
		signed.Transport = &SigningRoundTripper{Signer: opts.Signer, Base: opts.HTTPClient.Transport}
		httpClient = &signed
	}

	t := &RESTTransport{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		logger:     opts.Logger,
		hooks:      opts.Hooks,
	}

	// Create retry client if configured
	if opts.RetryConfig != nil {
		retryClient := retryablehttp.NewClient()
		retryClient.HTTPClient = httpClient
		retryClient.RetryMax = opts.RetryConfig.MaxRetries
		retryClient.RetryWaitMin = opts.RetryConfig.RetryWait
		retryClient.RetryWaitMax = opts.RetryConfig.MaxWait
		retryClient.CheckRetry = t.checkRetry
		retryClient.Backoff = constantBackoff
		retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
		retryClient.RequestLogHook = t.onAttempt
		retryClient.Logger = nil

		if opts.Logger != nil {
			retryClient.Logger = &retryLogger{logger: opts.Logger}
		}
		t.retryClient = retryClient
	}

	// Set default headers
	headers := map[string]string{
		"Accept":     acceptType,
		"User-Agent": types.UserAgent,
	}

	// Merge custom headers
	for k, v := range opts.Headers {
		headers[k] = v
	}
	t.headers = headers

	return t
}

// Do executes a signed request and classifies the final response
func (t *RESTTransport) Do(ctx context.Context, r *Request) (*Response, error) {
	attempts := new(int32)
	ctx = context.WithValue(ctx, markerKey, r.SuccessMarker)
	ctx = context.WithValue(ctx, attemptsKey, attempts)

	httpReq, err := t.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	// Log request
	if t.logger != nil {
		t.logger.Debug("HTTP request", "method", r.Method, "path", r.Path)
	}

	// Execute request
	start := time.Now()
	resp, err := t.doRequest(httpReq)
	duration := time.Since(start)

	if err != nil {
		if t.hooks != nil && t.hooks.OnError != nil {
			t.hooks.OnError(ctx, err)
		}
		return &Response{Attempts: int(atomic.LoadInt32(attempts))}, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	// Call response hook
	if t.hooks != nil && t.hooks.OnResponse != nil {
		t.hooks.OnResponse(ctx, resp, duration)
	}

	// Read response
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Response{StatusCode: resp.StatusCode, Attempts: int(atomic.LoadInt32(attempts))}, errors.Wrap(err, "failed to read response")
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Attempts:   int(atomic.LoadInt32(attempts)),
	}

	// Log response
	if t.logger != nil {
		t.logger.Debug("HTTP response", "status", resp.StatusCode, "duration", duration, "size", len(respBody), "attempts", out.Attempts)
	}

	// Check status code
	if resp.StatusCode != http.StatusOK {
		err := t.handleHTTPError(resp.StatusCode, respBody)
		if t.hooks != nil && t.hooks.OnError != nil {
			t.hooks.OnError(ctx, err)
		}
		return out, err
	}

	if r.SuccessMarker != "" && !bytes.Contains(respBody, []byte(r.SuccessMarker)) {
		err := &types.Error{
			Code:       "UNEXPECTED_RESPONSE",
			Message:    fmt.Sprintf("response is missing %s", r.SuccessMarker),
			StatusCode: resp.StatusCode,
			Err:        types.ErrUnexpectedResponse,
		}
		if t.hooks != nil && t.hooks.OnError != nil {
			t.hooks.OnError(ctx, err)
		}
		return out, err
	}

	return out, nil
}

// newRequest builds the HTTP request; form params go in the body for POST
// and in the query string otherwise
func (t *RESTTransport) newRequest(ctx context.Context, r *Request) (*http.Request, error) {
	method := strings.ToUpper(r.Method)
	target := t.baseURL + r.Path

	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader(r.Params.Encode())
	} else if len(r.Params) > 0 {
		target += "?" + r.Params.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	// Set headers
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	if method == http.MethodPost {
		httpReq.Header.Set("Content-Type", formContentType)
	}

	return httpReq, nil
}

// doRequest executes the HTTP request with retry if configured
func (t *RESTTransport) doRequest(req *http.Request) (*http.Response, error) {
	if t.retryClient != nil {
		// Convert to retryable request
		retryReq, err := retryablehttp.FromRequest(req)
		if err != nil {
			return nil, err
		}
		return t.retryClient.Do(retryReq)
	}
	t.onAttempt(nil, req, 0)
	return t.httpClient.Do(req)
}

// onAttempt runs before every attempt, the first one included
func (t *RESTTransport) onAttempt(_ retryablehttp.Logger, req *http.Request, attempt int) {
	if n, ok := req.Context().Value(attemptsKey).(*int32); ok {
		atomic.AddInt32(n, 1)
	}
	if attempt > 0 && t.logger != nil {
		t.logger.Warn("Retrying request", "method", req.Method, "path", req.URL.Path, "attempt", attempt+1)
	}
	if t.hooks != nil && t.hooks.OnRequest != nil {
		t.hooks.OnRequest(req.Context(), req)
	}
}

// checkRetry retries on any failure: transport errors, non-200 statuses and
// 200 bodies missing the success marker
func (t *RESTTransport) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return true, nil
	}

	marker, _ := ctx.Value(markerKey).(string)
	if marker == "" {
		return false, nil
	}

	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if readErr != nil {
		return true, nil
	}
	return !bytes.Contains(body, []byte(marker)), nil
}

// constantBackoff always waits RetryWaitMin
func constantBackoff(min, _ time.Duration, _ int, _ *http.Response) time.Duration {
	return min
}

// handleHTTPError handles HTTP errors
func (t *RESTTransport) handleHTTPError(statusCode int, body []byte) error {
	// Try to parse error response
	var errResp types.APIErrors
	_ = json.Unmarshal(body, &errResp)

	msg := ""
	if len(errResp.Errors) > 0 {
		msg = errResp.Errors[0].Message
	}

	// Map status codes to errors
	switch statusCode {
	case http.StatusUnauthorized:
		return &types.Error{
			Code:       "UNAUTHORIZED",
			Message:    nonEmpty(msg, "request signature rejected"),
			StatusCode: statusCode,
			Err:        types.ErrNotAuthenticated,
		}
	case http.StatusForbidden:
		return &types.Error{
			Code:       "FORBIDDEN",
			Message:    nonEmpty(msg, "request forbidden"),
			StatusCode: statusCode,
		}
	case http.StatusNotFound:
		return types.ErrNotFound
	case http.StatusTooManyRequests:
		return types.ErrRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return types.ErrTimeout
	case http.StatusBadRequest:
		return &types.Error{
			Code:       "BAD_REQUEST",
			Message:    msg,
			StatusCode: statusCode,
		}
	default:
		if statusCode >= 500 {
			// Create base message with status code and description
			baseMsg := fmt.Sprintf("server error: %d", statusCode)
			if desc := httpStatusDescription(statusCode); desc != "" {
				baseMsg = fmt.Sprintf("server error: %d (%s)", statusCode, desc)
			}

			// Append parsed error message if available
			if msg != "" {
				baseMsg = fmt.Sprintf("%s: %s", baseMsg, msg)
			}

			return &types.Error{
				Code:       "SERVER_ERROR",
				Message:    baseMsg,
				StatusCode: statusCode,
				Err:        types.ErrServerError,
			}
		}
		return &types.Error{
			Code:       "HTTP_ERROR",
			Message:    fmt.Sprintf("HTTP error: %d", statusCode),
			StatusCode: statusCode,
		}
	}
}

// httpStatusDescription returns a human-readable description for common HTTP status codes.
func httpStatusDescription(statusCode int) string {
	descriptions := map[int]string{
		500: "Internal Server Error",
		501: "Not Implemented",
		502: "Bad Gateway",
		503: "Service Unavailable",
		504: "Gateway Timeout",
		520: "Web Server Error",
		521: "Web Server Is Down",
		522: "Connection Timed Out",
		523: "Origin Is Unreachable",
		524: "A Timeout Occurred",
		525: "SSL Handshake Failed",
		526: "Invalid SSL Certificate",
	}
	return descriptions[statusCode]
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// retryLogger adapts our logger to retryablehttp
type retryLogger struct {
	logger types.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, keysAndValues...)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}
