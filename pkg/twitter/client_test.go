package twitter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/eshaffer321/steamtotwitter-go/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTransport is a mock implementation of the Transport interface
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*transport.Response)
	return resp, args.Error(1)
}

var testCredentials = Credentials{
	ConsumerKey:       "ck",
	ConsumerSecret:    "cs",
	AccessToken:       "at",
	AccessTokenSecret: "ats",
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(&ClientOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consumer key is empty")
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(&ClientOptions{Credentials: testCredentials})
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, client.options.BaseURL)
	assert.Equal(t, DefaultMaxMessageLength, client.options.MaxMessageLength)
	require.NotNil(t, client.options.RetryConfig)
	assert.Equal(t, 1, client.options.RetryConfig.MaxRetries)
	assert.Zero(t, client.options.RetryConfig.RetryWait)
}

func TestClient_Publish_BuildsStatus(t *testing.T) {
	mockTransport := new(MockTransport)
	client := &Client{
		transport: mockTransport,
		options:   &ClientOptions{MaxMessageLength: DefaultMaxMessageLength},
	}

	mockTransport.On("Do", mock.Anything, mock.MatchedBy(func(req *transport.Request) bool {
		return req.Method == http.MethodPost &&
			req.Path == "/1.1/statuses/update.json" &&
			req.Params.Get("status") == "Example Group: Maintenance tonight https://example.com/a" &&
			req.SuccessMarker == `"created_at"`
	})).Return(&transport.Response{StatusCode: 200, Attempts: 1}, nil)

	err := client.Publish(context.Background(), "Example Group: Maintenance tonight", "https://example.com/a")

	require.NoError(t, err)
	mockTransport.AssertExpectations(t)
}

func TestClient_Publish_TruncatesBeforeSending(t *testing.T) {
	mockTransport := new(MockTransport)
	client := &Client{
		transport: mockTransport,
		options:   &ClientOptions{MaxMessageLength: 10},
	}

	mockTransport.On("Do", mock.Anything, mock.MatchedBy(func(req *transport.Request) bool {
		return req.Params.Get("status") == "abcdefghi… https://l"
	})).Return(&transport.Response{Attempts: 1}, nil)

	require.NoError(t, client.Publish(context.Background(), "abcdefghijklmnop", "https://l"))
	mockTransport.AssertExpectations(t)
}

func TestClient_Publish_WrapsFailure(t *testing.T) {
	mockTransport := new(MockTransport)
	client := &Client{
		transport: mockTransport,
		options:   &ClientOptions{MaxMessageLength: DefaultMaxMessageLength},
	}

	mockTransport.On("Do", mock.Anything, mock.Anything).
		Return(&transport.Response{StatusCode: 503, Attempts: 2}, ErrServerError)

	err := client.Publish(context.Background(), "msg", "https://l")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerError)
	assert.Contains(t, err.Error(), "after 2 attempt(s)")
}

func newServerClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&ClientOptions{
		BaseURL:     server.URL,
		Credentials: testCredentials,
	})
	require.NoError(t, err)
	return client
}

func TestClient_Publish_RetryThenSuccess(t *testing.T) {
	var hits int32
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "OAuth oauth_consumer_key=\"ck\""))
		if atomic.AddInt32(&hits, 1) == 1 {
			_, _ = io.WriteString(w, `{"errors":[{"code":130,"message":"Over capacity"}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"created_at":"Wed Oct 10 20:19:24 +0000 2018"}`)
	})

	err := client.Publish(context.Background(), "hello", "https://example.com")

	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestClient_Publish_TwoFailuresNoThirdAttempt(t *testing.T) {
	var hits int32
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	err := client.Publish(context.Background(), "hello", "https://example.com")

	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.True(t, IsRetryable(err))
}

func TestClient_VerifyCredentials(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/1.1/account/verify_credentials.json", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("skip_status"))
		assert.Equal(t, "false", r.URL.Query().Get("include_email"))
		_, _ = io.WriteString(w, `{"id_str":"42","screen_name":"steamtotwitter","name":"Steam Bot"}`)
	})

	account, err := client.VerifyCredentials(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "42", account.ID)
	assert.Equal(t, "steamtotwitter", account.ScreenName)
}

func TestClient_VerifyCredentials_Unauthorized(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"errors":[{"code":32,"message":"Could not authenticate you."}]}`)
	})

	_, err := client.VerifyCredentials(context.Background())

	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}
