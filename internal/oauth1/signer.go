// Package oauth1 signs requests with OAuth 1.0a HMAC-SHA1 user-context credentials.
package oauth1

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	// SignatureMethod is the only method this package produces
	SignatureMethod = "HMAC-SHA1"

	// Version is the protocol version sent with every request
	Version = "1.0"

	// AuthScheme prefixes the header value in the Authorization header
	AuthScheme = "OAuth"
)

const (
	paramConsumerKey     = "oauth_consumer_key"
	paramNonce           = "oauth_nonce"
	paramSignature       = "oauth_signature"
	paramSignatureMethod = "oauth_signature_method"
	paramTimestamp       = "oauth_timestamp"
	paramToken           = "oauth_token"
	paramVersion         = "oauth_version"
)

// Credentials are the four long-lived secrets of a user-context app.
// They are loaded once and must never be logged.
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// Validate reports the first missing credential
func (c Credentials) Validate() error {
	switch {
	case c.ConsumerKey == "":
		return errors.New("consumer key is empty")
	case c.ConsumerSecret == "":
		return errors.New("consumer secret is empty")
	case c.AccessToken == "":
		return errors.New("access token is empty")
	case c.AccessTokenSecret == "":
		return errors.New("access token secret is empty")
	}
	return nil
}

// Signer produces Authorization header values
type Signer struct {
	creds Credentials
	nonce func() string
	now   func() time.Time
}

// Option customizes a Signer
type Option func(*Signer)

// WithNonce overrides the nonce source
func WithNonce(f func() string) Option {
	return func(s *Signer) { s.nonce = f }
}

// WithClock overrides the timestamp source
func WithClock(f func() time.Time) Option {
	return func(s *Signer) { s.now = f }
}

// NewSigner creates a signer for the given credentials
func NewSigner(creds Credentials, opts ...Option) *Signer {
	s := &Signer{
		creds: creds,
		nonce: func() string { return uuid.New().String() },
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Header returns the full Authorization header value, scheme included
func (s *Signer) Header(method, rawURI string, params url.Values) (string, error) {
	value, err := s.Sign(method, rawURI, params)
	if err != nil {
		return "", err
	}
	return AuthScheme + " " + value, nil
}

// Sign returns the comma separated oauth parameter list for one request.
// Every call draws a new nonce and timestamp.
func (s *Signer) Sign(method, rawURI string, params url.Values) (string, error) {
	baseURI, query, err := NormalizeURI(rawURI)
	if err != nil {
		return "", err
	}

	oauthParams := map[string]string{
		paramConsumerKey:     s.creds.ConsumerKey,
		paramNonce:           s.nonce(),
		paramSignatureMethod: SignatureMethod,
		paramTimestamp:       strconv.FormatInt(s.now().Unix(), 10),
		paramToken:           s.creds.AccessToken,
		paramVersion:         Version,
	}

	signing := url.Values{}
	for k, vs := range query {
		signing[k] = append(signing[k], vs...)
	}
	for k, vs := range params {
		signing[k] = append(signing[k], vs...)
	}
	for k, v := range oauthParams {
		signing.Set(k, v)
	}

	base := BaseString(method, baseURI, ParameterString(signing))
	oauthParams[paramSignature] = Signature(SigningKey(s.creds.ConsumerSecret, s.creds.AccessTokenSecret), base)

	return headerValue(oauthParams), nil
}

// NormalizeURI splits rawURI into the base string URI (lower-case scheme and
// host, default port dropped, no query or fragment) and its query parameters.
func NormalizeURI(rawURI string) (string, url.Values, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to parse request URI")
	}
	if u.Scheme == "" || u.Host == "" {
		return "", nil, errors.Errorf("request URI %q is not absolute", rawURI)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host = host + ":" + port
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	return scheme + "://" + host + path, u.Query(), nil
}

// ParameterString joins percent-encoded key=value pairs with '&', sorted by
// encoded key and then encoded value
func ParameterString(params url.Values) string {
	type pair struct{ k, v string }

	pairs := make([]pair, 0, len(params))
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, pair{PercentEncode(k), PercentEncode(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.k)
		b.WriteByte('=')
		b.WriteString(p.v)
	}
	return b.String()
}

// BaseString builds METHOD&enc(uri)&enc(parameterString)
func BaseString(method, baseURI, parameterString string) string {
	return strings.ToUpper(method) + "&" + PercentEncode(baseURI) + "&" + PercentEncode(parameterString)
}

// SigningKey joins the two encoded secrets with '&'
func SigningKey(consumerSecret, tokenSecret string) string {
	return PercentEncode(consumerSecret) + "&" + PercentEncode(tokenSecret)
}

// Signature is base64(HMAC-SHA1(key, base))
func Signature(key, base string) string {
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// headerValue serializes k="v" pairs, comma-space separated, ascending by key
func headerValue(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, PercentEncode(k)+`="`+PercentEncode(params[k])+`"`)
	}
	return strings.Join(parts, ", ")
}
