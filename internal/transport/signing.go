package transport

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// HeaderSigner produces a complete Authorization header value for one request
type HeaderSigner interface {
	Header(method, rawURI string, params url.Values) (string, error)
}

// SigningRoundTripper signs every outgoing request, retries included, so no
// nonce is ever sent twice.
type SigningRoundTripper struct {
	Signer HeaderSigner
	Base   http.RoundTripper
}

// RoundTrip implements http.RoundTripper
func (rt *SigningRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	params, body, err := formParams(req)
	if err != nil {
		return nil, err
	}

	header, err := rt.Signer.Header(req.Method, req.URL.String(), params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign request")
	}

	signed := req.Clone(req.Context())
	if body != nil {
		signed.Body = io.NopCloser(bytes.NewReader(body))
	}
	signed.Header.Set(authHeaderKey, header)

	base := rt.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(signed)
}

// formParams reads an urlencoded body so its fields can be signed
func formParams(req *http.Request) (url.Values, []byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return url.Values{}, nil, nil
	}

	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType != formContentType {
		return url.Values{}, nil, nil
	}

	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read request body")
	}

	params, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse form body")
	}
	return params, body, nil
}
