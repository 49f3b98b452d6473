package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	guardAlphabet = "23456789BCDFGHJKMNPQRTVWXY"
	guardLength   = 5
	guardPeriod   = 30
)

// SharedSecret generates two-factor codes from the authenticator's shared secret
type SharedSecret struct {
	key []byte
	now func() time.Time
}

// NewSharedSecret decodes a base64 shared secret
func NewSharedSecret(secret string) (*SharedSecret, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(secret))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode shared secret")
	}
	if len(key) == 0 {
		return nil, errors.New("shared secret is empty")
	}
	return &SharedSecret{key: key, now: time.Now}, nil
}

// Code implements Source. Only two-factor challenges are answered.
func (s *SharedSecret) Code(_ context.Context, kind Kind, _ string) (string, error) {
	if kind != KindTwoFactor {
		return "", ErrNoCode
	}
	return s.CodeAt(s.now()), nil
}

// CodeAt returns the code valid at t
func (s *SharedSecret) CodeAt(t time.Time) string {
	counter := t.Unix() / guardPeriod

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(counter))

	h := hmac.New(sha1.New, s.key)
	h.Write(buf)
	hash := h.Sum(nil)

	// Dynamic truncation
	offset := hash[len(hash)-1] & 0x0f
	full := binary.BigEndian.Uint32(hash[offset:offset+4]) & 0x7fffffff

	code := make([]byte, guardLength)
	for i := range code {
		code[i] = guardAlphabet[full%uint32(len(guardAlphabet))]
		full /= uint32(len(guardAlphabet))
	}
	return string(code)
}
