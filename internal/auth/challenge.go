// Package auth supplies the out-of-band codes the session asks for when the
// remote demands secondary verification.
package auth

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Kind is the channel a challenge code comes from
type Kind int

const (
	// KindEmailCode is a code mailed to the account owner
	KindEmailCode Kind = iota + 1
	// KindTwoFactor is a time-based one-time code
	KindTwoFactor
)

func (k Kind) String() string {
	switch k {
	case KindEmailCode:
		return "email code"
	case KindTwoFactor:
		return "two-factor code"
	}
	return "unknown"
}

// ErrNoCode means a source cannot answer this kind of challenge
var ErrNoCode = errors.New("no challenge code available")

// Source produces a challenge code. hint is free text from the remote, such
// as the domain the email was sent to.
type Source interface {
	Code(ctx context.Context, kind Kind, hint string) (string, error)
}

// Excluder is a Source that can pass over a code the remote already refused
// and keep asking
type Excluder interface {
	Source
	CodeExcept(ctx context.Context, kind Kind, hint, refused string) (string, error)
}

// Chain asks each source in turn until one answers
type Chain []Source

// Code implements Source
func (c Chain) Code(ctx context.Context, kind Kind, hint string) (string, error) {
	return c.CodeExcept(ctx, kind, hint, "")
}

// CodeExcept implements Excluder. A source answering with refused is
// skipped like one that cannot answer.
func (c Chain) CodeExcept(ctx context.Context, kind Kind, hint, refused string) (string, error) {
	for _, src := range c {
		code, err := src.Code(ctx, kind, hint)
		if errors.Is(err, ErrNoCode) {
			continue
		}
		if err == nil && refused != "" && code == refused {
			continue
		}
		return code, err
	}
	return "", errors.Wrapf(ErrNoCode, "nothing can answer a %s challenge", kind)
}

// Static returns a fixed code for one kind, e.g. from configuration
type Static struct {
	Kind  Kind
	Value string
}

// Code implements Source
func (s Static) Code(_ context.Context, kind Kind, _ string) (string, error) {
	if kind != s.Kind || strings.TrimSpace(s.Value) == "" {
		return "", ErrNoCode
	}
	return strings.TrimSpace(s.Value), nil
}
