package twitter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate_Lengths(t *testing.T) {
	const limit = DefaultMaxMessageLength

	tests := []struct {
		name      string
		length    int
		truncated bool
	}{
		{"cap-1", limit - 1, false},
		{"cap", limit, false},
		{"cap+1", limit + 1, true},
		{"2cap", 2 * limit, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := strings.Repeat("a", tt.length)
			got := Truncate(msg, limit)

			if !tt.truncated {
				assert.Equal(t, msg, got)
				return
			}
			assert.Equal(t, limit, utf8.RuneCountInString(got))
			assert.True(t, strings.HasSuffix(got, Ellipsis))
			assert.Equal(t, 1, strings.Count(got, Ellipsis))
			assert.Equal(t, msg[:limit-1], strings.TrimSuffix(got, Ellipsis), "must keep the left side")
		})
	}
}

func TestTruncate_CountsRunesNotBytes(t *testing.T) {
	msg := strings.Repeat("é", 12)

	assert.Equal(t, msg, Truncate(msg, 12))
	assert.Equal(t, strings.Repeat("é", 9)+Ellipsis, Truncate(msg, 10))
}

func TestTruncate_NonPositiveLimitDisables(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 0))
}
