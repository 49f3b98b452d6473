package twitter

import "unicode/utf8"

// Truncate cuts message from the right so that it is at most max runes long,
// ending in a single ellipsis when anything was removed.
func Truncate(message string, max int) string {
	if max <= 0 || utf8.RuneCountInString(message) <= max {
		return message
	}

	runes := []rune(message)
	return string(runes[:max-1]) + Ellipsis
}
