package extraction

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// DecodePayload turns raw symbol bytes into text, dropping ill-formed UTF-8
// sequences instead of failing. Well-formed input is returned unchanged.
func DecodePayload(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	// runes.Remove sees ill-formed bytes as utf8.RuneError
	dropInvalid := runes.Remove(runes.Predicate(func(r rune) bool { return r == utf8.RuneError }))
	out, _, err := transform.Bytes(dropInvalid, b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "")
	}
	return string(out)
}

// containsAny checks if text contains any of the keywords
func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

