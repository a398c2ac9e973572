package slug

import "strings"

// Escape converts free text into a URL-safe slug: disallowed characters are
// stripped, runs of whitespace become single hyphens, repeated hyphens
// collapse, and trailing dots are trimmed. Hangul is kept so Korean titles
// survive the transform.
//
// The same transform runs at tag creation and tag lookup; if the two ever
// diverge, lookups silently stop finding existing tags.
func Escape(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isAllowed(r) {
			b.WriteRune(r)
		}
	}

	s := strings.TrimSpace(b.String())
	s = strings.ReplaceAll(s, " ", "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.TrimRight(s, ".")
	return s
}

// Normalize returns the lowercase projection used for tag name_filtered
// storage and comparison.
func Normalize(text string) string {
	return strings.ToLower(Escape(text))
}

func isAllowed(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= 'ㄱ' && r <= '힣': // Hangul jamo through syllables
		return true
	case r == '.' || r == '-' || r == '_' || r == ' ':
		return true
	}
	return false
}
