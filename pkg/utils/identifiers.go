package utils

import "strings"

// TopicSlug turns a topic into a file-name fragment: lowercased, spaces to underscores,
// path separators and other unsafe characters removed.
func TopicSlug(topic string) string {
	lowered := strings.ToLower(strings.TrimSpace(topic))
	var b strings.Builder
	for _, r := range lowered {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r == '/' || r == '\\' || r == ':' || r == 0:
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	slug := b.String()
	if slug == "" {
		return "untitled"
	}
	return slug
}

// Truncate shortens s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
