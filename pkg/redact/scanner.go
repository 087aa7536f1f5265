// Package redact masks credentials in text before it is persisted.
package redact

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Placeholder replaces every detected secret.
const Placeholder = "[redacted]"

// minLiteralLen keeps short configured values (hosts, flags) from being masked everywhere.
const minLiteralLen = 12

// SecretScanner detects and masks secrets.
type SecretScanner interface {
	// Scan returns text with secrets replaced and whether anything was replaced.
	Scan(ctx context.Context, text string) (redacted string, hadRedactions bool, err error)
}

// PatternScanner masks well-known credential shapes and any configured literal values.
type PatternScanner struct {
	patterns []*regexp.Regexp
	timeout  time.Duration
}

// NewPatternScanner builds a scanner with the default credential patterns plus
// each literal of at least minLiteralLen characters. A zero timeout means no limit.
func NewPatternScanner(timeout time.Duration, literals ...string) *PatternScanner {
	patterns := compileDefaultPatterns()
	for _, lit := range literals {
		if len(lit) >= minLiteralLen {
			patterns = append(patterns, regexp.MustCompile(regexp.QuoteMeta(lit)))
		}
	}
	return &PatternScanner{patterns: patterns, timeout: timeout}
}

func compileDefaultPatterns() []*regexp.Regexp {
	patterns := []string{
		// OpenAI
		`sk-proj-[A-Za-z0-9_-]{48,}`,
		`sk-[A-Za-z0-9]{48}`,
		// Anthropic
		`sk-ant-[A-Za-z0-9_-]{95,}`,
		// Google API keys (Gemini, Custom Search)
		`AIza[0-9A-Za-z_-]{35}`,
		// AWS access keys
		`AKIA[0-9A-Z]{16}`,
		// key=value shapes
		`(?i)api[_-]?key[_-]?[:=]\s*['"]?[A-Za-z0-9_-]{20,}['"]?`,
		`(?i)secret[_-]?[:=]\s*['"]?[A-Za-z0-9_-]{20,}['"]?`,
		`Bearer\s+[A-Za-z0-9_.-]{20,}`,
		// GitHub tokens
		`gh[pousr]_[A-Za-z0-9]{36}`,
		`-----BEGIN\s+(?:RSA|DSA|EC|OPENSSH|PGP)\s+PRIVATE\s+KEY-----`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// Scan implements SecretScanner.
func (s *PatternScanner) Scan(ctx context.Context, text string) (string, bool, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	redacted := text
	had := false
	for _, pattern := range s.patterns {
		if err := ctx.Err(); err != nil {
			return "", false, fmt.Errorf("secret scan interrupted: %w", err)
		}
		next := pattern.ReplaceAllLiteralString(redacted, Placeholder)
		if next != redacted {
			had = true
			redacted = next
		}
	}
	return redacted, had, nil
}

// Text scans text and falls back to the input on scanner error, returning the
// error so callers can log it.
func Text(ctx context.Context, scanner SecretScanner, text string) (string, error) {
	if scanner == nil {
		return text, nil
	}
	redacted, _, err := scanner.Scan(ctx, text)
	if err != nil {
		return text, fmt.Errorf("secret scanner error: %w", err)
	}
	return redacted, nil
}
