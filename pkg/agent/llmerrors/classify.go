package llmerrors

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// statusPattern finds an HTTP status in SDK error text, e.g. "Error 429, Message: ..." or "status code: 503".
var statusPattern = regexp.MustCompile(`(?i)(?:status(?:\s*code)?|http|error|code)[\s:=]*\b([45]\d\d)\b`)

// Classify maps a provider SDK error to a classified *Error.
//
// statusCode is the HTTP status when the SDK exposes one; with 0 the status is
// looked up in the error text. Errors that are already classified are returned
// unchanged.
func Classify(err error, statusCode int, provider string) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCause(ErrorTypeTransient, err, provider+" request timeout")
	}
	if errors.Is(err, context.Canceled) {
		return NewErrorWithCause(ErrorTypeUnknown, err, provider+" request canceled")
	}

	errStr := err.Error()
	if statusCode == 0 {
		statusCode = ExtractStatusCode(errStr)
	}
	if statusCode != 0 {
		classified := FromStatus(statusCode, err, errStr)
		classified.Message = fmt.Sprintf("%s HTTP %d: %v", provider, statusCode, err)
		return classified
	}

	lower := strings.ToLower(errStr)
	switch {
	case containsAny(lower, "timeout", "connection", "network", "temporary", "eof", "reset"):
		return NewErrorWithCause(ErrorTypeTransient, err, provider+" network or connection error")
	case containsAny(lower, "rate", "quota", "resource_exhausted", "limit"):
		return NewErrorWithCause(ErrorTypeRateLimit, err, provider+" rate limiting detected")
	case containsAny(lower, "unauthorized", "api key", "permission", "auth"):
		return NewErrorWithCause(ErrorTypeAuth, err, provider+" authentication error")
	case containsAny(lower, "invalid", "malformed", "too large", "token"):
		return NewErrorWithCause(ErrorTypeBadPrompt, err, provider+" prompt or request error")
	default:
		return NewErrorWithCause(ErrorTypeUnknown, err, provider+" unclassified error")
	}
}

// ExtractStatusCode returns the first 4xx/5xx status mentioned in errStr, or 0.
func ExtractStatusCode(errStr string) int {
	m := statusPattern.FindStringSubmatch(errStr)
	if m == nil {
		return 0
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return code
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
