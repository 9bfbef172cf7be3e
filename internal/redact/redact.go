// Package redact scrubs credentials from strings before they reach logs or
// error responses. Vendor errors in this codebase routinely embed request
// URLs, and both the chat transport (bot token in the path) and the speech
// vendor (API key header echoes) can leak secrets through them.
package redact

import (
	"regexp"
)

// Placeholder replaces each redacted span.
const Placeholder = "[REDACTED]"

var patterns = []*regexp.Regexp{
	// Chat bot tokens embedded in request paths: /bot<digits>:<secret>/
	regexp.MustCompile(`bot\d+:[A-Za-z0-9_-]{10,}`),
	// Database connection strings with inline credentials.
	regexp.MustCompile(`(?i)postgres(ql)?://[^@\s]+@`),
	// API keys and secrets in key=value or header form.
	regexp.MustCompile(`(?i)(api[_-]?key|xi-api-key|token|secret)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`),
}

// String scrubs all known secret shapes from s.
func String(s string) string {
	for _, p := range patterns {
		s = p.ReplaceAllString(s, Placeholder)
	}
	return s
}

// Error scrubs an error's message. A nil error redacts to "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
