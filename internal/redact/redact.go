// Package redact scrubs sensitive fragments from strings before they are
// logged. Error messages from drivers and lower layers can carry connection
// strings, credentials, file paths, or raw SQL; redacting them at the logging
// boundary keeps that data out of log aggregation.
package redact

import "regexp"

// Placeholders substituted for matched sensitive content.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
)

var (
	dbConnRegex   = regexp.MustCompile(`(?i)(postgres|postgresql|mysql)://[^@\s]+@`)
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`)
	apiKeyRegex   = regexp.MustCompile(`(?i)(api[_-]?key|token|secret)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`)
	jwtRegex      = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)
	unixPathRegex = regexp.MustCompile(`(/[\w.-]+){2,}`)
	emailRegex    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	sqlRegex      = regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE)[\s\w,*()]+(?:FROM|INTO|SET)\b`)

	placeholders = []struct {
		pattern     *regexp.Regexp
		placeholder string
	}{
		{dbConnRegex, RedactedCredentialPlaceholder},
		{passwordRegex, RedactedCredentialPlaceholder},
		{apiKeyRegex, RedactedKeyPlaceholder},
		{jwtRegex, "[REDACTED_JWT]"},
		{unixPathRegex, RedactedPathPlaceholder},
		{emailRegex, "[REDACTED_EMAIL]"},
		{sqlRegex, "[REDACTED_SQL]"},
	}
)

// String redacts sensitive fragments from the input string.
func String(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, p := range placeholders {
		result = p.pattern.ReplaceAllString(result, p.placeholder)
	}
	return result
}

// Error redacts sensitive fragments from an error's message. A nil error
// yields the empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
