package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// plainKeys may be logged verbatim.
var plainKeys = map[string]bool{
	"component":  true,
	"error":      true,
	"pool":       true,
	"caller":     true,
	"operation":  true,
	"route":      true,
	"request_id": true,
}

// IsPlain reports whether values logged under key are left unmasked.
func IsPlain(key string) bool {
	return plainKeys[strings.ToLower(strings.TrimSpace(key))]
}

// MaskField masks value unless key is known to be safe. Empty values pass
// through untouched.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsPlain(key) {
		return slog.String(key, value)
	}
	if scheme, token, ok := strings.Cut(strings.TrimSpace(value), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return slog.String(key, scheme+" "+tokenHint(token))
	}
	return slog.String(key, RedactedValue)
}

// tokenHint keeps the last four characters of a credential so operators can
// tell rejected tokens apart.
func tokenHint(token string) string {
	token = strings.TrimSpace(token)
	if len(token) <= 8 {
		return RedactedValue
	}
	return RedactedValue + token[len(token)-4:]
}
