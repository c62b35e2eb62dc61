package logger

import (
	"log/slog"
	"strings"
)

// Value prefixes of encoded credentials.
var sensitiveValuePrefixes = []string{
	"$argon2id$",
}

// Keys that always hold credentials.
var sensitiveKeys = map[string]bool{
	"auth":         true,
	"auth_payload": true,
	"secret":       true,
	"secret_hash":  true,
	"password":     true,
	"token":        true,
	"credential":   true,
	"credentials":  true,
	"private_key":  true,
	"bearer":       true,
}

// Key suffixes that mark credentials (e.g. cluster_secret, api_token).
var sensitiveKeySuffixes = []string{
	"_secret",
	"_password",
	"_token",
	"_credential",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		for _, prefix := range sensitiveValuePrefixes {
			if strings.HasPrefix(strVal, prefix) {
				return slog.String(a.Key, prefix+"***")
			}
		}
		if strVal != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
		return a
	}

	// Structured handshake payloads never reach the log.
	if a.Value.Kind() == slog.KindAny && IsSensitiveKey(a.Key) && a.Value.Any() != nil {
		return slog.String(a.Key, redactedValue)
	}

	return a
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if sensitiveKeys[k] {
		return true
	}
	for _, suffix := range sensitiveKeySuffixes {
		if strings.HasSuffix(k, suffix) {
			return true
		}
	}
	return false
}

// RedactString masks value when it looks like an encoded credential.
func RedactString(value string) string {
	for _, prefix := range sensitiveValuePrefixes {
		if strings.HasPrefix(value, prefix) {
			return prefix + "***"
		}
	}
	return value
}
