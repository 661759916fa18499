package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

// Keys vaultd logs verbatim. Anything else passed through MaskField is
// treated as a secret.
var plainKeys = map[string]struct{}{
	"service":   {},
	"env":       {},
	"error":     {},
	"component": {},
	"op":        {},
	"outcome":   {},
	"code":      {},
	"vault":     {},
	"caller":    {},
	"storage":   {},
	"address":   {},
}

// MaskField returns key=value for known plain keys and key=[REDACTED] for
// everything else. Empty values stay empty so "not configured" is visible.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" {
		return slog.String(key, value)
	}
	if _, ok := plainKeys[strings.ToLower(strings.TrimSpace(key))]; ok {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskDSN hides the password in an audit store DSN. URL DSNs
// (postgres://user:pw@host/db) and keyword DSNs (host=... password=...) are
// both handled; sqlite paths are returned unchanged.
func MaskDSN(dsn string) string {
	trimmed := strings.TrimSpace(dsn)
	if strings.Contains(trimmed, "://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return RedactedValue
		}
		if parsed.User != nil {
			if _, ok := parsed.User.Password(); ok {
				parsed.User = url.UserPassword(parsed.User.Username(), "xxxxx")
			}
		}
		query := parsed.Query()
		if query.Has("password") {
			query.Set("password", "xxxxx")
			parsed.RawQuery = query.Encode()
		}
		return strings.Replace(parsed.String(), "xxxxx", RedactedValue, -1)
	}
	fields := strings.Fields(trimmed)
	for i, field := range fields {
		if strings.HasPrefix(strings.ToLower(field), "password=") {
			fields[i] = "password=" + RedactedValue
		}
	}
	return strings.Join(fields, " ")
}
