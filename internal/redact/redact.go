// Package redact scrubs credentials from strings before they are logged or
// surfaced in error messages. The client handles OAuth client secrets and
// bearer tokens, and URLs or transport errors can echo either of them.
package redact

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
)

// secretParams are query and form parameters whose values are never logged.
var secretParams = []string{"access_token", "refresh_token", "client_secret", "api_key", "apikey"}

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// rules run in order. JWTs go first so a bearer JWT is reported as a JWT,
// and bearer values go before the generic key pattern so the scheme survives.
var rules = []rule{
	{
		regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
		RedactedJWTPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9_\-.~+/=]+`),
		"Bearer " + RedactedTokenPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)\b(` + strings.Join(secretParams, "|") + `)=[^&\s"']+`),
		"${1}=" + RedactedCredentialPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)\b(api[_-]?key|secret|password|token)(\s*[:=]\s*['"]?)[A-Za-z0-9_\-.~+/]{8,}`),
		"${1}${2}" + RedactedKeyPlaceholder,
	},
}

// String returns input with every recognised credential replaced by a
// placeholder.
func String(input string) string {
	for _, r := range rules {
		if input == "" {
			break
		}
		input = r.pattern.ReplaceAllString(input, r.replacement)
	}
	return input
}

// Error is String applied to err.Error(). A nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// URL renders u with secret query parameters and any userinfo password
// masked. The query is re-encoded, so its keys come out sorted. A nil URL
// yields "".
func URL(u *url.URL) string {
	if u == nil {
		return ""
	}

	masked := *u
	if masked.RawQuery != "" {
		query := masked.Query()
		for key := range query {
			for _, secret := range secretParams {
				if strings.EqualFold(key, secret) {
					query.Set(key, RedactedCredentialPlaceholder)
				}
			}
		}
		masked.RawQuery = query.Encode()
	}
	return masked.Redacted()
}

// Secret returns a fixed-width mask for a secret value, keeping only enough of
// it to tell two secrets apart in logs.
func Secret(secret string) string {
	if len(secret) <= 8 {
		return RedactionPlaceholder
	}
	return secret[:4] + "..." + RedactionPlaceholder
}
