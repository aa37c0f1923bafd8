// Package utils holds small helpers for keeping secrets and long keys out of
// log lines.
package utils

import (
	"net/url"
	"regexp"
	"strings"
)

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`api-key=[a-zA-Z0-9-]+`),
	regexp.MustCompile(`token=[a-zA-Z0-9-]+`),
	regexp.MustCompile(`key=[a-zA-Z0-9-]+`),
}

// SanitizeURL drops the query string and masks the first host label of
// provider URLs, which often embed an API key.
func SanitizeURL(rawURL string) string {
	if rawURL == "" {
		return "unknown"
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url"
	}

	parsedURL.RawQuery = ""
	parsedURL.User = nil

	host := parsedURL.Host
	if strings.Contains(host, ".") {
		parts := strings.Split(host, ".")
		if len(parts) > 2 {
			parts[0] = parts[0][:min(3, len(parts[0]))] + "***"
		}
		parsedURL.Host = strings.Join(parts, ".")
	}

	return parsedURL.String()
}

// SanitizeAddress shortens a base58 address to its first and last four characters.
func SanitizeAddress(address string) string {
	if len(address) < 8 {
		return "***"
	}
	return address[:4] + "..." + address[len(address)-4:]
}

// SanitizeToken hides a gRPC or API token entirely.
func SanitizeToken(token string) string {
	if token == "" {
		return "not-set"
	}
	return "***TOKEN-HIDDEN***"
}

// ShortSig trims a transaction signature for log output.
func ShortSig(sig string) string {
	if len(sig) <= 8 {
		return sig
	}
	return sig[:8] + "..."
}

// SanitizeError rewrites err's message so that endpoint URLs and embedded
// keys do not reach the logs.
func SanitizeError(err error, endpoints ...string) string {
	if err == nil {
		return ""
	}

	errMsg := err.Error()

	for _, endpoint := range endpoints {
		if endpoint != "" {
			errMsg = strings.ReplaceAll(errMsg, endpoint, SanitizeURL(endpoint))
		}
	}

	for _, re := range secretPatterns {
		errMsg = re.ReplaceAllString(errMsg, "***API-KEY-HIDDEN***")
	}

	return errMsg
}
