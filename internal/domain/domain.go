// Package domain turns page URLs into the hostnames usage is aggregated under.
package domain

import (
	"net/url"
	"strings"
)

// internalPrefixes mark browser-internal pages that are never tracked.
var internalPrefixes = []string{
	"chrome://",
	"edge://",
	"about:",
	"chrome-extension://",
}

// Extract returns the normalized domain for rawURL, or "" when the URL does not
// belong to a trackable website.
func Extract(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	for _, prefix := range internalPrefixes {
		if strings.HasPrefix(rawURL, prefix) {
			return ""
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// Normalize lowercases a stored domain and strips surrounding space and a
// leading "www.".
func Normalize(d string) string {
	trimmed := strings.ToLower(strings.TrimSpace(d))
	return strings.TrimPrefix(trimmed, "www.")
}

// Matches reports whether d is target or one of its subdomains.
func Matches(d, target string) bool {
	d = Normalize(d)
	target = Normalize(target)
	if d == "" || target == "" {
		return false
	}
	return d == target || strings.HasSuffix(d, "."+target)
}
