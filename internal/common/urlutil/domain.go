package urlutil

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// ExtractHost extracts and lowercases the host (with port) from a URL string.
// Returns empty string if URL is invalid or has no host.
func ExtractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Host)
}

// ExtractHostname extracts the hostname from a host string, removing the port if present.
// Input is a host string (NOT a full URL), e.g., "example.com:8080" or "example.com".
// The port of a bracketed IPv6 literal is stripped; a bare IPv6 address is kept whole.
func ExtractHostname(host string) string {
	if strings.HasPrefix(host, "[") {
		if bracketIdx := strings.Index(host, "]"); bracketIdx != -1 {
			return host[:bracketIdx+1]
		}
		return host
	}
	if idx := strings.LastIndex(host, ":"); idx != -1 && strings.Count(host, ":") == 1 {
		return host[:idx]
	}
	return host
}

// NormalizeHost lowercases host, drops the port and a trailing dot, and converts
// internationalized names to their ASCII (punycode) form so that "bücher.example"
// and "xn--bcher-kva.example" compare equal.
func NormalizeHost(host string) string {
	h := strings.TrimSuffix(strings.ToLower(ExtractHostname(strings.TrimSpace(host))), ".")
	if h == "" || strings.HasPrefix(h, "[") {
		return h
	}
	if ascii, err := idna.Lookup.ToASCII(h); err == nil {
		return ascii
	}
	return h
}

// HostnameFromURL returns the normalized hostname of rawURL, or "" when it has none
func HostnameFromURL(rawURL string) string {
	return NormalizeHost(ExtractHost(rawURL))
}

// StripWWW removes one leading "www." label
func StripWWW(host string) (string, bool) {
	if strings.HasPrefix(host, "www.") {
		return host[len("www."):], true
	}
	return host, false
}

// MakeAbsolute resolves a site-relative URL against siteURL.
// Absolute URLs are returned unchanged; protocol-relative ones take the site scheme
// (https when the site URL has none). With an empty siteURL the input is returned as-is.
func MakeAbsolute(siteURL, u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}

	if parsed, err := url.Parse(u); err == nil && parsed.Scheme != "" && parsed.Host != "" {
		return u
	}

	if siteURL == "" {
		return u
	}

	if strings.HasPrefix(u, "//") {
		scheme := "https"
		if base, err := url.Parse(siteURL); err == nil && base.Scheme != "" {
			scheme = base.Scheme
		}
		return scheme + ":" + u
	}

	return strings.TrimRight(siteURL, "/") + "/" + strings.TrimLeft(u, "/")
}
