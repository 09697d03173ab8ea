package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractHost(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"simple URL", "https://example.com/path", "example.com"},
		{"with port", "https://example.com:8080/path", "example.com:8080"},
		{"with subdomain", "https://www.example.com/path", "www.example.com"},
		{"uppercase", "https://EXAMPLE.COM/path", "example.com"},
		{"invalid URL", "not-a-url", ""},
		{"empty string", "", ""},
		{"just path", "/path/to/resource", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractHost(tt.url))
		})
	}
}

func TestExtractHostname(t *testing.T) {
	tests := []struct {
		host     string
		expected string
	}{
		{"example.com", "example.com"},
		{"example.com:8080", "example.com"},
		{"www.example.com:443", "www.example.com"},
		{"192.168.1.1:8080", "192.168.1.1"},
		{"[::1]:8080", "[::1]"},
		{"::1", "::1"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractHostname(tt.host))
		})
	}
}

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		host     string
		expected string
	}{
		{"Example.COM", "example.com"},
		{"example.com:443", "example.com"},
		{"example.com.", "example.com"},
		{"bücher.example", "xn--bcher-kva.example"},
		{"xn--bcher-kva.example", "xn--bcher-kva.example"},
		{"[::1]:80", "[::1]"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeHost(tt.host))
		})
	}
}

func TestHostnameFromURL(t *testing.T) {
	assert.Equal(t, "www.example.com", HostnameFromURL("https://WWW.Example.com:8443/blog?x=1"))
	assert.Equal(t, "xn--bcher-kva.example", HostnameFromURL("https://bücher.example/"))
	assert.Equal(t, "", HostnameFromURL("/relative/path"))
	assert.Equal(t, "", HostnameFromURL("http://[::1"))
}

func TestStripWWW(t *testing.T) {
	h, ok := StripWWW("www.example.com")
	assert.True(t, ok)
	assert.Equal(t, "example.com", h)

	h, ok = StripWWW("www.www.example.com")
	assert.True(t, ok)
	assert.Equal(t, "www.example.com", h, "only one label is removed")

	h, ok = StripWWW("shop.example.com")
	assert.False(t, ok)
	assert.Equal(t, "shop.example.com", h)
}

func TestMakeAbsolute(t *testing.T) {
	tests := []struct {
		name     string
		site     string
		url      string
		expected string
	}{
		{"absolute unchanged", "https://example.com", "https://cdn.example.com/a.png", "https://cdn.example.com/a.png"},
		{"root relative", "https://example.com", "/blog/hello", "https://example.com/blog/hello"},
		{"site trailing slash", "https://example.com/", "/blog", "https://example.com/blog"},
		{"no leading slash", "https://example.com", "blog", "https://example.com/blog"},
		{"site with path", "https://example.com/de/", "/news", "https://example.com/de/news"},
		{"protocol relative", "http://example.com", "//assets.example.com/x.css", "http://assets.example.com/x.css"},
		{"empty site", "", "/blog", "/blog"},
		{"empty url", "https://example.com", "", ""},
		{"root", "https://example.com", "/", "https://example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MakeAbsolute(tt.site, tt.url))
		})
	}
}
