package app

import (
	"net/url"
	"strings"
)

// originAllowed reports whether a browser Origin header matches one of the
// configured host patterns. Patterns compare against the host[:port] part
// only; "*.velog.io" admits any subdomain and "localhost:*" any port.
func originAllowed(patterns []string, origin string) bool {
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Host
	}

	for _, pattern := range patterns {
		switch {
		case pattern == host:
			return true
		case strings.HasPrefix(pattern, "*.") &&
			strings.HasSuffix(host, pattern[1:]):
			return true
		case strings.HasSuffix(pattern, ":*") &&
			strings.HasPrefix(host, pattern[:len(pattern)-1]):
			return true
		}
	}
	return false
}
