package common

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateTargetURL checks that a monitored URL is absolute http(s) with a
// host. When allowTestURLs is false, loopback and private addresses are
// rejected as well.
func ValidateTargetURL(raw string, allowTestURLs bool) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed url: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q, expected http or https", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("url has no host")
	}

	if !allowTestURLs {
		host := parsed.Hostname()
		if isTestHost(host) {
			return fmt.Errorf("host %q is not allowed in production", host)
		}
	}

	return nil
}

// isTestHost reports whether the host is loopback, link-local or a
// private-range address.
func isTestHost(host string) bool {
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") || lower == "host.docker.internal" {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
