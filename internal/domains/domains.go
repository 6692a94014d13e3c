// Package domains extracts the registered domain (eTLD+1) from request
// URLs. Queue routing keys are built from this value so that every
// subdomain of a site shares one throttled queue.
package domains

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Registered returns the registered domain of rawurl, e.g.
// "news.example.co.uk" -> "example.co.uk". IP literals are returned
// verbatim; hosts the public suffix list cannot split (localhost,
// internal names) fall back to the full host.
func Registered(rawurl string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil || u.Host == "" {
		// bare hosts like "example.com/page" parse without a Host
		u, err = url.Parse("http://" + rawurl)
		if err != nil {
			return "", fmt.Errorf("unparseable url %q: %w", rawurl, err)
		}
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawurl)
	}

	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, nil
	}
	return etld1, nil
}
