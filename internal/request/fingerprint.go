package request

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Fingerprint returns a deterministic hash of the request identity:
// method, canonicalized URL, body, and the named headers. Two requests
// with the same fingerprint are considered duplicates by the dupefilter.
func (r *Request) Fingerprint(includeHeaders []string) string {
	h := sha1.New()
	h.Write([]byte(strings.ToUpper(r.Method)))
	h.Write([]byte{0})
	h.Write([]byte(canonicalURL(r.URL)))
	h.Write([]byte{0})
	h.Write(r.Body)

	if len(includeHeaders) > 0 {
		names := make([]string, 0, len(includeHeaders))
		for _, name := range includeHeaders {
			names = append(names, strings.ToLower(name))
		}
		sort.Strings(names)
		for _, name := range names {
			for canon, vals := range r.Headers {
				if strings.ToLower(canon) != name {
					continue
				}
				h.Write([]byte{0})
				h.Write([]byte(name))
				h.Write([]byte(":"))
				h.Write([]byte(strings.Join(vals, ",")))
			}
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

// canonicalURL lowercases the scheme and host, sorts the query string,
// and drops the fragment so equivalent URLs hash identically
func canonicalURL(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return rawurl
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	if len(q) > 0 {
		u.RawQuery = q.Encode() // Encode sorts by key
	}

	return u.String()
}
