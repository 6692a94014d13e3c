// Package request defines the crawl request record: the unit stored in
// the per-domain queues and handed to the fetcher. Meta carries the
// crawl bookkeeping (appid, crawlid, spiderid, expires, priority) plus
// optional per-request knobs (useragent, cookie, curdepth, retry_times).
package request

import (
	"fmt"
	"net/url"
	"regexp"
)

// Well-known meta keys
const (
	MetaAppID      = "appid"
	MetaCrawlID    = "crawlid"
	MetaSpiderID   = "spiderid"
	MetaExpires    = "expires"
	MetaPriority   = "priority"
	MetaUserAgent  = "useragent"
	MetaCookie     = "cookie"
	MetaCurDepth   = "curdepth"
	MetaRetryTimes = "retry_times"
)

// Request is a crawl request record. The same shape is used for the
// serialized form in Redis and the hydrated form given to the fetcher.
type Request struct {
	// URL is the absolute url to fetch
	URL string `json:"url"`
	// Method is the HTTP method, defaulting to GET
	Method string `json:"method"`
	// Headers maps header names to their values
	Headers map[string][]string `json:"headers,omitempty"`
	// Body is the opaque request body
	Body []byte `json:"body,omitempty"`
	// Cookies maps cookie names to values
	Cookies map[string]string `json:"cookies,omitempty"`
	// Meta carries crawl bookkeeping and per-request options
	Meta map[string]interface{} `json:"meta,omitempty"`
	// Encoding is the response encoding hint
	Encoding string `json:"encoding,omitempty"`
	// Priority orders dequeues; higher pops earlier
	Priority int64 `json:"priority"`
	// DontFilter bypasses the dupefilter when true
	DontFilter bool `json:"dont_filter"`
	// Callback and Errback are handler names resolved by the fetcher
	Callback string `json:"callback,omitempty"`
	Errback  string `json:"errback,omitempty"`
}

// New creates a request with the required meta fields populated
func New(rawurl, appid, crawlid, spiderid string, priority int64) *Request {
	return &Request{
		URL:      rawurl,
		Method:   "GET",
		Priority: priority,
		Meta: map[string]interface{}{
			MetaAppID:    appid,
			MetaCrawlID:  crawlid,
			MetaSpiderID: spiderid,
			MetaExpires:  int64(0),
			MetaPriority: priority,
		},
	}
}

// AppID returns meta.appid
func (r *Request) AppID() string { return r.metaString(MetaAppID) }

// CrawlID returns meta.crawlid
func (r *Request) CrawlID() string { return r.metaString(MetaCrawlID) }

// SpiderID returns meta.spiderid
func (r *Request) SpiderID() string { return r.metaString(MetaSpiderID) }

// UserAgent returns meta.useragent, empty if unset
func (r *Request) UserAgent() string { return r.metaString(MetaUserAgent) }

// Expires returns meta.expires as unix seconds; 0 means never
func (r *Request) Expires() int64 { return r.metaInt64(MetaExpires) }

// MetaPriority returns meta.priority
func (r *Request) MetaPriority() int64 { return r.metaInt64(MetaPriority) }

// CurDepth returns meta.curdepth
func (r *Request) CurDepth() int64 { return r.metaInt64(MetaCurDepth) }

// RetryTimes returns meta.retry_times
func (r *Request) RetryTimes() int64 { return r.metaInt64(MetaRetryTimes) }

// CookieJar returns meta.cookie normalized to a map. The field is
// polymorphic: operators may supply either a mapping or a raw
// "name=value;" cookie string.
func (r *Request) CookieJar() (map[string]string, bool) {
	raw, ok := r.Meta[MetaCookie]
	if !ok || raw == nil {
		return nil, false
	}
	switch v := raw.(type) {
	case map[string]string:
		return v, true
	case map[string]interface{}:
		jar := make(map[string]string, len(v))
		for name, val := range v {
			jar[name] = fmt.Sprint(val)
		}
		return jar, true
	case string:
		return ParseCookieString(v), true
	default:
		return nil, false
	}
}

func (r *Request) metaString(key string) string {
	if v, ok := r.Meta[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

// metaInt64 tolerates the numeric shapes a schema-free decode produces
func (r *Request) metaInt64(key string) int64 {
	switch v := r.Meta[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	}
	return 0
}

var cookiePairRe = regexp.MustCompile(`([^=]+)=([^;]+);?\s?`)

// ParseCookieString parses a "name=value; name2=value2" cookie string
// like one returned in a Set-Cookie header
func ParseCookieString(s string) map[string]string {
	jar := make(map[string]string)
	for _, m := range cookiePairRe.FindAllStringSubmatch(s, -1) {
		jar[m[1]] = m[2]
	}
	return jar
}

// Hydrate prepares a stored record for the fetcher. The URL is
// validated (retrying once with an http:// prefix), a nested meta map
// is lifted, depth and retry defaults are filled in, and the optional
// useragent and cookie meta entries are applied to headers and cookies.
func (r *Request) Hydrate() (*Request, error) {
	target := r.URL
	if _, err := url.ParseRequestURI(target); err != nil {
		target = "http://" + target
		if _, err := url.ParseRequestURI(target); err != nil {
			return nil, fmt.Errorf("invalid url %q: %w", r.URL, err)
		}
	}

	meta := r.Meta
	if inner, ok := meta["meta"].(map[string]interface{}); ok {
		meta = inner
	}

	out := &Request{
		URL:        target,
		Method:     r.Method,
		Headers:    make(map[string][]string, len(r.Headers)+1),
		Body:       r.Body,
		Cookies:    make(map[string]string, len(r.Cookies)),
		Meta:       make(map[string]interface{}, len(meta)+2),
		Encoding:   r.Encoding,
		Priority:   r.Priority,
		DontFilter: r.DontFilter,
		Callback:   r.Callback,
		Errback:    r.Errback,
	}
	if out.Method == "" {
		out.Method = "GET"
	}
	for k, v := range r.Headers {
		out.Headers[k] = v
	}
	for k, v := range r.Cookies {
		out.Cookies[k] = v
	}
	for k, v := range meta {
		out.Meta[k] = v
	}

	if _, ok := out.Meta[MetaCurDepth]; !ok {
		out.Meta[MetaCurDepth] = int64(0)
	}
	if _, ok := out.Meta[MetaRetryTimes]; !ok {
		out.Meta[MetaRetryTimes] = int64(0)
	}

	if ua := out.UserAgent(); ua != "" {
		out.Headers["User-Agent"] = []string{ua}
	}
	if jar, ok := out.CookieJar(); ok {
		for name, val := range jar {
			out.Cookies[name] = val
		}
	}

	return out, nil
}
