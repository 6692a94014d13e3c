package request

import (
	"testing"
)

func TestNew_RequiredMeta(t *testing.T) {
	r := New("http://example.com/", "app1", "crawl1", "spider1", 50)

	if r.AppID() != "app1" {
		t.Errorf("expected appid app1, got %q", r.AppID())
	}
	if r.CrawlID() != "crawl1" {
		t.Errorf("expected crawlid crawl1, got %q", r.CrawlID())
	}
	if r.SpiderID() != "spider1" {
		t.Errorf("expected spiderid spider1, got %q", r.SpiderID())
	}
	if r.Expires() != 0 {
		t.Errorf("expected expires 0, got %d", r.Expires())
	}
	if r.MetaPriority() != 50 {
		t.Errorf("expected meta priority 50, got %d", r.MetaPriority())
	}
	if r.Method != "GET" {
		t.Errorf("expected GET, got %q", r.Method)
	}
}

func TestMetaInt64_FloatShape(t *testing.T) {
	// JSON decodes numbers as float64; accessors must tolerate it
	r := New("http://example.com/", "a", "c", "s", 0)
	r.Meta[MetaExpires] = float64(1700000000)
	r.Meta[MetaCurDepth] = float64(3)

	if r.Expires() != 1700000000 {
		t.Errorf("expected 1700000000, got %d", r.Expires())
	}
	if r.CurDepth() != 3 {
		t.Errorf("expected 3, got %d", r.CurDepth())
	}
}

func TestParseCookieString(t *testing.T) {
	jar := ParseCookieString("session=abc123; theme=dark; token=x9")

	if len(jar) != 3 {
		t.Fatalf("expected 3 cookies, got %d: %v", len(jar), jar)
	}
	if jar["session"] != "abc123" {
		t.Errorf("expected session=abc123, got %q", jar["session"])
	}
	if jar["theme"] != "dark" {
		t.Errorf("expected theme=dark, got %q", jar["theme"])
	}
	if jar["token"] != "x9" {
		t.Errorf("expected token=x9, got %q", jar["token"])
	}
}

func TestCookieJar_MapForm(t *testing.T) {
	r := New("http://example.com/", "a", "c", "s", 0)
	r.Meta[MetaCookie] = map[string]interface{}{"sid": "42"}

	jar, ok := r.CookieJar()
	if !ok {
		t.Fatal("expected cookie jar")
	}
	if jar["sid"] != "42" {
		t.Errorf("expected sid=42, got %q", jar["sid"])
	}
}

func TestCookieJar_StringForm(t *testing.T) {
	r := New("http://example.com/", "a", "c", "s", 0)
	r.Meta[MetaCookie] = "sid=42; lang=en"

	jar, ok := r.CookieJar()
	if !ok {
		t.Fatal("expected cookie jar")
	}
	if jar["sid"] != "42" || jar["lang"] != "en" {
		t.Errorf("unexpected jar: %v", jar)
	}
}

func TestHydrate_SchemeRetry(t *testing.T) {
	r := New("example.com/page", "a", "c", "s", 0)

	out, err := r.Hydrate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.URL != "http://example.com/page" {
		t.Errorf("expected http:// prefix, got %q", out.URL)
	}
}

func TestHydrate_Defaults(t *testing.T) {
	r := New("http://example.com/", "a", "c", "s", 0)

	out, err := r.Hydrate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.CurDepth() != 0 {
		t.Errorf("expected curdepth 0, got %d", out.CurDepth())
	}
	if out.RetryTimes() != 0 {
		t.Errorf("expected retry_times 0, got %d", out.RetryTimes())
	}
}

func TestHydrate_LiftsNestedMeta(t *testing.T) {
	r := New("http://example.com/", "a", "c", "s", 0)
	r.Meta = map[string]interface{}{
		"meta": map[string]interface{}{
			MetaAppID:    "inner",
			MetaCurDepth: float64(2),
		},
	}

	out, err := r.Hydrate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.AppID() != "inner" {
		t.Errorf("expected lifted appid inner, got %q", out.AppID())
	}
	if out.CurDepth() != 2 {
		t.Errorf("expected curdepth 2, got %d", out.CurDepth())
	}
}

func TestHydrate_UserAgentAndCookie(t *testing.T) {
	r := New("http://example.com/", "a", "c", "s", 0)
	r.Meta[MetaUserAgent] = "stampede/1.0"
	r.Meta[MetaCookie] = "sid=9"

	out, err := r.Hydrate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.Headers["User-Agent"]; len(got) != 1 || got[0] != "stampede/1.0" {
		t.Errorf("expected User-Agent header, got %v", got)
	}
	if out.Cookies["sid"] != "9" {
		t.Errorf("expected cookie sid=9, got %v", out.Cookies)
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := New("http://example.com/page?b=2&a=1", "x", "y", "z", 0)
	b := New("http://EXAMPLE.com/page?a=1&b=2", "x2", "y2", "z2", 9)

	if a.Fingerprint(nil) != b.Fingerprint(nil) {
		t.Error("expected equal fingerprints for equivalent urls")
	}
}

func TestFingerprint_MethodAndBodyMatter(t *testing.T) {
	a := New("http://example.com/", "x", "y", "z", 0)
	b := New("http://example.com/", "x", "y", "z", 0)
	b.Method = "POST"

	if a.Fingerprint(nil) == b.Fingerprint(nil) {
		t.Error("expected method to change fingerprint")
	}

	c := New("http://example.com/", "x", "y", "z", 0)
	c.Body = []byte("payload")
	if a.Fingerprint(nil) == c.Fingerprint(nil) {
		t.Error("expected body to change fingerprint")
	}
}

func TestFingerprint_HeaderSubset(t *testing.T) {
	a := New("http://example.com/", "x", "y", "z", 0)
	a.Headers = map[string][]string{"Accept": {"text/html"}}
	b := New("http://example.com/", "x", "y", "z", 0)
	b.Headers = map[string][]string{"Accept": {"application/json"}}

	if a.Fingerprint(nil) != b.Fingerprint(nil) {
		t.Error("headers outside the subset must not affect the fingerprint")
	}
	if a.Fingerprint([]string{"Accept"}) == b.Fingerprint([]string{"Accept"}) {
		t.Error("expected included header to change fingerprint")
	}
}
