package domains

import "testing"

func TestRegistered_Simple(t *testing.T) {
	got, err := Registered("http://www.example.com/page?q=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "example.com" {
		t.Errorf("expected example.com, got %q", got)
	}
}

func TestRegistered_MultiPartSuffix(t *testing.T) {
	got, err := Registered("https://news.example.co.uk/story")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "example.co.uk" {
		t.Errorf("expected example.co.uk, got %q", got)
	}
}

func TestRegistered_BareHost(t *testing.T) {
	got, err := Registered("example.com/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "example.com" {
		t.Errorf("expected example.com, got %q", got)
	}
}

func TestRegistered_IPLiteral(t *testing.T) {
	got, err := Registered("http://192.168.1.10:8080/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "192.168.1.10" {
		t.Errorf("expected 192.168.1.10, got %q", got)
	}
}

func TestRegistered_UnsplittableHost(t *testing.T) {
	got, err := Registered("http://localhost:9090/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "localhost" {
		t.Errorf("expected localhost, got %q", got)
	}
}

func TestRegistered_PortAndCaseStripped(t *testing.T) {
	got, err := Registered("http://WWW.Example.COM:443/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "example.com" {
		t.Errorf("expected example.com, got %q", got)
	}
}

func TestRegistered_Empty(t *testing.T) {
	if _, err := Registered(""); err == nil {
		t.Fatal("expected error for empty url")
	}
}
