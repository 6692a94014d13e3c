package scheduler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PublicIPSource discovers the worker's egress IP for throttle-key
// composition. Implementations must bound their own I/O.
type PublicIPSource interface {
	Lookup(ctx context.Context) (string, error)
}

// HTTPIPSource queries an endpoint that returns the caller's public
// IP as plain text
type HTTPIPSource struct {
	url    string
	client *http.Client
}

// NewHTTPIPSource creates an IP source with a bounded request timeout
func NewHTTPIPSource(url string, timeout time.Duration) *HTTPIPSource {
	return &HTTPIPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Lookup fetches the public IP
func (s *HTTPIPSource) Lookup(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build ip request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, s.url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", fmt.Errorf("failed to read ip response: %w", err)
	}

	ip := strings.TrimSpace(string(body))
	if ip == "" {
		return "", fmt.Errorf("empty ip response from %s", s.url)
	}
	return ip, nil
}
