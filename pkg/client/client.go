// Package client is the feeder API: it seeds crawl requests into the
// per-domain Redis queues the same way a foreign scheduler instance
// would, and exposes the operator stop-crawl flow. Workers adopt newly
// seeded queues on their next refresh.
package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/stampede/internal/domains"
	"github.com/muaviaUsmani/stampede/internal/queue"
	"github.com/muaviaUsmani/stampede/internal/request"
)

// Client submits crawl requests to a spider's queue fabric
type Client struct {
	client *redis.Client
}

// NewClient connects to Redis at host:port
func NewClient(host string, port int) (*Client, error) {
	rc, err := queue.NewRedisClient(host, port)
	if err != nil {
		return nil, err
	}
	return &Client{client: rc}, nil
}

// NewClientFromRedis wraps an existing Redis client
func NewClientFromRedis(rc *redis.Client) *Client {
	return &Client{client: rc}
}

// Submission describes a crawl request to feed
type Submission struct {
	// URL is required
	URL string
	// AppID identifies the requesting application; required
	AppID string
	// CrawlID groups requests into one crawl; generated when empty
	CrawlID string
	// Priority orders dequeues; higher pops earlier
	Priority int64
	// Expires is a unix timestamp after which the request is dropped;
	// 0 never expires
	Expires int64
	// UserAgent optionally overrides the fetcher's user agent
	UserAgent string
	// Cookie is an optional "name=value;" cookie string
	Cookie string
}

// Submit seeds a request into the queue for its registered domain and
// returns the crawlid
func (c *Client) Submit(ctx context.Context, spiderName string, sub Submission) (string, error) {
	if sub.URL == "" {
		return "", fmt.Errorf("submission requires a url")
	}
	if sub.AppID == "" {
		return "", fmt.Errorf("submission requires an appid")
	}
	if sub.CrawlID == "" {
		sub.CrawlID = uuid.NewString()
	}

	domain, err := domains.Registered(sub.URL)
	if err != nil {
		return "", fmt.Errorf("cannot route submission: %w", err)
	}

	req := request.New(sub.URL, sub.AppID, sub.CrawlID, spiderName, sub.Priority)
	req.Meta[request.MetaExpires] = sub.Expires
	if sub.UserAgent != "" {
		req.Meta[request.MetaUserAgent] = sub.UserAgent
	}
	if sub.Cookie != "" {
		req.Meta[request.MetaCookie] = sub.Cookie
	}

	key := fmt.Sprintf("%s:%s:queue", spiderName, domain)
	if err := queue.NewPriorityQueue(c.client, key).Push(ctx, req, sub.Priority); err != nil {
		return "", err
	}

	return sub.CrawlID, nil
}

// StopCrawl blacklists an (appid, crawlid) pair so every worker drops
// its remaining requests at enqueue time
func (c *Client) StopCrawl(ctx context.Context, spiderName, appid, crawlid string) error {
	return queue.NewBlacklist(c.client, spiderName+":blacklist").Add(ctx, appid, crawlid)
}

// Close releases the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}
