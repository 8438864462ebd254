package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/aonanj/citation-verifier/internal/cache"
)

const (
	robotsNamespace = "robots"
	robotsTTL       = 6 * time.Hour
)

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RobotsChecker answers robots.txt questions for outbound fetches. Parsed
// rules are kept per host for a few hours.
type RobotsChecker struct {
	store     cache.Store
	client    HTTPDoer
	userAgent string
}

// NewRobotsChecker creates a robots.txt checker
func NewRobotsChecker(client HTTPDoer, userAgent string, store cache.Store) *RobotsChecker {
	if store == nil {
		store = cache.NewMemoryCache(robotsTTL, time.Hour)
	}
	return &RobotsChecker{
		store:     store,
		client:    client,
		userAgent: userAgent,
	}
}

// CanFetch reports whether rawURL may be fetched and the host's crawl
// delay. When robots.txt cannot be retrieved the fetch is allowed.
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}

	data, err := r.rules(ctx, parsed)
	if err != nil {
		return true, 0, nil
	}

	agent := NormalizeUserAgent(r.userAgent)
	allowed := data.TestAgent(parsed.Path, agent)

	var crawlDelay time.Duration
	if group := data.FindGroup(agent); group != nil {
		crawlDelay = group.CrawlDelay
	}
	return allowed, crawlDelay, nil
}

func (r *RobotsChecker) rules(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	key := cache.HostKey(robotsNamespace, parsed.Host)
	if v, ok := r.store.Get(key); ok {
		return v.(*robotstxt.RobotsData), nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsed.Scheme, parsed.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("fetch robots.txt: status %d", resp.StatusCode)
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.store.Set(key, data, robotsTTL)
	return data, nil
}

// NormalizeUserAgent returns the product token of a user agent, without
// its version.
func NormalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) == 0 {
		return ua
	}
	return strings.Split(parts[0], "/")[0]
}
