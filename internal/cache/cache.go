// Package cache holds per-process politeness state such as host cooldowns
// and parsed robots.txt rules. Verification results are never stored here.
package cache

import (
	"net/url"
	"strings"
	"time"
)

// Store is a TTL key-value store
type Store interface {
	Get(key string) (any, bool)
	GetWithExpiration(key string) (any, time.Time, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
	Clear()
}

// HostKey builds a namespaced key for the host of rawURL. A bare host is
// accepted too.
func HostKey(namespace, rawURL string) string {
	host := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Host != "" {
		host = parsed.Host
	}
	return "citeverify:" + namespace + ":" + strings.ToLower(host)
}
