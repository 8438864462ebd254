package cache

import (
	"context"
	"time"
)

const cooldownNamespace = "cooldown"

// Cooldown tracks hosts that asked us to back off (HTTP 429 with
// Retry-After). Callers wait out the remaining time before the next request.
type Cooldown struct {
	store Store
	now   func() time.Time
}

// NewCooldown creates a cooldown tracker on store
func NewCooldown(store Store) *Cooldown {
	return &Cooldown{store: store, now: time.Now}
}

// Block marks the host of rawURL as cooling down for d
func (c *Cooldown) Block(rawURL string, d time.Duration) {
	if d <= 0 {
		return
	}
	c.store.Set(HostKey(cooldownNamespace, rawURL), struct{}{}, d)
}

// Remaining returns how long the host of rawURL is still cooling down
func (c *Cooldown) Remaining(rawURL string) time.Duration {
	_, until, ok := c.store.GetWithExpiration(HostKey(cooldownNamespace, rawURL))
	if !ok || until.IsZero() {
		return 0
	}
	if d := until.Sub(c.now()); d > 0 {
		return d
	}
	return 0
}

// Wait blocks until the host of rawURL is out of cooldown or ctx is done
func (c *Cooldown) Wait(ctx context.Context, rawURL string) error {
	d := c.Remaining(rawURL)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
