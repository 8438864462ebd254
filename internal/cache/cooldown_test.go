package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostKey(t *testing.T) {
	tests := []struct {
		desc string
		in   string
		want string
	}{
		{desc: "url", in: "https://WWW.CourtListener.com/api/rest/v4/", want: "citeverify:cooldown:www.courtlistener.com"},
		{desc: "bare host", in: "api.openalex.org", want: "citeverify:cooldown:api.openalex.org"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			assert.Equal(t, tt.want, HostKey("cooldown", tt.in))
		})
	}
}

func TestCooldown_BlockAndRemaining(t *testing.T) {
	c := NewCooldown(NewMemoryCache(time.Minute, time.Minute))

	assert.Zero(t, c.Remaining("https://api.semanticscholar.org/graph/v1/paper/search"))

	c.Block("https://api.semanticscholar.org/graph/v1/paper/search", 30*time.Second)
	d := c.Remaining("https://api.semanticscholar.org/other")
	assert.Greater(t, d, 25*time.Second)
	assert.LessOrEqual(t, d, 30*time.Second)

	// Other hosts are unaffected
	assert.Zero(t, c.Remaining("https://api.openalex.org/works"))

	c.Block("https://api.openalex.org/works", 0)
	assert.Zero(t, c.Remaining("https://api.openalex.org/works"))
}

func TestCooldown_WaitHonorsContext(t *testing.T) {
	c := NewCooldown(NewMemoryCache(time.Minute, time.Minute))
	c.Block("https://www.loc.gov", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, c.Wait(ctx, "https://www.loc.gov/search"), context.Canceled)

	require.NoError(t, c.Wait(context.Background(), "https://www.govinfo.gov/link"))
}

func TestMemoryCache(t *testing.T) {
	m := NewMemoryCache(time.Minute, time.Minute)
	m.Set("a", 1, 0)
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	m.Delete("a")
	_, ok = m.Get("a")
	assert.False(t, ok)

	m.Set("b", "x", time.Second)
	m.Clear()
	_, ok = m.Get("b")
	assert.False(t, ok)
}
