package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedLimiter(perMinute, burst int) (*RateLimiter, *time.Time) {
	rl := NewRateLimiter(perMinute, burst)
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiterBurst(t *testing.T) {
	rl, _ := fixedLimiter(60, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestRateLimiterRefill(t *testing.T) {
	rl, now := fixedLimiter(60, 2)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))

	*now = now.Add(1500 * time.Millisecond)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"), "half a token does not count")

	*now = now.Add(500 * time.Millisecond)
	assert.True(t, rl.Allow("10.0.0.1"), "the remainder carries over")

	*now = now.Add(time.Hour)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"), "refill stops at burst")
}

func TestRateLimiterSweep(t *testing.T) {
	rl, now := fixedLimiter(60, 1)
	rl.Allow("10.0.0.1")
	*now = now.Add(time.Hour)
	rl.Allow("10.0.0.2")

	rl.sweep()

	assert.NotContains(t, rl.clients, "10.0.0.1")
	assert.Contains(t, rl.clients, "10.0.0.2")
}

func TestRateLimiterSweepStops(t *testing.T) {
	rl := NewRateLimiter(60, 1)
	stop := rl.sweepEvery(time.Millisecond)
	assert.NoError(t, stop())
	assert.NoError(t, stop())
}

func TestClientAddress(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:4321"
	assert.Equal(t, "192.0.2.1", clientAddress(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientAddress(r))

	r.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", clientAddress(r))
}

func TestLimitCategory(t *testing.T) {
	for _, c := range []struct {
		method, path, want string
	}{
		{http.MethodPost, "/auth/login", "auth"},
		{http.MethodGet, "/auth/google", "auth"},
		{http.MethodPost, "/auth/logout", "write"},
		{http.MethodPost, "/meetings", "write"},
		{http.MethodGet, "/views/abc", ""},
	} {
		assert.Equal(t, c.want, limitCategory(httptest.NewRequest(c.method, c.path, nil)), c.path)
	}
}

func TestAuthEndpointsAreRateLimited(t *testing.T) {
	b := newBrowser(t, newTestApp(t))

	var last int
	for i := 0; i < 11; i++ {
		last = b.postForm("/auth/login", map[string][]string{"email": {"nobody@example.org"}, "password": {"x"}}).Code
	}

	assert.Equal(t, http.StatusTooManyRequests, last)
}
