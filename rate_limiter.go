package main

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"committeeDashboard/internal/utils"
)

// limitPolicy is the allowance of one request category.
type limitPolicy struct {
	category  string
	perMinute int
	burst     int
}

var (
	authPolicy  = limitPolicy{category: "auth", perMinute: 5, burst: 10}
	writePolicy = limitPolicy{category: "write", perMinute: 60, burst: 120}
)

const (
	bucketIdleTTL = 10 * time.Minute
	sweepInterval = 5 * time.Minute
)

// RateLimiter keeps a token bucket per client address. A bucket gains one
// token per interval up to burst and is forgotten once idle.
type RateLimiter struct {
	interval time.Duration
	burst    int
	idle     time.Duration
	now      func() time.Time

	mu      sync.Mutex
	clients map[string]*bucket
}

type bucket struct {
	tokens   int
	refilled time.Time
	seen     time.Time
}

// NewRateLimiter allows perMinute requests per client with bursts of burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	return &RateLimiter{
		interval: time.Minute / time.Duration(perMinute),
		burst:    burst,
		idle:     bucketIdleTTL,
		now:      time.Now,
		clients:  make(map[string]*bucket),
	}
}

// Allow takes a token for client, reporting false when none is left.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.clients[client]
	if !ok {
		b = &bucket{tokens: rl.burst, refilled: now}
		rl.clients[client] = b
	}
	b.seen = now

	if n := int(now.Sub(b.refilled) / rl.interval); n > 0 {
		b.tokens = min(rl.burst, b.tokens+n)
		b.refilled = b.refilled.Add(time.Duration(n) * rl.interval)
	}
	if b.tokens == 0 {
		return false
	}
	b.tokens--
	return true
}

// sweep forgets clients idle for longer than the idle TTL.
func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idle)
	for client, b := range rl.clients {
		if b.seen.Before(cutoff) {
			delete(rl.clients, client)
		}
	}
}

// sweepEvery runs sweep on a ticker until the returned stop is called.
func (rl *RateLimiter) sweepEvery(d time.Duration) (stop func() error) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.sweep()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() error {
		once.Do(func() { close(done) })
		return nil
	}
}

// clientAddress is the caller's address, trusting the reverse proxy headers.
func clientAddress(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limitCategory sorts a request into auth, write or an unlimited read.
// Page and fragment reads are not limited; a dashboard page fetches several
// views at once.
func limitCategory(r *http.Request) string {
	switch {
	case strings.HasPrefix(r.URL.Path, "/auth/") && r.URL.Path != "/auth/logout":
		return authPolicy.category
	case r.Method == http.MethodPost:
		return writePolicy.category
	default:
		return ""
	}
}

// RateLimitMiddleware limits sign-in attempts and dialog submissions per
// client address.
func (app *App) RateLimitMiddleware() func(http.Handler) http.Handler {
	limiters := make(map[string]*RateLimiter)
	for _, p := range []limitPolicy{authPolicy, writePolicy} {
		rl := NewRateLimiter(p.perMinute, p.burst)
		app.closers = append(app.closers, rl.sweepEvery(sweepInterval))
		limiters[p.category] = rl
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			category := limitCategory(r)
			rl, ok := limiters[category]
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			client := clientAddress(r)
			if !rl.Allow(client) {
				AppLogger.WithFields(map[string]interface{}{
					"ip":       client,
					"method":   r.Method,
					"path":     r.URL.Path,
					"category": category,
				}).Warn("Rate limit exceeded")
				utils.RespondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
