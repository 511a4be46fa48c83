package api

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter implements per-client token bucket rate limiting keyed by
// remote address.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket

	perMinute int
	burst     int
}

type clientBucket struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests with a burst
// of a fifth of that.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 100
	}
	burst := perMinute / 5
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		clients:   make(map[string]*clientBucket),
		perMinute: perMinute,
		burst:     burst,
	}
}

// Allow reports whether the client may make another request now.
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.clients[clientID]
	if !ok {
		bucket = &clientBucket{tokens: rl.burst, lastRefill: time.Now()}
		rl.clients[clientID] = bucket
	}

	now := time.Now()
	elapsed := now.Sub(bucket.lastRefill)
	refill := int(elapsed.Seconds() * float64(rl.perMinute) / 60.0)
	if refill > 0 {
		bucket.tokens += refill
		if bucket.tokens > rl.burst {
			bucket.tokens = rl.burst
		}
		bucket.lastRefill = now
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}
	return false
}

// CleanupExpired drops buckets idle for over an hour.
func (rl *RateLimiter) CleanupExpired() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-time.Hour)
	for id, bucket := range rl.clients {
		if bucket.lastRefill.Before(cutoff) {
			delete(rl.clients, id)
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !rl.Allow(host) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
