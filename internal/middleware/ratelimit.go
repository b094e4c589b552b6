package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const sweepInterval = time.Minute

// InMemoryRateLimiter is a sliding-window counter keyed by caller identity.
// It guards the auth and charge endpoints, so losing the counts on restart
// is acceptable.
type InMemoryRateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
}

func NewInMemoryRateLimiter(limit int, window time.Duration) *InMemoryRateLimiter {
	l := &InMemoryRateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}
	go l.sweep()
	return l
}

// prune drops entries older than the window. Caller holds l.mu.
func (l *InMemoryRateLimiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	kept := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.hits[key] = kept
	return kept
}

// Allow records one hit for key and reports whether it is within the limit.
func (l *InMemoryRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if len(l.prune(key, now)) >= l.limit {
		return false
	}
	l.hits[key] = append(l.hits[key], now)
	return true
}

// sweep evicts keys that went quiet so the map does not grow unbounded.
func (l *InMemoryRateLimiter) sweep() {
	for range time.Tick(sweepInterval) {
		l.mu.Lock()
		now := time.Now()
		for key := range l.hits {
			if len(l.prune(key, now)) == 0 {
				delete(l.hits, key)
			}
		}
		l.mu.Unlock()
	}
}

// RateLimit limits by client IP and answers 429 once the window is full.
func RateLimit(limiter *InMemoryRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
