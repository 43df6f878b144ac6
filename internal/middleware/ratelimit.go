package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// fixedWindowLimiter counts requests per key inside a fixed time window.
// It is in-memory only, which is enough for the single-instance deployments
// this server targets.
type fixedWindowLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string]*windowEntry
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// RateLimit throttles requests per (client IP, route) pair. Auth endpoints
// use it to slow down credential stuffing.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	limiter := &fixedWindowLimiter{
		max:     maxRequests,
		window:  window,
		entries: make(map[string]*windowEntry),
	}

	return func(c *gin.Context) {
		if limiter.max <= 0 || limiter.window <= 0 {
			c.Next()
			return
		}

		count, resetIn := limiter.hit(c.ClientIP() + "|" + c.FullPath())

		remaining := limiter.max - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if count > limiter.max {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}

func (l *fixedWindowLimiter) hit(key string) (int, time.Duration) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok || now.After(entry.resetAt) {
		entry = &windowEntry{resetAt: now.Add(l.window)}
		l.entries[key] = entry
	}
	entry.count++

	// Bound memory by sweeping expired windows once the map grows.
	if len(l.entries) > 1024 {
		for k, e := range l.entries {
			if now.After(e.resetAt) {
				delete(l.entries, k)
			}
		}
	}

	return entry.count, time.Until(entry.resetAt)
}
