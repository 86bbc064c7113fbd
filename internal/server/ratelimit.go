package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipLimiters hands out one token bucket per client IP. Entries that have
// not been seen for staleAfter are evicted so the map stays bounded.
type ipLimiters struct {
	mu         sync.Mutex
	clients    map[string]*clientEntry
	perSecond  rate.Limit
	burst      int
	staleAfter time.Duration
}

type clientEntry struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

func newIPLimiters(rps float64, burst int, staleAfter time.Duration) *ipLimiters {
	l := &ipLimiters{
		clients:    make(map[string]*clientEntry),
		perSecond:  rate.Limit(rps),
		burst:      burst,
		staleAfter: staleAfter,
	}
	go l.evictStale()
	return l
}

func (l *ipLimiters) evictStale() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		for ip, e := range l.clients {
			if time.Since(e.lastSeen) > l.staleAfter {
				delete(l.clients, ip)
			}
		}
		l.mu.Unlock()
	}
}

func (l *ipLimiters) allow(ip string) bool {
	l.mu.Lock()
	e, ok := l.clients[ip]
	if !ok {
		e = &clientEntry{bucket: rate.NewLimiter(l.perSecond, l.burst)}
		l.clients[ip] = e
	}
	e.lastSeen = time.Now()
	l.mu.Unlock()

	return e.bucket.Allow()
}

// RateLimitMiddleware throttles per client IP. Billing traffic is bursty
// around due dates, so the burst allowance sits well above the steady rate.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiters := newIPLimiters(rps, burst, 3*time.Minute)

	return func(c *gin.Context) {
		if !limiters.allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, slow down",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
