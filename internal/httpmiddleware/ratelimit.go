package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Limiter is a per-client token bucket. Gate guards scan QR codes in bursts
// when a class lets out, so the bucket refills continuously per second rather
// than on whole-minute boundaries.
type Limiter struct {
	burst  float64
	perSec float64

	mu      sync.Mutex
	buckets map[string]*clientBucket
	now     func() time.Time
}

type clientBucket struct {
	tokens float64
	seen   time.Time
}

// NewLimiter allows perMinute requests per client IP, with a burst of the
// same size.
func NewLimiter(perMinute int) *Limiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &Limiter{
		burst:   float64(perMinute),
		perSec:  float64(perMinute) / 60,
		buckets: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

// Middleware rejects over-limit clients with 429.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			key = "unknown"
		}
		if !l.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// Allow consumes one token for key, refilling by elapsed time first.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		l.sweep(now)
		b = &clientBucket{tokens: l.burst}
		l.buckets[key] = b
	} else {
		b.tokens += now.Sub(b.seen).Seconds() * l.perSec
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
	}
	b.seen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets idle long enough to be full again, keeping the map
// bounded across school days. Called with the lock held.
func (l *Limiter) sweep(now time.Time) {
	idle := time.Duration(l.burst/l.perSec) * time.Second
	for k, b := range l.buckets {
		if now.Sub(b.seen) > idle {
			delete(l.buckets, k)
		}
	}
}
