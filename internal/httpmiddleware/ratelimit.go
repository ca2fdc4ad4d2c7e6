package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// TokenBucket is an in-memory per-client rate limiter.
type TokenBucket struct {
	capacity int
	rate     int
	mu       sync.Mutex
	state    map[string]*bucket
	swept    time.Time
	now      func() time.Time
	rejected prometheus.Counter
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates a limiter holding capacity tokens refilled at
// perMinute. rejected may be nil.
func NewTokenBucket(capacity, perMinute int, rejected prometheus.Counter) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		state:    make(map[string]*bucket),
		now:      time.Now,
		rejected: rejected,
	}
}

// GinMiddleware enforces limits keyed by client IP. Request headers are not
// part of the key, so a client cannot mint itself fresh buckets. A
// non-positive rate disables limiting.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.rate <= 0 {
			c.Next()
			return
		}
		if !l.allow(c.ClientIP()) {
			if l.rejected != nil {
				l.rejected.Inc()
			}
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

func (l *TokenBucket) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweep(now)
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	if refill := int(elapsed * float64(l.rate)); refill > 0 {
		b.tokens = min(b.tokens+refill, l.capacity)
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets idle long enough to have refilled completely; a new
// bucket for the same key starts in the same state. Runs at most once a minute.
func (l *TokenBucket) sweep(now time.Time) {
	if now.Sub(l.swept) < time.Minute {
		return
	}
	l.swept = now
	full := time.Duration(float64(l.capacity) / float64(l.rate) * float64(time.Minute))
	for key, b := range l.state {
		if now.Sub(b.last) >= full {
			delete(l.state, key)
		}
	}
}
