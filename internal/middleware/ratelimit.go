package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/pawmatch/pawmatch/internal/errors"
)

// RateLimiter represents a simple token bucket rate limiter
type RateLimiter struct {
	tokens     int
	maxTokens  int
	lastRefill time.Time
	refillRate time.Duration
	lastSeen   time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a bucket holding maxTokens that regains one token per refillRate
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	now := time.Now()
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		lastRefill: now,
		refillRate: refillRate,
		lastSeen:   now,
	}
}

// Allow checks if a request is allowed
func (rl *RateLimiter) Allow() bool {
	return rl.allowAt(time.Now())
}

func (rl *RateLimiter) allowAt(now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lastSeen = now
	if elapsed := now.Sub(rl.lastRefill); elapsed >= rl.refillRate {
		refilled := int(elapsed / rl.refillRate)
		rl.tokens = min(rl.maxTokens, rl.tokens+refilled)
		rl.lastRefill = rl.lastRefill.Add(time.Duration(refilled) * rl.refillRate)
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) idleSince(cutoff time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.lastSeen.Before(cutoff)
}

// KeyedRateLimiter keeps one token bucket per key. limit tokens refill evenly over window.
type KeyedRateLimiter struct {
	limiters map[string]*RateLimiter
	mu       sync.RWMutex
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewKeyedRateLimiter(limit int, window time.Duration) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters: make(map[string]*RateLimiter),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (k *KeyedRateLimiter) Allow(key string) bool {
	return k.getLimiter(key).allowAt(k.now())
}

func (k *KeyedRateLimiter) Limit() int            { return k.limit }
func (k *KeyedRateLimiter) Window() time.Duration { return k.window }

// getLimiter gets or creates the bucket for key
func (k *KeyedRateLimiter) getLimiter(key string) *RateLimiter {
	k.mu.RLock()
	limiter, exists := k.limiters[key]
	k.mu.RUnlock()
	if exists {
		return limiter
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if limiter, exists = k.limiters[key]; !exists {
		refill := k.window / time.Duration(max(k.limit, 1))
		limiter = NewRateLimiter(k.limit, refill)
		limiter.lastRefill = k.now()
		limiter.lastSeen = k.now()
		k.limiters[key] = limiter
	}
	return limiter
}

// Prune drops buckets idle for longer than the window and returns how many were removed
func (k *KeyedRateLimiter) Prune() int {
	cutoff := k.now().Add(-k.window)
	k.mu.Lock()
	defer k.mu.Unlock()
	removed := 0
	for key, limiter := range k.limiters {
		if limiter.idleSince(cutoff) {
			delete(k.limiters, key)
			removed++
		}
	}
	return removed
}

// RateLimit throttles requests per caller identity. Requests without one are keyed by client IP.
func RateLimit(limiter *KeyedRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := UserID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !limiter.Allow(key) {
			_ = c.Error(apperrors.NewRateLimitError(limiter.Limit(), limiter.Window().String()))
			c.Abort()
			return
		}
		c.Next()
	}
}
