package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// clientLimiter hands out a token bucket per client IP. Idle buckets expire.
type clientLimiter struct {
	mu       sync.Mutex
	limiters *gocache.Cache
	every    time.Duration
	burst    int
}

func newClientLimiter(every time.Duration, burst int) *clientLimiter {
	return &clientLimiter{
		limiters: gocache.New(10*time.Minute, 10*time.Minute),
		every:    every,
		burst:    burst,
	}
}

func (l *clientLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	var limiter *rate.Limiter
	if v, ok := l.limiters.Get(key); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(rate.Every(l.every), l.burst)
	}
	l.limiters.SetDefault(key, limiter)
	return limiter.Allow()
}

// rateLimit rejects clients that exceed the limiter with 429.
func rateLimit(l *clientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "요청이 너무 많습니다. 잠시 후 다시 시도해 주세요.",
			})
			return
		}
		c.Next()
	}
}
