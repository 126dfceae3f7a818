package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"studygroup-service/internal/apperr"
	"studygroup-service/internal/observability"
)

// limiterPool hands out one token bucket per key, created on first use.
type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	every time.Duration
	burst int
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = make(map[string]*rate.Limiter)
	}
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(p.every), p.burst)
	p.m[key] = l
	return l
}

// RateLimitPerMinute limits each authenticated user, or client IP when no
// user is set, to perMinute requests. A non-positive limit disables it.
func RateLimitPerMinute(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	burst := perMinute / 4
	if burst < 1 {
		burst = 1
	}
	pool := &limiterPool{every: time.Minute / time.Duration(perMinute), burst: burst}

	return func(c *gin.Context) {
		key := c.GetString(UsernameKey)
		if key == "" {
			key = "ip:" + observability.IPFromRequest(c.Request)
		}
		if !pool.get(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please slow down.", "code": apperr.CodeResourceExhausted})
			return
		}
		c.Next()
	}
}
