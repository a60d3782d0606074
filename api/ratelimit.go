package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const visitorTTL = 3 * time.Minute

// RateLimiter limits requests per client IP. Requests that change the
// workflow get a stricter limit than reads.
type RateLimiter struct {
	read  rate.Limit
	write rate.Limit
	burst int

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

type visitor struct {
	read     *rate.Limiter
	write    *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows readRPS reads and writeRPS writes per second per client.
func NewRateLimiter(readRPS, writeRPS float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		read:      rate.Limit(readRPS),
		write:     rate.Limit(writeRPS),
		burst:     burst,
		visitors:  make(map[string]*visitor),
		lastSweep: time.Now(),
	}
}

func (rl *RateLimiter) limiter(ip string, write bool) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > time.Minute {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{
			read:  rate.NewLimiter(rl.read, rl.burst),
			write: rate.NewLimiter(rl.write, rl.burst),
		}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	if write {
		return v.write
	}
	return v.read
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		write := c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead
		if !rl.limiter(c.ClientIP(), write).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error:     "Request rate limit exceeded",
				RequestID: GetRequestID(c),
			})
			return
		}
		c.Next()
	}
}
