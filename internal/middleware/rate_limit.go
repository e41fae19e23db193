package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginRateLimit throttles requests per client IP. Idle limiters are dropped
// after ten minutes.
func LoginRateLimit(perSecond float64, burst int) gin.HandlerFunc {
	var (
		mu        sync.Mutex
		limiters  = map[string]*visitorLimiter{}
		lastSweep = time.Now()
	)
	const idle = 10 * time.Minute

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		if now.Sub(lastSweep) > idle {
			for key, v := range limiters {
				if now.Sub(v.lastSeen) > idle {
					delete(limiters, key)
				}
			}
			lastSweep = now
		}
		v, ok := limiters[ip]
		if !ok {
			v = &visitorLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
			limiters[ip] = v
		}
		v.lastSeen = now
		allowed := v.limiter.AllowN(now, 1)
		mu.Unlock()

		if !allowed {
			c.Header("Retry-After", "5")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too_many_requests"})
			return
		}
		c.Next()
	}
}
