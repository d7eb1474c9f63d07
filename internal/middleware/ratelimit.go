package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimit returns a middleware that limits requests per caller and route
// within a fixed window. Authenticated callers are keyed by member id, the
// rest by client IP. Counters live in process memory.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	type counter struct {
		count     int
		windowEnd time.Time
	}

	var (
		mu    sync.Mutex
		data  = make(map[string]*counter)
		swept time.Time
	)

	return func(c *gin.Context) {
		if maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		caller := MemberID(c)
		if caller == "" {
			caller = "ip:" + c.ClientIP()
		}
		key := caller + "|" + c.FullPath()
		now := time.Now()

		mu.Lock()
		if now.Sub(swept) > window {
			for k, v := range data {
				if now.After(v.windowEnd) {
					delete(data, k)
				}
			}
			swept = now
		}
		ct, ok := data[key]
		if !ok || now.After(ct.windowEnd) {
			ct = &counter{windowEnd: now.Add(window)}
			data[key] = ct
		}
		ct.count++
		count := ct.count
		resetIn := ct.windowEnd.Sub(now)
		mu.Unlock()

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, maxRequests-count)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if count > maxRequests {
			c.AbortWithStatus(429)
			return
		}

		c.Next()
	}
}
