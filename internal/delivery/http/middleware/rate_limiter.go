package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type windowEntry struct {
	count     int
	timestamp time.Time
}

// RateLimiter enforces a fixed one-minute window per caller. Callers are keyed
// by user id when present, otherwise by client IP. maxRequests <= 0 disables it.
func RateLimiter(maxRequests int) gin.HandlerFunc {
	if maxRequests <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	var mu sync.Mutex
	clients := make(map[string]*windowEntry)
	lastSweep := time.Now()

	return func(c *gin.Context) {
		key := GetUserID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		now := time.Now()

		mu.Lock()
		// Drop stale entries at most once per window.
		if now.Sub(lastSweep) > 2*time.Minute {
			for k, e := range clients {
				if now.Sub(e.timestamp) > time.Minute {
					delete(clients, k)
				}
			}
			lastSweep = now
		}

		entry, exists := clients[key]
		if !exists || now.Sub(entry.timestamp) > time.Minute {
			clients[key] = &windowEntry{count: 1, timestamp: now}
			mu.Unlock()
			c.Next()
			return
		}

		if entry.count >= maxRequests {
			retryAfter := time.Minute - now.Sub(entry.timestamp)
			mu.Unlock()
			c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Rate limit exceeded. Maximum %d requests per minute.", maxRequests),
			})
			return
		}

		entry.count++
		mu.Unlock()
		c.Next()
	}
}
