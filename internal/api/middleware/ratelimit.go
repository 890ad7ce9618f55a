package middleware

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shuttle-backend/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware creates a rate limiting middleware. Categories are
// resolved from the matched route template, so it must be attached to
// groups or routes rather than the engine's NoRoute handler.
func RateLimitMiddleware(limiter ratelimit.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		category := ratelimit.CategoryFor(c.Request.Method, c.FullPath())
		clientID := getClientID(c, category)

		allowed, resetTime, err := limiter.Allow(c.Request.Context(), clientID, category)
		if err != nil {
			// Fail open: the limiter is a guard, not a dependency
			log.Printf("Rate limiter unavailable: %v", err)
			c.Header("X-RateLimit-Error", "Rate limiter unavailable")
			c.Next()
			return
		}

		setRateLimitHeaders(c, limiter.Limit(category), allowed, resetTime)

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":    false,
				"message":    "Rate limit exceeded",
				"error":      fmt.Sprintf("Too many requests. Try again in %v", resetTime),
				"code":       "RATE_LIMIT_EXCEEDED",
				"retryAfter": int(resetTime.Seconds()),
			})
			return
		}

		c.Next()
	}
}

// getClientID picks the bucket owner: the vehicle for telemetry, the
// authenticated user otherwise, and the client IP for anonymous calls.
func getClientID(c *gin.Context, category string) string {
	if category == ratelimit.CategoryTelemetry {
		if id := c.Param("id"); id != "" {
			return "vehicle:" + id
		}
	}

	if uid := c.GetString("user_id"); uid != "" {
		return "user:" + uid
	}

	return "anon:" + getClientIP(c)
}

// getClientIP extracts the real client IP address
func getClientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		ip, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(ip)
	}

	if realIP := c.GetHeader("X-Real-IP"); realIP != "" {
		return realIP
	}

	return c.ClientIP()
}

// setRateLimitHeaders sets standard rate limiting headers
func setRateLimitHeaders(c *gin.Context, limit ratelimit.RateLimit, allowed bool, resetTime time.Duration) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit.RequestsPerMinute))
	c.Header("X-RateLimit-Window", strconv.Itoa(int(limit.WindowSize.Seconds())))
	c.Header("X-RateLimit-Burst", strconv.Itoa(limit.BurstSize))

	if !allowed {
		c.Header("Retry-After", strconv.Itoa(int(resetTime.Seconds())))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(resetTime).Unix(), 10))
	}
}
