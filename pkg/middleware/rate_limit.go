package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/doctrack/doctrack/internal/document"
	"github.com/doctrack/doctrack/internal/ratelimit"
	"github.com/doctrack/doctrack/pkg/logger"
	"github.com/doctrack/doctrack/pkg/metrics"
)

// ClientKey identifies the caller for rate limiting. Gin resolves the IP
// honoring the engine's trusted proxy settings.
func ClientKey(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// Limit returns a Gin middleware admitting requests through limiter under scope.
// Rejected requests get 429 with Retry-After set to the window length. A
// failing limiter backend yields 503 rather than letting the request through.
func Limit(limiter ratelimit.Limiter, scope ratelimit.Scope) gin.HandlerFunc {
	window := scope.Window
	if window <= 0 {
		window = ratelimit.DefaultWindow
	}
	retryAfter := strconv.Itoa(int(window.Seconds()))

	return func(c *gin.Context) {
		err := limiter.Allow(c.Request.Context(), scope, ClientKey(c))
		switch {
		case err == nil:
			metrics.ObserveRateLimit(scope.Name, limiter.Backend(), true)
			c.Next()
		case errors.Is(err, document.ErrRateLimited):
			metrics.ObserveRateLimit(scope.Name, limiter.Backend(), false)
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "Rate limit exceeded"})
		default:
			logger.Errorf("rate limit check for %s failed: %v", scope.Name, err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"detail": "Rate limit check failed"})
		}
	}
}
