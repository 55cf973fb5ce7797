package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request
		c.Next()

		// Log after request
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("remote", c.ClientIP()).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

// RateLimitMiddleware rejects requests beyond limit per minute with 429.
func RateLimitMiddleware(limit int, logger *zerolog.Logger) gin.HandlerFunc {
	limiter := newRateLimiter(limit)
	return func(c *gin.Context) {
		if !limiter.allow() {
			logger.Debug().Str("path", c.Request.URL.Path).Msg("monitor rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
