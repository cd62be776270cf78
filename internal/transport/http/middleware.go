package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/auth"
	"github.com/vovakirdan/relaychat/internal/core"
)

const (
	// ContextKeySessionID is the context key for storing the session ID.
	ContextKeySessionID = "session_id"
	// ContextKeyUserID is the context key for storing the optional user ID.
	ContextKeyUserID = "user_id"
)

// AuthMiddleware validates the session token. Browsers cannot set headers on
// WebSocket handshakes, so the token is also accepted as the token query parameter.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			logger.Debug().Msg("missing or malformed authorization")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "missing authorization header",
				Code:  core.ErrCodeUnauthorized,
			})
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "invalid token",
				Code:  core.ErrCodeUnauthorized,
			})
			return
		}

		c.Set(ContextKeySessionID, claims.SessionID)
		c.Set(ContextKeyUserID, claims.UserID)

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	return requestToken(c.Request)
}

// requestToken reads the Authorization bearer or, failing that, the token query parameter.
func requestToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// RateLimitMiddleware rejects requests beyond the per-session send rate.
func RateLimitMiddleware(limiter *rateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.allow(c.GetString(ContextKeySessionID)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "too many messages, slow down",
				Code:  core.ErrCodeRateLimited,
			})
			return
		}
		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		// Log after request
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("session_id", c.GetString(ContextKeySessionID)).
			Msg("http request")
	}
}
