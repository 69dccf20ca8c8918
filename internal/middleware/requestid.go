package middleware

import (
	"log/slog"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/simp-lee/logger"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// RequestID assigns an identifier to every request. It is exposed in the
// X-Request-ID response header, stored in the gin context and attached to
// the request context so every slog record carries it.
//
// When trustUpstream is set, a well-formed incoming X-Request-ID is kept.
func RequestID(trustUpstream bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var id string
		if trustUpstream {
			if upstream := c.GetHeader(requestIDHeader); requestIDPattern.MatchString(upstream) {
				id = upstream
			}
		}
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(
			logger.WithContextAttrs(c.Request.Context(), slog.String(requestIDKey, id)),
		)

		c.Next()
	}
}

// GetRequestID returns the identifier set by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
