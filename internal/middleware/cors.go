package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSOptions configures CORS.
type CORSOptions struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds, as sent on the wire.
	MaxAge string
}

// DefaultCORSOptions allows any origin; meant for debug mode only.
func DefaultCORSOptions() CORSOptions {
	return CORSOptions{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"X-Requested-With", "X-CSRF-Token", "X-Request-ID",
			"HX-Request", "HX-Current-URL", "HX-Target", "HX-Trigger",
		},
		MaxAge: "86400",
	}
}

// CORS answers cross-origin requests whose Origin is allowed by opts and
// short-circuits preflight OPTIONS requests with 204. Requests from other
// origins pass through without CORS headers.
func CORS(opts CORSOptions) gin.HandlerFunc {
	wildcard := false
	allowed := make(map[string]struct{}, len(opts.AllowOrigins))
	for _, o := range opts.AllowOrigins {
		if o == "*" {
			wildcard = true
			continue
		}
		allowed[o] = struct{}{}
	}
	methods := strings.Join(opts.AllowMethods, ", ")
	headers := strings.Join(opts.AllowHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		c.Writer.Header().Add("Vary", "Origin")

		_, listed := allowed[origin]
		switch {
		case listed, wildcard && opts.AllowCredentials:
			c.Header("Access-Control-Allow-Origin", origin)
		case wildcard:
			c.Header("Access-Control-Allow-Origin", "*")
		default:
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)
		c.Header("Access-Control-Expose-Headers", requestIDHeader)
		if opts.MaxAge != "" {
			c.Header("Access-Control-Max-Age", opts.MaxAge)
		}
		if opts.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
