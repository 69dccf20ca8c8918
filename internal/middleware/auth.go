package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/logger"

	"github.com/tasklane/tasklane/internal/pkg"
)

const accountIDKey = "account_id"

// TokenVerifier validates a bearer token and returns the account it was
// issued to.
type TokenVerifier interface {
	Verify(token string) (accountID uint, err error)
}

// Auth requires a valid "Authorization: Bearer <token>" header on every
// request except those matching publicPaths. An entry ending in "*" matches
// by prefix; any other entry must match the path exactly.
//
// The verified account id is stored in the gin context (see AccountID) and
// attached to the request's log context.
func Auth(verifier TokenVerifier, publicPaths []string) gin.HandlerFunc {
	exact := make(map[string]struct{}, len(publicPaths))
	var prefixes []string
	for _, p := range publicPaths {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			prefixes = append(prefixes, prefix)
			continue
		}
		exact[p] = struct{}{}
	}

	isPublic := func(path string) bool {
		if _, ok := exact[path]; ok {
			return true
		}
		for _, p := range prefixes {
			if strings.HasPrefix(path, p) {
				return true
			}
		}
		return false
	}

	return func(c *gin.Context) {
		if isPublic(c.Request.URL.Path) {
			c.Next()
			return
		}

		scheme, token, _ := strings.Cut(c.GetHeader("Authorization"), " ")
		if !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.Header("WWW-Authenticate", `Bearer realm="api"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, pkg.Response{
				Code:    http.StatusUnauthorized,
				Message: "missing bearer token",
			})
			return
		}

		id, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			slog.DebugContext(c.Request.Context(), "token rejected", slog.Any("error", err))
			c.Header("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, pkg.Response{
				Code:    http.StatusUnauthorized,
				Message: "invalid or expired token",
			})
			return
		}

		c.Set(accountIDKey, id)
		c.Request = c.Request.WithContext(
			logger.WithContextAttrs(c.Request.Context(), slog.Uint64(accountIDKey, uint64(id))),
		)
		c.Next()
	}
}

// AccountID returns the authenticated account id, or 0 when the request was
// not authenticated (auth disabled or a public path).
func AccountID(c *gin.Context) uint {
	if v, ok := c.Get(accountIDKey); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
