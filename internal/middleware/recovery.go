package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tasklane/tasklane/internal/pkg"
)

// Recovery turns a panic in a later handler into a 500 response. The panic
// value and stack are logged; clients get the errors/500.html page when they
// accept HTML and the standard JSON envelope otherwise.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			log.ErrorContext(c.Request.Context(), "panic recovered",
				slog.Any("panic", rec),
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
				slog.String("stack", string(debug.Stack())),
			)

			c.Abort()
			if c.Writer.Written() {
				return
			}
			if acceptsHTML(c) {
				renderErrorPage(c, http.StatusInternalServerError)
				return
			}
			c.JSON(http.StatusInternalServerError, pkg.Response{
				Code:    http.StatusInternalServerError,
				Message: "internal server error",
			})
		}()
		c.Next()
	}
}

// renderErrorPage renders errors/<status>.html, falling back to plain text
// when no HTML renderer is configured.
func renderErrorPage(c *gin.Context, status int) {
	defer func() {
		if recover() != nil {
			c.Data(status, "text/plain; charset=utf-8", []byte(http.StatusText(status)))
		}
	}()
	c.HTML(status, fmt.Sprintf("errors/%d.html", status), gin.H{})
}

func acceptsHTML(c *gin.Context) bool {
	return strings.Contains(strings.ToLower(c.GetHeader("Accept")), "text/html")
}
