package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tasklane/tasklane/internal/pkg"
)

var errorTemplates = map[int]string{
	http.StatusBadRequest:          "errors/400.html",
	http.StatusNotFound:            "errors/404.html",
	http.StatusInternalServerError: "errors/500.html",
}

// renderError answers JSON clients with the envelope and browsers with the
// matching error page.
func renderError(c *gin.Context, code int, message string) {
	if !prefersHTML(c) {
		c.JSON(code, pkg.Response{Code: code, Message: message})
		return
	}
	renderErrorPage(c, code)
}

// renderErrorPage falls back to errors/500.html for unmapped codes and to
// plain text when the template cannot be rendered.
func renderErrorPage(c *gin.Context, code int) {
	name, ok := errorTemplates[code]
	if !ok {
		name = errorTemplates[http.StatusInternalServerError]
	}
	if !tryHTML(c, code, name) {
		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.Data(code, "text/plain; charset=utf-8", []byte(fmt.Sprintf("%d %s", code, http.StatusText(code))))
	}
}

// tryHTML reports whether the page was rendered. A nil HTML renderer panics
// inside gin; a missing template is recorded on c.Errors before anything is
// written.
func tryHTML(c *gin.Context, code int, name string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	errs := len(c.Errors)
	c.HTML(code, name, gin.H{"Status": code, "StatusText": http.StatusText(code)})
	return len(c.Errors) == errs || c.Writer.Written()
}

// prefersHTML treats browsers, wildcard and missing Accept headers as HTML
// clients unless JSON is asked for explicitly.
func prefersHTML(c *gin.Context) bool {
	accept := strings.ToLower(c.GetHeader("Accept"))
	if strings.Contains(accept, "text/html") {
		return true
	}
	if strings.Contains(accept, "application/json") {
		return false
	}
	return strings.Contains(accept, "*/*") || strings.TrimSpace(accept) == ""
}
