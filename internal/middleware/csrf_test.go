package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

const testCSRFSecret = "test-secret-key-for-csrf"

func csrfRouter(secret string) *gin.Engine {
	r := gin.New()
	r.Use(CSRF(secret))
	r.GET("/tasks/new", func(c *gin.Context) { c.String(http.StatusOK, GetCSRFToken(c)) })
	r.POST("/tasks", func(c *gin.Context) { c.String(http.StatusCreated, "created") })
	r.PATCH("/tasks/:id/status", func(c *gin.Context) { c.String(http.StatusOK, "patched") })
	r.DELETE("/tasks/:id", func(c *gin.Context) { c.String(http.StatusOK, "deleted") })
	return r
}

func fetchCSRF(t *testing.T, r *gin.Engine) (token string, cookie *http.Cookie) {
	t.Helper()
	w := serve(r, httptest.NewRequest(http.MethodGet, "/tasks/new", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d", w.Code)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("csrf cookie not set")
	}
	return w.Body.String(), cookie
}

func TestCSRF_IssuesSignedToken(t *testing.T) {
	r := csrfRouter(testCSRFSecret)
	token, cookie := fetchCSRF(t, r)

	if token == "" || token != cookie.Value {
		t.Fatalf("token %q does not match cookie %q", token, cookie.Value)
	}
	if !(csrfSigner{secret: []byte(testCSRFSecret)}).valid(token) {
		t.Error("issued token has an invalid signature")
	}
	if cookie.HttpOnly {
		t.Error("cookie must be readable by htmx")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("SameSite = %v; want Strict", cookie.SameSite)
	}
}

func TestCSRF_ReusesValidCookie(t *testing.T) {
	r := csrfRouter(testCSRFSecret)
	_, cookie := fetchCSRF(t, r)

	req := httptest.NewRequest(http.MethodGet, "/tasks/new", nil)
	req.AddCookie(cookie)
	w := serve(r, req)

	if w.Body.String() != cookie.Value {
		t.Errorf("token rotated: %q != %q", w.Body.String(), cookie.Value)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("valid cookie should not be reissued")
	}
}

func TestCSRF_ReplacesForgedCookie(t *testing.T) {
	r := csrfRouter(testCSRFSecret)
	req := httptest.NewRequest(http.MethodGet, "/tasks/new", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "abc.forged"})
	w := serve(r, req)

	if w.Body.String() == "abc.forged" {
		t.Error("forged cookie must not be accepted")
	}
}

func TestCSRF_UnsafeMethods(t *testing.T) {
	r := csrfRouter(testCSRFSecret)
	token, cookie := fetchCSRF(t, r)
	_, other := fetchCSRF(t, r)

	tests := []struct {
		name   string
		method string
		path   string
		cookie *http.Cookie
		header string
		form   string
		want   int
	}{
		{"form field", http.MethodPost, "/tasks", cookie, "", token, http.StatusCreated},
		{"htmx header", http.MethodPatch, "/tasks/1/status", cookie, token, "", http.StatusOK},
		{"delete with header", http.MethodDelete, "/tasks/1", cookie, token, "", http.StatusOK},
		{"no cookie", http.MethodPost, "/tasks", nil, token, "", http.StatusForbidden},
		{"no token", http.MethodPost, "/tasks", cookie, "", "", http.StatusForbidden},
		{"token from other session", http.MethodPost, "/tasks", other, token, "", http.StatusForbidden},
		{"tampered token", http.MethodPost, "/tasks", cookie, token + "x", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body *strings.Reader
			if tt.form != "" {
				body = strings.NewReader(url.Values{csrfFormField: {tt.form}}.Encode())
			} else {
				body = strings.NewReader("")
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			if w := serve(r, req); w.Code != tt.want {
				t.Errorf("status = %d; want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestCSRF_EmptySecret(t *testing.T) {
	w := serve(csrfRouter("  "), httptest.NewRequest(http.MethodGet, "/tasks/new", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d; want 500", w.Code)
	}
}

func TestCSRFSigner_Valid(t *testing.T) {
	s := csrfSigner{secret: []byte(testCSRFSecret)}
	token, err := s.issue()
	if err != nil {
		t.Fatalf("issue() error: %v", err)
	}
	if !s.valid(token) {
		t.Error("fresh token should be valid")
	}
	for _, bad := range []string{"", "nodot", ".sig", "nonce.", token + "=="} {
		if s.valid(bad) {
			t.Errorf("valid(%q) = true", bad)
		}
	}
	if (csrfSigner{secret: []byte("other")}).valid(token) {
		t.Error("token must not validate under a different secret")
	}
}
