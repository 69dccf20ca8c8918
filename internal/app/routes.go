package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tasklane/tasklane/internal/middleware"
	"github.com/tasklane/tasklane/internal/pkg"
)

const healthPingTimeout = time.Second

// RouteDeps holds everything RegisterRoutes needs.
type RouteDeps struct {
	Modules    []Module
	DB         *gorm.DB
	Mode       string
	CSRFSecret string
	// WebFS holds the static/ directory served under /static/.
	WebFS fs.FS
	// Verifier enables bearer authentication on /api/v1 when non-nil.
	Verifier    middleware.TokenVerifier
	PublicPaths []string
}

// RegisterRoutes mounts static assets, the health check, the home page and
// every module's API and page routes.
func RegisterRoutes(r *gin.Engine, deps *RouteDeps) error {
	if r == nil {
		return errors.New("router is nil")
	}
	if deps == nil {
		return errors.New("route dependencies are nil")
	}
	if len(deps.Modules) == 0 {
		return errors.New("at least one module is required")
	}
	if strings.TrimSpace(deps.CSRFSecret) == "" {
		return errors.New("csrf secret is required")
	}

	if deps.WebFS != nil {
		if err := registerStaticRoutes(r, deps.WebFS, deps.Mode); err != nil {
			return fmt.Errorf("register static routes: %w", err)
		}
	}

	r.GET("/health", healthHandler(deps.DB))

	csrf := middleware.CSRF(deps.CSRFSecret)
	r.GET("/", csrf, func(c *gin.Context) {
		c.HTML(http.StatusOK, "home.html", gin.H{
			"CSRFToken": middleware.GetCSRFToken(c),
		})
	})

	api := r.Group("/api/v1")
	if deps.Verifier != nil {
		api.Use(middleware.Auth(deps.Verifier, deps.PublicPaths))
	}
	pages := r.Group("/", csrf)

	for i, m := range deps.Modules {
		if m == nil {
			return fmt.Errorf("module at index %d is nil", i)
		}
		m.RegisterRoutes(api, pages)
	}

	r.NoRoute(noRouteHandler())
	return nil
}

// healthHandler reports 503 when the database cannot be pinged.
func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "ok"
		if err := pingDB(c.Request.Context(), db); err != nil {
			dbStatus = "error"
		}

		status, code := "ok", http.StatusOK
		if dbStatus != "ok" {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":     status,
			"components": gin.H{"database": dbStatus},
		})
	}
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("no database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// noRouteHandler answers JSON under /api/ and an error page elsewhere.
func noRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, pkg.Response{Code: http.StatusNotFound, Message: "not found"})
			return
		}
		renderError(c, http.StatusNotFound, "not found")
	}
}

func registerStaticRoutes(r *gin.Engine, webFS fs.FS, mode string) error {
	staticFS, err := fs.Sub(webFS, "static")
	if err != nil {
		return err
	}
	// Debug mode reads from disk, so nothing may be cached.
	cacheControl := "no-cache"
	if mode != gin.DebugMode {
		cacheControl = "public, max-age=86400"
	}
	r.GET("/static/*filepath", staticHandler(http.FS(staticFS), cacheControl))
	return nil
}

func staticHandler(fsys http.FileSystem, cacheControl string) gin.HandlerFunc {
	fileServer := http.StripPrefix("/static", http.FileServer(fsys))
	return func(c *gin.Context) {
		c.Header("Cache-Control", cacheControl)
		fileServer.ServeHTTP(c.Writer, c.Request)
	}
}
