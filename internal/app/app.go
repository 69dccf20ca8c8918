package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/logger"
	"gorm.io/gorm"

	"github.com/tasklane/tasklane/internal/config"
	"github.com/tasklane/tasklane/internal/middleware"
	"github.com/tasklane/tasklane/internal/module/auth"
	"github.com/tasklane/tasklane/internal/module/task"
	"github.com/tasklane/tasklane/internal/module/user"
	"github.com/tasklane/tasklane/web"
)

const shutdownTimeout = 5 * time.Second

// App holds the wired engine and the resources it must release on exit.
type App struct {
	engine  *gin.Engine
	db      *gorm.DB
	logger  *logger.Logger
	cfg     *config.Config
	modules []Module
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

var newHTTPServer = func(addr string, handler http.Handler) httpServer {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

var notifyContext = func(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

// New is the composition root. It builds the logger and database, wires
// every module explicitly, migrates their models and mounts their routes.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := validateGinMode(cfg.Server.Mode); err != nil {
		return nil, err
	}

	csrfSecret, err := resolveCSRFSecret(cfg.Server.Mode, cfg.Server.CSRFSecret)
	if err != nil {
		return nil, err
	}

	success := false

	log, err := config.SetupLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	defer func() {
		if !success {
			_ = log.Close()
		}
	}()

	if cfg.Server.Mode == gin.DebugMode && cfg.Server.Host == "0.0.0.0" {
		log.Warn("insecure server config: debug mode on 0.0.0.0 exposes permissive CORS")
	}

	db, err := config.SetupDatabase(&cfg.Database, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}
	defer func() {
		if !success {
			if err := config.CloseDatabase(db); err != nil {
				slog.Error("database close error", slog.Any("error", err))
			}
		}
	}()

	modules, verifier, err := buildModules(db, &cfg.Auth)
	if err != nil {
		return nil, err
	}

	if cfg.Server.Mode == gin.DebugMode || cfg.Database.AutoMigrate {
		if err := migrate(db, modules); err != nil {
			return nil, err
		}
		log.Info("auto migration completed", slog.Int("modules", len(modules)))
	}

	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()

	handlers := []gin.HandlerFunc{
		middleware.Recovery(log.Logger),
		middleware.RequestID(false),
		middleware.AccessLog(log.Logger, "/static/"),
		middleware.CORS(resolveCORSOptions(cfg.Server.Mode, cfg.Server.CORS)),
	}
	if rl := cfg.Server.RateLimit; rl.Enabled {
		handlers = append(handlers, middleware.RateLimit(middleware.NewClientLimiter(rl.RPS, rl.Burst)))
	}
	handlers = append(handlers, middleware.Timeout(cfg.Server.TimeoutDuration()))
	engine.Use(handlers...)

	debug := cfg.Server.Mode == gin.DebugMode
	var webFS fs.FS = web.EmbeddedFS
	if debug {
		if webFS, err = resolveDebugWebFS(); err != nil {
			return nil, fmt.Errorf("resolve debug web fs: %w", err)
		}
	}
	renderer, err := NewTemplateRenderer(webFS, debug)
	if err != nil {
		return nil, fmt.Errorf("setup template renderer: %w", err)
	}
	engine.HTMLRender = renderer

	if csrfSecret != cfg.Server.CSRFSecret {
		log.Warn("no csrf_secret configured, using a random secret until restart")
	}

	deps := &RouteDeps{
		Modules:    modules,
		DB:         db,
		Mode:       cfg.Server.Mode,
		CSRFSecret: csrfSecret,
		WebFS:      webFS,
	}
	if verifier != nil {
		deps.Verifier = verifier
		deps.PublicPaths = cfg.Auth.PublicPaths
	}
	if err := RegisterRoutes(engine, deps); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	names := make([]string, len(modules))
	for i, m := range modules {
		names[i] = m.Name()
	}
	log.Info("application wired", slog.Any("modules", names), slog.Bool("auth", verifier != nil))

	success = true
	return &App{engine: engine, db: db, logger: log, cfg: cfg, modules: modules}, nil
}

// buildModules wires the task module, plus the account modules when
// authentication is enabled. verifier is nil when auth is disabled.
func buildModules(db *gorm.DB, cfg *config.AuthConfig) ([]Module, middleware.TokenVerifier, error) {
	modules := []Module{task.Wire(db)}
	if !cfg.Enabled {
		return modules, nil, nil
	}

	issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.Issuer, cfg.TokenExpiryDuration())
	if err != nil {
		return nil, nil, fmt.Errorf("setup token issuer: %w", err)
	}
	modules = append(modules, user.Wire(db), auth.Wire(db, issuer))
	return modules, issuer, nil
}

func migrate(db *gorm.DB, modules []Module) error {
	models, err := collectModels(modules)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return nil
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func isPlaceholderSecret(secret string) bool {
	switch strings.ToLower(strings.TrimSpace(secret)) {
	case "", "change-me-to-a-random-secret", "change-me-in-env":
		return true
	}
	return false
}

// resolveCSRFSecret rejects placeholder secrets in release mode and replaces
// them with a random one otherwise.
func resolveCSRFSecret(mode, secret string) (string, error) {
	if !isPlaceholderSecret(secret) {
		return secret, nil
	}
	if mode == gin.ReleaseMode {
		return "", errors.New("csrf_secret must be a non-placeholder value in release mode")
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// resolveCORSOptions starts from the permissive defaults and applies the
// configured values. Release mode without an allowlist denies cross-origin
// requests.
func resolveCORSOptions(mode string, cfg config.CORSConfig) middleware.CORSOptions {
	opts := middleware.DefaultCORSOptions()

	switch {
	case len(cfg.AllowOrigins) > 0:
		opts.AllowOrigins = cfg.AllowOrigins
	case mode == gin.ReleaseMode:
		opts.AllowOrigins = nil
	}
	if len(cfg.AllowMethods) > 0 {
		opts.AllowMethods = cfg.AllowMethods
	}
	if len(cfg.AllowHeaders) > 0 {
		opts.AllowHeaders = cfg.AllowHeaders
	}
	opts.AllowCredentials = cfg.AllowCredentials
	if d, err := time.ParseDuration(cfg.MaxAge); err == nil && d > 0 {
		opts.MaxAge = strconv.Itoa(int(d / time.Second))
	}
	return opts
}

func validateGinMode(mode string) error {
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		return nil
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}
}

// resolveDebugWebFS finds web/ on disk so templates and assets hot reload:
// next to the source tree first, then next to the executable.
func resolveDebugWebFS() (fs.FS, error) {
	var candidates []string
	if _, file, _, ok := runtime.Caller(0); ok {
		candidates = append(candidates, filepath.Join(filepath.Dir(file), "..", "..", "web"))
	}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "web"))
	}
	for _, dir := range candidates {
		if stat, err := os.Stat(dir); err == nil && stat.IsDir() {
			return os.DirFS(filepath.Clean(dir)), nil
		}
	}
	return nil, errors.New("debug web directory not found")
}

// Engine exposes the wired router, mainly for tests.
func (a *App) Engine() http.Handler {
	return a.engine
}

// Run serves HTTP until SIGINT or SIGTERM, then shuts down gracefully and
// releases the database and logger.
func (a *App) Run() error {
	if a == nil || a.cfg == nil || a.engine == nil {
		return errors.New("app is not initialized")
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := newHTTPServer(addr, a.engine)
	log := a.log()

	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", slog.Any("error", err))
		}
		cancel()
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	a.close()
	return runErr
}

func (a *App) close() {
	log := a.log()
	if a.db != nil {
		if err := config.CloseDatabase(a.db); err != nil {
			log.Error("database close error", slog.Any("error", err))
		} else {
			log.Info("database connection closed")
		}
	}
	log.Info("server stopped")
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}
}

func (a *App) log() *slog.Logger {
	if a.logger != nil {
		return a.logger.Logger
	}
	return slog.Default()
}
