package config

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable that overrides configuration.
const EnvPrefix = "APP__"

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host       string          `koanf:"host"`
	Port       int             `koanf:"port"`
	Mode       string          `koanf:"mode"`
	CSRFSecret string          `koanf:"csrf_secret"`
	Timeout    string          `koanf:"timeout"`
	CORS       CORSConfig      `koanf:"cors"`
	RateLimit  RateLimitConfig `koanf:"rate_limit"`
}

// CORSConfig holds CORS middleware settings.
type CORSConfig struct {
	AllowOrigins     []string `koanf:"allow_origins"`
	AllowMethods     []string `koanf:"allow_methods"`
	AllowHeaders     []string `koanf:"allow_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           string   `koanf:"max_age"`
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver      string         `koanf:"driver"`
	AutoMigrate bool           `koanf:"auto_migrate"`
	SQLite      SQLiteConfig   `koanf:"sqlite"`
	Postgres    PostgresConfig `koanf:"postgres"`
	Pool        PoolConfig     `koanf:"pool"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	SSLMode  string `koanf:"sslmode"`
}

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	ConnMaxLifetime string `koanf:"conn_max_lifetime"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level           string `koanf:"level"`
	Format          string `koanf:"format"`
	Color           *bool  `koanf:"color"`
	FilePath        string `koanf:"file_path"`
	MaxSizeMB       int    `koanf:"max_size_mb"`
	RetentionDays   int    `koanf:"retention_days"`
	MaxBackups      int    `koanf:"max_backups"`
	CompressRotated *bool  `koanf:"compress_rotated"`
}

// AuthConfig holds bearer-token authentication settings.
type AuthConfig struct {
	Enabled     bool     `koanf:"enabled"`
	JWTSecret   string   `koanf:"jwt_secret"`
	Issuer      string   `koanf:"issuer"`
	TokenExpiry string   `koanf:"token_expiry"`
	PublicPaths []string `koanf:"public_paths"`
}

// Paths that must stay reachable without a token when auth is enabled.
var requiredPublicPaths = []string{"/api/v1/auth/login", "/api/v1/auth/register"}

// Load reads configuration from a YAML file and overlays environment variables.
// Environment variables use the prefix "APP__" and double-underscore as the
// hierarchy separator; single underscores stay part of the key, so
// APP__DATABASE__POOL__MAX_IDLE_CONNS=20 sets database.pool.max_idle_conns.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKey maps APP__SERVER__PORT to server.port.
func envKey(s string) string {
	key := strings.TrimPrefix(s, EnvPrefix)
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, "__", ".")
}

// Validate checks cross-field constraints and supported values. It also
// normalises whitespace in the fields it checks.
func (c *Config) Validate() error {
	if err := c.Server.validate(); err != nil {
		return err
	}
	if err := c.Database.validate(c.Server.Mode); err != nil {
		return err
	}
	if err := c.Auth.validate(c.Server.Mode); err != nil {
		return err
	}
	return c.Log.validate()
}

func (s *ServerConfig) validate() error {
	mode := strings.TrimSpace(s.Mode)
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		s.Mode = mode
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", s.Mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}

	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", s.Port)
	}

	host := strings.TrimSpace(s.Host)
	if host == "" {
		return fmt.Errorf("server.host is required")
	}
	s.Host = host

	s.Timeout = strings.TrimSpace(s.Timeout)
	if _, err := optionalDuration("server.timeout", s.Timeout); err != nil {
		return err
	}

	s.CORS.MaxAge = strings.TrimSpace(s.CORS.MaxAge)
	if _, err := optionalDuration("server.cors.max_age", s.CORS.MaxAge); err != nil {
		return err
	}

	if s.RateLimit.Enabled {
		if s.RateLimit.RPS <= 0 {
			return fmt.Errorf("invalid server.rate_limit.rps %v: must be positive when rate limiting is enabled", s.RateLimit.RPS)
		}
		if s.RateLimit.Burst <= 0 {
			return fmt.Errorf("invalid server.rate_limit.burst %d: must be positive when rate limiting is enabled", s.RateLimit.Burst)
		}
	}
	return nil
}

func (d *DatabaseConfig) validate(mode string) error {
	switch d.Driver {
	case "sqlite":
		path := strings.TrimSpace(d.SQLite.Path)
		if path == "" {
			return fmt.Errorf("database.sqlite.path is required when driver is sqlite")
		}
		d.SQLite.Path = path
	case "postgres":
		if err := d.Postgres.validate(mode); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid database.driver %q: must be one of %q, %q", d.Driver, "sqlite", "postgres")
	}

	if d.Pool.MaxIdleConns < 0 {
		return fmt.Errorf("invalid database.pool.max_idle_conns %d: must not be negative", d.Pool.MaxIdleConns)
	}
	if d.Pool.MaxOpenConns < 0 {
		return fmt.Errorf("invalid database.pool.max_open_conns %d: must not be negative", d.Pool.MaxOpenConns)
	}

	d.Pool.ConnMaxLifetime = strings.TrimSpace(d.Pool.ConnMaxLifetime)
	_, err := optionalDuration("database.pool.conn_max_lifetime", d.Pool.ConnMaxLifetime)
	return err
}

func (p *PostgresConfig) validate(mode string) error {
	host := strings.TrimSpace(p.Host)
	if host == "" {
		return fmt.Errorf("database.postgres.host is required when driver is postgres")
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("invalid database.postgres.port %d: must be between 1 and 65535", p.Port)
	}
	user := strings.TrimSpace(p.User)
	if user == "" {
		return fmt.Errorf("database.postgres.user is required when driver is postgres")
	}
	dbName := strings.TrimSpace(p.DBName)
	if dbName == "" {
		return fmt.Errorf("database.postgres.dbname is required when driver is postgres")
	}

	sslMode := strings.TrimSpace(p.SSLMode)
	switch sslMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("invalid database.postgres.sslmode %q: must be one of %q, %q, %q, %q, %q, %q", p.SSLMode, "disable", "allow", "prefer", "require", "verify-ca", "verify-full")
	}
	if mode == gin.ReleaseMode {
		switch sslMode {
		case "require", "verify-ca", "verify-full":
		default:
			return fmt.Errorf("invalid database.postgres.sslmode %q for server.mode %q: must be one of %q, %q, %q", p.SSLMode, gin.ReleaseMode, "require", "verify-ca", "verify-full")
		}
	}

	p.Host = host
	p.User = user
	p.DBName = dbName
	p.SSLMode = sslMode
	return nil
}

func (a *AuthConfig) validate(mode string) error {
	if !a.Enabled {
		return nil
	}

	secret := strings.TrimSpace(a.JWTSecret)
	if secret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if len(secret) < 32 {
		return fmt.Errorf("invalid auth.jwt_secret: must be at least 32 characters")
	}
	if mode == gin.ReleaseMode && CountSecretClasses(secret) < 3 {
		return fmt.Errorf("auth.jwt_secret must include at least 3 character classes (lowercase, uppercase, digit, symbol) in release mode")
	}
	a.JWTSecret = secret
	a.Issuer = strings.TrimSpace(a.Issuer)

	expiry := strings.TrimSpace(a.TokenExpiry)
	if expiry == "" {
		return fmt.Errorf("auth.token_expiry is required when auth is enabled")
	}
	if _, err := optionalDuration("auth.token_expiry", expiry); err != nil {
		return err
	}
	a.TokenExpiry = expiry

	paths := make([]string, 0, len(a.PublicPaths))
	seen := make(map[string]struct{}, len(a.PublicPaths))
	for idx, p := range a.PublicPaths {
		path := strings.TrimSpace(p)
		if path == "" {
			return fmt.Errorf("auth.public_paths[%d] cannot be empty when auth is enabled", idx)
		}
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("invalid auth.public_paths[%d] %q: must start with '/'", idx, p)
		}
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		paths = append(paths, path)
	}
	for _, required := range requiredPublicPaths {
		if _, ok := seen[required]; !ok {
			return fmt.Errorf("auth.public_paths must include %q when auth is enabled", required)
		}
	}
	a.PublicPaths = paths
	return nil
}

func (l *LogConfig) validate() error {
	level := strings.ToLower(strings.TrimSpace(l.Level))
	switch level {
	case "debug", "info", "warn", "error":
		l.Level = level
	default:
		return fmt.Errorf("invalid log.level %q: must be one of %q, %q, %q, %q", l.Level, "debug", "info", "warn", "error")
	}

	format := strings.ToLower(strings.TrimSpace(l.Format))
	switch format {
	case "text", "json":
		l.Format = format
	default:
		return fmt.Errorf("invalid log.format %q: must be one of %q, %q", l.Format, "text", "json")
	}
	return nil
}

// TimeoutDuration returns the parsed server.timeout, or 0 when unset.
func (s ServerConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(s.Timeout)
	return d
}

// TokenExpiryDuration returns the parsed auth.token_expiry, or 0 when unset.
func (a AuthConfig) TokenExpiryDuration() time.Duration {
	d, _ := time.ParseDuration(a.TokenExpiry)
	return d
}

// optionalDuration parses v when non-empty and requires it to be positive.
func optionalDuration(name, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be greater than 0", name, v)
	}
	return d, nil
}

// CountSecretClasses counts how many character classes (lowercase, uppercase,
// digit, symbol) are present in secret.
func CountSecretClasses(secret string) int {
	var lower, upper, digit, symbol bool
	for _, r := range secret {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	classes := 0
	for _, present := range []bool{lower, upper, digit, symbol} {
		if present {
			classes++
		}
	}
	return classes
}
