// Package api provides the HTTP API server for linelot.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linelot/linelot/internal/api/middleware"
	"github.com/linelot/linelot/internal/config"
)

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = 8080
	// MaxPort is the maximum valid port number.
	MaxPort = 65535
	// DefaultHost is the default server host.
	DefaultHost = "0.0.0.0"
	// DefaultTimeout is the default timeout for HTTP operations.
	DefaultTimeout = 30 * time.Second
	// DefaultLogLevel is the default log level.
	DefaultLogLevel = slog.LevelInfo
	// DefaultCORSMaxAge is the default CORS max age (24 hours).
	DefaultCORSMaxAge = 86400

	// DefaultMaxUploadSizeMB is MAX_UPLOAD_SIZE_MB's default (spec §6).
	DefaultMaxUploadSizeMB = 10
	// DefaultDBPoolSize is DB_POOL_SIZE's default (spec §6).
	DefaultDBPoolSize = 10
	// DefaultDBMaxOverflow is DB_MAX_OVERFLOW's default (spec §6).
	DefaultDBMaxOverflow = 20
	// DefaultRateLimitPerMinute is RATE_LIMIT_PER_MINUTE's default (spec §6).
	DefaultRateLimitPerMinute = 30
	// DefaultAutoGzipThreshold is AUTO_GZIP_THRESHOLD's default (spec §6).
	DefaultAutoGzipThreshold = 200
	// DefaultMaxRecordsWarn is the warn threshold of MAX_RECORDS_PER_REQUEST (spec §6).
	DefaultMaxRecordsWarn = 1500
	// DefaultMaxRecordsHardCap is the hard cap of MAX_RECORDS_PER_REQUEST (spec §6).
	DefaultMaxRecordsHardCap = 3000
)

// Static validation errors.
var (
	ErrInvalidPort            = errors.New("invalid port")
	ErrEmptyHost              = errors.New("host cannot be empty")
	ErrInvalidReadTimeout     = errors.New("read timeout must be positive")
	ErrInvalidWriteTimeout    = errors.New("write timeout must be positive")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
)

// ServerConfig holds HTTP server configuration, generalized from port/CORS
// concerns to the full ambient/domain env surface spec §6 describes.
type ServerConfig struct {
	Port               int
	Host               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	LogLevel           slog.Level
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int

	DatabaseURL string

	AuthMode            middleware.AuthMode
	AuthAPIKeyHeader    string
	AuthProtectPrefixes []string
	AuthExemptPaths     []string

	AuditEventsEnabled bool
	AuditEventsMethods []string

	UploadTempDir   string
	MaxUploadSizeMB int

	DBPoolSize    int
	DBMaxOverflow int

	RateLimitPerMinute int

	AutoGzipThreshold int
	MaxRecordsWarn    int
	MaxRecordsHardCap int
}

// LoadServerConfig loads server configuration from environment variables
// with sensible defaults.
func LoadServerConfig() ServerConfig {
	cfg := ServerConfig{
		Port:               DefaultPort,
		Host:               DefaultHost,
		ReadTimeout:        DefaultTimeout,
		WriteTimeout:       DefaultTimeout,
		ShutdownTimeout:    DefaultTimeout,
		LogLevel:           DefaultLogLevel,
		CORSAllowedOrigins: []string{"*"}, // Development default - should be restricted in production
		CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Correlation-ID", "X-API-Key", "X-Tenant-Id"},
		CORSMaxAge:         DefaultCORSMaxAge,

		DatabaseURL: config.GetEnvStr("DATABASE_URL", ""),

		AuthMode:            parseAuthMode(config.GetEnvStr("AUTH_MODE", "api_key")),
		AuthAPIKeyHeader:    config.GetEnvStr("AUTH_API_KEY_HEADER", "X-API-Key"),
		AuthProtectPrefixes: config.ParseCommaSeparatedList(config.GetEnvStr("AUTH_PROTECT_PREFIXES", "/api")),
		AuthExemptPaths: config.ParseCommaSeparatedList(
			config.GetEnvStr("AUTH_EXEMPT_PATHS", "/healthz,/docs,/openapi.json"),
		),

		AuditEventsEnabled: config.GetEnvBool("AUDIT_EVENTS_ENABLED", false),
		AuditEventsMethods: config.ParseCommaSeparatedList(
			config.GetEnvStr("AUDIT_EVENTS_METHODS", "POST,PUT,PATCH,DELETE"),
		),

		UploadTempDir:   config.GetEnvStr("UPLOAD_TEMP_DIR", ""),
		MaxUploadSizeMB: config.GetEnvInt("MAX_UPLOAD_SIZE_MB", DefaultMaxUploadSizeMB),

		DBPoolSize:    config.GetEnvInt("DB_POOL_SIZE", DefaultDBPoolSize),
		DBMaxOverflow: config.GetEnvInt("DB_MAX_OVERFLOW", DefaultDBMaxOverflow),

		RateLimitPerMinute: config.GetEnvInt("RATE_LIMIT_PER_MINUTE", DefaultRateLimitPerMinute),

		AutoGzipThreshold: config.GetEnvInt("AUTO_GZIP_THRESHOLD", DefaultAutoGzipThreshold),
		MaxRecordsWarn:    DefaultMaxRecordsWarn,
		MaxRecordsHardCap: DefaultMaxRecordsHardCap,
	}

	loadServerAddress(&cfg)
	loadTimeouts(&cfg)
	cfg.LogLevel = config.GetEnvLogLevel("LOG_LEVEL", DefaultLogLevel)
	loadCORSConfig(&cfg)

	if maxRecords := config.GetEnvInt("MAX_RECORDS_PER_REQUEST", 0); maxRecords > 0 {
		cfg.MaxRecordsHardCap = maxRecords
	}

	return cfg
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ToCORSConfig converts ServerConfig CORS fields to middleware.CORSConfig.
func (c ServerConfig) ToCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: c.CORSAllowedOrigins,
		AllowedMethods: c.CORSAllowedMethods,
		AllowedHeaders: c.CORSAllowedHeaders,
		MaxAge:         c.CORSMaxAge,
	}
}

// ToAuthConfig converts ServerConfig auth fields to middleware.AuthConfig.
func (c ServerConfig) ToAuthConfig() middleware.AuthConfig {
	return middleware.AuthConfig{
		Mode:             c.AuthMode,
		APIKeyHeaderName: c.AuthAPIKeyHeader,
		ProtectPrefixes:  c.AuthProtectPrefixes,
		ExemptPaths:      c.AuthExemptPaths,
	}
}

// ToAuditConfig converts ServerConfig audit fields to middleware.AuditConfig.
func (c ServerConfig) ToAuditConfig() middleware.AuditConfig {
	return middleware.AuditConfig{
		Enabled: c.AuditEventsEnabled,
		Methods: c.AuditEventsMethods,
	}
}

// ToRateLimitConfig converts ServerConfig rate limit fields to middleware.Config.
func (c ServerConfig) ToRateLimitConfig() *middleware.Config {
	cfg := middleware.LoadConfig()
	cfg.RequestsPerMinute = c.RateLimitPerMinute

	return cfg
}

// CORSConfig holds CORS configuration options and implements
// middleware.CORSConfig.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// GetAllowedOrigins returns the allowed origins for CORS.
func (c CORSConfig) GetAllowedOrigins() []string { return c.AllowedOrigins }

// GetAllowedMethods returns the allowed methods for CORS.
func (c CORSConfig) GetAllowedMethods() []string { return c.AllowedMethods }

// GetAllowedHeaders returns the allowed headers for CORS.
func (c CORSConfig) GetAllowedHeaders() []string { return c.AllowedHeaders }

// GetMaxAge returns the max age for CORS preflight cache.
func (c CORSConfig) GetMaxAge() int { return c.MaxAge }

// Validate validates the server configuration.
func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > MaxPort {
		return fmt.Errorf("%w: %d, must be between 1 and %d", ErrInvalidPort, c.Port, MaxPort)
	}

	if c.Host == "" {
		return ErrEmptyHost
	}

	if c.ReadTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidReadTimeout, c.ReadTimeout)
	}

	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidWriteTimeout, c.WriteTimeout)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidShutdownTimeout, c.ShutdownTimeout)
	}

	return nil
}

func parseAuthMode(v string) middleware.AuthMode {
	if v == string(middleware.AuthModeOff) {
		return middleware.AuthModeOff
	}

	return middleware.AuthModeAPIKey
}

// loadServerAddress loads server address configuration from environment variables.
func loadServerAddress(cfg *ServerConfig) {
	cfg.Port = config.GetEnvInt("LINELOT_PORT", cfg.Port)
	cfg.Host = config.GetEnvStr("LINELOT_HOST", cfg.Host)
}

// loadTimeouts loads timeout configuration from environment variables.
func loadTimeouts(cfg *ServerConfig) {
	cfg.ReadTimeout = config.GetEnvDuration("LINELOT_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = config.GetEnvDuration("LINELOT_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.ShutdownTimeout = config.GetEnvDuration("LINELOT_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
}

// loadCORSConfig loads CORS configuration from environment variables.
func loadCORSConfig(cfg *ServerConfig) {
	if origins := config.GetEnvStr("LINELOT_CORS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.CORSAllowedOrigins = config.ParseCommaSeparatedList(origins)
	}

	if methods := config.GetEnvStr("LINELOT_CORS_ALLOWED_METHODS", ""); methods != "" {
		cfg.CORSAllowedMethods = config.ParseCommaSeparatedList(methods)
	}

	if headers := config.GetEnvStr("LINELOT_CORS_ALLOWED_HEADERS", ""); headers != "" {
		cfg.CORSAllowedHeaders = config.ParseCommaSeparatedList(headers)
	}

	cfg.CORSMaxAge = config.GetEnvInt("LINELOT_CORS_MAX_AGE", cfg.CORSMaxAge)
}
