package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/fieldops/pkg/assessment"
	"github.com/platinummonkey/fieldops/pkg/audit"
	"github.com/platinummonkey/fieldops/pkg/middleware"
	"github.com/platinummonkey/fieldops/pkg/observability"
	"github.com/platinummonkey/fieldops/pkg/storage"
)

// ConfigFileEnv names the environment variable pointing at an optional YAML file
const ConfigFileEnv = "FIELDOPS_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage storage.Config `yaml:"storage"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`

	Audit      AuditConfig       `yaml:"audit"`
	Assessment assessment.Config `yaml:"assessment"`
	Sessions   SessionConfig     `yaml:"sessions"`
	RateLimit  RateLimitConfig   `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`

	// MaxBodyBytes caps JSON request bodies; photo uploads are bounded by the
	// assessment photo limits instead
	MaxBodyBytes int64    `yaml:"max_body_bytes"`
	CORSOrigins  []string `yaml:"cors_origins"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel returns the tracer provider settings
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// AuditConfig controls where audit events go and how long they are kept
type AuditConfig struct {
	// DBEnabled writes events to the audit_logs table in addition to the log
	DBEnabled bool                  `yaml:"db_enabled"`
	Async     bool                  `yaml:"async"`
	Retention audit.RetentionPolicy `yaml:"retention"`
}

// SessionConfig holds bearer session settings
type SessionConfig struct {
	// TTL of newly issued sessions; zero issues sessions that never expire
	TTL             time.Duration `yaml:"ttl"`
	CleanupSchedule string        `yaml:"cleanup_schedule"`
}

// RateLimitConfig holds API rate limiting settings
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	// Distributed shares counters across instances through Redis
	Distributed bool          `yaml:"distributed"`
	FailOpen    bool          `yaml:"fail_open"`
	Window      time.Duration `yaml:"window"`

	ActorRequests     int `yaml:"actor_requests"`
	ActorBurst        int `yaml:"actor_burst"`
	AnonymousRequests int `yaml:"anonymous_requests"`
	AnonymousBurst    int `yaml:"anonymous_burst"`
}

// Actor returns the limiter settings for authenticated callers
func (r RateLimitConfig) Actor() *middleware.RateLimitConfig {
	return &middleware.RateLimitConfig{
		RequestsPerWindow: r.ActorRequests,
		WindowDuration:    r.Window,
		BurstSize:         r.ActorBurst,
	}
}

// Anonymous returns the limiter settings for unauthenticated callers
func (r RateLimitConfig) Anonymous() *middleware.RateLimitConfig {
	return &middleware.RateLimitConfig{
		RequestsPerWindow: r.AnonymousRequests,
		WindowDuration:    r.Window,
		BurstSize:         r.AnonymousBurst,
	}
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	actor := middleware.PerActorRateLimitConfig()
	anonymous := middleware.DefaultRateLimitConfig()

	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
			MaxBodyBytes:    1 << 20,
		},
		Storage: storage.DefaultConfig(),
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "fieldops",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
		Audit: AuditConfig{
			DBEnabled: true,
			Async:     true,
			Retention: audit.DefaultRetentionPolicy(),
		},
		Assessment: assessment.DefaultConfig(),
		Sessions: SessionConfig{
			TTL:             30 * 24 * time.Hour,
			CleanupSchedule: "@hourly",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			FailOpen:          true,
			Window:            actor.WindowDuration,
			ActorRequests:     actor.RequestsPerWindow,
			ActorBurst:        actor.BurstSize,
			AnonymousRequests: anonymous.RequestsPerWindow,
			AnonymousBurst:    anonymous.BurstSize,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by FIELDOPS_CONFIG_FILE and finally FIELDOPS_* environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML file at path; keys absent from the file keep
// their current values
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	applyServerEnv(&c.Server)
	applyStorageEnv(&c.Storage)
	applyObservabilityEnv(&c.Observability)

	c.Audit.DBEnabled = getEnvBool("FIELDOPS_AUDIT_DB_ENABLED", c.Audit.DBEnabled)
	c.Audit.Async = getEnvBool("FIELDOPS_AUDIT_ASYNC", c.Audit.Async)
	c.Audit.Retention.RetentionDays = getEnvInt("FIELDOPS_AUDIT_RETENTION_DAYS", c.Audit.Retention.RetentionDays)
	c.Audit.Retention.Schedule = getEnv("FIELDOPS_AUDIT_RETENTION_SCHEDULE", c.Audit.Retention.Schedule)

	applyAssessmentEnv(&c.Assessment)

	c.Sessions.TTL = getEnvDuration("FIELDOPS_SESSION_TTL", c.Sessions.TTL)
	c.Sessions.CleanupSchedule = getEnv("FIELDOPS_SESSION_CLEANUP_SCHEDULE", c.Sessions.CleanupSchedule)

	c.RateLimit.Enabled = getEnvBool("FIELDOPS_RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.Distributed = getEnvBool("FIELDOPS_RATE_LIMIT_DISTRIBUTED", c.RateLimit.Distributed)
	c.RateLimit.FailOpen = getEnvBool("FIELDOPS_RATE_LIMIT_FAIL_OPEN", c.RateLimit.FailOpen)
	c.RateLimit.Window = getEnvDuration("FIELDOPS_RATE_LIMIT_WINDOW", c.RateLimit.Window)
	c.RateLimit.ActorRequests = getEnvInt("FIELDOPS_RATE_LIMIT_ACTOR_REQUESTS", c.RateLimit.ActorRequests)
	c.RateLimit.ActorBurst = getEnvInt("FIELDOPS_RATE_LIMIT_ACTOR_BURST", c.RateLimit.ActorBurst)
	c.RateLimit.AnonymousRequests = getEnvInt("FIELDOPS_RATE_LIMIT_ANONYMOUS_REQUESTS", c.RateLimit.AnonymousRequests)
	c.RateLimit.AnonymousBurst = getEnvInt("FIELDOPS_RATE_LIMIT_ANONYMOUS_BURST", c.RateLimit.AnonymousBurst)
}

func applyServerEnv(s *ServerConfig) {
	s.Host = getEnv("FIELDOPS_HOST", s.Host)
	s.Port = getEnv("FIELDOPS_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("FIELDOPS_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("FIELDOPS_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("FIELDOPS_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("FIELDOPS_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.HealthPort = getEnv("FIELDOPS_HEALTH_PORT", s.HealthPort)
	s.MaxBodyBytes = getEnvInt64("FIELDOPS_MAX_BODY_BYTES", s.MaxBodyBytes)
	s.CORSOrigins = getEnvList("FIELDOPS_CORS_ORIGINS", s.CORSOrigins)
}

func applyStorageEnv(cfg *storage.Config) {
	cfg.PhotoBackend = getEnv("FIELDOPS_PHOTO_BACKEND", cfg.PhotoBackend)
	cfg.FilesystemRoot = getEnv("FIELDOPS_FILESYSTEM_ROOT", cfg.FilesystemRoot)

	// PostgreSQL config
	cfg.PostgresURL = getEnv("FIELDOPS_POSTGRES_URL", cfg.PostgresURL)
	cfg.PostgresReplicaURLs = getEnv("FIELDOPS_POSTGRES_REPLICA_URLS", cfg.PostgresReplicaURLs)
	if maxConns := getEnvInt("FIELDOPS_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("FIELDOPS_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	cfg.PostgresTimeout = getEnvDuration("FIELDOPS_POSTGRES_TIMEOUT", cfg.PostgresTimeout)

	// S3 config
	cfg.S3Endpoint = getEnv("FIELDOPS_S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Region = getEnv("FIELDOPS_S3_REGION", cfg.S3Region)
	cfg.S3Bucket = getEnv("FIELDOPS_S3_BUCKET", cfg.S3Bucket)
	cfg.S3AccessKey = getEnv("FIELDOPS_S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = getEnv("FIELDOPS_S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3UsePathStyle = getEnvBool("FIELDOPS_S3_USE_PATH_STYLE", cfg.S3UsePathStyle)

	// Redis config
	cfg.RedisURL = getEnv("FIELDOPS_REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("FIELDOPS_REDIS_PASSWORD", cfg.RedisPassword)
	if redisDB := getEnvInt("FIELDOPS_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("FIELDOPS_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("FIELDOPS_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Actor cache config
	cfg.CacheEnabled = getEnvBool("FIELDOPS_CACHE_ENABLED", cfg.CacheEnabled)
	cfg.ActorCacheTTL = getEnvDuration("FIELDOPS_ACTOR_CACHE_TTL", cfg.ActorCacheTTL)
	if l1CacheSize := getEnvInt("FIELDOPS_L1_CACHE_SIZE", 0); l1CacheSize > 0 {
		cfg.L1CacheSize = l1CacheSize
	}
}

func applyObservabilityEnv(o *ObservabilityConfig) {
	o.LogLevel = getEnv("FIELDOPS_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("FIELDOPS_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("FIELDOPS_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("FIELDOPS_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("FIELDOPS_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("FIELDOPS_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("FIELDOPS_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("FIELDOPS_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

func applyAssessmentEnv(a *assessment.Config) {
	a.ScheduleAheadMonths = getEnvInt("FIELDOPS_SCHEDULE_AHEAD_MONTHS", a.ScheduleAheadMonths)
	a.PhotosPerRequest = getEnvInt("FIELDOPS_PHOTOS_PER_REQUEST", a.PhotosPerRequest)
	a.MaxPhotos = getEnvInt("FIELDOPS_MAX_PHOTOS", a.MaxPhotos)
	a.MaxFileSize = getEnvInt64("FIELDOPS_MAX_PHOTO_SIZE", a.MaxFileSize)
	a.MaxStorage = getEnvInt64("FIELDOPS_MAX_PHOTO_STORAGE", a.MaxStorage)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Server.HealthPort == "" {
		return errors.New("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return errors.New("server port and health port must be different")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("max body bytes must be positive")
	}

	if c.Storage.PostgresURL == "" {
		return errors.New("postgres URL is required")
	}
	switch c.Storage.PhotoBackend {
	case storage.BackendFilesystem:
		if c.Storage.FilesystemRoot == "" {
			return errors.New("filesystem root is required for filesystem photo storage")
		}
	case storage.BackendS3:
		if c.Storage.S3Bucket == "" {
			return errors.New("S3 bucket is required for s3 photo storage")
		}
	default:
		return fmt.Errorf("invalid photo backend: %s (must be filesystem or s3)", c.Storage.PhotoBackend)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1, got %g", c.Observability.OTelSampleRatio)
		}
	}

	if c.Audit.DBEnabled {
		if c.Audit.Retention.RetentionDays <= 0 {
			return fmt.Errorf("audit retention days must be positive, got %d", c.Audit.Retention.RetentionDays)
		}
		if err := validateSchedule("audit retention", c.Audit.Retention.Schedule); err != nil {
			return err
		}
	}
	if c.Sessions.TTL < 0 {
		return errors.New("session TTL must not be negative")
	}
	if err := validateSchedule("session cleanup", c.Sessions.CleanupSchedule); err != nil {
		return err
	}

	if err := validateAssessmentLimits(c.Assessment); err != nil {
		return err
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Window <= 0 {
			return errors.New("rate limit window must be positive")
		}
		if c.RateLimit.ActorRequests <= 0 || c.RateLimit.AnonymousRequests <= 0 {
			return errors.New("rate limit requests per window must be positive")
		}
		if c.RateLimit.Distributed && c.Storage.RedisURL == "" {
			return errors.New("redis URL is required for distributed rate limiting")
		}
	}

	return nil
}

func validateSchedule(name, expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", name, expr, err)
	}
	return nil
}

func validateAssessmentLimits(a assessment.Config) error {
	if a.ScheduleAheadMonths <= 0 {
		return errors.New("schedule ahead months must be positive")
	}
	if a.MinDuration <= 0 || a.MinDuration > a.MaxDuration {
		return fmt.Errorf("invalid duration bounds %d..%d", a.MinDuration, a.MaxDuration)
	}
	if a.MinArea <= 0 || a.MinArea > a.MaxArea {
		return fmt.Errorf("invalid area bounds %g..%g", a.MinArea, a.MaxArea)
	}
	if a.PhotosPerRequest <= 0 || a.MaxPhotos < a.PhotosPerRequest {
		return fmt.Errorf("photos per request (%d) must be positive and at most max photos (%d)", a.PhotosPerRequest, a.MaxPhotos)
	}
	if a.MaxFileSize <= 0 || a.MaxStorage < a.MaxFileSize {
		return fmt.Errorf("max file size (%d) must be positive and at most max storage (%d)", a.MaxFileSize, a.MaxStorage)
	}
	if a.StorageWarnRatio <= 0 || a.StorageWarnRatio > 1 {
		return fmt.Errorf("storage warn ratio must be in (0, 1], got %g", a.StorageWarnRatio)
	}
	if a.MinDimension <= 0 || a.MinDimension > a.MaxDimension {
		return fmt.Errorf("invalid dimension bounds %d..%d", a.MinDimension, a.MaxDimension)
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated environment variable, dropping blanks
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
