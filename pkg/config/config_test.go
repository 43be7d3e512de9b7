package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/fieldops/pkg/observability"
	"github.com/platinummonkey/fieldops/pkg/storage"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Storage.PostgresURL = "postgres://localhost/fieldops"
	return cfg
}

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{name: "returns env value when set", key: "FIELDOPS_TEST_VAR", defaultValue: "default", envValue: "custom", want: "custom"},
		{name: "returns default when env not set", key: "FIELDOPS_TEST_VAR_NOT_SET", defaultValue: "default", want: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}
			assert.Equal(t, tt.want, getEnv(tt.key, tt.defaultValue))
		})
	}
}

func TestGetEnvTyped(t *testing.T) {
	t.Setenv("FIELDOPS_TEST_BOOL", "1")
	t.Setenv("FIELDOPS_TEST_INT", "42")
	t.Setenv("FIELDOPS_TEST_BAD_INT", "forty-two")
	t.Setenv("FIELDOPS_TEST_INT64", "10485760")
	t.Setenv("FIELDOPS_TEST_FLOAT", "0.25")
	t.Setenv("FIELDOPS_TEST_DURATION", "90s")
	t.Setenv("FIELDOPS_TEST_BAD_DURATION", "ninety")
	t.Setenv("FIELDOPS_TEST_LIST", " https://a.example , ,https://b.example")

	assert.True(t, getEnvBool("FIELDOPS_TEST_BOOL", false))
	assert.False(t, getEnvBool("FIELDOPS_TEST_UNSET", false))
	assert.Equal(t, 42, getEnvInt("FIELDOPS_TEST_INT", 7))
	assert.Equal(t, 7, getEnvInt("FIELDOPS_TEST_BAD_INT", 7))
	assert.Equal(t, int64(10<<20), getEnvInt64("FIELDOPS_TEST_INT64", 0))
	assert.Equal(t, 0.25, getEnvFloat("FIELDOPS_TEST_FLOAT", 1))
	assert.Equal(t, 90*time.Second, getEnvDuration("FIELDOPS_TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("FIELDOPS_TEST_BAD_DURATION", time.Second))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, getEnvList("FIELDOPS_TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvList("FIELDOPS_TEST_UNSET", []string{"x"}))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("FIELDOPS_POSTGRES_URL", "postgres://localhost/fieldops")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, storage.BackendFilesystem, cfg.Storage.PhotoBackend)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.Level())
	assert.Equal(t, 365, cfg.Audit.Retention.RetentionDays)
	assert.Equal(t, 100, cfg.Assessment.MaxPhotos)
	assert.Equal(t, int64(10<<20), cfg.Assessment.MaxFileSize)
	assert.Equal(t, 1000, cfg.RateLimit.ActorRequests)
	assert.True(t, cfg.RateLimit.FailOpen)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("FIELDOPS_POSTGRES_URL", "postgres://db/fieldops")
	t.Setenv("FIELDOPS_PORT", "8000")
	t.Setenv("FIELDOPS_PHOTO_BACKEND", "s3")
	t.Setenv("FIELDOPS_S3_BUCKET", "photos")
	t.Setenv("FIELDOPS_S3_USE_PATH_STYLE", "true")
	t.Setenv("FIELDOPS_LOG_LEVEL", "debug")
	t.Setenv("FIELDOPS_MAX_PHOTOS", "50")
	t.Setenv("FIELDOPS_SESSION_TTL", "12h")
	t.Setenv("FIELDOPS_CORS_ORIGINS", "https://app.example")
	t.Setenv("FIELDOPS_RATE_LIMIT_ACTOR_REQUESTS", "300")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, storage.BackendS3, cfg.Storage.PhotoBackend)
	assert.Equal(t, "photos", cfg.Storage.S3Bucket)
	assert.True(t, cfg.Storage.S3UsePathStyle)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.Level())
	assert.Equal(t, 50, cfg.Assessment.MaxPhotos)
	assert.Equal(t, 12*time.Hour, cfg.Sessions.TTL)
	assert.Equal(t, []string{"https://app.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 300, cfg.RateLimit.Actor().RequestsPerWindow)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldops.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "8081"
  read_timeout: 5s
storage:
  postgres_url: postgres://file/fieldops
  photo_backend: s3
  s3_bucket: from-file
assessment:
  max_photos: 40
audit:
  retention:
    retention_days: 90
rate_limit:
  distributed: true
`), 0o600))

	t.Setenv(ConfigFileEnv, path)
	t.Setenv("FIELDOPS_S3_BUCKET", "from-env")
	t.Setenv("FIELDOPS_REDIS_URL", "localhost:6379")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout, "keys missing from the file keep defaults")
	assert.Equal(t, "postgres://file/fieldops", cfg.Storage.PostgresURL)
	assert.Equal(t, "from-env", cfg.Storage.S3Bucket, "environment wins over the file")
	assert.Equal(t, 40, cfg.Assessment.MaxPhotos)
	assert.Equal(t, 20, cfg.Assessment.PhotosPerRequest)
	assert.Equal(t, 90, cfg.Audit.Retention.RetentionDays)
	assert.Equal(t, "0 3 * * *", cfg.Audit.Retention.Schedule)
	assert.True(t, cfg.RateLimit.Distributed)
}

func TestLoadConfig_FileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))
		t.Setenv(ConfigFileEnv, path)
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "failed to parse config file")
	})
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	t.Setenv("FIELDOPS_POSTGRES_URL", "")
	_, err := LoadConfig()
	assert.EqualError(t, err, "configuration validation failed: postgres URL is required")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid defaults", mutate: func(*Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: "server port is required"},
		{name: "missing health port", mutate: func(c *Config) { c.Server.HealthPort = "" }, wantErr: "health port is required"},
		{name: "same ports", mutate: func(c *Config) { c.Server.HealthPort = c.Server.Port }, wantErr: "server port and health port must be different"},
		{name: "body limit", mutate: func(c *Config) { c.Server.MaxBodyBytes = 0 }, wantErr: "max body bytes must be positive"},
		{name: "filesystem root", mutate: func(c *Config) { c.Storage.FilesystemRoot = "" }, wantErr: "filesystem root is required for filesystem photo storage"},
		{
			name:    "s3 bucket",
			mutate:  func(c *Config) { c.Storage.PhotoBackend = storage.BackendS3 },
			wantErr: "S3 bucket is required for s3 photo storage",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.PhotoBackend = "gcs" },
			wantErr: "invalid photo backend: gcs (must be filesystem or s3)",
		},
		{
			name: "otel endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelEndpoint = ""
			},
			wantErr: "OpenTelemetry endpoint is required when OTel is enabled",
		},
		{
			name: "otel sample ratio",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelSampleRatio = 1.5
			},
			wantErr: "OpenTelemetry sample ratio must be between 0 and 1, got 1.5",
		},
		{
			name:    "retention days",
			mutate:  func(c *Config) { c.Audit.Retention.RetentionDays = 0 },
			wantErr: "audit retention days must be positive, got 0",
		},
		{
			name:    "retention ignored without db audit",
			mutate:  func(c *Config) { c.Audit.DBEnabled = false; c.Audit.Retention.RetentionDays = 0 },
			wantErr: "",
		},
		{
			name:    "bad cron",
			mutate:  func(c *Config) { c.Sessions.CleanupSchedule = "every hour" },
			wantErr: `invalid session cleanup schedule "every hour"`,
		},
		{name: "negative session ttl", mutate: func(c *Config) { c.Sessions.TTL = -time.Second }, wantErr: "session TTL must not be negative"},
		{
			name:    "duration bounds",
			mutate:  func(c *Config) { c.Assessment.MinDuration = 600 },
			wantErr: "invalid duration bounds 600..480",
		},
		{
			name:    "photo counts",
			mutate:  func(c *Config) { c.Assessment.MaxPhotos = 5 },
			wantErr: "photos per request (20) must be positive and at most max photos (5)",
		},
		{
			name:    "storage ratio",
			mutate:  func(c *Config) { c.Assessment.StorageWarnRatio = 0 },
			wantErr: "storage warn ratio must be in (0, 1], got 0",
		},
		{
			name:    "rate limit window",
			mutate:  func(c *Config) { c.RateLimit.Window = 0 },
			wantErr: "rate limit window must be positive",
		},
		{
			name:    "distributed rate limit needs redis",
			mutate:  func(c *Config) { c.RateLimit.Distributed = true },
			wantErr: "redis URL is required for distributed rate limiting",
		},
		{
			name:    "rate limit disabled skips checks",
			mutate:  func(c *Config) { c.RateLimit.Enabled = false; c.RateLimit.Window = 0 },
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestObservabilityConfig_OTel(t *testing.T) {
	cfg := Default().Observability
	cfg.OTelEnabled = true
	cfg.OTelSampleRatio = 0.1

	otelCfg := cfg.OTel()

	assert.True(t, otelCfg.Enabled)
	assert.Equal(t, "fieldops", otelCfg.ServiceName)
	assert.Equal(t, "localhost:4317", otelCfg.Endpoint)
	assert.Equal(t, 0.1, otelCfg.SampleRatio)
}

func TestRateLimitConfig_Limiters(t *testing.T) {
	rl := Default().RateLimit

	actor := rl.Actor()
	anonymous := rl.Anonymous()

	assert.Equal(t, 1000, actor.RequestsPerWindow)
	assert.Equal(t, 50, actor.BurstSize)
	assert.Equal(t, 100, anonymous.RequestsPerWindow)
	assert.Equal(t, 10, anonymous.BurstSize)
	assert.Equal(t, time.Minute, anonymous.WindowDuration)
}
