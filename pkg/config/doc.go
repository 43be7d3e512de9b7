// Package config provides application configuration management from
// environment variables and an optional YAML file.
//
// # Overview
//
// LoadConfig starts from Default, overlays the YAML file named by
// FIELDOPS_CONFIG_FILE when set, applies FIELDOPS_* environment variables and
// finally validates the result. Keys missing from the file keep their defaults
// and environment variables always win.
//
// # Configuration Structure
//
// Server settings:
//
//	FIELDOPS_HOST="0.0.0.0"
//	FIELDOPS_PORT="8080"
//	FIELDOPS_HEALTH_PORT="9090"
//	FIELDOPS_READ_TIMEOUT="15s"
//	FIELDOPS_MAX_BODY_BYTES="1048576"
//	FIELDOPS_CORS_ORIGINS="https://app.example.com"
//
// Storage settings:
//
//	FIELDOPS_POSTGRES_URL="postgres://localhost/fieldops?sslmode=disable"
//	FIELDOPS_PHOTO_BACKEND="s3"  # filesystem, s3
//	FIELDOPS_S3_BUCKET="fieldops-photos"
//	FIELDOPS_REDIS_URL="localhost:6379"
//	FIELDOPS_ACTOR_CACHE_TTL="1m"
//
// Assessment limits:
//
//	FIELDOPS_MAX_PHOTOS="100"
//	FIELDOPS_MAX_PHOTO_SIZE="10485760"
//	FIELDOPS_MAX_PHOTO_STORAGE="524288000"
//
// Observability settings:
//
//	FIELDOPS_LOG_LEVEL="info"  # debug, info, warn, error
//	FIELDOPS_OTEL_ENABLED="true"
//	FIELDOPS_OTEL_ENDPOINT="otel-collector:4317"
//
// The same settings in YAML:
//
//	server:
//	  port: "8080"
//	storage:
//	  postgres_url: postgres://localhost/fieldops
//	  photo_backend: s3
//	  s3_bucket: fieldops-photos
//	audit:
//	  retention:
//	    retention_days: 365
//	    schedule: "0 3 * * *"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
//
// # Related Packages
//
//   - pkg/storage: storage configuration
//   - pkg/assessment: validation limits
//   - pkg/middleware: rate limit settings
package config
