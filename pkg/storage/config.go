package storage

import (
	"errors"
	"time"
)

// Photo storage backends
const (
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
)

// ErrObjectNotFound is returned when a photo blob does not exist
var ErrObjectNotFound = errors.New("object not found")

// Config for the persistence layer: Postgres for records, Redis for the
// shared actor cache and a blob backend for photos
type Config struct {
	PhotoBackend string `yaml:"photo_backend"` // "filesystem" or "s3"

	// Filesystem config
	FilesystemRoot string `yaml:"filesystem_root"`

	// PostgreSQL config
	PostgresURL         string        `yaml:"postgres_url"`
	PostgresReplicaURLs string        `yaml:"postgres_replica_urls"` // comma separated
	PostgresMaxConns    int           `yaml:"postgres_max_conns"`
	PostgresMinConns    int           `yaml:"postgres_min_conns"`
	PostgresTimeout     time.Duration `yaml:"postgres_timeout"`

	// S3 config
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3Region       string `yaml:"s3_region"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
	S3UsePathStyle bool   `yaml:"s3_use_path_style"`

	// Redis config
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`

	// Actor cache config
	CacheEnabled  bool          `yaml:"cache_enabled"`
	ActorCacheTTL time.Duration `yaml:"actor_cache_ttl"`
	L1CacheSize   int           `yaml:"l1_cache_size"` // entries
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		PhotoBackend:     BackendFilesystem,
		FilesystemRoot:   "/var/lib/fieldops/photos",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		S3Region:         "us-east-1",
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		CacheEnabled:     true,
		ActorCacheTTL:    time.Minute,
		L1CacheSize:      10000,
	}
}

// OperationRecorder receives the outcome of each blob operation
type OperationRecorder interface {
	RecordStorageOperation(operation, backend string, start time.Time, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordStorageOperation(string, string, time.Time, error) {}

// RecorderOrNop returns r, or a recorder that discards everything when r is nil
func RecorderOrNop(r OperationRecorder) OperationRecorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
