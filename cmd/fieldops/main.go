package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/fieldops/pkg/api"
	"github.com/platinummonkey/fieldops/pkg/assessment"
	"github.com/platinummonkey/fieldops/pkg/async"
	"github.com/platinummonkey/fieldops/pkg/audit"
	"github.com/platinummonkey/fieldops/pkg/auth"
	"github.com/platinummonkey/fieldops/pkg/authz"
	"github.com/platinummonkey/fieldops/pkg/config"
	"github.com/platinummonkey/fieldops/pkg/middleware"
	"github.com/platinummonkey/fieldops/pkg/observability"
	"github.com/platinummonkey/fieldops/pkg/storage"
	"github.com/platinummonkey/fieldops/pkg/storage/postgres"
	"github.com/platinummonkey/fieldops/pkg/storage/s3"
)

var version = "dev"

// blobStore is what the server needs from a photo backend
type blobStore interface {
	assessment.PhotoStore
	HealthCheck(ctx context.Context) error
}

type options struct {
	issueSession int64
	sessionName  string
	migrateOnly  bool
}

func main() {
	var opts options
	flag.Int64Var(&opts.issueSession, "issue-session", 0, "Issue a session for this user id, print its token and exit")
	flag.StringVar(&opts.sessionName, "session-name", "bootstrap", "Name of the session created by -issue-session")
	flag.BoolVar(&opts.migrateOnly, "migrate", false, "Apply database migrations and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).WithField("service", "fieldops")
	if err := run(cfg, logger, opts); err != nil {
		logger.WithError(err).Error("fieldops stopped")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger, opts options) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conns, err := postgres.NewConnectionManager(ctx, postgres.ConnectionConfigFrom(cfg.Storage), logger.Entry())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := postgres.RunMigrations(ctx, conns.Primary(), logger.Entry()); err != nil {
		conns.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if opts.migrateOnly {
		return conns.Close()
	}

	sessions := auth.NewSessionStore(conns.Primary())
	if opts.issueSession > 0 {
		defer conns.Close()
		return issueSession(ctx, sessions, opts, cfg.Sessions.TTL)
	}

	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		conns.Close()
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	conns.StartMaintenance(ctx, 30*time.Second, metrics)

	var rdb *redis.Client
	if cfg.Storage.RedisURL != "" {
		if rdb, err = postgres.NewRedisClient(ctx, cfg.Storage); err != nil {
			conns.Close()
			return err
		}
	}

	photos, err := newPhotoStore(ctx, cfg.Storage, metrics)
	if err != nil {
		conns.Close()
		return err
	}

	// Authorization
	engine := authz.NewEngine()
	authzStore := authz.NewStore(conns.Primary())
	providerOpts := []authz.ProviderOption{
		authz.WithCacheObserver(metrics.RecordCacheLookup),
		authz.WithInvalidationObserver(metrics.RecordCacheInvalidation),
		authz.WithProviderLogger(logger.Entry()),
	}
	if cfg.Storage.CacheEnabled && rdb != nil {
		providerOpts = append(providerOpts, authz.WithSharedCache(authz.NewRedisActorCache(rdb, cfg.Storage.ActorCacheTTL)))
	}
	actors := authz.NewProvider(authzStore, authz.ProviderConfig{
		MaxEntries: cfg.Storage.L1CacheSize,
		TTL:        cfg.Storage.ActorCacheTTL,
	}, providerOpts...)

	// Audit trail
	auditLoggers := []audit.Logger{audit.NewLogrusLogger(logger.Entry())}
	var retention *audit.RetentionJob
	if cfg.Audit.DBEnabled {
		dbLogger, err := audit.NewDBLogger(conns.Primary())
		if err != nil {
			conns.Close()
			return fmt.Errorf("failed to create audit table: %w", err)
		}
		auditLoggers = append(auditLoggers, dbLogger)
		retention = audit.NewRetentionJob(dbLogger, cfg.Audit.Retention, logger.Entry())
		if err := retention.Start(); err != nil {
			conns.Close()
			return err
		}
	}
	auditLog := audit.NewMultiLogger(auditLoggers...)
	auditLog.SetAsync(cfg.Audit.Async)
	auditLog.SetFailureLogger(logger.Entry())

	// Assessments
	repo := postgres.NewAssessmentRepository(conns)
	service := assessment.NewService(repo, engine, assessment.NewValidator(cfg.Assessment, repo),
		assessment.WithPhotoStore(photos),
		assessment.WithAuditLogger(auditLog),
		assessment.WithRecorder(metrics),
		assessment.WithServiceLogger(logger.Entry()),
	)

	scheduler := cron.New()
	if cfg.Sessions.CleanupSchedule != "" {
		_, err := scheduler.AddFunc(cfg.Sessions.CleanupSchedule, func() {
			async.SafeGo(ctx, logger.Entry(), time.Minute, "session cleanup", func(ctx context.Context) error {
				removed, err := sessions.CleanupExpired(ctx)
				if err != nil {
					return err
				}
				logger.WithField("removed", removed).Info("expired sessions removed")
				return nil
			})
		})
		if err != nil {
			conns.Close()
			return fmt.Errorf("failed to schedule session cleanup: %w", err)
		}
	}
	scheduler.Start()

	actorLimiter, anonymousLimiter, err := newLimiters(ctx, cfg.RateLimit, rdb)
	if err != nil {
		conns.Close()
		return err
	}

	srv := api.NewServer(api.Config{
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		MaxUploadBytes: maxUploadBytes(cfg.Assessment),
		CORSOrigins:    cfg.Server.CORSOrigins,
		SessionTTL:     cfg.Sessions.TTL,
		FailOpen:       cfg.RateLimit.FailOpen,
	}, api.Deps{
		Assessments:      service,
		Engine:           engine,
		Actors:           actors,
		Roles:            authzStore,
		Sessions:         sessions,
		Audit:            auditLog,
		Recorder:         metrics,
		Metrics:          metrics,
		ActorLimiter:     actorLimiter,
		AnonymousLimiter: anonymousLimiter,
		Logger:           logger,
	})

	checker := observability.NewHealthChecker(conns.Primary(), rdb, version)
	checker.AddCheck("photo_storage", true, photos.HealthCheck)

	var exposed *prometheus.Registry
	if cfg.Observability.MetricsEnabled {
		exposed = registry
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	opsServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:     api.NewOpsRouter(checker, exposed),
		ReadTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.Register("ops-server", opsServer.Shutdown)
	shutdown.Register("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})
	shutdown.Register("scheduler", func(context.Context) error {
		<-scheduler.Stop().Done()
		return nil
	})
	// the audit trail drains into postgres, so both close in order
	shutdown.Register("storage", func(context.Context) error {
		if retention != nil {
			retention.Stop()
		}
		var errs []error
		if err := auditLog.Close(); err != nil {
			errs = append(errs, err)
		}
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := conns.Close(); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Starting fieldops API %s on %s", version, apiServer.Addr)
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.Infof("Starting health and metrics server on %s", opsServer.Addr)
		return serve(opsServer)
	})
	g.Go(func() error {
		return shutdown.WaitForShutdown(gctx)
	})

	return g.Wait()
}

func serve(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s failed: %w", server.Addr, err)
	}
	return nil
}

func issueSession(ctx context.Context, sessions *auth.SessionStore, opts options, ttl time.Duration) error {
	session, token, err := sessions.Create(ctx, opts.issueSession, opts.sessionName, ttl)
	if err != nil {
		return fmt.Errorf("failed to issue session: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Issued session %d for user %d\n", session.ID, session.UserID)
	fmt.Println(token)
	return nil
}

func newPhotoStore(ctx context.Context, cfg storage.Config, recorder storage.OperationRecorder) (blobStore, error) {
	switch cfg.PhotoBackend {
	case storage.BackendS3:
		store, err := s3.NewPhotoStore(ctx, cfg, recorder)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 photo storage: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewFilesystemPhotoStore(cfg.FilesystemRoot, recorder)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize filesystem photo storage: %w", err)
		}
		return store, nil
	}
}

func newLimiters(ctx context.Context, cfg config.RateLimitConfig, rdb *redis.Client) (middleware.Limiter, middleware.Limiter, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}
	if cfg.Distributed {
		if rdb == nil {
			return nil, nil, errors.New("distributed rate limiting needs redis")
		}
		return middleware.NewDistributedRateLimiter(rdb, cfg.Actor(), "fieldops:ratelimit:actor"),
			middleware.NewDistributedRateLimiter(rdb, cfg.Anonymous(), "fieldops:ratelimit:anon"),
			nil
	}
	actor := middleware.NewRateLimiter(cfg.Actor())
	anonymous := middleware.NewRateLimiter(cfg.Anonymous())
	actor.StartCleanup(ctx)
	anonymous.StartCleanup(ctx)
	return actor, anonymous, nil
}

// maxUploadBytes bounds a multipart upload by the largest request the photo
// limits can accept, plus headroom for form fields and boundaries
func maxUploadBytes(cfg assessment.Config) int64 {
	return int64(cfg.PhotosPerRequest)*cfg.MaxFileSize + 1<<20
}
