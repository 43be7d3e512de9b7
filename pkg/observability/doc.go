// Package observability carries the service's ambient telemetry: JSON logging
// on logrus, Prometheus metrics, OpenTelemetry tracing, health probes, panic
// recovery and graceful shutdown.
//
// Logging:
//
//	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
//	logger.WithField("assessment_id", id).Info("assessment created")
//
// Services that accept a logrus.FieldLogger receive logger.Entry().
//
// Metrics are registered on a caller supplied registry so tests stay isolated:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordDecision("assessment", "update", "deny", "scope")
//
// Health:
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	checker.AddCheck("photo_storage", true, photos.HealthCheck)
//	observability.RegisterHealthRoutes(router, checker)
package observability
