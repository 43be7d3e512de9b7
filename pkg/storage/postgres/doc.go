// Package postgres holds the relational side of fieldops storage.
//
// ConnectionManager owns the primary handle and any read replicas; writes and
// reads that feed a write use Primary, plain listings use Replica:
//
//	conns, err := postgres.NewConnectionManager(ctx, postgres.ConnectionConfigFrom(cfg.Storage), log)
//	if err := postgres.RunMigrations(ctx, conns.Primary(), log); err != nil { ... }
//	repo := postgres.NewAssessmentRepository(conns)
//
// Migrations are versioned and applied in order inside one transaction each.
// The schema backs the advisory validator checks with partial unique indexes
// for duplicate bookings and section sort order.
//
// NewRedisClient also lives here because the actor cache and the distributed
// rate limiter share one client built from the storage configuration.
package postgres
