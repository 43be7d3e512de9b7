package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the schema migrations in version order
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create companies and users tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS companies (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					company_id BIGINT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
					email VARCHAR(255) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_users_company_id ON users(company_id);
			`,
		},
		{
			Version:     2,
			Description: "Create role and permission grant tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_roles (
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role VARCHAR(50) NOT NULL,
					granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, role)
				);

				CREATE TABLE IF NOT EXISTS user_permissions (
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					permission VARCHAR(100) NOT NULL,
					granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, permission)
				);
			`,
		},
		{
			Version:     3,
			Description: "Create teams and team_members tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS teams (
					id BIGSERIAL PRIMARY KEY,
					company_id BIGINT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					manager_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					coordinator_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE (company_id, name)
				);

				CREATE TABLE IF NOT EXISTS team_members (
					team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (team_id, user_id)
				);

				CREATE INDEX IF NOT EXISTS idx_teams_manager_id ON teams(manager_id);
				CREATE INDEX IF NOT EXISTS idx_teams_coordinator_id ON teams(coordinator_id);
				CREATE INDEX IF NOT EXISTS idx_team_members_user_id ON team_members(user_id);
			`,
		},
		{
			Version:     4,
			Description: "Create assessments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS assessments (
					id BIGSERIAL PRIMARY KEY,
					company_id BIGINT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
					lead_id BIGINT,
					lead_owner_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					assigned_to BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					team_id BIGINT REFERENCES teams(id) ON DELETE SET NULL,
					title VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					service_type VARCHAR(50) NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'draft',
					urgency_level VARCHAR(20) NOT NULL DEFAULT '',
					assessment_date DATE,
					estimated_duration INT,
					completion_percentage INT NOT NULL DEFAULT 0,
					overall_risk_score INT,
					total_area NUMERIC(12, 2),
					area_unit VARCHAR(10) NOT NULL DEFAULT '',
					client_name VARCHAR(255) NOT NULL,
					client_phone VARCHAR(50) NOT NULL DEFAULT '',
					client_email VARCHAR(255) NOT NULL DEFAULT '',
					location_address TEXT NOT NULL,
					location_city VARCHAR(100) NOT NULL DEFAULT '',
					location_state VARCHAR(100) NOT NULL DEFAULT '',
					location_postal_code VARCHAR(20) NOT NULL DEFAULT '',
					latitude DOUBLE PRECISION,
					longitude DOUBLE PRECISION,
					safety_concerns TEXT NOT NULL DEFAULT '',
					special_requirements TEXT NOT NULL DEFAULT '',
					access_restrictions TEXT NOT NULL DEFAULT '',
					risk_factors TEXT[] NOT NULL DEFAULT '{}',
					notes TEXT NOT NULL DEFAULT '',
					recommendations TEXT NOT NULL DEFAULT '',
					follow_up_required BOOLEAN NOT NULL DEFAULT FALSE,
					follow_up_date DATE,
					approved_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					approved_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_assessments_company_id ON assessments(company_id);
				CREATE INDEX IF NOT EXISTS idx_assessments_status ON assessments(status);
				CREATE INDEX IF NOT EXISTS idx_assessments_assigned_to ON assessments(assigned_to);
				CREATE INDEX IF NOT EXISTS idx_assessments_booking
					ON assessments(company_id, assessment_date, (lower(location_address)))
					WHERE status <> 'cancelled';
			`,
		},
		{
			Version:     5,
			Description: "Create assessment sections and photos tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS assessment_sections (
					id BIGSERIAL PRIMARY KEY,
					assessment_id BIGINT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					section_type VARCHAR(50) NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'pending',
					sort_order INT NOT NULL DEFAULT 0,
					is_required BOOLEAN NOT NULL DEFAULT FALSE,
					current_score NUMERIC(10, 2),
					max_score NUMERIC(10, 2),
					quality_rating VARCHAR(20) NOT NULL DEFAULT '',
					dependencies BIGINT[] NOT NULL DEFAULT '{}',
					notes TEXT NOT NULL DEFAULT '',
					completed_at TIMESTAMPTZ
				);

				CREATE TABLE IF NOT EXISTS assessment_photos (
					id BIGSERIAL PRIMARY KEY,
					assessment_id BIGINT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
					filename VARCHAR(255) NOT NULL,
					storage_key TEXT NOT NULL UNIQUE,
					content_type VARCHAR(50) NOT NULL,
					size BIGINT NOT NULL,
					width INT NOT NULL,
					height INT NOT NULL,
					photo_type VARCHAR(20) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					location_description TEXT NOT NULL DEFAULT '',
					uploaded_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_assessment_sections_assessment_id ON assessment_sections(assessment_id, sort_order);
				CREATE INDEX IF NOT EXISTS idx_assessment_photos_assessment_id ON assessment_photos(assessment_id);
			`,
		},
		{
			Version:     6,
			Description: "Create sessions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS sessions (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					token_hash CHAR(64) NOT NULL UNIQUE,
					token_prefix VARCHAR(16) NOT NULL,
					name VARCHAR(255) NOT NULL DEFAULT '',
					expires_at TIMESTAMPTZ,
					last_used_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					revoked_at TIMESTAMPTZ
				);

				CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
				CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
			`,
		},
		{
			Version:     7,
			Description: "Enforce unique bookings and section order",
			SQL: `
				DROP INDEX IF EXISTS idx_assessments_booking;
				CREATE UNIQUE INDEX IF NOT EXISTS uq_assessments_booking
					ON assessments(company_id, assessment_date, (` + normalizedAddressSQL + `))
					WHERE status <> 'cancelled' AND assessment_date IS NOT NULL;

				DROP INDEX IF EXISTS idx_assessment_sections_assessment_id;
				CREATE UNIQUE INDEX IF NOT EXISTS uq_assessment_sections_sort_order
					ON assessment_sections(assessment_id, sort_order);
			`,
		},
		{
			Version:     8,
			Description: "Create leads table",
			SQL: `
				CREATE TABLE IF NOT EXISTS leads (
					id BIGSERIAL PRIMARY KEY,
					company_id BIGINT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
					assigned_to BIGINT REFERENCES users(id) ON DELETE SET NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'new',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_leads_company_id ON leads(company_id);
				CREATE INDEX IF NOT EXISTS idx_leads_assigned_to ON leads(assigned_to);

				ALTER TABLE assessments ADD CONSTRAINT fk_assessments_lead
					FOREIGN KEY (lead_id) REFERENCES leads(id) ON DELETE SET NULL NOT VALID;
			`,
		},
	}
}

// RunMigrations applies every migration not yet recorded in schema_migrations.
// Each migration runs in its own transaction together with its bookkeeping row.
func RunMigrations(ctx context.Context, db *sql.DB, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range Migrations() {
		if applied[migration.Version] {
			continue
		}

		mlog := log.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		})
		mlog.Info("running migration")

		if err := applyMigration(ctx, db, migration); err != nil {
			return err
		}

		mlog.Info("migration applied")
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func applyMigration(ctx context.Context, db *sql.DB, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
		migration.Version, migration.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}
	return nil
}
