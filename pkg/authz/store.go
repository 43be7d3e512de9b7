package authz

import (
	"context"
	"database/sql"
	"fmt"
)

// ActorLoader materializes an Actor for a user id
type ActorLoader interface {
	LoadActor(ctx context.Context, userID int64) (*Actor, error)
}

// Store loads actors from the users, roles and teams tables
type Store struct {
	db *sql.DB
}

// NewStore creates a new actor store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// LoadActor reads the user's tenant, roles, explicit grants and team
// relationships. Inactive or unknown users yield ErrActorNotFound.
func (s *Store) LoadActor(ctx context.Context, userID int64) (*Actor, error) {
	actor := &Actor{ID: userID}

	err := s.db.QueryRowContext(ctx,
		`SELECT company_id FROM users WHERE id = $1 AND is_active`, userID,
	).Scan(&actor.CompanyID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrActorNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	roleNames, err := s.queryStrings(ctx, `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	for _, name := range roleNames {
		if role := Role(name); role.Valid() {
			actor.Roles = append(actor.Roles, role)
		}
	}

	grants, err := s.queryStrings(ctx, `SELECT permission FROM user_permissions WHERE user_id = $1 ORDER BY permission`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user permissions: %w", err)
	}
	for _, g := range grants {
		if p, ok := ParsePermission(g); ok {
			actor.Permissions = append(actor.Permissions, p)
		}
	}

	if actor.TeamIDs, err = s.queryIDs(ctx,
		`SELECT team_id FROM team_members WHERE user_id = $1 ORDER BY team_id`, userID); err != nil {
		return nil, fmt.Errorf("failed to get team memberships: %w", err)
	}
	if actor.ManagedTeamIDs, err = s.queryIDs(ctx,
		`SELECT id FROM teams WHERE manager_id = $1 AND company_id = $2 ORDER BY id`, userID, actor.CompanyID); err != nil {
		return nil, fmt.Errorf("failed to get managed teams: %w", err)
	}
	if actor.CoordinatedTeamIDs, err = s.queryIDs(ctx,
		`SELECT id FROM teams WHERE coordinator_id = $1 AND company_id = $2 ORDER BY id`, userID, actor.CompanyID); err != nil {
		return nil, fmt.Errorf("failed to get coordinated teams: %w", err)
	}

	return actor, nil
}

// AssignRole grants a built-in role to a user
func (s *Store) AssignRole(ctx context.Context, userID int64, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, string(role))
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// RevokeRole removes a role from a user
func (s *Store) RevokeRole(ctx context.Context, userID int64, role Role) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role = $2`, userID, string(role))
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	return nil
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
