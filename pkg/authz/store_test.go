package authz

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY,
			company_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE user_roles (
			user_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			PRIMARY KEY (user_id, role)
		);

		CREATE TABLE user_permissions (
			user_id INTEGER NOT NULL,
			permission TEXT NOT NULL,
			PRIMARY KEY (user_id, permission)
		);

		CREATE TABLE teams (
			id INTEGER PRIMARY KEY,
			company_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			manager_id INTEGER,
			coordinator_id INTEGER
		);

		CREATE TABLE team_members (
			team_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			PRIMARY KEY (team_id, user_id)
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}

	return db
}

func seedActorFixtures(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO users (id, company_id, name, is_active) VALUES
			(1, 10, 'Aisyah', 1),
			(2, 10, 'Ravi', 1),
			(3, 10, 'Former', 0);

		INSERT INTO user_roles (user_id, role) VALUES
			(1, 'sales_coordinator'),
			(1, 'sales_executive'),
			(1, 'legacy_role'),
			(2, 'sales_manager');

		INSERT INTO user_permissions (user_id, permission) VALUES
			(1, 'invoice:export'),
			(1, 'malformed');

		INSERT INTO teams (id, company_id, name, manager_id, coordinator_id) VALUES
			(100, 10, 'North', 2, 1),
			(101, 10, 'South', 2, NULL),
			(102, 20, 'Elsewhere', NULL, 1);

		INSERT INTO team_members (team_id, user_id) VALUES
			(100, 1),
			(101, 1);
	`)
	if err != nil {
		t.Fatalf("Failed to seed fixtures: %v", err)
	}
}

func TestStore_LoadActor(t *testing.T) {
	db := setupTestDB(t)
	seedActorFixtures(t, db)
	store := NewStore(db)

	actor, err := store.LoadActor(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, int64(10), actor.CompanyID)
	assert.Equal(t, []Role{RoleSalesCoordinator, RoleSalesExecutive}, actor.Roles, "unknown roles are dropped")
	assert.Equal(t, []Permission{{Resource: ResourceInvoice, Action: ActionExport}}, actor.Permissions)
	assert.Equal(t, []int64{100, 101}, actor.TeamIDs)
	assert.Empty(t, actor.ManagedTeamIDs)
	assert.Equal(t, []int64{100}, actor.CoordinatedTeamIDs, "teams of other companies are ignored")

	manager, err := store.LoadActor(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 101}, manager.ManagedTeamIDs)
}

func TestStore_LoadActor_NotFound(t *testing.T) {
	db := setupTestDB(t)
	seedActorFixtures(t, db)
	store := NewStore(db)

	for _, userID := range []int64{3, 404} {
		_, err := store.LoadActor(context.Background(), userID)
		if !errors.Is(err, ErrActorNotFound) {
			t.Errorf("LoadActor(%d) error = %v, want ErrActorNotFound", userID, err)
		}
	}
}

func TestStore_AssignAndRevokeRole(t *testing.T) {
	db := setupTestDB(t)
	seedActorFixtures(t, db)
	store := NewStore(db)
	ctx := context.Background()

	require.NoError(t, store.AssignRole(ctx, 2, RoleFinanceManager))
	require.NoError(t, store.AssignRole(ctx, 2, RoleFinanceManager), "assigning twice is a no-op")

	actor, err := store.LoadActor(ctx, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Role{RoleFinanceManager, RoleSalesManager}, actor.Roles)

	require.NoError(t, store.RevokeRole(ctx, 2, RoleSalesManager))
	actor, err = store.LoadActor(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []Role{RoleFinanceManager}, actor.Roles)

	assert.Error(t, store.AssignRole(ctx, 2, Role("owner")))
}
