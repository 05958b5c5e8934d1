package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/activity-feed/pkg/utils"
)

// Migration represents a database migration
type Migration struct {
	Version     int       `db:"version"`
	Description string    `db:"description"`
	SQL         string    `db:"-"`
	AppliedAt   time.Time `db:"-"`
}

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at BIGINT NOT NULL
	)
`

// GetSQLiteMigrations returns SQLite migration scripts
func GetSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version:     1,
			Description: "Create activity log table",
			SQL: `
				CREATE TABLE IF NOT EXISTS activity_log (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					team_id INTEGER NOT NULL,
					scope TEXT NOT NULL,
					entity_id TEXT NOT NULL,
					author_id TEXT NOT NULL,
					activity TEXT NOT NULL,
					detail TEXT,
					created_at INTEGER NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_activity_entity ON activity_log(team_id, scope, entity_id, created_at);
				CREATE INDEX IF NOT EXISTS idx_activity_author ON activity_log(team_id, author_id);
				CREATE INDEX IF NOT EXISTS idx_activity_created ON activity_log(team_id, created_at);
			`,
		},
		{
			Version:     2,
			Description: "Create interest index",
			SQL: `
				CREATE TABLE IF NOT EXISTS activity_interests (
					team_id INTEGER NOT NULL,
					user_id TEXT NOT NULL,
					scope TEXT NOT NULL,
					entity_id TEXT NOT NULL,
					first_seen_at INTEGER NOT NULL,
					PRIMARY KEY (team_id, user_id, scope, entity_id)
				);
			`,
		},
		{
			Version:     3,
			Description: "Create watermarks table",
			SQL: `
				CREATE TABLE IF NOT EXISTS activity_watermarks (
					team_id INTEGER NOT NULL,
					user_id TEXT NOT NULL,
					last_read INTEGER NOT NULL,
					version INTEGER NOT NULL DEFAULT 1,
					updated_at INTEGER NOT NULL,
					PRIMARY KEY (team_id, user_id)
				);
			`,
		},
		{
			Version:     4,
			Description: "Create tombstones table",
			SQL: `
				CREATE TABLE IF NOT EXISTS activity_tombstones (
					team_id INTEGER NOT NULL,
					scope TEXT NOT NULL,
					entity_id TEXT NOT NULL,
					deleted_at INTEGER NOT NULL,
					PRIMARY KEY (team_id, scope, entity_id)
				);
			`,
		},
	}
}

// GetPostgresMigrations returns PostgreSQL migration scripts
func GetPostgresMigrations() []*Migration {
	return []*Migration{
		{
			Version:     1,
			Description: "Create activity log table",
			SQL: `
				CREATE TABLE IF NOT EXISTS activity_log (
					id BIGSERIAL PRIMARY KEY,
					team_id BIGINT NOT NULL,
					scope VARCHAR(79) NOT NULL,
					entity_id VARCHAR(72) NOT NULL,
					author_id VARCHAR(200) NOT NULL,
					activity VARCHAR(79) NOT NULL,
					detail TEXT,
					created_at BIGINT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_activity_entity ON activity_log(team_id, scope, entity_id, created_at);
				CREATE INDEX IF NOT EXISTS idx_activity_author ON activity_log(team_id, author_id);
				CREATE INDEX IF NOT EXISTS idx_activity_created ON activity_log(team_id, created_at);
			`,
		},
		{
			Version:     2,
			Description: "Create interest index",
			SQL: `
				CREATE TABLE IF NOT EXISTS activity_interests (
					team_id BIGINT NOT NULL,
					user_id VARCHAR(200) NOT NULL,
					scope VARCHAR(79) NOT NULL,
					entity_id VARCHAR(72) NOT NULL,
					first_seen_at BIGINT NOT NULL,
					PRIMARY KEY (team_id, user_id, scope, entity_id)
				);
			`,
		},
		{
			Version:     3,
			Description: "Create watermarks table",
			SQL: `
				CREATE TABLE IF NOT EXISTS activity_watermarks (
					team_id BIGINT NOT NULL,
					user_id VARCHAR(200) NOT NULL,
					last_read BIGINT NOT NULL,
					version BIGINT NOT NULL DEFAULT 1,
					updated_at BIGINT NOT NULL,
					PRIMARY KEY (team_id, user_id)
				);
			`,
		},
		{
			Version:     4,
			Description: "Create tombstones table",
			SQL: `
				CREATE TABLE IF NOT EXISTS activity_tombstones (
					team_id BIGINT NOT NULL,
					scope VARCHAR(79) NOT NULL,
					entity_id VARCHAR(72) NOT NULL,
					deleted_at BIGINT NOT NULL,
					PRIMARY KEY (team_id, scope, entity_id)
				);
			`,
		},
	}
}

// applyMigrations runs every migration newer than the recorded schema
// version, each in its own transaction together with its version row.
func (s *sqlStore) applyMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return utils.WrapAppError(utils.ErrCodeDatabase, "Failed to create migrations table", err)
	}

	current, err := s.schemaVersion(ctx, s.db)
	if err != nil {
		return err
	}

	for _, migration := range s.dialect.migrations {
		if migration.Version <= current {
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("Applying migration")

		if err := s.applyMigration(ctx, migration); err != nil {
			return utils.WrapAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %03d failed", migration.Version), err)
		}
	}
	return nil
}

func (s *sqlStore) applyMigration(ctx context.Context, migration *Migration) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		return err
	}
	insert := s.db.Rebind(`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insert, migration.Version, migration.Description, toMicros(time.Now())); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqlStore) schemaVersion(ctx context.Context, q sqlx.QueryerContext) (int, error) {
	var version int
	if err := sqlx.GetContext(ctx, q, &version, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
		return 0, classifyError("read schema version", err)
	}
	return version, nil
}
