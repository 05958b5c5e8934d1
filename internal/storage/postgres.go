package storage

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgreSQLStorage implements Storage using PostgreSQL
type PostgreSQLStorage struct {
	*sqlStore
}

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
func NewPostgreSQLStorage(config *StorageConfig) *PostgreSQLStorage {
	return &PostgreSQLStorage{
		sqlStore: newSQLStore(config, dialect{
			name:       "postgres",
			driver:     "postgres",
			bindType:   sqlx.DOLLAR,
			migrations: GetPostgresMigrations(),
			snapshot: &sql.TxOptions{
				Isolation: sql.LevelRepeatableRead,
				ReadOnly:  true,
			},
			appendLock: `SELECT pg_advisory_xact_lock(hashtextextended('activity_log:' || CAST(? AS TEXT), 0))`,
			greatest:   "GREATEST",
		}),
	}
}

// Connect establishes database connection
func (p *PostgreSQLStorage) Connect() error {
	return p.open(p.config.ConnectionString)
}
