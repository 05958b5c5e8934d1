// File: internal/storage/sqlite.go
package storage

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/smartdevs17/activity-feed/pkg/utils"
	_ "modernc.org/sqlite"
)

// SQLiteStorage implements Storage using SQLite in WAL mode
type SQLiteStorage struct {
	*sqlStore
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(config *StorageConfig) *SQLiteStorage {
	return &SQLiteStorage{
		sqlStore: newSQLStore(config, dialect{
			name:       "sqlite",
			driver:     "sqlite",
			bindType:   sqlx.QUESTION,
			migrations: GetSQLiteMigrations(),
			greatest:   "MAX",
		}),
	}
}

// Connect establishes database connection
func (s *SQLiteStorage) Connect() error {
	path := s.config.ConnectionString
	inMemory := path == ":memory:" || strings.Contains(path, "mode=memory")

	// Ensure directory exists
	if !inMemory {
		dir := filepath.Dir(strings.TrimPrefix(strings.SplitN(path, "?", 2)[0], "file:"))
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return utils.WrapAppError(utils.ErrCodeDatabase, "Failed to create database directory", err)
			}
		}
	}

	if err := s.open(s.dsn()); err != nil {
		return err
	}

	// Every connection of an in-memory database would see its own empty database
	if inMemory {
		s.db.SetMaxOpenConns(1)
	}
	return nil
}

// dsn appends the pragmas every pooled connection needs
func (s *SQLiteStorage) dsn() string {
	busy := s.config.BusyTimeout.Milliseconds()
	if busy <= 0 {
		busy = 5000
	}

	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy))
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "synchronous(NORMAL)")
	if s.config.ConnectionString != ":memory:" {
		params.Add("_pragma", "journal_mode(WAL)")
	}

	sep := "?"
	if strings.Contains(s.config.ConnectionString, "?") {
		sep = "&"
	}
	return s.config.ConnectionString + sep + params.Encode()
}
