// File: internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/activity-feed/internal/models"
)

// ActivityReader groups the read side of the activity log. Every method is
// side effect free.
type ActivityReader interface {
	// QueryActivity returns matching entries ordered by (created_at, id),
	// newest first unless the filter asks for ascending order.
	QueryActivity(ctx context.Context, filter models.ActivityFilter) ([]*models.ActivityEntry, error)
	CountActivity(ctx context.Context, filter models.ActivityFilter) (int64, error)

	// ListInterests returns the entities the user authored entries for
	ListInterests(ctx context.Context, teamID int64, userID string) ([]models.EntityRef, error)

	// GetWatermark returns nil without error when the user never bookmarked
	GetWatermark(ctx context.Context, teamID int64, userID string) (*models.Watermark, error)
}

// ActivityStore is the append-only write side of the log
type ActivityStore interface {
	// AppendActivity validates and durably records entry, assigning its ID and
	// CreatedAt. The author's interest edge is written in the same transaction.
	AppendActivity(ctx context.Context, entry *models.ActivityEntry) error
}

// WatermarkStore keeps one forward-only read position per (team, user)
type WatermarkStore interface {
	GetWatermark(ctx context.Context, teamID int64, userID string) (*models.Watermark, error)

	// AdvanceWatermark moves the watermark to ts if ts is later than the
	// stored value and reports whether it moved. A lost race against another
	// writer returns a CONCURRENCY_ERROR.
	AdvanceWatermark(ctx context.Context, teamID int64, userID string, ts time.Time) (bool, error)
}

// TombstoneStore records entity deletions
type TombstoneStore interface {
	PutTombstone(ctx context.Context, tombstone *models.Tombstone) error
}

// Storage defines the full storage backend
type Storage interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	ActivityReader
	ActivityStore
	WatermarkStore
	TombstoneStore

	// ReadSnapshot runs fn against a single consistent read view
	ReadSnapshot(ctx context.Context, fn func(ActivityReader) error) error

	// Statistics and monitoring
	GetStats(ctx context.Context) (*StorageStats, error)
	GetHealth(ctx context.Context) *StorageHealth
}

// StorageStats provides storage statistics
type StorageStats struct {
	Backend         string     `json:"backend"`
	SchemaVersion   int        `json:"schema_version"`
	TotalEntries    int64      `json:"total_entries"`
	TotalInterests  int64      `json:"total_interests"`
	TotalWatermarks int64      `json:"total_watermarks"`
	TotalTombstones int64      `json:"total_tombstones"`
	OldestEntry     *time.Time `json:"oldest_entry,omitempty"`
	LatestEntry     *time.Time `json:"latest_entry,omitempty"`
}

// StorageHealth is the result of a storage health probe
type StorageHealth struct {
	Healthy   bool          `json:"healthy"`
	Backend   string        `json:"backend"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
	BusyTimeout      time.Duration `json:"busy_timeout"`
}
