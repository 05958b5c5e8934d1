package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/activity-feed/internal/metrics"
	"github.com/smartdevs17/activity-feed/internal/models"
)

// StorageWithMetrics wraps a storage implementation with metrics
type StorageWithMetrics struct {
	Storage
	metricsManager *metrics.Manager
}

// NewStorageWithMetrics creates a storage wrapper with metrics
func NewStorageWithMetrics(storage Storage, metricsManager *metrics.Manager) *StorageWithMetrics {
	return &StorageWithMetrics{
		Storage:        storage,
		metricsManager: metricsManager,
	}
}

func (s *StorageWithMetrics) record(operation, table string, start time.Time, err error) {
	if s.metricsManager == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metricsManager.GetPrometheusMetrics().RecordDatabaseOperation(operation, table, status, time.Since(start))
}

// AppendActivity appends an entry and records metrics
func (s *StorageWithMetrics) AppendActivity(ctx context.Context, entry *models.ActivityEntry) error {
	start := time.Now()
	err := s.Storage.AppendActivity(ctx, entry)
	s.record("insert", "activity_log", start, err)
	return err
}

// QueryActivity queries entries and records metrics
func (s *StorageWithMetrics) QueryActivity(ctx context.Context, filter models.ActivityFilter) ([]*models.ActivityEntry, error) {
	start := time.Now()
	entries, err := s.Storage.QueryActivity(ctx, filter)
	s.record("select", "activity_log", start, err)
	return entries, err
}

// CountActivity counts entries and records metrics
func (s *StorageWithMetrics) CountActivity(ctx context.Context, filter models.ActivityFilter) (int64, error) {
	start := time.Now()
	count, err := s.Storage.CountActivity(ctx, filter)
	s.record("count", "activity_log", start, err)
	return count, err
}

// ReadSnapshot runs a snapshot read and records metrics
func (s *StorageWithMetrics) ReadSnapshot(ctx context.Context, fn func(ActivityReader) error) error {
	start := time.Now()
	err := s.Storage.ReadSnapshot(ctx, fn)
	s.record("snapshot", "activity_log", start, err)
	return err
}

// AdvanceWatermark advances a watermark and records metrics
func (s *StorageWithMetrics) AdvanceWatermark(ctx context.Context, teamID int64, userID string, ts time.Time) (bool, error) {
	start := time.Now()
	moved, err := s.Storage.AdvanceWatermark(ctx, teamID, userID, ts)
	s.record("update", "activity_watermarks", start, err)
	return moved, err
}

// PutTombstone stores a tombstone and records metrics
func (s *StorageWithMetrics) PutTombstone(ctx context.Context, tombstone *models.Tombstone) error {
	start := time.Now()
	err := s.Storage.PutTombstone(ctx, tombstone)
	s.record("insert", "activity_tombstones", start, err)
	return err
}

// GetHealth probes storage and records component health
func (s *StorageWithMetrics) GetHealth(ctx context.Context) *StorageHealth {
	health := s.Storage.GetHealth(ctx)
	if s.metricsManager != nil {
		s.metricsManager.GetPrometheusMetrics().UpdateComponentHealth("storage", health.Healthy)
	}
	return health
}
