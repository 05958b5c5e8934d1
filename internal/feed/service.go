package feed

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/activity-feed/internal/config"
	"github.com/smartdevs17/activity-feed/internal/metrics"
	"github.com/smartdevs17/activity-feed/internal/models"
	"github.com/smartdevs17/activity-feed/internal/storage"
	"github.com/smartdevs17/activity-feed/pkg/utils"
)

// Service is the activity log and important changes feed
type Service struct {
	store   storage.Storage
	retry   config.RetryConfig
	metrics *metrics.PrometheusMetrics
	logger  *logrus.Entry
}

// NewService creates a feed service over store. metricsManager may be nil.
func NewService(store storage.Storage, retry config.RetryConfig, metricsManager *metrics.Manager) *Service {
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryConfig
	}
	s := &Service{
		store:  store,
		retry:  retry,
		logger: utils.ComponentLogger("feed"),
	}
	if metricsManager != nil {
		s.metrics = metricsManager.GetPrometheusMetrics()
	}
	return s
}

// Append records an activity entry on behalf of a collaborating service.
// The entry's ID and CreatedAt are filled in on success.
func (s *Service) Append(ctx context.Context, entry *models.ActivityEntry) error {
	err := s.withRetry(ctx, "append", func() error {
		return s.store.AppendActivity(ctx, entry)
	})

	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = utils.ErrorCode(err)
		}
		scope := ""
		if entry != nil {
			scope = string(entry.Scope)
		}
		s.metrics.RecordActivityAppended(scope, status)
	}
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"team_id":   entry.TeamID,
		"scope":     entry.Scope,
		"entity_id": entry.EntityID,
		"author_id": entry.AuthorID,
		"id":        entry.ID,
	}).Debug("Activity appended")
	return nil
}

// ImportantChanges returns the user's unread important changes, newest
// first and at most PageSize of them, with the watermark they were computed
// against. The watermark and the candidates are read from one snapshot.
func (s *Service) ImportantChanges(ctx context.Context, teamID int64, userID string) (*models.Feed, error) {
	start := time.Now()
	feed, err := s.importantChanges(ctx, teamID, userID)

	if s.metrics != nil {
		status := "success"
		results := 0
		if err != nil {
			status = "error"
		} else {
			results = len(feed.Results)
		}
		s.metrics.RecordFeedRequest(status, results, time.Since(start))
	}
	return feed, err
}

func (s *Service) importantChanges(ctx context.Context, teamID int64, userID string) (*models.Feed, error) {
	if err := validateViewer(teamID, userID); err != nil {
		return nil, err
	}

	var feed *models.Feed
	err := s.withRetry(ctx, "important_changes", func() error {
		return s.store.ReadSnapshot(ctx, func(r storage.ActivityReader) error {
			lastRead, err := lastReadOf(ctx, r, teamID, userID)
			if err != nil {
				return err
			}

			candidates, err := NewRelevanceFilter(r).RelevantEntries(ctx, teamID, userID, lastRead, PageSize)
			if err != nil {
				return err
			}

			feed = &models.Feed{
				Results:  Rank(candidates, userID, lastRead),
				LastRead: lastRead,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return feed, nil
}

// UnreadCount counts all unread important changes, without the page cap
func (s *Service) UnreadCount(ctx context.Context, teamID int64, userID string) (int64, time.Time, error) {
	if err := validateViewer(teamID, userID); err != nil {
		return 0, time.Time{}, err
	}

	var (
		count    int64
		lastRead time.Time
	)
	err := s.withRetry(ctx, "unread_count", func() error {
		return s.store.ReadSnapshot(ctx, func(r storage.ActivityReader) error {
			var err error
			if lastRead, err = lastReadOf(ctx, r, teamID, userID); err != nil {
				return err
			}
			count, err = NewRelevanceFilter(r).CountRelevant(ctx, teamID, userID, lastRead)
			return err
		})
	})
	if err != nil {
		return 0, time.Time{}, err
	}
	return count, lastRead, nil
}

// Bookmark marks everything up to and including ts as read. The watermark
// only moves forward; an older ts is accepted and changes nothing.
func (s *Service) Bookmark(ctx context.Context, teamID int64, userID string, ts time.Time) error {
	if result := storage.ValidateBookmark(teamID, userID, ts); !result.Valid {
		s.recordBookmark("invalid")
		return result.Err("Bookmark validation failed")
	}

	var moved bool
	err := s.withRetry(ctx, "bookmark", func() error {
		var err error
		moved, err = s.store.AdvanceWatermark(ctx, teamID, userID, ts)
		return err
	})
	if err != nil {
		s.recordBookmark("error")
		return err
	}

	outcome := "unchanged"
	if moved {
		outcome = "advanced"
	}
	s.recordBookmark(outcome)

	s.logger.WithFields(logrus.Fields{
		"team_id":  teamID,
		"user_id":  userID,
		"bookmark": ts,
		"outcome":  outcome,
	}).Debug("Bookmark processed")
	return nil
}

// Tombstone hides an entity's activity from every feed
func (s *Service) Tombstone(ctx context.Context, tombstone *models.Tombstone) error {
	err := s.withRetry(ctx, "tombstone", func() error {
		return s.store.PutTombstone(ctx, tombstone)
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordTombstone()
	}
	s.logger.WithFields(logrus.Fields{
		"team_id":   tombstone.TeamID,
		"scope":     tombstone.Scope,
		"entity_id": tombstone.EntityID,
	}).Info("Entity tombstoned")
	return nil
}

// Interests returns the entities the user is interested in
func (s *Service) Interests(ctx context.Context, teamID int64, userID string) ([]models.EntityRef, error) {
	if err := validateViewer(teamID, userID); err != nil {
		return nil, err
	}
	var set models.EntitySet
	err := s.withRetry(ctx, "interests", func() error {
		var err error
		set, err = NewInterestTracker(s.store).EntitiesOfInterest(ctx, teamID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return set.Refs(), nil
}

func (s *Service) recordBookmark(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordBookmark(outcome)
	}
}

func lastReadOf(ctx context.Context, r storage.ActivityReader, teamID int64, userID string) (time.Time, error) {
	wm, err := r.GetWatermark(ctx, teamID, userID)
	if err != nil {
		return time.Time{}, err
	}
	if wm == nil {
		return models.Epoch, nil
	}
	return wm.LastRead, nil
}

func validateViewer(teamID int64, userID string) error {
	if teamID <= 0 {
		return utils.NewAppError(utils.ErrCodeValidation, "Team ID must be positive")
	}
	if userID == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "User ID is required")
	}
	return nil
}
