package feed

import (
	"context"
	"time"

	"github.com/smartdevs17/activity-feed/internal/models"
	"github.com/smartdevs17/activity-feed/internal/storage"
)

// RelevanceFilter selects entries that are important changes for a user:
// entries on entities of interest to the user, written by someone else,
// for entities that have not been deleted.
type RelevanceFilter struct {
	reader storage.ActivityReader
}

// NewRelevanceFilter creates a filter reading from r
func NewRelevanceFilter(r storage.ActivityReader) *RelevanceFilter {
	return &RelevanceFilter{reader: r}
}

// Filter returns the storage filter for entries relevant to userID created after after
func (f *RelevanceFilter) Filter(teamID int64, userID string, after time.Time, limit int) models.ActivityFilter {
	return models.ActivityFilter{
		TeamID:            teamID,
		InterestedUser:    &userID,
		ExcludeAuthor:     &userID,
		After:             &after,
		ExcludeTombstoned: true,
		Limit:             limit,
	}
}

// RelevantEntries returns up to limit relevant entries newer than after,
// newest first. A limit of zero returns all of them.
func (f *RelevanceFilter) RelevantEntries(ctx context.Context, teamID int64, userID string, after time.Time, limit int) ([]*models.ActivityEntry, error) {
	return f.reader.QueryActivity(ctx, f.Filter(teamID, userID, after, limit))
}

// CountRelevant counts relevant entries newer than after
func (f *RelevanceFilter) CountRelevant(ctx context.Context, teamID int64, userID string, after time.Time) (int64, error) {
	return f.reader.CountActivity(ctx, f.Filter(teamID, userID, after, 0))
}

// IsRelevant is the relevance predicate evaluated in memory
func IsRelevant(entry *models.ActivityEntry, userID string, interests models.EntitySet) bool {
	return entry.AuthorID != userID && interests.Contains(entry.Ref())
}
