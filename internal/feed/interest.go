package feed

import (
	"context"

	"github.com/smartdevs17/activity-feed/internal/models"
	"github.com/smartdevs17/activity-feed/internal/storage"
)

// InterestTracker answers which entities a user cares about: every entity
// the user ever authored an entry for, created or edited. Interest never expires.
type InterestTracker struct {
	reader storage.ActivityReader
}

// NewInterestTracker creates a tracker reading from r
func NewInterestTracker(r storage.ActivityReader) *InterestTracker {
	return &InterestTracker{reader: r}
}

// EntitiesOfInterest reads the user's interest set from the materialized index
func (t *InterestTracker) EntitiesOfInterest(ctx context.Context, teamID int64, userID string) (models.EntitySet, error) {
	refs, err := t.reader.ListInterests(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}
	return models.NewEntitySet(refs...), nil
}

// Scan derives the interest set from the log itself by projecting the
// user's own entries onto their entities.
func (t *InterestTracker) Scan(ctx context.Context, teamID int64, userID string) (models.EntitySet, error) {
	entries, err := t.reader.QueryActivity(ctx, models.ActivityFilter{
		TeamID: teamID,
		Author: &userID,
	})
	if err != nil {
		return nil, err
	}

	set := models.NewEntitySet()
	for _, entry := range entries {
		set.Add(entry.Ref())
	}
	return set, nil
}
