package feed

import (
	"sort"
	"time"

	"github.com/smartdevs17/activity-feed/internal/models"
)

// PageSize is the maximum number of important changes returned at once
const PageSize = 10

// Rank turns candidate entries into the user's feed page: entries after
// lastRead not written by the user, newest first with ties broken by id,
// capped at PageSize. Every returned item is unread.
func Rank(candidates []*models.ActivityEntry, userID string, lastRead time.Time) []*models.FeedItem {
	kept := make([]*models.ActivityEntry, 0, len(candidates))
	for _, entry := range candidates {
		if entry.AuthorID == userID || !entry.CreatedAt.After(lastRead) {
			continue
		}
		kept = append(kept, entry)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[j].Before(kept[i])
	})
	if len(kept) > PageSize {
		kept = kept[:PageSize]
	}

	items := make([]*models.FeedItem, 0, len(kept))
	for _, entry := range kept {
		items = append(items, models.NewFeedItem(entry, true))
	}
	return items
}
