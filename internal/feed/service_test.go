package feed

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/smartdevs17/activity-feed/internal/config"
	"github.com/smartdevs17/activity-feed/internal/metrics"
	"github.com/smartdevs17/activity-feed/internal/models"
	"github.com/smartdevs17/activity-feed/internal/storage"
	"github.com/smartdevs17/activity-feed/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const team = int64(1)

func init() {
	utils.InitLogger("error", "text", "discard", "")
}

func newTestService(t *testing.T) (*Service, storage.Storage) {
	t.Helper()
	store := storage.NewSQLiteStorage(&storage.StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "feed.db"),
		MaxConnections:   4,
		MaxIdleTime:      time.Minute,
	})
	require.NoError(t, store.Connect())
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	retry := config.RetryConfig{MaxAttempts: 20, InitialInterval: time.Millisecond, MaxInterval: 20 * time.Millisecond}
	return NewService(store, retry, metrics.NewManager()), store
}

func record(t *testing.T, svc *Service, scope models.Scope, entity, author, activity string) *models.ActivityEntry {
	t.Helper()
	entry := &models.ActivityEntry{TeamID: team, Scope: scope, EntityID: entity, AuthorID: author, Activity: activity}
	require.NoError(t, svc.Append(context.Background(), entry))
	return entry
}

// seedScenario: A creates 11 insights, 2 flags and a notebook; B then C edit
// 7 of the insights, both flags and the notebook, in that order.
func seedScenario(t *testing.T, svc *Service) {
	for i := 0; i < 11; i++ {
		record(t, svc, models.ScopeInsight, fmt.Sprint(i), "A", models.ActivityCreated)
	}
	for i := 0; i < 2; i++ {
		record(t, svc, models.ScopeFeatureFlag, fmt.Sprint(i), "A", models.ActivityCreated)
	}
	record(t, svc, models.ScopeNotebook, "0", "A", models.ActivityCreated)

	for _, editor := range []string{"B", "C"} {
		for i := 0; i < 7; i++ {
			record(t, svc, models.ScopeInsight, fmt.Sprint(i), editor, models.ActivityUpdated)
		}
		for i := 0; i < 2; i++ {
			record(t, svc, models.ScopeFeatureFlag, fmt.Sprint(i), editor, models.ActivityUpdated)
		}
		record(t, svc, models.ScopeNotebook, "0", editor, models.ActivityUpdated)
	}
}

func scopes(items []*models.FeedItem) []models.Scope {
	out := make([]models.Scope, 0, len(items))
	for _, item := range items {
		out = append(out, item.Scope)
	}
	return out
}

func TestImportantChangesScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seedScenario(t, svc)

	expected := []models.Scope{
		models.ScopeNotebook, models.ScopeFeatureFlag, models.ScopeFeatureFlag,
		models.ScopeInsight, models.ScopeInsight, models.ScopeInsight, models.ScopeInsight,
		models.ScopeInsight, models.ScopeInsight, models.ScopeInsight,
	}

	for _, viewer := range []string{"A", "B"} {
		feed, err := svc.ImportantChanges(ctx, team, viewer)
		require.NoError(t, err)
		require.Len(t, feed.Results, PageSize, "viewer %s", viewer)
		assert.Equal(t, expected, scopes(feed.Results), "viewer %s", viewer)
		assert.True(t, feed.LastRead.Equal(models.Epoch))
		for _, item := range feed.Results {
			assert.Equal(t, "C", item.User.ID)
			assert.True(t, item.Unread)
			assert.Equal(t, models.ActivityUpdated, item.Activity)
		}
		t.Logf("✓ %s sees C's %d edits", viewer, len(feed.Results))
	}

	// C's own edits are never important changes to C; B's are older than
	// C's but still unread.
	feed, err := svc.ImportantChanges(ctx, team, "C")
	require.NoError(t, err)
	require.Len(t, feed.Results, PageSize)
	for _, item := range feed.Results {
		assert.NotEqual(t, "C", item.User.ID)
	}
	assert.Equal(t, "B", feed.Results[0].User.ID)
}

func TestBookmarkHidesReadChanges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seedScenario(t, svc)

	before, err := svc.ImportantChanges(ctx, team, "A")
	require.NoError(t, err)
	require.Len(t, before.Results, PageSize)

	bookmark := before.Results[2].CreatedAt
	require.NoError(t, svc.Bookmark(ctx, team, "A", bookmark))

	after, err := svc.ImportantChanges(ctx, team, "A")
	require.NoError(t, err)
	require.Len(t, after.Results, 2)
	assert.True(t, after.LastRead.Equal(bookmark))
	assert.Equal(t, before.Results[0].ID, after.Results[0].ID)
	assert.Equal(t, before.Results[1].ID, after.Results[1].ID)
	for _, item := range after.Results {
		assert.True(t, item.CreatedAt.After(after.LastRead))
		assert.True(t, item.Unread)
	}

	// An older bookmark is a no-op
	require.NoError(t, svc.Bookmark(ctx, team, "A", models.Epoch.Add(time.Second)))
	again, err := svc.ImportantChanges(ctx, team, "A")
	require.NoError(t, err)
	assert.True(t, again.LastRead.Equal(bookmark))
	assert.Len(t, again.Results, 2)

	// Bookmarks are per user
	other, err := svc.ImportantChanges(ctx, team, "B")
	require.NoError(t, err)
	assert.Len(t, other.Results, PageSize)

	count, lastRead, err := svc.UnreadCount(ctx, team, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.True(t, lastRead.Equal(bookmark))
}

func TestImportantChangesWithoutInterests(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	record(t, svc, models.ScopeInsight, "1", "A", models.ActivityCreated)

	feed, err := svc.ImportantChanges(ctx, team, "newcomer")
	require.NoError(t, err)
	assert.NotNil(t, feed.Results)
	assert.Empty(t, feed.Results)
	assert.True(t, feed.LastRead.Equal(models.Epoch))

	// Own activity alone never produces a feed
	feed, err = svc.ImportantChanges(ctx, team, "A")
	require.NoError(t, err)
	assert.Empty(t, feed.Results)
}

func TestInterestIsTransitiveThroughEditing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	record(t, svc, models.ScopeDashboard, "d1", "A", models.ActivityCreated)
	record(t, svc, models.ScopeDashboard, "d1", "B", models.ActivityUpdated)
	record(t, svc, models.ScopeDashboard, "d1", "C", models.ActivityUpdated)

	feed, err := svc.ImportantChanges(ctx, team, "B")
	require.NoError(t, err)
	require.Len(t, feed.Results, 2, "B sees A's creation and C's edit")
	assert.Equal(t, "C", feed.Results[0].User.ID)
	assert.Equal(t, "A", feed.Results[1].User.ID)

	refs, err := svc.Interests(ctx, team, "B")
	require.NoError(t, err)
	assert.Equal(t, []models.EntityRef{{Scope: models.ScopeDashboard, EntityID: "d1"}}, refs)
}

func TestTombstoneHidesEntity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	record(t, svc, models.ScopeInsight, "1", "A", models.ActivityCreated)
	record(t, svc, models.ScopeInsight, "2", "A", models.ActivityCreated)
	record(t, svc, models.ScopeInsight, "1", "B", models.ActivityUpdated)
	record(t, svc, models.ScopeInsight, "2", "B", models.ActivityUpdated)

	require.NoError(t, svc.Tombstone(ctx, &models.Tombstone{TeamID: team, Scope: models.ScopeInsight, EntityID: "1"}))
	require.NoError(t, svc.Tombstone(ctx, &models.Tombstone{TeamID: team, Scope: models.ScopeInsight, EntityID: "1"}), "repeat delete is harmless")

	feed, err := svc.ImportantChanges(ctx, team, "A")
	require.NoError(t, err)
	require.Len(t, feed.Results, 1)
	assert.Equal(t, "2", feed.Results[0].EntityID)

	err = svc.Tombstone(ctx, &models.Tombstone{TeamID: team, Scope: models.ScopeInsight})
	assert.True(t, utils.IsCode(err, utils.ErrCodeValidation))
}

func TestFeedValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ImportantChanges(ctx, 0, "A")
	assert.True(t, utils.IsCode(err, utils.ErrCodeValidation))
	_, err = svc.ImportantChanges(ctx, team, "")
	assert.True(t, utils.IsCode(err, utils.ErrCodeValidation))

	err = svc.Bookmark(ctx, team, "A", time.Time{})
	assert.True(t, utils.IsCode(err, utils.ErrCodeValidation))

	err = svc.Append(ctx, &models.ActivityEntry{TeamID: team, Scope: models.ScopeInsight, EntityID: "1"})
	assert.True(t, utils.IsCode(err, utils.ErrCodeValidation))
}

func TestConcurrentBookmarksKeepMaximum(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 1; i <= 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, svc.Bookmark(ctx, team, "A", base.Add(time.Duration(i)*time.Minute)))
		}(i)
	}
	wg.Wait()

	wm, err := store.GetWatermark(ctx, team, "A")
	require.NoError(t, err)
	require.NotNil(t, wm)
	assert.True(t, wm.LastRead.Equal(base.Add(16*time.Minute)), "got %s", wm.LastRead)
}

func TestMaterializedInterestsMatchScan(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedScenario(t, svc)
	record(t, svc, models.ScopePlugin, "p1", "B", models.ActivityCreated)

	tracker := NewInterestTracker(store)
	for _, user := range []string{"A", "B", "C", "nobody"} {
		indexed, err := tracker.EntitiesOfInterest(ctx, team, user)
		require.NoError(t, err)
		scanned, err := tracker.Scan(ctx, team, user)
		require.NoError(t, err)
		assert.Equal(t, scanned.Refs(), indexed.Refs(), "user %s", user)
	}
}

func TestFeedMatchesInMemoryOracle(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedScenario(t, svc)
	record(t, svc, models.ScopeExperiment, "e1", "C", models.ActivityCreated)
	record(t, svc, models.ScopeExperiment, "e1", "A", models.ActivityUpdated)

	all, err := store.QueryActivity(ctx, models.ActivityFilter{TeamID: team})
	require.NoError(t, err)

	for _, user := range []string{"A", "B", "C"} {
		interests, err := NewInterestTracker(store).Scan(ctx, team, user)
		require.NoError(t, err)

		var relevant []*models.ActivityEntry
		for _, entry := range all {
			if IsRelevant(entry, user, interests) {
				relevant = append(relevant, entry)
			}
		}
		expected := Rank(relevant, user, models.Epoch)

		feed, err := svc.ImportantChanges(ctx, team, user)
		require.NoError(t, err)
		require.Len(t, feed.Results, len(expected), "user %s", user)
		for i := range expected {
			assert.Equal(t, expected[i].ID, feed.Results[i].ID, "user %s position %d", user, i)
		}
	}
}
