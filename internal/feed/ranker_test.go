package feed

import (
	"testing"
	"time"

	"github.com/smartdevs17/activity-feed/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryAt(id int64, author string, at time.Time) *models.ActivityEntry {
	return &models.ActivityEntry{
		ID: id, TeamID: 1, Scope: models.ScopeInsight, EntityID: "1",
		AuthorID: author, Activity: models.ActivityUpdated, CreatedAt: at,
	}
}

func TestRankOrdersNewestFirstWithIDTieBreak(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	items := Rank([]*models.ActivityEntry{
		entryAt(1, "b", base.Add(time.Second)),
		entryAt(3, "b", base.Add(3*time.Second)),
		entryAt(4, "b", base.Add(3*time.Second)),
		entryAt(2, "b", base.Add(2*time.Second)),
	}, "a", models.Epoch)

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
		assert.True(t, item.Unread)
	}
	assert.Equal(t, []int64{4, 3, 2, 1}, ids)
}

func TestRankCapsAtPageSize(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var candidates []*models.ActivityEntry
	for i := 1; i <= 25; i++ {
		candidates = append(candidates, entryAt(int64(i), "b", base.Add(time.Duration(i)*time.Second)))
	}

	items := Rank(candidates, "a", models.Epoch)
	require.Len(t, items, PageSize)
	assert.Equal(t, int64(25), items[0].ID)
	assert.Equal(t, int64(16), items[PageSize-1].ID)
}

func TestRankDropsSelfAuthoredAndRead(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lastRead := base.Add(2 * time.Second)

	items := Rank([]*models.ActivityEntry{
		entryAt(1, "b", base.Add(time.Second)),
		entryAt(2, "b", lastRead),
		entryAt(3, "a", base.Add(3*time.Second)),
		entryAt(4, "b", base.Add(4*time.Second)),
	}, "a", lastRead)

	require.Len(t, items, 1)
	assert.Equal(t, int64(4), items[0].ID)
	assert.Equal(t, "b", items[0].User.ID)
}

func TestRankEmpty(t *testing.T) {
	items := Rank(nil, "a", models.Epoch)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestIsRelevant(t *testing.T) {
	interests := models.NewEntitySet(models.EntityRef{Scope: models.ScopeInsight, EntityID: "1"})

	assert.True(t, IsRelevant(entryAt(1, "b", time.Now()), "a", interests))
	assert.False(t, IsRelevant(entryAt(1, "a", time.Now()), "a", interests), "self-authored")

	other := entryAt(2, "b", time.Now())
	other.EntityID = "2"
	assert.False(t, IsRelevant(other, "a", interests), "not of interest")
}
