package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntitySetDeduplicatesAndSorts(t *testing.T) {
	set := NewEntitySet(
		EntityRef{Scope: ScopeNotebook, EntityID: "2"},
		EntityRef{Scope: ScopeInsight, EntityID: "9"},
		EntityRef{Scope: ScopeNotebook, EntityID: "2"},
		EntityRef{Scope: ScopeInsight, EntityID: "10"},
	)

	assert.Len(t, set, 3)
	assert.True(t, set.Contains(EntityRef{Scope: ScopeInsight, EntityID: "9"}))
	assert.False(t, set.Contains(EntityRef{Scope: ScopeFeatureFlag, EntityID: "9"}))
	assert.Equal(t, []EntityRef{
		{Scope: ScopeInsight, EntityID: "10"},
		{Scope: ScopeInsight, EntityID: "9"},
		{Scope: ScopeNotebook, EntityID: "2"},
	}, set.Refs())
}

func TestEntryOrdering(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &ActivityEntry{ID: 1, CreatedAt: at}
	b := &ActivityEntry{ID: 2, CreatedAt: at}
	c := &ActivityEntry{ID: 0, CreatedAt: at.Add(time.Microsecond)}

	assert.True(t, a.Before(b), "ties break on id")
	assert.False(t, b.Before(a))
	assert.True(t, b.Before(c))
}

func TestFeedItemWireFormat(t *testing.T) {
	entry := &ActivityEntry{
		ID: 7, TeamID: 1, Scope: ScopeFeatureFlag, EntityID: "42", AuthorID: "bob",
		Activity: ActivityUpdated, CreatedAt: time.Date(2024, 2, 3, 4, 5, 6, 789000, time.UTC),
		Detail: json.RawMessage(`{"name":"beta"}`),
	}

	raw, err := json.Marshal(Feed{Results: []*FeedItem{NewFeedItem(entry, true)}, LastRead: Epoch})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"results": [{
			"id": 7, "team_id": 1, "scope": "FeatureFlag", "entity_id": "42",
			"activity": "updated", "user": {"id": "bob"},
			"created_at": "2024-02-03T04:05:06.000789Z", "unread": true,
			"detail": {"name": "beta"}
		}],
		"last_read": "1970-01-01T00:00:00Z"
	}`, string(raw))
}
