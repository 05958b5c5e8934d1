package models

import (
	"encoding/json"
	"time"
)

// Epoch is the watermark of a user who never bookmarked
var Epoch = time.Unix(0, 0).UTC()

// Watermark is a user's read position within a team
type Watermark struct {
	TeamID    int64     `json:"team_id"`
	UserID    string    `json:"user_id"`
	LastRead  time.Time `json:"last_read"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FeedUser identifies the author of a feed item
type FeedUser struct {
	ID string `json:"id"`
}

// FeedItem is an activity entry annotated for a viewing user
type FeedItem struct {
	ID        int64           `json:"id"`
	TeamID    int64           `json:"team_id"`
	Scope     Scope           `json:"scope"`
	EntityID  string          `json:"entity_id"`
	Activity  string          `json:"activity"`
	User      FeedUser        `json:"user"`
	CreatedAt time.Time       `json:"created_at"`
	Unread    bool            `json:"unread"`
	Detail    json.RawMessage `json:"detail,omitempty"`
}

// NewFeedItem projects an entry into a feed item
func NewFeedItem(entry *ActivityEntry, unread bool) *FeedItem {
	return &FeedItem{
		ID:        entry.ID,
		TeamID:    entry.TeamID,
		Scope:     entry.Scope,
		EntityID:  entry.EntityID,
		Activity:  entry.Activity,
		User:      FeedUser{ID: entry.AuthorID},
		CreatedAt: entry.CreatedAt,
		Unread:    unread,
		Detail:    entry.Detail,
	}
}

// Feed is the important changes response for one user
type Feed struct {
	Results  []*FeedItem `json:"results"`
	LastRead time.Time   `json:"last_read"`
}
