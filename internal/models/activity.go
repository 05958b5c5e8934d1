package models

import (
	"encoding/json"
	"sort"
	"time"
)

// Scope is the type tag of a tracked entity
type Scope string

const (
	ScopeInsight     Scope = "Insight"
	ScopeFeatureFlag Scope = "FeatureFlag"
	ScopeNotebook    Scope = "Notebook"
	ScopeDashboard   Scope = "Dashboard"
	ScopeExperiment  Scope = "Experiment"
	ScopePerson      Scope = "Person"
	ScopePlugin      Scope = "Plugin"
)

// Common activity verbs. The set is open; the feed never interprets it.
const (
	ActivityCreated = "created"
	ActivityUpdated = "updated"
	ActivityDeleted = "deleted"
)

// ActivityEntry is one immutable record of a mutation to a tracked entity.
// ID and CreatedAt are assigned by the store on append.
type ActivityEntry struct {
	ID        int64           `json:"id"`
	TeamID    int64           `json:"team_id"`
	Scope     Scope           `json:"scope"`
	EntityID  string          `json:"entity_id"`
	AuthorID  string          `json:"author_id"`
	Activity  string          `json:"activity"`
	CreatedAt time.Time       `json:"created_at"`
	Detail    json.RawMessage `json:"detail,omitempty"`
}

// Ref returns the entity the entry belongs to
func (e *ActivityEntry) Ref() EntityRef {
	return EntityRef{Scope: e.Scope, EntityID: e.EntityID}
}

// Before reports whether e sorts before other in ascending (created_at, id) order
func (e *ActivityEntry) Before(other *ActivityEntry) bool {
	if !e.CreatedAt.Equal(other.CreatedAt) {
		return e.CreatedAt.Before(other.CreatedAt)
	}
	return e.ID < other.ID
}

// EntityRef identifies an entity within its scope
type EntityRef struct {
	Scope    Scope  `json:"scope"`
	EntityID string `json:"entity_id"`
}

// InterestEdge records that a user created or edited an entity
type InterestEdge struct {
	TeamID   int64  `json:"team_id"`
	UserID   string `json:"user_id"`
	Scope    Scope  `json:"scope"`
	EntityID string `json:"entity_id"`
}

// EntitySet is a set of entity references
type EntitySet map[EntityRef]struct{}

// NewEntitySet builds a set from refs
func NewEntitySet(refs ...EntityRef) EntitySet {
	set := make(EntitySet, len(refs))
	for _, ref := range refs {
		set.Add(ref)
	}
	return set
}

// Add inserts ref into the set
func (s EntitySet) Add(ref EntityRef) {
	s[ref] = struct{}{}
}

// Contains reports whether ref is in the set
func (s EntitySet) Contains(ref EntityRef) bool {
	_, ok := s[ref]
	return ok
}

// Refs returns the members sorted by scope then entity id
func (s EntitySet) Refs() []EntityRef {
	refs := make([]EntityRef, 0, len(s))
	for ref := range s {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Scope != refs[j].Scope {
			return refs[i].Scope < refs[j].Scope
		}
		return refs[i].EntityID < refs[j].EntityID
	})
	return refs
}

// ActivityFilter for querying activity entries. Nil pointer fields are not applied.
type ActivityFilter struct {
	TeamID int64 `json:"team_id,omitempty"`
	// Entities restricts results to the listed entities. A non-nil empty
	// slice matches nothing.
	Entities []EntityRef `json:"entities,omitempty"`
	// InterestedUser restricts results to entities in the user's interest index.
	InterestedUser    *string    `json:"interested_user,omitempty"`
	Author            *string    `json:"author,omitempty"`
	ExcludeAuthor     *string    `json:"exclude_author,omitempty"`
	After             *time.Time `json:"after,omitempty"`
	ExcludeTombstoned bool       `json:"exclude_tombstoned,omitempty"`
	Ascending         bool       `json:"ascending,omitempty"`
	Limit             int        `json:"limit,omitempty"`
}

// Tombstone marks an entity as deleted; its activity no longer reaches feeds
type Tombstone struct {
	TeamID    int64     `json:"team_id"`
	Scope     Scope     `json:"scope"`
	EntityID  string    `json:"entity_id"`
	DeletedAt time.Time `json:"deleted_at"`
}
