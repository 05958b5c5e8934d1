package storage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/smartdevs17/activity-feed/internal/models"
	"github.com/smartdevs17/activity-feed/pkg/utils"
)

// Column limits of the activity tables
const (
	MaxScopeLength    = 79
	MaxEntityIDLength = 72
	MaxUserIDLength   = 200
	MaxActivityLength = 79
)

var scopePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidationError describes one invalid field
type ValidationError struct {
	Field   string `json:"field"`
	Type    string `json:"type"` // required, format, range
	Message string `json:"message"`
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool               `json:"valid"`
	Errors []*ValidationError `json:"errors,omitempty"`
}

func (r *ValidationResult) add(field, kind, message string) {
	r.Errors = append(r.Errors, &ValidationError{Field: field, Type: kind, Message: message})
}

// Err folds the result into a single VALIDATION_ERROR, or nil when valid
func (r *ValidationResult) Err(message string) error {
	if r.Valid {
		return nil
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return utils.NewAppError(utils.ErrCodeValidation, message, strings.Join(parts, "; "))
}

// ValidateActivityEntry checks an entry before append. A blank Activity is
// defaulted to "updated" and surrounding whitespace is trimmed from ids.
func ValidateActivityEntry(entry *models.ActivityEntry) *ValidationResult {
	result := &ValidationResult{Valid: true}
	if entry == nil {
		result.add("entry", "required", "Activity entry is required")
		result.Valid = false
		return result
	}

	entry.EntityID = strings.TrimSpace(entry.EntityID)
	entry.AuthorID = strings.TrimSpace(entry.AuthorID)
	entry.Activity = strings.TrimSpace(entry.Activity)
	if entry.Activity == "" {
		entry.Activity = models.ActivityUpdated
	}

	validateTeam(entry.TeamID, result)
	validateEntity(entry.Scope, entry.EntityID, result)
	validateUser("author_id", entry.AuthorID, result)

	if len(entry.Activity) > MaxActivityLength {
		result.add("activity", "range", fmt.Sprintf("Activity must be at most %d characters", MaxActivityLength))
	}
	if len(entry.Detail) > 0 && !json.Valid(entry.Detail) {
		result.add("detail", "format", "Detail must be valid JSON")
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// ValidateTombstone checks a tombstone before it is stored
func ValidateTombstone(tombstone *models.Tombstone) *ValidationResult {
	result := &ValidationResult{Valid: true}
	if tombstone == nil {
		result.add("tombstone", "required", "Tombstone is required")
		result.Valid = false
		return result
	}
	tombstone.EntityID = strings.TrimSpace(tombstone.EntityID)
	validateTeam(tombstone.TeamID, result)
	validateEntity(tombstone.Scope, tombstone.EntityID, result)
	result.Valid = len(result.Errors) == 0
	return result
}

// ValidateBookmark checks the key and timestamp of a watermark update
func ValidateBookmark(teamID int64, userID string, ts time.Time) *ValidationResult {
	result := &ValidationResult{Valid: true}
	validateTeam(teamID, result)
	validateUser("user_id", userID, result)
	switch {
	case ts.IsZero():
		result.add("bookmark", "required", "Bookmark timestamp is required")
	case ts.Before(models.Epoch):
		result.add("bookmark", "range", "Bookmark timestamp must not precede the epoch")
	}
	result.Valid = len(result.Errors) == 0
	return result
}

func validateTeam(teamID int64, result *ValidationResult) {
	if teamID <= 0 {
		result.add("team_id", "required", "Team ID must be positive")
	}
}

func validateEntity(scope models.Scope, entityID string, result *ValidationResult) {
	switch {
	case scope == "":
		result.add("scope", "required", "Scope is required")
	case len(scope) > MaxScopeLength:
		result.add("scope", "range", fmt.Sprintf("Scope must be at most %d characters", MaxScopeLength))
	case !scopePattern.MatchString(string(scope)):
		result.add("scope", "format", "Scope must be an identifier")
	}

	switch {
	case entityID == "":
		result.add("entity_id", "required", "Entity ID is required")
	case len(entityID) > MaxEntityIDLength:
		result.add("entity_id", "range", fmt.Sprintf("Entity ID must be at most %d characters", MaxEntityIDLength))
	}
}

func validateUser(field, userID string, result *ValidationResult) {
	switch {
	case strings.TrimSpace(userID) == "":
		result.add(field, "required", "User ID is required")
	case len(userID) > MaxUserIDLength:
		result.add(field, "range", fmt.Sprintf("User ID must be at most %d characters", MaxUserIDLength))
	}
}
