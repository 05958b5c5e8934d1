package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/smartdevs17/activity-feed/internal/models"
	"github.com/smartdevs17/activity-feed/pkg/utils"
)

const maxBodyBytes = 1 << 20

type appendActivityRequest struct {
	Scope    models.Scope    `json:"scope"`
	EntityID string          `json:"entity_id"`
	Activity string          `json:"activity"`
	UserID   string          `json:"user_id,omitempty"`
	Detail   json.RawMessage `json:"detail,omitempty"`
}

type bookmarkRequest struct {
	Bookmark string `json:"bookmark"`
}

type tombstoneRequest struct {
	Scope    models.Scope `json:"scope"`
	EntityID string       `json:"entity_id"`
}

type unreadCountResponse struct {
	Count    int64     `json:"count"`
	LastRead time.Time `json:"last_read"`
}

// importantChangesHandler returns the caller's unread important changes
func (s *HTTPServer) importantChangesHandler(w http.ResponseWriter, r *http.Request) {
	teamID, ok := s.teamID(w, r)
	if !ok {
		return
	}

	result, err := s.feed.ImportantChanges(r.Context(), teamID, userIDFrom(r.Context()))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// bookmarkHandler advances the caller's watermark
func (s *HTTPServer) bookmarkHandler(w http.ResponseWriter, r *http.Request) {
	teamID, ok := s.teamID(w, r)
	if !ok {
		return
	}

	var req bookmarkRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	bookmark, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(req.Bookmark))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, utils.ErrCodeValidation, "Bookmark must be an RFC 3339 timestamp", err)
		return
	}

	if err := s.feed.Bookmark(r.Context(), teamID, userIDFrom(r.Context()), bookmark); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// appendActivityHandler records an activity entry. The author defaults to the caller.
func (s *HTTPServer) appendActivityHandler(w http.ResponseWriter, r *http.Request) {
	teamID, ok := s.teamID(w, r)
	if !ok {
		return
	}

	var req appendActivityRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	author := strings.TrimSpace(req.UserID)
	if author == "" {
		author = userIDFrom(r.Context())
	}
	detail := req.Detail
	if string(detail) == "null" {
		detail = nil
	}

	entry := &models.ActivityEntry{
		TeamID:   teamID,
		Scope:    req.Scope,
		EntityID: req.EntityID,
		AuthorID: author,
		Activity: req.Activity,
		Detail:   detail,
	}
	if err := s.feed.Append(r.Context(), entry); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, entry)
}

// tombstoneHandler hides an entity's activity from all feeds
func (s *HTTPServer) tombstoneHandler(w http.ResponseWriter, r *http.Request) {
	teamID, ok := s.teamID(w, r)
	if !ok {
		return
	}

	var req tombstoneRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	tombstone := &models.Tombstone{TeamID: teamID, Scope: req.Scope, EntityID: req.EntityID}
	if err := s.feed.Tombstone(r.Context(), tombstone); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// unreadCountHandler returns the number of unread important changes
func (s *HTTPServer) unreadCountHandler(w http.ResponseWriter, r *http.Request) {
	teamID, ok := s.teamID(w, r)
	if !ok {
		return
	}

	count, lastRead, err := s.feed.UnreadCount(r.Context(), teamID, userIDFrom(r.Context()))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, unreadCountResponse{Count: count, LastRead: lastRead})
}

// healthHandler returns basic health status
func (s *HTTPServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if s.storage != nil && !s.storage.GetHealth(r.Context()).Healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":          status,
		"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		"version":         s.config.Version,
		"metrics_enabled": s.config.EnableMetrics,
	})
}

// detailedHealthHandler returns detailed health status
func (s *HTTPServer) detailedHealthHandler(w http.ResponseWriter, r *http.Request) {
	components := map[string]interface{}{}
	status, code := "healthy", http.StatusOK
	if s.storage != nil {
		health := s.storage.GetHealth(r.Context())
		components["storage"] = health
		if !health.Healthy {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"version":    s.config.Version,
		"components": components,
	})
}

// statsHandler returns application statistics
func (s *HTTPServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	storageStats, err := s.storage.GetStats(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"timestamp":       time.Now().UTC(),
		"storage":         storageStats,
		"metrics_enabled": s.config.EnableMetrics,
	})
}

// teamID parses the team path variable, writing a 400 on failure
func (s *HTTPServer) teamID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["team_id"]
	teamID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || teamID <= 0 {
		s.writeError(w, r, http.StatusBadRequest, utils.ErrCodeValidation, "Invalid team id", err)
		return 0, false
	}
	return teamID, true
}

// decodeBody decodes a JSON request body, writing a 400 on failure
func (s *HTTPServer) decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		s.writeError(w, r, http.StatusBadRequest, utils.ErrCodeValidation, "Invalid JSON body", err)
		return false
	}
	return true
}
