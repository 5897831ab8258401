// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	"github.com/okian/pace/pkg/metrics"
	"github.com/okian/pace/pkg/protocol"
)

// leaderboardResponse mirrors the websocket leaderboard_update payload so a
// plain HTTP poll sees the same shape.
type leaderboardResponse struct {
	CourseID    string                      `json:"courseId"`
	Count       int                         `json:"count"`
	Leaderboard []protocol.LeaderboardEntry `json:"leaderboard"`
}

// LeaderboardHandler handles read-only leaderboard requests.
type LeaderboardHandler struct {
	deps Dependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps Dependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleGetLeaderboard handles GET /leaderboard/{courseId} requests.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("courseId")
	if courseID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	entries := h.deps.Leaderboard(r.Context(), courseID)
	metrics.RecordLeaderboardRequest()

	writeJSON(w, http.StatusOK, leaderboardResponse{
		CourseID:    courseID,
		Count:       len(entries),
		Leaderboard: entries,
	})
}
