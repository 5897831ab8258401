// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strings"
)

// clearResponse mirrors the shape returned by POST /clear.
type clearResponse struct {
	Status  string `json:"status"`
	Scope   string `json:"scope"`
	UserID  string `json:"user_id,omitempty"`
	Removed int    `json:"removed"`
}

// ClearHandler handles administrative progress resets.
type ClearHandler struct {
	deps Dependencies
}

// NewClearHandler creates a new clear handler.
func NewClearHandler(deps Dependencies) *ClearHandler {
	return &ClearHandler{deps: deps}
}

// HandleClear handles POST /clear and POST /clear?user_id=U requests. With a
// user_id it removes one user's progress; without, it removes everyone's.
func (h *ClearHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))

	if userID != "" {
		removed := h.deps.ClearUser(ctx, userID)
		writeJSON(w, http.StatusOK, clearResponse{
			Status:  "cleared",
			Scope:   "user",
			UserID:  userID,
			Removed: removed,
		})
		return
	}

	removed := h.deps.ClearAll(ctx)
	writeJSON(w, http.StatusOK, clearResponse{
		Status:  "cleared",
		Scope:   "all",
		Removed: removed,
	})
}
