// Package api declares HTTP contracts and route registration helpers.
package api

import "net/http"

// statusResponse mirrors the shape returned by GET /.
type statusResponse struct {
	Status      string `json:"status"`
	ActiveUsers int    `json:"active_users"`
	TotalUsers  int    `json:"total_users"`
}

// StatusHandler answers the root status probe.
type StatusHandler struct {
	deps Dependencies
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(deps Dependencies) *StatusHandler {
	return &StatusHandler{deps: deps}
}

// HandleStatus handles GET / requests.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, statusResponse{
		Status:      "ok",
		ActiveUsers: h.deps.ActiveSessions(ctx),
		TotalUsers:  h.deps.TrackedUsers(ctx),
	})
}
