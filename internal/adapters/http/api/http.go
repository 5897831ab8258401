// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/pace/pkg/protocol"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Leaderboard computes the current standings for a course.
	Leaderboard(ctx context.Context, courseID string) []protocol.LeaderboardEntry

	// ClearUser removes one user's progress. Returns the number removed.
	ClearUser(ctx context.Context, userID string) int

	// ClearAll removes everyone's progress. Returns the number removed.
	ClearAll(ctx context.Context) int

	// ActiveSessions reports the number of live websocket sessions.
	ActiveSessions(ctx context.Context) int

	// TrackedUsers reports the number of users with recorded progress.
	TrackedUsers(ctx context.Context) int
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statusHandler      *StatusHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	clearHandler       *ClearHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statusHandler:      NewStatusHandler(deps),
		statsHandler:       NewStatsHandler(statsProvider),
		leaderboardHandler: NewLeaderboardHandler(deps),
		clearHandler:       NewClearHandler(deps),
	}
}

// Register attaches all HTTP routes to mux. Websocket routes are attached
// separately by the transport layer.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", MetricsMiddleware(s.statusHandler.HandleStatus, "status"))
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /leaderboard/{courseId}", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("POST /clear", MetricsMiddleware(s.clearHandler.HandleClear, "clear"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
