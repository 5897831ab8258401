// Package rank computes per-course leaderboards from progress state.
package rank

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/okian/pace/pkg/protocol"
)

// UserCourse is one user's state for one course, as supplied by the store.
type UserCourse struct {
	UserID     string
	Username   string
	Files      map[string]bool
	LastUpdate time.Time
}

// fallbackUsername is shown for users that never set a display name.
const fallbackUsername = "Anonymous"

// Engine turns course state into ordered leaderboards.
type Engine interface {
	Compute(ctx context.Context, courseID string, states []UserCourse) []protocol.LeaderboardEntry
}

type engine struct{}

// NewEngine creates the default leaderboard engine.
func NewEngine() Engine {
	return engine{}
}

// Compute builds one entry per user and orders them by percentage descending,
// with earlier lastUpdate winning ties (earlier finishers rank higher), and
// userId as a final deterministic key. Totals are counted against the files
// the user's snapshot mentions for the course, so they are deterministic for
// any given snapshot. An empty course yields an empty, non-nil sequence.
func (engine) Compute(ctx context.Context, courseID string, states []UserCourse) []protocol.LeaderboardEntry {
	entries := make([]protocol.LeaderboardEntry, 0, len(states))

	for _, st := range states {
		total := len(st.Files)
		if total == 0 {
			continue
		}
		completed := 0
		for _, done := range st.Files {
			if done {
				completed++
			}
		}
		username := st.Username
		if username == "" {
			username = fallbackUsername
		}
		entries = append(entries, protocol.LeaderboardEntry{
			UserID:     st.UserID,
			Username:   username,
			Completed:  completed,
			Total:      total,
			Percentage: percentage(completed, total),
			LastUpdate: st.LastUpdate,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Percentage != b.Percentage {
			return a.Percentage > b.Percentage
		}
		if !a.LastUpdate.Equal(b.LastUpdate) {
			return a.LastUpdate.Before(b.LastUpdate)
		}
		return a.UserID < b.UserID
	})

	return entries
}

// percentage returns completed/total as a percentage rounded to one decimal.
func percentage(completed, total int) float64 {
	p := float64(completed) / float64(total) * 100
	return math.Round(p*10) / 10
}
