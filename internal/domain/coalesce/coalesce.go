// Package coalesce tracks which courses already have a leaderboard broadcast
// queued, so bursts of syncs touching the same course collapse into one job.
package coalesce

import (
	"context"
	"sync"
	"sync/atomic"
)

// Tracker records pending broadcast courses.
type Tracker interface {
	// MarkPending atomically checks whether courseID already has a queued
	// broadcast and marks it if not. Returns true if one was already
	// pending, false if the caller should enqueue a job.
	MarkPending(ctx context.Context, courseID string) bool

	// ClearPending removes the mark, allowing the next data change to queue
	// a fresh broadcast. Called by the worker before recomputing, so a
	// change that lands mid-recompute still triggers another job.
	ClearPending(ctx context.Context, courseID string)

	Size() int64
}

type tracker struct {
	mu      sync.Mutex
	pending map[string]struct{}
	size    atomic.Int64
}

// NewTracker creates an in-memory pending-broadcast tracker. The pending set
// is bounded by the number of distinct courses, so no eviction is needed.
func NewTracker() Tracker {
	return &tracker{pending: make(map[string]struct{})}
}

func (t *tracker) MarkPending(ctx context.Context, courseID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[courseID]; ok {
		return true
	}
	t.pending[courseID] = struct{}{}
	t.size.Add(1)
	return false
}

func (t *tracker) ClearPending(ctx context.Context, courseID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[courseID]; ok {
		delete(t.pending, courseID)
		t.size.Add(-1)
	}
}

func (t *tracker) Size() int64 {
	return t.size.Load()
}
