// Package repository defines the progress store interface and errors.
//
// The store is a derived cache: the client's persisted snapshot is the sole
// authority for a user's progress, and every full sync replaces what is held
// here. Nothing survives a restart.
package repository

import (
	"context"

	"github.com/okian/pace/internal/domain/rank"
	"github.com/okian/pace/pkg/protocol"
)

// Store provides read/write access to per-user progress state.
type Store interface {
	// ApplyFullSync replaces the stored progress, study items and username
	// for userID and stamps lastUpdate. A blank username keeps the stored
	// name. It returns every course touched by either the progress snapshot
	// or the study items.
	ApplyFullSync(ctx context.Context, userID, username string, progress protocol.ProgressSnapshot, studyItems protocol.StudyItemsMap) []string

	// ApplyProgressUpdate sets a single file completion flag, creating the
	// user and course records as needed.
	ApplyProgressUpdate(ctx context.Context, userID, username, courseID, fileKey string, isComplete bool)

	// SetUsername updates the display name, creating the user record if the
	// name arrives before any progress.
	SetUsername(ctx context.Context, userID, username string)

	// SetStudyItems replaces the study item list for one course.
	SetStudyItems(ctx context.Context, userID, courseID string, fileKeys []string)

	// CourseView returns a consistent copy of every user's state for the
	// course, restricted to users whose snapshot mentions it.
	CourseView(ctx context.Context, courseID string) []rank.UserCourse

	// Remove deletes one user's state. Returns ErrNotFound if absent.
	Remove(ctx context.Context, userID string) error

	// Clear drops all state and returns the number of users removed.
	Clear(ctx context.Context) int

	// Count returns the number of users with any recorded state.
	Count(ctx context.Context) int
}
