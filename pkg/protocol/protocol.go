// Package protocol defines the JSON wire messages exchanged between the
// progress client and server over the websocket at /ws/{userId}.
package protocol

import "time"

// Message type tags. Every frame is a JSON object discriminated by "type".
const (
	// Client to server.
	TypeSetUsername        = "set_username"
	TypeSyncFullProgress   = "sync_full_progress"
	TypeRequestLeaderboard = "request_leaderboard"
	TypeSyncStudyItems     = "sync_study_items"
	TypeProgressUpdate     = "progress_update"

	// Server to client.
	TypeConnected          = "connected"
	TypeLeaderboardUpdate  = "leaderboard_update"
	TypeProgressAck        = "progress_ack"
	TypeUsernameUpdated    = "username_updated"
	TypeStudyItemsSynced   = "study_items_synced"
	TypeFullProgressSynced = "full_progress_synced"
	TypeProgressCleared    = "progress_cleared"
)

// ProgressSnapshot maps courseId to a per-file completion set. A snapshot is
// always complete for the courses it mentions; the server replaces, never
// merges, stored state for those courses.
type ProgressSnapshot map[string]map[string]bool

// StudyItemsMap maps courseId to the file keys a user has queued for focused
// study. Informational only; it does not enter leaderboard math.
type StudyItemsMap map[string][]string

// LeaderboardEntry is one ranked row for a course.
type LeaderboardEntry struct {
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	Completed  int       `json:"completed"`
	Total      int       `json:"total"`
	Percentage float64   `json:"percentage"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// Message is the wire envelope for both directions. Fields are populated
// according to Type; unused fields stay zero and are omitted from the JSON.
type Message struct {
	Type string `json:"type"`

	// Identity
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`

	// Progress payloads
	Progress   ProgressSnapshot `json:"progress,omitempty"`
	StudyItems StudyItemsMap    `json:"studyItems,omitempty"`
	CourseID   string           `json:"courseId,omitempty"`
	FileKey    string           `json:"fileKey,omitempty"`
	FileKeys   []string         `json:"fileKeys,omitempty"`
	IsComplete bool             `json:"isComplete,omitempty"`

	// Server responses. Leaderboard keeps no omitempty: a course with zero
	// ranked users is pushed as an explicit empty array.
	Leaderboard  []LeaderboardEntry `json:"leaderboard"`
	Count        int                `json:"count,omitempty"`
	CoursesCount int                `json:"coursesCount,omitempty"`
	Scope        string             `json:"scope,omitempty"`
	Removed      int                `json:"removed,omitempty"`
	Note         string             `json:"message,omitempty"`
}

// Connected builds the session establishment acknowledgement.
func Connected(userID string) Message {
	return Message{
		Type:   TypeConnected,
		UserID: userID,
		Note:   "connected to progress tracking server",
	}
}

// LeaderboardUpdate builds a leaderboard push for one course. Nil entries
// are normalized so the payload always carries an array.
func LeaderboardUpdate(courseID string, entries []LeaderboardEntry) Message {
	if entries == nil {
		entries = []LeaderboardEntry{}
	}
	return Message{
		Type:        TypeLeaderboardUpdate,
		CourseID:    courseID,
		Leaderboard: entries,
	}
}

// FullSync builds the client's full state replacement message.
func FullSync(progress ProgressSnapshot, studyItems StudyItemsMap, username string) Message {
	return Message{
		Type:       TypeSyncFullProgress,
		Progress:   progress,
		StudyItems: studyItems,
		Username:   username,
	}
}

// RequestLeaderboard builds a leaderboard pull for one course. The server
// also subscribes the session to that course.
func RequestLeaderboard(courseID string) Message {
	return Message{Type: TypeRequestLeaderboard, CourseID: courseID}
}
