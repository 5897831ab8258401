package repository

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/okian/pace/internal/domain/rank"
	"github.com/okian/pace/pkg/metrics"
	"github.com/okian/pace/pkg/protocol"
)

// Default store configuration constants.
const (
	defaultShardCount = 8
)

// record holds one user's server-side state. Owned by exactly one shard;
// all access goes through the shard lock.
type record struct {
	username   string
	progress   protocol.ProgressSnapshot
	studyItems protocol.StudyItemsMap
	lastUpdate time.Time
}

type shard struct {
	mu      sync.RWMutex
	records map[string]*record
}

// MemStore implements Store with userID-sharded in-memory maps. Per-user
// state is independently owned, so a full sync for one user never contends
// with reads or writes for another beyond its shard lock.
type MemStore struct {
	shards []*shard
	now    func() time.Time
}

// NewMemStore creates an in-memory progress store with configuration options.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		shards: nil,
		now:    time.Now,
	}

	cfg := &storeConfig{shardCount: defaultShardCount, now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}

	s.now = cfg.now
	s.shards = make([]*shard, cfg.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{records: make(map[string]*record)}
	}

	metrics.UpdateStoreShards(len(s.shards))
	return s
}

func (s *MemStore) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// ApplyFullSync replaces the stored state for userID. Replace, not merge:
// courses absent from the snapshot are forgotten, which keeps stale file
// flags from drifting across syncs.
func (s *MemStore) ApplyFullSync(ctx context.Context, userID, username string, progress protocol.ProgressSnapshot, studyItems protocol.StudyItemsMap) []string {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec := &record{
		username:   username,
		progress:   cloneProgress(progress),
		studyItems: cloneStudyItems(studyItems),
		lastUpdate: s.now(),
	}
	// A sync without a username keeps the name set earlier; on the wire a
	// blank field is indistinguishable from an absent one.
	if username == "" {
		if prior, ok := sh.records[userID]; ok {
			rec.username = prior.username
		}
	}
	sh.records[userID] = rec

	touched := make(map[string]struct{}, len(progress)+len(studyItems))
	for courseID := range progress {
		touched[courseID] = struct{}{}
	}
	for courseID := range studyItems {
		touched[courseID] = struct{}{}
	}
	courses := make([]string, 0, len(touched))
	for courseID := range touched {
		courses = append(courses, courseID)
	}
	return courses
}

// ApplyProgressUpdate sets one file flag for one course.
func (s *MemStore) ApplyProgressUpdate(ctx context.Context, userID, username, courseID, fileKey string, isComplete bool) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[userID]
	if !ok {
		rec = &record{
			progress:   make(protocol.ProgressSnapshot),
			studyItems: make(protocol.StudyItemsMap),
		}
		sh.records[userID] = rec
	}
	if rec.progress == nil {
		rec.progress = make(protocol.ProgressSnapshot)
	}
	if rec.progress[courseID] == nil {
		rec.progress[courseID] = make(map[string]bool)
	}
	rec.progress[courseID][fileKey] = isComplete
	if username != "" {
		rec.username = username
	}
	rec.lastUpdate = s.now()
}

// SetUsername updates the display name, creating the user record if none
// exists yet. A rename may arrive before the first sync.
func (s *MemStore) SetUsername(ctx context.Context, userID, username string) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[userID]
	if !ok {
		rec = &record{
			progress:   make(protocol.ProgressSnapshot),
			studyItems: make(protocol.StudyItemsMap),
			lastUpdate: s.now(),
		}
		sh.records[userID] = rec
	}
	rec.username = username
}

// SetStudyItems replaces the study item list for one course.
func (s *MemStore) SetStudyItems(ctx context.Context, userID, courseID string, fileKeys []string) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[userID]
	if !ok {
		rec = &record{
			progress:   make(protocol.ProgressSnapshot),
			studyItems: make(protocol.StudyItemsMap),
		}
		sh.records[userID] = rec
	}
	if rec.studyItems == nil {
		rec.studyItems = make(protocol.StudyItemsMap)
	}
	rec.studyItems[courseID] = append([]string(nil), fileKeys...)
	rec.lastUpdate = s.now()
}

// CourseView copies every user's state for courseID. Each shard is read
// under its lock and the file maps are deep-copied, so the result is a
// stable snapshot for leaderboard computation.
func (s *MemStore) CourseView(ctx context.Context, courseID string) []rank.UserCourse {
	var out []rank.UserCourse
	for _, sh := range s.shards {
		sh.mu.RLock()
		for userID, rec := range sh.records {
			files, ok := rec.progress[courseID]
			if !ok {
				continue
			}
			cp := make(map[string]bool, len(files))
			for k, v := range files {
				cp[k] = v
			}
			out = append(out, rank.UserCourse{
				UserID:     userID,
				Username:   rec.username,
				Files:      cp,
				LastUpdate: rec.lastUpdate,
			})
		}
		sh.mu.RUnlock()
	}
	return out
}

// Remove deletes one user's state.
func (s *MemStore) Remove(ctx context.Context, userID string) error {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.records[userID]; !ok {
		return ErrNotFound
	}
	delete(sh.records, userID)
	return nil
}

// Clear drops all state.
func (s *MemStore) Clear(ctx context.Context) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		removed += len(sh.records)
		sh.records = make(map[string]*record)
		sh.mu.Unlock()
	}
	return removed
}

// Count returns the number of users with any recorded state.
func (s *MemStore) Count(ctx context.Context) int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.records)
		sh.mu.RUnlock()
	}
	return n
}

func cloneProgress(in protocol.ProgressSnapshot) protocol.ProgressSnapshot {
	out := make(protocol.ProgressSnapshot, len(in))
	for courseID, files := range in {
		cp := make(map[string]bool, len(files))
		for k, v := range files {
			cp[k] = v
		}
		out[courseID] = cp
	}
	return out
}

func cloneStudyItems(in protocol.StudyItemsMap) protocol.StudyItemsMap {
	out := make(protocol.StudyItemsMap, len(in))
	for courseID, keys := range in {
		out[courseID] = append([]string(nil), keys...)
	}
	return out
}
