// Package client implements the course progress client: identity handling,
// the persistent key-value port, the connection manager and the state
// reconciler that keeps the server in sync with the local snapshot.
package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/okian/pace/pkg/protocol"
)

// Storage keys for the persisted client state.
const (
	KeyUserID     = "pace_user_id"
	KeyUsername   = "pace_username"
	KeyProgress   = "pace_progress"
	KeyStudyItems = "pace_study_items"
)

// KV is the persistence port backing identity and snapshot storage. Reads
// and writes are synchronous and process-local.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Notifier reports keys changed by other execution contexts sharing the
// same persisted store. Same-context writes do not appear here; callers
// signal those through Client.NotifyLocalChange.
type Notifier interface {
	Changes() <-chan string
}

// Store reads the persisted snapshot for outbound syncs. It never writes
// progress; the snapshot is owned by whoever records completions.
type Store struct {
	kv KV
}

// NewStore wraps a KV port for snapshot reads.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Progress returns the persisted progress snapshot. A missing value is
// ErrNoSnapshot; the caller skips the sync cycle.
func (s *Store) Progress() (protocol.ProgressSnapshot, error) {
	raw, ok := s.kv.Get(KeyProgress)
	if !ok || raw == "" {
		return nil, ErrNoSnapshot
	}
	var snapshot protocol.ProgressSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, fmt.Errorf("parsing progress snapshot: %w", err)
	}
	return snapshot, nil
}

// StudyItems returns the persisted study items map. Missing or empty is an
// empty map, not an error; study items are optional.
func (s *Store) StudyItems() (protocol.StudyItemsMap, error) {
	raw, ok := s.kv.Get(KeyStudyItems)
	if !ok || raw == "" {
		return protocol.StudyItemsMap{}, nil
	}
	var items protocol.StudyItemsMap
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("parsing study items: %w", err)
	}
	return items, nil
}

// MemKV is an in-memory KV implementation, the default when no external
// persistence is supplied.
type MemKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemKV creates an empty in-memory store.
func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string]string)}
}

// Get returns the stored value for key.
func (m *MemKV) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// Set stores value under key.
func (m *MemKV) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}
