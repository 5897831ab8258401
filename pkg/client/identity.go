package client

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// usernamePrefix seeds generated display names.
const usernamePrefix = "learner-"

// Identity manages the persisted (userId, username) pair for one client
// installation. The userId is generated once and immutable; the username is
// mutable and not unique.
type Identity struct {
	mu sync.Mutex
	kv KV
}

// NewIdentity wraps a KV port for identity storage.
func NewIdentity(kv KV) *Identity {
	return &Identity{kv: kv}
}

// UserID returns the persisted user ID, generating and persisting one on
// first call.
func (i *Identity) UserID() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	if v, ok := i.kv.Get(KeyUserID); ok && v != "" {
		return v
	}
	id := uuid.NewString()
	i.kv.Set(KeyUserID, id)
	return id
}

// Username returns the persisted display name, generating a pseudonymous
// one on first call.
func (i *Identity) Username() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	if v, ok := i.kv.Get(KeyUsername); ok && v != "" {
		return v
	}
	name := usernamePrefix + uuid.NewString()[:8]
	i.kv.Set(KeyUsername, name)
	return name
}

// SetUsername persists a new display name. Blank or whitespace-only names
// are rejected as a no-op and reported false.
func (i *Identity) SetUsername(name string) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return false
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.kv.Set(KeyUsername, trimmed)
	return true
}
