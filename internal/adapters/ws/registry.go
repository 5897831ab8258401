package ws

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/okian/pace/pkg/logger"
	"github.com/okian/pace/pkg/metrics"
	"github.com/okian/pace/pkg/protocol"
)

// CloseReasonReplaced is carried in the close frame sent to a connection
// evicted by a newer one for the same user.
const CloseReasonReplaced = "replaced by newer connection"

// Session binds one live connection to one identity, plus the single course
// the session is subscribed to for leaderboard pushes.
type Session struct {
	UserID string

	conn *Conn

	mu     sync.RWMutex
	course string
}

// Subscribe records the course this session wants leaderboard pushes for.
// A new subscription replaces the previous one.
func (s *Session) Subscribe(courseID string) {
	s.mu.Lock()
	s.course = courseID
	s.mu.Unlock()
}

// Course returns the currently subscribed course, if any.
func (s *Session) Course() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.course
}

// Send queues a message on the session's connection.
func (s *Session) Send(msg protocol.Message) error {
	return s.conn.WriteJSON(msg)
}

// Registry maps userId to its single live session. A reconnect for the same
// user evicts the prior session before installing the new one.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	logger logger.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(log logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   log.Named("registry"),
	}
}

// Register installs a session for userID, closing any prior connection for
// the same identity first.
func (r *Registry) Register(ctx context.Context, userID string, conn *Conn) *Session {
	sess := &Session{UserID: userID, conn: conn}

	r.mu.Lock()
	prior, replaced := r.sessions[userID]
	r.sessions[userID] = sess
	active := len(r.sessions)
	r.mu.Unlock()

	if replaced {
		// Close outside the lock; the close handshake can block on a
		// slow peer.
		if err := prior.conn.CloseWithReason(websocket.ClosePolicyViolation, CloseReasonReplaced); err != nil {
			r.logger.Debug(ctx, "closing replaced session", logger.Error(err))
		}
		metrics.RecordSessionReplaced()
		r.logger.Info(ctx, "session replaced", logger.String("userId", userID))
	}

	metrics.RecordSessionOpened()
	metrics.UpdateSessionsActive(active)
	return sess
}

// Unregister removes sess if it is still the current session for its user.
// A stale session (already replaced) is left alone so it cannot evict its
// successor. Progress outlives the session; only the mapping is dropped.
func (r *Registry) Unregister(ctx context.Context, sess *Session) {
	if sess == nil {
		return
	}

	r.mu.Lock()
	current, ok := r.sessions[sess.UserID]
	if ok && current == sess {
		delete(r.sessions, sess.UserID)
	}
	active := len(r.sessions)
	r.mu.Unlock()

	if ok && current == sess {
		metrics.RecordSessionClosed()
		metrics.UpdateSessionsActive(active)
	}
}

// Get returns the live session for userID, if any.
func (r *Registry) Get(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[userID]
	return sess, ok
}

// Subscribers returns the sessions currently subscribed to courseID.
func (r *Registry) Subscribers(courseID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for _, sess := range r.sessions {
		if sess.Course() == courseID {
			out = append(out, sess)
		}
	}
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Publish pushes a computed leaderboard to every session subscribed to the
// course. Implements the broadcast workers' Publisher contract.
func (r *Registry) Publish(ctx context.Context, courseID string, entries []protocol.LeaderboardEntry) {
	msg := protocol.LeaderboardUpdate(courseID, entries)
	for _, sess := range r.Subscribers(courseID) {
		if err := sess.Send(msg); err != nil {
			metrics.RecordBroadcastError()
			r.logger.Debug(ctx, "broadcast send failed",
				logger.String("userId", sess.UserID),
				logger.String("courseId", courseID),
				logger.Error(err),
			)
			continue
		}
		metrics.RecordBroadcastSent()
	}
}

// CloseUser closes and removes the session for userID, if present. Returns
// true when a session was closed.
func (r *Registry) CloseUser(ctx context.Context, userID string, reason string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[userID]
	if ok {
		delete(r.sessions, userID)
	}
	active := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return false
	}
	if err := sess.conn.CloseWithReason(websocket.CloseNormalClosure, reason); err != nil {
		r.logger.Debug(ctx, "closing session", logger.Error(err))
	}
	metrics.RecordSessionClosed()
	metrics.UpdateSessionsActive(active)
	return true
}

// CloseAll closes every live session. Returns the number closed.
func (r *Registry) CloseAll(ctx context.Context, reason string) int {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, sess := range sessions {
		if err := sess.conn.CloseWithReason(websocket.CloseNormalClosure, reason); err != nil {
			r.logger.Debug(ctx, "closing session", logger.Error(err))
		}
		metrics.RecordSessionClosed()
	}
	metrics.UpdateSessionsActive(0)
	return len(sessions)
}

// Broadcast sends msg to every live session, regardless of subscription.
// Used for administrative notices such as progress_cleared.
func (r *Registry) Broadcast(ctx context.Context, msg protocol.Message) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.RUnlock()

	for _, sess := range sessions {
		if err := sess.Send(msg); err != nil {
			r.logger.Debug(ctx, "broadcast send failed",
				logger.String("userId", sess.UserID),
				logger.Error(err),
			)
		}
	}
}
