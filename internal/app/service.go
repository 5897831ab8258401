// Package service provides the core business service behind the websocket
// and HTTP surfaces: it owns the progress store, the session registry and
// the leaderboard broadcast pipeline.
package service

import (
	"context"
	"strings"
	"sync"

	"github.com/okian/pace/internal/adapters/mq/queue"
	"github.com/okian/pace/internal/adapters/mq/worker"
	"github.com/okian/pace/internal/adapters/repository"
	"github.com/okian/pace/internal/adapters/ws"
	"github.com/okian/pace/internal/domain/coalesce"
	"github.com/okian/pace/internal/domain/rank"
	"github.com/okian/pace/pkg/logger"
	"github.com/okian/pace/pkg/metrics"
	"github.com/okian/pace/pkg/protocol"
)

// Service implements the websocket dispatcher and the HTTP API dependencies.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	registry *ws.Registry
	engine   rank.Engine
	pending  coalesce.Tracker
	jobs     *queue.InMemoryQueue
	pool     *worker.Pool

	// Configuration
	shardCount  int
	queueSize   int
	workerCount int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithShardCount sets the progress store shard count.
func WithShardCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithQueueSize bounds the broadcast queue.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithWorkerCount sets the number of broadcast workers.
func WithWorkerCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		shardCount:  8,
		queueSize:   4096,
		workerCount: 4,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Nop()
	}

	s.store = repository.NewMemStore(repository.WithShardCount(s.shardCount))
	s.registry = ws.NewRegistry(s.logger)
	s.engine = rank.NewEngine()
	s.pending = coalesce.NewTracker()
	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.jobs, s.store, s.engine, s.registry, s.pending, s.logger)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "progress service started",
		logger.Int("shards", s.shardCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("workers", s.workerCount),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping progress service...")

	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
	}
	if s.registry != nil {
		s.registry.CloseAll(ctx, "server shutting down")
	}

	s.started = false
	s.logger.Info(ctx, "progress service stopped")
}

// Registry exposes the session registry to the websocket handler.
func (s *Service) Registry() *ws.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry
}

// Dispatch routes one inbound message for a session. Called sequentially per
// session by the websocket read loop.
func (s *Service) Dispatch(ctx context.Context, sess *ws.Session, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeSyncFullProgress:
		s.handleFullSync(ctx, sess, msg)
	case protocol.TypeProgressUpdate:
		s.handleProgressUpdate(ctx, sess, msg)
	case protocol.TypeRequestLeaderboard:
		s.handleLeaderboardRequest(ctx, sess, msg)
	case protocol.TypeSyncStudyItems:
		s.handleStudyItems(ctx, sess, msg)
	case protocol.TypeSetUsername:
		s.handleSetUsername(ctx, sess, msg)
	default:
		metrics.RecordMalformedMessage()
		s.logger.Warn(ctx, "unknown message type",
			logger.String("userId", sess.UserID),
			logger.String("type", msg.Type),
		)
	}
}

// handleFullSync replaces the user's stored state and queues broadcasts for
// every course the snapshot or study items touch.
func (s *Service) handleFullSync(ctx context.Context, sess *ws.Session, msg protocol.Message) {
	courses := s.store.ApplyFullSync(ctx, sess.UserID, msg.Username, msg.Progress, msg.StudyItems)
	metrics.RecordFullSync()
	metrics.UpdateTrackedUsers(s.store.Count(ctx))

	for _, courseID := range courses {
		s.requestBroadcast(ctx, courseID)
	}

	if err := sess.Send(protocol.Message{
		Type:         protocol.TypeFullProgressSynced,
		CoursesCount: len(courses),
	}); err != nil {
		s.logger.Debug(ctx, "sync ack failed", logger.Error(err))
	}
}

func (s *Service) handleProgressUpdate(ctx context.Context, sess *ws.Session, msg protocol.Message) {
	if msg.CourseID == "" || msg.FileKey == "" {
		metrics.RecordMalformedMessage()
		return
	}
	s.store.ApplyProgressUpdate(ctx, sess.UserID, msg.Username, msg.CourseID, msg.FileKey, msg.IsComplete)
	metrics.RecordProgressUpdate()
	metrics.UpdateTrackedUsers(s.store.Count(ctx))

	s.requestBroadcast(ctx, msg.CourseID)

	if err := sess.Send(protocol.Message{
		Type:     protocol.TypeProgressAck,
		CourseID: msg.CourseID,
		FileKey:  msg.FileKey,
	}); err != nil {
		s.logger.Debug(ctx, "progress ack failed", logger.Error(err))
	}
}

// handleLeaderboardRequest subscribes the session to the course and answers
// with an immediately computed leaderboard, independent of the broadcast
// queue, so an explicit pull never waits behind queued jobs.
func (s *Service) handleLeaderboardRequest(ctx context.Context, sess *ws.Session, msg protocol.Message) {
	if msg.CourseID == "" {
		metrics.RecordMalformedMessage()
		return
	}
	sess.Subscribe(msg.CourseID)
	metrics.RecordLeaderboardRequest()

	entries := s.Leaderboard(ctx, msg.CourseID)
	if err := sess.Send(protocol.LeaderboardUpdate(msg.CourseID, entries)); err != nil {
		s.logger.Debug(ctx, "leaderboard response failed", logger.Error(err))
	}
}

func (s *Service) handleStudyItems(ctx context.Context, sess *ws.Session, msg protocol.Message) {
	if msg.CourseID == "" {
		metrics.RecordMalformedMessage()
		return
	}
	s.store.SetStudyItems(ctx, sess.UserID, msg.CourseID, msg.FileKeys)
	metrics.RecordStudyItemSync()

	s.requestBroadcast(ctx, msg.CourseID)

	if err := sess.Send(protocol.Message{
		Type:     protocol.TypeStudyItemsSynced,
		CourseID: msg.CourseID,
		Count:    len(msg.FileKeys),
	}); err != nil {
		s.logger.Debug(ctx, "study items ack failed", logger.Error(err))
	}
}

// handleSetUsername updates the display name. Blank names are dropped; the
// client treats them as a local no-op and the server guards independently.
func (s *Service) handleSetUsername(ctx context.Context, sess *ws.Session, msg protocol.Message) {
	name := strings.TrimSpace(msg.Username)
	if name == "" {
		return
	}
	s.store.SetUsername(ctx, sess.UserID, name)
	metrics.RecordUsernameChange()

	if err := sess.Send(protocol.Message{
		Type:     protocol.TypeUsernameUpdated,
		Username: name,
	}); err != nil {
		s.logger.Debug(ctx, "username ack failed", logger.Error(err))
	}
}

// requestBroadcast queues a recompute-and-push job for courseID unless one
// is already pending.
func (s *Service) requestBroadcast(ctx context.Context, courseID string) {
	if s.pending.MarkPending(ctx, courseID) {
		metrics.RecordBroadcastCoalesced()
		return
	}
	if !s.jobs.Enqueue(ctx, queue.Job{CourseID: courseID}) {
		s.pending.ClearPending(ctx, courseID)
		s.logger.Warn(ctx, "broadcast queue full; dropping job",
			logger.String("courseId", courseID),
		)
	}
}

// Leaderboard computes the current leaderboard for courseID.
func (s *Service) Leaderboard(ctx context.Context, courseID string) []protocol.LeaderboardEntry {
	return s.engine.Compute(ctx, courseID, s.store.CourseView(ctx, courseID))
}

// ClearUser removes one user's progress and closes their session if live.
// Remaining clients are notified so cached leaderboards can be refreshed.
func (s *Service) ClearUser(ctx context.Context, userID string) int {
	removed := 0
	if err := s.store.Remove(ctx, userID); err == nil {
		removed = 1
	}
	s.registry.CloseUser(ctx, userID, "progress cleared")
	metrics.UpdateTrackedUsers(s.store.Count(ctx))

	s.registry.Broadcast(ctx, protocol.Message{
		Type:    protocol.TypeProgressCleared,
		Scope:   "user",
		UserID:  userID,
		Removed: removed,
	})
	return removed
}

// ClearAll removes every user's progress and closes all sessions.
func (s *Service) ClearAll(ctx context.Context) int {
	removed := s.store.Clear(ctx)
	s.registry.CloseAll(ctx, "progress cleared")
	metrics.UpdateTrackedUsers(0)
	return removed
}

// ActiveSessions returns the number of live websocket sessions.
func (s *Service) ActiveSessions(ctx context.Context) int {
	return s.registry.Count()
}

// TrackedUsers returns the number of users with recorded progress.
func (s *Service) TrackedUsers(ctx context.Context) int {
	return s.store.Count(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"shards":      s.shardCount,
		"queueSize":   s.queueSize,
		"workerCount": s.workerCount,
	}

	if s.started {
		stats["activeSessions"] = s.registry.Count()
		stats["trackedUsers"] = s.store.Count(ctx)
		stats["queuedBroadcasts"] = s.jobs.Len(ctx)
		stats["pendingCourses"] = s.pending.Size()
	}

	return stats
}
