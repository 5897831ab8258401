package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/pace/pkg/logger"
	"github.com/okian/pace/pkg/protocol"
)

// State enumerates the connection manager states.
type State int32

// Connection manager states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns a readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Default reconciliation intervals.
const (
	defaultReconnectDelay = 3 * time.Second
	defaultSyncInterval   = 30 * time.Second
	defaultPollInterval   = 5 * time.Second

	updateBufferSize = 64
)

// Client owns the single server session for one identity. It reconnects
// forever on a fixed delay, replays the full snapshot on every connect and
// keeps the server fresh with periodic syncs and leaderboard polls.
type Client struct {
	serverURL string
	identity  *Identity
	store     *Store
	dialer    *websocket.Dialer
	notifier  Notifier
	logger    logger.Logger

	reconnectDelay time.Duration
	syncInterval   time.Duration
	pollInterval   time.Duration

	onState func(State)

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	course  string
	pending []protocol.Message
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	// Socket writes are serialized separately from state changes.
	writeMu sync.Mutex

	online  chan struct{}
	syncReq chan struct{}
	updates chan protocol.Message
}

// New creates a client for the server at serverURL (scheme ws or wss).
func New(serverURL string, opts ...Option) *Client {
	c := &Client{
		serverURL:      serverURL,
		dialer:         websocket.DefaultDialer,
		logger:         logger.Nop(),
		reconnectDelay: defaultReconnectDelay,
		syncInterval:   defaultSyncInterval,
		pollInterval:   defaultPollInterval,
		online:         make(chan struct{}, 1),
		syncReq:        make(chan struct{}, 1),
		updates:        make(chan protocol.Message, updateBufferSize),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.identity == nil {
		kv := NewMemKV()
		c.identity = NewIdentity(kv)
		c.store = NewStore(kv)
	}

	return c
}

// Start launches the connection manager. It returns ErrAlreadyActive if the
// client is already running. Stopping is done by Close, which also cancels
// every timer the client owns.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrAlreadyActive
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.started = true

	go c.run(runCtx)
	return nil
}

// Close tears down the client, closing the session and cancelling all
// reconnect and reconciliation timers.
func (c *Client) Close() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ErrClosed
	}
	c.started = false
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()
	<-done
	return nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether a session is live.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// UserID returns this installation's identity.
func (c *Client) UserID() string {
	return c.identity.UserID()
}

// Username returns the current display name.
func (c *Client) Username() string {
	return c.identity.Username()
}

// Updates delivers inbound server messages (leaderboard updates, acks) to
// the caller. Messages are dropped when the buffer is full.
func (c *Client) Updates() <-chan protocol.Message {
	return c.updates
}

// Pending returns the number of queued progress updates awaiting a
// connection. The queue is discarded on connect; a full sync supersedes it.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// SetCourse records the active course and, when connected, requests its
// leaderboard immediately.
func (c *Client) SetCourse(courseID string) {
	if courseID == "" {
		return
	}
	c.mu.Lock()
	c.course = courseID
	c.mu.Unlock()

	if err := c.write(protocol.RequestLeaderboard(courseID)); err != nil {
		c.logger.Debug(context.Background(), "leaderboard request dropped", logger.Error(err))
	}
}

// SendProgressUpdate pushes one file completion change. While disconnected
// the update is queued rather than dropped.
func (c *Client) SendProgressUpdate(courseID, fileKey string, isComplete bool) error {
	if courseID == "" || fileKey == "" {
		return fmt.Errorf("%w: course and file required", ErrInvalidUpdate)
	}
	return c.write(protocol.Message{
		Type:       protocol.TypeProgressUpdate,
		Username:   c.identity.Username(),
		CourseID:   courseID,
		FileKey:    fileKey,
		IsComplete: isComplete,
	})
}

// SetUsername persists a new display name and, when connected, propagates
// it to the server. A blank name is a local no-op with no network effect.
func (c *Client) SetUsername(name string) bool {
	if !c.identity.SetUsername(name) {
		return false
	}
	if err := c.write(protocol.Message{
		Type:     protocol.TypeSetUsername,
		Username: c.identity.Username(),
	}); err != nil {
		c.logger.Debug(context.Background(), "username send dropped", logger.Error(err))
	}
	return true
}

// NotifyLocalChange schedules an immediate full sync after a same-context
// write to the persisted store. External-context writes arrive through the
// Notifier instead.
func (c *Client) NotifyLocalChange() {
	select {
	case c.syncReq <- struct{}{}:
	default:
	}
}

// SetOnline signals restored connectivity; a waiting reconnect fires
// immediately instead of after the fixed delay. The signal only counts
// while disconnected, so it cannot pre-arm a later reconnect.
func (c *Client) SetOnline() {
	if c.State() != StateDisconnected {
		return
	}
	select {
	case c.online <- struct{}{}:
	default:
	}
}

// SetOffline records lost connectivity. An open session is left to fail on
// its own; only the signal is logged.
func (c *Client) SetOffline() {
	c.logger.Info(context.Background(), "connectivity lost", logger.String("state", c.State().String()))
}

// run is the connection manager loop: dial, serve the session, wait the
// fixed delay, repeat forever.
func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	defer c.setState(StateDisconnected)

	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug(ctx, "dial failed", logger.Error(err))
			if !c.waitRetry(ctx) {
				return
			}
			continue
		}

		c.session(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		if !c.waitRetry(ctx) {
			return
		}
	}
}

// waitRetry blocks for the fixed reconnect delay. An online signal skips
// the remainder of the delay. Returns false when the client is closing.
func (c *Client) waitRetry(ctx context.Context) bool {
	timer := time.NewTimer(c.reconnectDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-c.online:
		return true
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	c.setState(StateConnecting)

	endpoint := c.serverURL + "/ws/" + url.PathEscape(c.identity.UserID())
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		c.setState(StateDisconnected)
		return nil, fmt.Errorf("dialing %s: %w", endpoint, err)
	}
	return conn, nil
}

// session owns one live connection until it drops or the client closes.
func (c *Client) session(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	// The full sync sent below supersedes anything queued while offline.
	c.pending = nil
	c.state = StateConnected
	course := c.course
	c.mu.Unlock()
	c.notifyState(StateConnected)

	// Clear any online token that raced the dial; a stale one would let a
	// later drop skip the reconnect delay.
	select {
	case <-c.online:
	default:
	}

	c.logger.Info(ctx, "connected", logger.String("userId", c.identity.UserID()))

	c.syncFull(ctx)
	if course != "" {
		if err := c.write(protocol.RequestLeaderboard(course)); err != nil {
			c.logger.Debug(ctx, "leaderboard request failed", logger.Error(err))
		}
	}

	readErr := make(chan error, 1)
	go c.readLoop(conn, readErr)

	syncTicker := time.NewTicker(c.syncInterval)
	defer syncTicker.Stop()
	pollTicker := time.NewTicker(c.pollInterval)
	defer pollTicker.Stop()

	var changes <-chan string
	if c.notifier != nil {
		changes = c.notifier.Changes()
	}

	for {
		select {
		case <-ctx.Done():
			c.teardown(conn)
			<-readErr
			return
		case err := <-readErr:
			c.logger.Info(ctx, "session dropped", logger.Error(err))
			c.teardown(conn)
			return
		case <-syncTicker.C:
			c.syncFull(ctx)
		case <-pollTicker.C:
			c.pollLeaderboard(ctx)
		case key := <-changes:
			if key == KeyProgress || key == KeyStudyItems {
				c.syncFull(ctx)
			}
		case <-c.syncReq:
			c.syncFull(ctx)
		}
	}
}

func (c *Client) teardown(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.state = StateDisconnected
	c.mu.Unlock()
	c.notifyState(StateDisconnected)

	_ = conn.Close()
}

// readLoop surfaces inbound frames to the updates channel until the
// connection fails.
func (c *Client) readLoop(conn *websocket.Conn, readErr chan<- error) {
	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			readErr <- err
			return
		}
		select {
		case c.updates <- msg:
		default:
			c.logger.Debug(context.Background(), "update dropped; buffer full", logger.String("type", msg.Type))
		}
	}
}

// syncFull reads the persisted snapshot and replays it to the server. A
// missing or unreadable snapshot skips this cycle; the next one retries
// independently.
func (c *Client) syncFull(ctx context.Context) {
	if c.store == nil {
		return
	}

	progress, err := c.store.Progress()
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			c.logger.Debug(ctx, "no snapshot; sync skipped")
		} else {
			c.logger.Warn(ctx, "snapshot unreadable; sync skipped", logger.Error(err))
		}
		return
	}

	studyItems, err := c.store.StudyItems()
	if err != nil {
		c.logger.Warn(ctx, "study items unreadable; sync skipped", logger.Error(err))
		return
	}

	msg := protocol.FullSync(progress, studyItems, c.identity.Username())
	if err := c.write(msg); err != nil {
		c.logger.Debug(ctx, "full sync dropped", logger.Error(err))
	}
}

func (c *Client) pollLeaderboard(ctx context.Context) {
	c.mu.Lock()
	course := c.course
	c.mu.Unlock()

	if course == "" {
		return
	}
	if err := c.write(protocol.RequestLeaderboard(course)); err != nil {
		c.logger.Debug(ctx, "leaderboard poll dropped", logger.Error(err))
	}
}

// write sends msg on the live session. Disconnected sends are dropped with
// ErrNotConnected, except progress updates which are queued and reported as
// sent.
func (c *Client) write(msg protocol.Message) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	if !connected || conn == nil {
		if msg.Type == protocol.TypeProgressUpdate {
			c.pending = append(c.pending, msg)
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("writing %s: %w", msg.Type, err)
	}
	return nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed {
		c.notifyState(s)
	}
}

func (c *Client) notifyState(s State) {
	if c.onState != nil {
		c.onState(s)
	}
}
