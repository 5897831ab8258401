package client

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/pace/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithKV injects the persistence port backing identity and snapshot reads.
// Defaults to an in-memory store.
func WithKV(kv KV) Option {
	return func(c *Client) {
		if kv != nil {
			c.identity = NewIdentity(kv)
			c.store = NewStore(kv)
		}
	}
}

// WithNotifier subscribes to change events from other execution contexts
// sharing the persisted store.
func WithNotifier(n Notifier) Option {
	return func(c *Client) {
		c.notifier = n
	}
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithCourse sets the initially active course.
func WithCourse(courseID string) Option {
	return func(c *Client) {
		c.course = courseID
	}
}

// WithReconnectDelay overrides the fixed delay between connection attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

// WithSyncInterval overrides the periodic full sync interval.
func WithSyncInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.syncInterval = d
		}
	}
}

// WithPollInterval overrides the leaderboard poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithStateListener registers a callback invoked on every state change.
func WithStateListener(fn func(State)) Option {
	return func(c *Client) {
		c.onState = fn
	}
}
