// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep defaults in New and layer file/env on top in Load.
// - External errors must be wrapped via this package's error helpers.
package config

import "runtime"

// Config contains process configuration for the progress server.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP/websocket listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// BroadcastQueueSize bounds the in-memory leaderboard broadcast queue.
	BroadcastQueueSize int `koanf:"broadcast_queue_size"`

	// BroadcastWorkers sets the number of broadcast workers.
	BroadcastWorkers int `koanf:"broadcast_workers"`

	// ShardCount configures the number of shards in the progress store.
	ShardCount int `koanf:"shard_count"`

	// AllowedOrigins lists origins accepted by CORS and the websocket
	// upgrader. "*" accepts any origin.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// WriteTimeoutMS bounds a single websocket frame write.
	WriteTimeoutMS int `koanf:"write_timeout_ms"`

	// MaxMessageBytes caps the size of one inbound frame.
	MaxMessageBytes int64 `koanf:"max_message_bytes"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":8000",
		BroadcastQueueSize: 4096,
		BroadcastWorkers:   runtime.NumCPU(),
		ShardCount:         8,
		AllowedOrigins:     []string{"*"},
		WriteTimeoutMS:     5000,
		MaxMessageBytes:    1 << 20,
	}
}
