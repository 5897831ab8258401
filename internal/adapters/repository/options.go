package repository

import "time"

type storeConfig struct {
	shardCount int
	now        func() time.Time
}

// Option applies a configuration option to the MemStore.
type Option func(*storeConfig)

// WithShardCount sets the number of shards. Values below one are ignored.
func WithShardCount(n int) Option {
	return func(c *storeConfig) {
		if n > 0 {
			c.shardCount = n
		}
	}
}

// WithClock sets the time source used for lastUpdate stamps. Intended for
// tests that need deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *storeConfig) {
		if now != nil {
			c.now = now
		}
	}
}
