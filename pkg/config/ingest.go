package config

import "time"

// IngestConfig contains ingest worker pool configuration. These values
// control how inbound webhook messages are queued and processed, mirroring
// a QueueConfig shape for a push-based rather than poll-based
// worker pool.
type IngestConfig struct {
	// WorkerCount is the number of worker goroutines draining the inbound
	// message channel.
	WorkerCount int `yaml:"worker_count"`

	// QueueDepth bounds the inbound channel so a burst of webhook deliveries
	// backpressures the HTTP handler instead of growing memory unbounded.
	QueueDepth int `yaml:"queue_depth"`

	// PerUserTimeout bounds how long one message may occupy its
	// (tenant, room, user) serial lock before being abandoned.
	PerUserTimeout time.Duration `yaml:"per_user_timeout"`

	// GracefulShutdownTimeout is the max time to wait for in-flight
	// messages to finish during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

// DefaultIngestConfig returns the built-in ingest worker defaults.
func DefaultIngestConfig() *IngestConfig {
	return &IngestConfig{
		WorkerCount:             10,
		QueueDepth:              500,
		PerUserTimeout:          30 * time.Second,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}
