package queue

import (
	"context"
	"time"
)

// Job is one unit of delayed work. Key doubles as the idempotency key:
// submitting a job whose key is already scheduled is a no-op.
type Job struct {
	Key     string    `json:"key"`
	Payload []byte    `json:"payload"`
	FireAt  time.Time `json:"fire_at"`
}

// DelayedQueue is a durable queue with delayed delivery, key-based
// deduplication and explicit removal of not-yet-fired jobs.
type DelayedQueue interface {
	// Enqueue schedules the job for delivery at job.FireAt. It returns
	// false when a job with the same key is already scheduled; that is
	// success, not an error.
	Enqueue(ctx context.Context, job Job) (bool, error)

	// Remove withdraws a not-yet-fired job. Removing a key that already
	// fired or was never scheduled is not an error.
	Remove(ctx context.Context, key string) error

	// Due atomically claims up to limit jobs whose fire time is at or
	// before now. A claimed job will not be returned again.
	Due(ctx context.Context, now time.Time, limit int) ([]Job, error)

	Close() error
}
