package storage

import (
	"context"

	"github.com/riverqueue/river"
)

// JobStorage defines the minimal interface for enqueueing background jobs,
// currently only the daily blocklist refresh. The args parameter contains
// the job payload and opts can be used to customize insertion behavior.
// Implementations should be atomic with respect to any surrounding
// transaction when the backend supports it.
type JobStorage interface {
	// AddJob enqueues a new job with the given arguments. The boolean result
	// reports whether a job was actually inserted (false when deduplicated by
	// uniqueness constraints).
	AddJob(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (bool, error)
}
