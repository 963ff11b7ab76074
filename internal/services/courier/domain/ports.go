package domain

import "context"

// Enqueuer is the producer-side port onto the durable queue. Route handlers,
// the webhook receiver, and job completion hooks all enqueue through this.
type Enqueuer interface {
	Enqueue(ctx context.Context, t Task) (jobID string, err error)
}

// Runner is the worker-side port: blocks until ctx is done or the loop fails
type Runner interface {
	Run(ctx context.Context) error
}

// Result is the one-shot completion record written under the job-result key
// and consumed exactly once by the result endpoint
type Result struct {
	JobID       string  `json:"jobId"`
	Kind        JobKind `json:"kind"`
	OK          bool    `json:"ok"`
	Error       string  `json:"error,omitempty"`
	CompletedAt string  `json:"completedAt"`
}
