// Package service implements the courier worker: a single consumer that
// drains the durable queue at a fixed rate and materializes upstream forum
// data into the cache
package service

import (
	"context"
	"time"

	"backtalk/internal/adapters/discourse"
	"backtalk/internal/platform/config"
	"backtalk/internal/platform/kv"
	"backtalk/internal/platform/logger"
	"backtalk/internal/services/courier/domain"
	"backtalk/internal/services/courier/queue"

	"golang.org/x/time/rate"
)

// Limiter is the throttle seam in front of job execution. *rate.Limiter
// satisfies it in production; tests substitute a recording double.
type Limiter interface {
	Wait(ctx context.Context) error
}

// jobQueue is the slice of the durable queue the worker needs
type jobQueue interface {
	Enqueue(ctx context.Context, t domain.Task) (string, error)
	Lease(ctx context.Context) (*queue.Leased, error)
	Complete(ctx context.Context, id string) error
	Retry(ctx context.Context, id string, notBefore time.Time) error
	Remove(ctx context.Context, id string) error
}

// forum is the slice of the upstream client the processors need
type forum interface {
	Topic(ctx context.Context, topicID int64, username string) (*discourse.Topic, error)
	PostsByIDs(ctx context.Context, topicID int64, postIDs []int64, username string) ([]discourse.Post, error)
	Replies(ctx context.Context, postID int64, username string) ([]discourse.Post, error)
	CategoryName(ctx context.Context, id int64) string
}

// Config tunes the worker loop
type Config struct {
	// Interval is the minimum spacing between job executions. The upstream
	// forum throttles aggressively, so this defaults to one job per second.
	Interval time.Duration

	// Tick is how often an idle worker polls the queue for ready jobs
	Tick time.Duration

	// MaxAttempts bounds total tries per job, including the first
	MaxAttempts int

	// RetryBase is the backoff unit; attempt n waits RetryBase << n
	RetryBase time.Duration

	// RetryValidation opts validation failures back into retries. Off by
	// default: a schema mismatch rarely heals on its own, but operators who
	// have seen the upstream contract flap can flip it.
	RetryValidation bool
}

// ConfigFromEnv reads worker settings from the prefixed environment
func ConfigFromEnv(cfg config.Conf) Config {
	return Config{
		Interval:        cfg.MayDuration("INTERVAL", time.Second),
		Tick:            cfg.MayDuration("TICK", 250*time.Millisecond),
		MaxAttempts:     cfg.MayInt("MAX_ATTEMPTS", 5),
		RetryBase:       cfg.MayDuration("RETRY_BASE", 500*time.Millisecond),
		RetryValidation: cfg.MayBool("RETRY_VALIDATION", false),
	}
}

func (c Config) normalized() Config {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.Tick <= 0 {
		c.Tick = 250 * time.Millisecond
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	return c
}

// Svc is the courier service. It is both the producer port (Enqueue) handed
// to the API modules and the consumer loop (Run) the courier binary drives.
type Svc struct {
	cfg   Config
	kv    kv.Store
	q     jobQueue
	forum forum
	lim   Limiter
	log   logger.Logger
	now   func() time.Time
}

// compile-time port checks
var (
	_ domain.Enqueuer = (*Svc)(nil)
	_ domain.Runner   = (*Svc)(nil)
)

// timeNow is the clock seam; tests swap it to pin stream versions
var timeNow = time.Now

// New builds the courier service
func New(cfg Config, store kv.Store, q jobQueue, f forum) *Svc {
	cfg = cfg.normalized()
	return &Svc{
		cfg:   cfg,
		kv:    store,
		q:     q,
		forum: f,
		lim:   rate.NewLimiter(rate.Every(cfg.Interval), 1),
		log:   *logger.Named("courier"),
		now:   timeNow,
	}
}

// Enqueue implements domain.Enqueuer by persisting to the durable queue
func (s *Svc) Enqueue(ctx context.Context, t domain.Task) (string, error) {
	return s.q.Enqueue(ctx, t)
}
