// Package queue is the durable SQLite-backed work queue shared by the API
// (producer) and the courier worker (consumer)
package queue

import (
	"context"
	"database/sql"
	"time"

	"backtalk/internal/services/courier/domain"

	perr "backtalk/internal/platform/errors"
	"backtalk/internal/platform/logger"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Leased is one job handed to the worker. Attempts counts completed tries,
// so a job seen with Attempts=2 is on its third try.
type Leased struct {
	ID       string
	Kind     domain.JobKind
	Payload  []byte
	Attempts int
}

// Queue persists jobs across process restarts. State machine per row:
// queued -> active -> (deleted | queued with backoff). A single consumer
// leases jobs, so leasing is a short transaction, not a lock protocol.
type Queue struct {
	db  *sql.DB
	log logger.Logger
	now func() time.Time
}

// Timestamps are unix milliseconds so readiness comparisons stay plain
// integer comparisons regardless of driver time formatting.
const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	payload BLOB NOT NULL,
	state TEXT NOT NULL DEFAULT 'queued',
	attempts INTEGER NOT NULL DEFAULT 0,
	not_before INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS jobs_ready ON jobs (state, not_before, created_at);`

// Open opens (and migrates) the queue database at path
func Open(ctx context.Context, path string) (*Queue, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeQueue, "queue open %s", path)
	}
	// single connection: sqlite allows one writer, and :memory: databases
	// are per-connection
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeQueue, "queue ping %s", path)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeQueue, "queue migrate %s", path)
	}
	return &Queue{db: db, log: *logger.Named("queue"), now: time.Now}, nil
}

// Close closes the underlying database
func (q *Queue) Close() error { return q.db.Close() }

// Enqueue persists a task and returns its job id
func (q *Queue) Enqueue(ctx context.Context, t domain.Task) (string, error) {
	payload, err := domain.EncodeTask(t)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, payload, created_at) VALUES (?, ?, ?, ?)`,
		id, string(t.Kind()), payload, q.now().UnixMilli())
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeQueue, "enqueue %s", t.Kind())
	}
	q.log.Debug().Str("job_id", id).Str("kind", string(t.Kind())).Msg("job enqueued")
	return id, nil
}

// Lease takes the oldest ready job and marks it active.
// Returns (nil, nil) when nothing is ready.
func (q *Queue) Lease(ctx context.Context) (*Leased, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeQueue, "lease begin")
	}
	defer func() { _ = tx.Rollback() }()

	var j Leased
	var kind string
	err = tx.QueryRowContext(ctx, `
		SELECT id, kind, payload, attempts FROM jobs
		WHERE state = 'queued' AND not_before <= ?
		ORDER BY created_at, id LIMIT 1`,
		q.now().UnixMilli()).Scan(&j.ID, &kind, &j.Payload, &j.Attempts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeQueue, "lease select")
	}
	j.Kind = domain.JobKind(kind)

	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET state = 'active' WHERE id = ?`, j.ID); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeQueue, "lease mark active")
	}
	if err := tx.Commit(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeQueue, "lease commit")
	}
	return &j, nil
}

// Complete removes a finished job
func (q *Queue) Complete(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	return perr.WrapIf(err, perr.ErrorCodeQueue, "complete "+id)
}

// Retry requeues a failed job with one more attempt on the clock and a
// not-before fence for backoff
func (q *Queue) Retry(ctx context.Context, id string, notBefore time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE jobs SET state = 'queued', attempts = attempts + 1, not_before = ?
		WHERE id = ?`,
		notBefore.UnixMilli(), id)
	return perr.WrapIf(err, perr.ErrorCodeQueue, "retry "+id)
}

// Remove drops a job that exhausted its attempts. The caller owns the
// failure log; nothing is dropped silently.
func (q *Queue) Remove(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	return perr.WrapIf(err, perr.ErrorCodeQueue, "remove "+id)
}

// Depth reports how many jobs are waiting or active, for logs and tests
func (q *Queue) Depth(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n)
	return n, perr.WrapIf(err, perr.ErrorCodeQueue, "depth")
}
