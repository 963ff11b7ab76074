package service

import (
	"context"
	"encoding/json"
	"time"

	"backtalk/internal/core/keys"
	perr "backtalk/internal/platform/errors"
	"backtalk/internal/services/courier/domain"
	"backtalk/internal/services/courier/queue"
)

// Run implements domain.Runner. It drains the queue one job at a time,
// spacing executions through the limiter, until ctx is canceled.
func (s *Svc) Run(ctx context.Context) error {
	s.log.Info().
		Dur("interval", s.cfg.Interval).
		Int("max_attempts", s.cfg.MaxAttempts).
		Bool("retry_validation", s.cfg.RetryValidation).
		Msg("courier worker started")

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("courier worker stopping")
			return ctx.Err()
		case <-ticker.C:
		}

		j, err := s.q.Lease(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("queue lease failed")
			continue
		}
		if j == nil {
			continue
		}

		if err := s.lim.Wait(ctx); err != nil {
			// Shutting down mid-lease: requeue immediately so the job
			// survives the restart.
			_ = s.q.Retry(context.WithoutCancel(ctx), j.ID, s.now())
			return err
		}

		s.runOne(ctx, j)
	}
}

// runOne executes one leased job and settles its queue row
func (s *Svc) runOne(ctx context.Context, j *queue.Leased) {
	log := s.log.With().
		Str("job_id", j.ID).
		Str("kind", string(j.Kind)).
		Int("attempt", j.Attempts+1).
		Logger()

	task, err := domain.DecodeTask(j.Kind, j.Payload)
	if err == nil && task == nil {
		log.Warn().Msg("unknown job kind, dropping")
		if cerr := s.q.Complete(ctx, j.ID); cerr != nil {
			log.Error().Err(cerr).Msg("queue complete failed")
		}
		return
	}
	if err == nil {
		err = s.process(ctx, task)
	}

	if err == nil {
		if cerr := s.q.Complete(ctx, j.ID); cerr != nil {
			log.Error().Err(cerr).Msg("queue complete failed")
		}
		s.writeResult(ctx, j, nil)
		log.Debug().Msg("job completed")
		return
	}

	if s.shouldRetry(err) && j.Attempts+1 < s.cfg.MaxAttempts {
		notBefore := s.now().Add(s.cfg.RetryBase << j.Attempts)
		if rerr := s.q.Retry(ctx, j.ID, notBefore); rerr != nil {
			log.Error().Err(rerr).Msg("queue retry failed")
			return
		}
		log.Warn().Err(err).Time("not_before", notBefore).Msg("job failed, will retry")
		return
	}

	// Terminal: exactly one failure log per job, then the row is removed
	// and the one-shot result records the failure for any waiting poller.
	log.Error().Err(err).Msg("job failed permanently")
	if rerr := s.q.Remove(ctx, j.ID); rerr != nil {
		log.Error().Err(rerr).Msg("queue remove failed")
	}
	s.writeResult(ctx, j, err)
}

// shouldRetry layers the validation override on top of the error taxonomy
func (s *Svc) shouldRetry(err error) bool {
	if s.cfg.RetryValidation && perr.IsCode(perr.Root(err), perr.ErrorCodeValidation) {
		return true
	}
	return perr.Retryable(err)
}

// writeResult stores the one-shot completion record. Best effort: a cache
// outage here must not turn a settled job back into a failure.
func (s *Svc) writeResult(ctx context.Context, j *queue.Leased, jobErr error) {
	res := domain.Result{
		JobID:       j.ID,
		Kind:        j.Kind,
		OK:          jobErr == nil,
		CompletedAt: s.now().UTC().Format(time.RFC3339),
	}
	if jobErr != nil {
		res.Error = jobErr.Error()
	}
	b, err := json.Marshal(res)
	if err == nil {
		err = s.kv.Set(ctx, keys.JobResult(j.ID), b)
	}
	if err != nil {
		s.log.Error().Err(err).Str("job_id", j.ID).Msg("job result write failed")
	}
}

// process dispatches the closed task set. The default arm is unreachable for
// tasks produced by DecodeTask; it guards direct Enqueue callers.
func (s *Svc) process(ctx context.Context, task domain.Task) error {
	switch t := task.(type) {
	case domain.CachePostStream:
		return s.processPostStream(ctx, t)
	case domain.CacheComments:
		return s.processComments(ctx, t)
	case domain.CacheCommentsMap:
		return s.processCommentsMap(ctx, t)
	case domain.CachePostReplies:
		return s.processPostReplies(ctx, t)
	default:
		return perr.Queuef("no processor for kind %q", task.Kind())
	}
}
