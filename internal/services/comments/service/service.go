// Package service implements the cache-or-queue read path. Reads never call
// the upstream forum directly: a hit is served from the cache, a miss
// enqueues the job that will fill it and returns the pending sentinel.
package service

import (
	"context"
	"encoding/json"

	"backtalk/internal/adapters/discourse"
	"backtalk/internal/core/keys"
	"backtalk/internal/core/paging"
	perr "backtalk/internal/platform/errors"
	"backtalk/internal/platform/kv"
	"backtalk/internal/platform/logger"
	"backtalk/internal/services/comments/domain"
	courier "backtalk/internal/services/courier/domain"
)

// categorySource is the slice of the upstream client the read path may use
// directly; category data is TTL-cached inside the client, not queued
type categorySource interface {
	Categories(ctx context.Context) ([]discourse.Category, error)
}

// Svc implements domain.ReaderPort
type Svc struct {
	kv   kv.Store
	enq  courier.Enqueuer
	cats categorySource
	log  logger.Logger
}

var _ domain.ReaderPort = (*Svc)(nil)

// New builds the comments read service
func New(store kv.Store, enq courier.Enqueuer, cats categorySource) *Svc {
	return &Svc{kv: store, enq: enq, cats: cats, log: *logger.Named("comments")}
}

// getOrQueue is the one read primitive: cache hit decodes into T, miss
// enqueues task and returns nil. A store error aborts without enqueueing so
// a cache outage cannot flood the queue.
func getOrQueue[T any](ctx context.Context, s *Svc, key string, task courier.Task) (*T, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeCache, "corrupt cache entry %s", key)
		}
		return &v, nil
	}
	jobID, err := s.enq.Enqueue(ctx, task)
	if err != nil {
		return nil, err
	}
	logger.C(ctx).Debug().Str("key", key).Str("job_id", jobID).Str("kind", string(task.Kind())).Msg("cache miss, job queued")
	return nil, nil
}

// Page serves one page of comments. Navigation metadata is resolved against
// the live stream pointer; when the stream is not cached yet the page is
// treated as a miss even if a stale page body exists.
func (s *Svc) Page(ctx context.Context, topicID int64, page int, username string) (*domain.Page, error) {
	if page < 0 {
		return nil, perr.InvalidArgf("negative page index %d", page)
	}

	streamLen, ok, err := s.streamLen(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if !ok {
		_, err := s.enq.Enqueue(ctx, courier.CachePostStream{TopicID: topicID, Username: username})
		return nil, err
	}
	if page >= paging.TotalPages(streamLen) {
		return nil, perr.NotFoundf("no post ids found for page %d", page)
	}

	posts, err := getOrQueue[[]discourse.Post](ctx, s, keys.CommentsPage(topicID, page),
		courier.CacheComments{TopicID: topicID, Page: page, Username: username})
	if err != nil || posts == nil {
		return nil, err
	}

	out := &domain.Page{
		TopicID:    topicID,
		Page:       page,
		TotalPages: paging.TotalPages(streamLen),
		Posts:      *posts,
	}
	if next, ok := paging.Next(page, streamLen); ok {
		out.NextPage = &next
	}
	if prev, ok := paging.Prev(page); ok {
		out.PrevPage = &prev
	}
	return out, nil
}

// Map serves the per-topic summary metadata
func (s *Svc) Map(ctx context.Context, topicID int64, username string) (*discourse.TopicMap, error) {
	return getOrQueue[discourse.TopicMap](ctx, s, keys.CommentsMap(topicID),
		courier.CacheCommentsMap{TopicID: topicID, Username: username})
}

// PostReplies serves the hydrated replies to one post
func (s *Svc) PostReplies(ctx context.Context, topicID, postID int64, postNumber int, username string) (*domain.Replies, error) {
	posts, err := getOrQueue[[]discourse.Post](ctx, s, keys.PostReplies(postID),
		courier.CachePostReplies{TopicID: topicID, PostID: postID, PostNumber: postNumber, Username: username})
	if err != nil || posts == nil {
		return nil, err
	}
	return &domain.Replies{PostID: postID, Posts: *posts}, nil
}

// Permissions serves the cached per-user permission flags for a topic
func (s *Svc) Permissions(ctx context.Context, topicID int64, username string) (*discourse.Permissions, error) {
	return getOrQueue[discourse.Permissions](ctx, s, keys.TopicPermissions(topicID, username),
		courier.CacheCommentsMap{TopicID: topicID, Username: username})
}

// Result consumes a one-shot job completion record. The read deletes the
// record atomically, so exactly one poller observes it. A record not written
// yet is an ordinary miss: the poller sees the null payload and keeps
// polling until its attempt ceiling.
func (s *Svc) Result(ctx context.Context, jobID string) (*courier.Result, error) {
	raw, ok, err := s.kv.GetDel(ctx, keys.JobResult(jobID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var res courier.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeCache, "corrupt result for job %s", jobID)
	}
	return &res, nil
}

// Categories serves upstream category data through the client's TTL cache
func (s *Svc) Categories(ctx context.Context) ([]discourse.Category, error) {
	return s.cats.Categories(ctx)
}

// Refresh queues a stream refresh unconditionally and hands back the job id
// so the caller can poll the result endpoint
func (s *Svc) Refresh(ctx context.Context, topicID int64, username string) (string, error) {
	return s.enq.Enqueue(ctx, courier.CachePostStream{TopicID: topicID, Username: username})
}

// streamLen resolves the current stream length through the version pointer
func (s *Svc) streamLen(ctx context.Context, topicID int64) (int, bool, error) {
	raw, ok, err := s.kv.Get(ctx, keys.PostStreamCurrent(topicID))
	if err != nil || !ok {
		return 0, false, err
	}
	var version int64
	if err := json.Unmarshal(raw, &version); err != nil {
		return 0, false, perr.Wrapf(err, perr.ErrorCodeCache, "corrupt stream pointer for topic %d", topicID)
	}
	ids, ok, err := s.kv.GetIDs(ctx, keys.PostStreamVersion(topicID, version))
	if err != nil || !ok {
		return 0, false, err
	}
	return len(ids), true, nil
}
