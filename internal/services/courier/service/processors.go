package service

import (
	"context"
	"encoding/json"

	"backtalk/internal/adapters/discourse"
	"backtalk/internal/core/keys"
	"backtalk/internal/core/paging"
	perr "backtalk/internal/platform/errors"
	"backtalk/internal/services/courier/domain"
)

// processPostStream refreshes everything one topic fetch yields: the post-id
// stream, the first page, the topic summary, and per-user permissions.
//
// The stream is written as an immutable versioned snapshot first and the
// current pointer is repointed only after the snapshot is complete, so a
// concurrent reader resolves either the old version or the new one, never a
// half-written stream. Page fan-out is guarded by a per-version marker so
// replayed refreshes enqueue the page jobs at most once.
func (s *Svc) processPostStream(ctx context.Context, t domain.CachePostStream) error {
	topic, err := s.forum.Topic(ctx, t.TopicID, t.Username)
	if err != nil {
		return perr.Jobf(err, "refresh post stream for topic %d", t.TopicID)
	}

	prevRaw, hadPrev, err := s.kv.Get(ctx, keys.PostStreamCurrent(t.TopicID))
	if err != nil {
		return perr.Jobf(err, "read stream pointer for topic %d", t.TopicID)
	}

	version := s.now().UnixNano()
	if err := s.kv.SetIDs(ctx, keys.PostStreamVersion(t.TopicID, version), topic.Stream); err != nil {
		return perr.Jobf(err, "write stream v%d for topic %d", version, t.TopicID)
	}
	if err := s.writePage(ctx, t.TopicID, 0, topic.FirstPage); err != nil {
		return perr.Jobf(err, "write first page for topic %d", t.TopicID)
	}
	if err := s.writeTopicMap(ctx, topic); err != nil {
		return perr.Jobf(err, "write topic map for topic %d", t.TopicID)
	}
	if err := s.writePermissions(ctx, topic); err != nil {
		return perr.Jobf(err, "write permissions for topic %d", t.TopicID)
	}

	ptr, _ := json.Marshal(version)
	if err := s.kv.Set(ctx, keys.PostStreamCurrent(t.TopicID), ptr); err != nil {
		return perr.Jobf(err, "repoint stream for topic %d", t.TopicID)
	}
	s.dropSupersededStream(ctx, t.TopicID, prevRaw, hadPrev, version)

	won, err := s.kv.SetNX(ctx, keys.StreamFanout(t.TopicID, version), []byte("1"))
	if err != nil {
		return perr.Jobf(err, "fan-out guard for topic %d", t.TopicID)
	}
	if !won {
		s.log.Debug().Int64("topic_id", t.TopicID).Int64("version", version).Msg("fan-out already claimed")
		return nil
	}
	for page := 1; page < paging.TotalPages(len(topic.Stream)); page++ {
		_, err := s.q.Enqueue(ctx, domain.CacheComments{TopicID: t.TopicID, Page: page, Username: t.Username})
		if err != nil {
			return perr.Jobf(err, "fan out page %d for topic %d", page, t.TopicID)
		}
	}
	return nil
}

// processComments caches one page of a topic's comments, resolved against
// the current stream version. A missing stream means the refresh that would
// have produced it never ran or was evicted; requeue the refresh and let its
// fan-out bring this page back.
func (s *Svc) processComments(ctx context.Context, t domain.CacheComments) error {
	ids, ok, err := s.currentStream(ctx, t.TopicID)
	if err != nil {
		return perr.Jobf(err, "resolve stream for topic %d", t.TopicID)
	}
	if !ok {
		s.log.Info().Int64("topic_id", t.TopicID).Int("page", t.Page).Msg("stream missing, requeueing refresh")
		_, err := s.q.Enqueue(ctx, domain.CachePostStream{TopicID: t.TopicID, Username: t.Username})
		return perr.WrapIf(err, perr.ErrorCodeQueue, "requeue stream refresh")
	}

	pageIDs, err := paging.Slice(ids, t.Page)
	if err != nil {
		return perr.Jobf(err, "slice page %d for topic %d", t.Page, t.TopicID)
	}
	posts, err := s.forum.PostsByIDs(ctx, t.TopicID, pageIDs, t.Username)
	if err != nil {
		return perr.Jobf(err, "fetch page %d for topic %d", t.Page, t.TopicID)
	}
	if err := s.writePage(ctx, t.TopicID, t.Page, posts); err != nil {
		return perr.Jobf(err, "write page %d for topic %d", t.Page, t.TopicID)
	}
	return nil
}

// processCommentsMap caches the topic summary and permissions without
// touching the stream
func (s *Svc) processCommentsMap(ctx context.Context, t domain.CacheCommentsMap) error {
	topic, err := s.forum.Topic(ctx, t.TopicID, t.Username)
	if err != nil {
		return perr.Jobf(err, "fetch topic %d", t.TopicID)
	}
	if err := s.writeTopicMap(ctx, topic); err != nil {
		return perr.Jobf(err, "write topic map for topic %d", t.TopicID)
	}
	if err := s.writePermissions(ctx, topic); err != nil {
		return perr.Jobf(err, "write permissions for topic %d", t.TopicID)
	}
	return nil
}

// processPostReplies caches the hydrated reply list for one post and folds
// the reply ids into the per-post-number index
func (s *Svc) processPostReplies(ctx context.Context, t domain.CachePostReplies) error {
	posts, err := s.forum.Replies(ctx, t.PostID, t.Username)
	if err != nil {
		return perr.Jobf(err, "fetch replies for post %d", t.PostID)
	}
	b, err := json.Marshal(posts)
	if err != nil {
		return perr.Jobf(err, "encode replies for post %d", t.PostID)
	}
	if err := s.kv.Set(ctx, keys.PostReplies(t.PostID), b); err != nil {
		return perr.Jobf(err, "write replies for post %d", t.PostID)
	}
	ids := make([]int64, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	if err := s.kv.AddIDs(ctx, keys.ReplyIDs(t.TopicID, t.PostNumber), ids...); err != nil {
		return perr.Jobf(err, "index replies for post %d", t.PostID)
	}
	return nil
}

// dropSupersededStream deletes the snapshot and fan-out marker the repoint
// just replaced, so the store holds one stream version per topic. A failed
// delete only leaves a stale snapshot behind; nothing resolves it through
// the pointer anymore.
func (s *Svc) dropSupersededStream(ctx context.Context, topicID int64, prevRaw []byte, hadPrev bool, version int64) {
	if !hadPrev {
		return
	}
	var prev int64
	if json.Unmarshal(prevRaw, &prev) != nil || prev == version {
		return
	}
	_ = s.kv.Delete(ctx, keys.PostStreamVersion(topicID, prev))
	_ = s.kv.Delete(ctx, keys.StreamFanout(topicID, prev))
}

// currentStream resolves the live stream ids through the version pointer
func (s *Svc) currentStream(ctx context.Context, topicID int64) ([]int64, bool, error) {
	raw, ok, err := s.kv.Get(ctx, keys.PostStreamCurrent(topicID))
	if err != nil || !ok {
		return nil, false, err
	}
	var version int64
	if err := json.Unmarshal(raw, &version); err != nil {
		return nil, false, perr.Wrapf(err, perr.ErrorCodeCache, "corrupt stream pointer for topic %d", topicID)
	}
	return s.kv.GetIDs(ctx, keys.PostStreamVersion(topicID, version))
}

// writePage stores one page and its per-post entries. The single-post
// entries let webhook events patch a comment without refetching the page.
func (s *Svc) writePage(ctx context.Context, topicID int64, page int, posts []discourse.Post) error {
	b, err := json.Marshal(posts)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeCache, "encode page %d", page)
	}
	if err := s.kv.Set(ctx, keys.CommentsPage(topicID, page), b); err != nil {
		return err
	}
	for _, p := range posts {
		pb, err := json.Marshal(p)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeCache, "encode post %d", p.ID)
		}
		if err := s.kv.Set(ctx, keys.Comment(topicID, p.ID), pb); err != nil {
			return err
		}
	}
	return nil
}

func (s *Svc) writeTopicMap(ctx context.Context, topic *discourse.Topic) error {
	m := topic.Map
	m.CategoryName = s.forum.CategoryName(ctx, m.CategoryID)
	b, err := json.Marshal(m)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeCache, "encode topic map %d", m.TopicID)
	}
	return s.kv.Set(ctx, keys.CommentsMap(m.TopicID), b)
}

func (s *Svc) writePermissions(ctx context.Context, topic *discourse.Topic) error {
	b, err := json.Marshal(topic.Permissions)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeCache, "encode permissions for topic %d", topic.Map.TopicID)
	}
	return s.kv.Set(ctx, keys.TopicPermissions(topic.Map.TopicID, topic.Permissions.Username), b)
}
