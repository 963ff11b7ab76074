// Package domain holds the job variants and contracts for the courier queue
package domain

import (
	"encoding/json"

	perr "backtalk/internal/platform/errors"
)

// JobKind names a job variant on the wire. Values are stable: rows written
// by an older binary must still decode, and unknown kinds are a no-op so the
// queue schema can evolve forward.
type JobKind string

const (
	// KindCachePostStream refreshes a topic's post-id stream and first page
	KindCachePostStream JobKind = "cacheTopicPostStream"

	// KindCacheComments caches one page of a topic's comments
	KindCacheComments JobKind = "cacheTopicComments"

	// KindCacheCommentsMap caches the per-topic summary metadata
	KindCacheCommentsMap JobKind = "cacheCommentsMap"

	// KindCachePostReplies caches the replies to one post
	KindCachePostReplies JobKind = "cachePostReplies"
)

// Task is the closed set of job payloads. Every variant is dispatched by an
// exhaustive type switch in the worker; adding a variant without a processor
// arm is a compile-visible change, not a stringly-typed surprise.
type Task interface {
	Kind() JobKind
}

// CachePostStream refreshes the stream for one topic
type CachePostStream struct {
	TopicID  int64  `json:"topicId"`
	Username string `json:"username,omitempty"`
}

// Kind implements Task
func (CachePostStream) Kind() JobKind { return KindCachePostStream }

// CacheComments caches one page of comments for a topic
type CacheComments struct {
	TopicID  int64  `json:"topicId"`
	Page     int    `json:"page"`
	Username string `json:"username,omitempty"`
}

// Kind implements Task
func (CacheComments) Kind() JobKind { return KindCacheComments }

// CacheCommentsMap caches the topic summary metadata
type CacheCommentsMap struct {
	TopicID  int64  `json:"topicId"`
	Username string `json:"username,omitempty"`
}

// Kind implements Task
func (CacheCommentsMap) Kind() JobKind { return KindCacheCommentsMap }

// CachePostReplies caches the replies to one post and the reply-id index
type CachePostReplies struct {
	TopicID    int64  `json:"topicId"`
	PostID     int64  `json:"postId"`
	PostNumber int    `json:"postNumber"`
	Username   string `json:"username,omitempty"`
}

// Kind implements Task
func (CachePostReplies) Kind() JobKind { return KindCachePostReplies }

// EncodeTask serializes a task payload for the queue
func EncodeTask(t Task) ([]byte, error) {
	b, err := json.Marshal(t)
	return b, perr.WrapIf(err, perr.ErrorCodeQueue, "encode task")
}

// DecodeTask rebuilds a task from its kind and payload.
// An unrecognized kind decodes to (nil, nil): the worker logs and drops it
// rather than failing, tolerating queue schema evolution.
func DecodeTask(kind JobKind, payload []byte) (Task, error) {
	switch kind {
	case KindCachePostStream:
		var t CachePostStream
		err := decode(payload, &t)
		return t, err
	case KindCacheComments:
		var t CacheComments
		err := decode(payload, &t)
		return t, err
	case KindCacheCommentsMap:
		var t CacheCommentsMap
		err := decode(payload, &t)
		return t, err
	case KindCachePostReplies:
		var t CachePostReplies
		err := decode(payload, &t)
		return t, err
	default:
		return nil, nil
	}
}

func decode(payload []byte, dst any) error {
	return perr.WrapIf(json.Unmarshal(payload, dst), perr.ErrorCodeQueue, "decode task")
}
