// Package service implements the webhook receiver: it authenticates forum
// events and folds them into the cache so the mirror converges without
// waiting for the next full refresh
package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"backtalk/internal/adapters/discourse"
	"backtalk/internal/core/keys"
	"backtalk/internal/core/paging"
	perr "backtalk/internal/platform/errors"
	"backtalk/internal/platform/kv"
	"backtalk/internal/platform/logger"
	courier "backtalk/internal/services/courier/domain"
)

// Event names the forum emits that the receiver acts on. Anything else is
// acknowledged and dropped.
const (
	EventPing        = "ping"
	EventPostCreated = "post_created"
	EventPostEdited  = "post_edited"
	EventPostLiked   = "post_liked"
)

// poster is the slice of the upstream adapter the receiver needs
type poster interface {
	ParseWebhookPost(body []byte) (discourse.Post, error)
}

// Svc verifies and applies webhook events
type Svc struct {
	secret []byte
	kv     kv.Store
	enq    courier.Enqueuer
	parse  poster
	log    logger.Logger
}

// New builds the webhook service. secret is the shared key the forum signs
// payloads with; an empty secret disables the receiver rather than running
// it unauthenticated.
func New(secret string, store kv.Store, enq courier.Enqueuer, parse poster) *Svc {
	return &Svc{
		secret: []byte(secret),
		kv:     store,
		enq:    enq,
		parse:  parse,
		log:    *logger.Named("webhook"),
	}
}

// Enabled reports whether a signing secret is configured
func (s *Svc) Enabled() bool { return len(s.secret) > 0 }

// Verify checks the event signature header against the raw body.
// The header carries "sha256=<hex>" of HMAC-SHA256(secret, body); the
// comparison is constant time.
func (s *Svc) Verify(signature string, body []byte) error {
	if !s.Enabled() {
		return perr.Unauthorizedf("webhook secret not configured")
	}
	hexSig, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return perr.Unauthorizedf("malformed signature header")
	}
	got, err := hex.DecodeString(hexSig)
	if err != nil {
		return perr.Unauthorizedf("malformed signature header")
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return perr.Unauthorizedf("signature mismatch")
	}
	return nil
}

// Handle applies one verified event. Post events patch the single-comment
// entry immediately; a created post also invalidates the stream via a full
// refresh, while edits and likes requeue just the page the post lives on.
func (s *Svc) Handle(ctx context.Context, event string, body []byte) error {
	switch event {
	case EventPing:
		return nil
	case EventPostCreated, EventPostEdited, EventPostLiked:
		return s.handlePost(ctx, event, body)
	default:
		s.log.Debug().Str("event", event).Msg("ignoring webhook event")
		return nil
	}
}

func (s *Svc) handlePost(ctx context.Context, event string, body []byte) error {
	post, err := s.parse.ParseWebhookPost(body)
	if err != nil {
		return err
	}

	b, err := json.Marshal(post)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeCache, "encode post %d", post.ID)
	}
	if err := s.kv.Set(ctx, keys.Comment(post.TopicID, post.ID), b); err != nil {
		return err
	}

	var task courier.Task
	if event == EventPostCreated {
		task = courier.CachePostStream{TopicID: post.TopicID}
	} else {
		task = courier.CacheComments{TopicID: post.TopicID, Page: paging.ForPostNumber(post.PostNumber)}
	}
	jobID, err := s.enq.Enqueue(ctx, task)
	if err != nil {
		return err
	}
	s.log.Info().
		Str("event", event).
		Int64("topic_id", post.TopicID).
		Int64("post_id", post.ID).
		Str("job_id", jobID).
		Msg("webhook applied")
	return nil
}
