package service_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"backtalk/internal/adapters/discourse"
	"backtalk/internal/core/keys"
	perr "backtalk/internal/platform/errors"
	courier "backtalk/internal/services/courier/domain"
	svc "backtalk/internal/services/webhook/service"
)

type fakeStore struct{ m map[string][]byte }

func newFakeStore() *fakeStore { return &fakeStore{m: map[string][]byte{}} }

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.m[key]
	return v, ok, nil
}
func (s *fakeStore) Set(_ context.Context, key string, val []byte) error {
	s.m[key] = val
	return nil
}
func (s *fakeStore) SetNX(_ context.Context, key string, val []byte) (bool, error) {
	if _, ok := s.m[key]; ok {
		return false, nil
	}
	s.m[key] = val
	return true, nil
}
func (s *fakeStore) Delete(_ context.Context, key string) error { delete(s.m, key); return nil }
func (s *fakeStore) GetDel(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.m[key]
	delete(s.m, key)
	return v, ok, nil
}
func (s *fakeStore) GetIDs(context.Context, string) ([]int64, bool, error) { return nil, false, nil }
func (s *fakeStore) SetIDs(context.Context, string, []int64) error         { return nil }
func (s *fakeStore) AddIDs(context.Context, string, ...int64) error        { return nil }
func (s *fakeStore) Close() error                                          { return nil }

type recordingEnqueuer struct{ tasks []courier.Task }

func (e *recordingEnqueuer) Enqueue(_ context.Context, t courier.Task) (string, error) {
	e.tasks = append(e.tasks, t)
	return "job-1", nil
}

type fakeParser struct {
	post discourse.Post
	err  error
}

func (f *fakeParser) ParseWebhookPost([]byte) (discourse.Post, error) { return f.post, f.err }

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	s := svc.New("sekrit", newFakeStore(), &recordingEnqueuer{}, &fakeParser{})
	body := []byte(`{"post":{}}`)
	if err := s.Verify(sign("sekrit", body), body); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	s := svc.New("sekrit", newFakeStore(), &recordingEnqueuer{}, &fakeParser{})
	body := []byte(`{"post":{}}`)
	err := s.Verify(sign("other", body), body)
	if !perr.IsCode(err, perr.ErrorCodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	s := svc.New("sekrit", newFakeStore(), &recordingEnqueuer{}, &fakeParser{})
	sig := sign("sekrit", []byte(`{"post":{"id":1}}`))
	err := s.Verify(sig, []byte(`{"post":{"id":2}}`))
	if !perr.IsCode(err, perr.ErrorCodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestVerifyRejectsMalformedHeader(t *testing.T) {
	s := svc.New("sekrit", newFakeStore(), &recordingEnqueuer{}, &fakeParser{})
	for _, sig := range []string{"", "md5=abc", "sha256=zzzz"} {
		if err := s.Verify(sig, []byte("x")); !perr.IsCode(err, perr.ErrorCodeUnauthorized) {
			t.Fatalf("signature %q: expected unauthorized, got %v", sig, err)
		}
	}
}

func TestVerifyWithoutSecretAlwaysFails(t *testing.T) {
	s := svc.New("", newFakeStore(), &recordingEnqueuer{}, &fakeParser{})
	body := []byte("x")
	if err := s.Verify(sign("", body), body); !perr.IsCode(err, perr.ErrorCodeUnauthorized) {
		t.Fatalf("unconfigured receiver accepted a payload: %v", err)
	}
}

func TestPostCreatedPatchesCommentAndQueuesRefresh(t *testing.T) {
	store := newFakeStore()
	enq := &recordingEnqueuer{}
	post := discourse.Post{ID: 900, TopicID: 42, PostNumber: 38, Username: "sam"}
	s := svc.New("sekrit", store, enq, &fakeParser{post: post})

	if err := s.Handle(context.Background(), svc.EventPostCreated, []byte(`{}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	raw, ok := store.m[keys.Comment(42, 900)]
	if !ok {
		t.Fatal("comment entry not written")
	}
	var got discourse.Post
	if err := json.Unmarshal(raw, &got); err != nil || got.ID != 900 {
		t.Fatalf("comment entry wrong: %v %v", got, err)
	}

	if len(enq.tasks) != 1 {
		t.Fatalf("enqueued %d tasks, want 1", len(enq.tasks))
	}
	if _, ok := enq.tasks[0].(courier.CachePostStream); !ok {
		t.Fatalf("created post should refresh the stream, got %#v", enq.tasks[0])
	}
}

func TestPostEditedRequeuesItsPage(t *testing.T) {
	store := newFakeStore()
	enq := &recordingEnqueuer{}
	post := discourse.Post{ID: 900, TopicID: 42, PostNumber: 38, Username: "sam"}
	s := svc.New("sekrit", store, enq, &fakeParser{post: post})

	if err := s.Handle(context.Background(), svc.EventPostEdited, []byte(`{}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	cc, ok := enq.tasks[0].(courier.CacheComments)
	if !ok {
		t.Fatalf("expected page job, got %#v", enq.tasks[0])
	}
	// post number 38 lives on page 1 under the fixed chunk size
	if cc.TopicID != 42 || cc.Page != 1 {
		t.Fatalf("wrong page job %+v", cc)
	}
}

func TestPingAndUnknownEventsAreNoOps(t *testing.T) {
	store := newFakeStore()
	enq := &recordingEnqueuer{}
	s := svc.New("sekrit", store, enq, &fakeParser{err: perr.Validationf("should not be called")})

	for _, ev := range []string{svc.EventPing, "topic_created", "solved_accepted_answer"} {
		if err := s.Handle(context.Background(), ev, []byte(`{}`)); err != nil {
			t.Fatalf("event %q: %v", ev, err)
		}
	}
	if len(enq.tasks) != 0 || len(store.m) != 0 {
		t.Fatal("no-op events must not touch cache or queue")
	}
}

func TestMalformedPostPayloadSurfacesValidation(t *testing.T) {
	s := svc.New("sekrit", newFakeStore(), &recordingEnqueuer{}, &fakeParser{err: perr.Validationf("missing username")})
	err := s.Handle(context.Background(), svc.EventPostCreated, []byte(`{}`))
	if !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
