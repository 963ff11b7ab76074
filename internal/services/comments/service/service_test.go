package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"backtalk/internal/adapters/discourse"
	"backtalk/internal/core/keys"
	perr "backtalk/internal/platform/errors"
	"backtalk/internal/services/comments/service"
	courier "backtalk/internal/services/courier/domain"
)

// fakeStore is an in-memory cache; failing=true simulates a store outage
type fakeStore struct {
	m       map[string][]byte
	failing bool
}

func newFakeStore() *fakeStore { return &fakeStore{m: map[string][]byte{}} }

func (s *fakeStore) err() error {
	if s.failing {
		return perr.Cachef("store down")
	}
	return nil
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := s.err(); err != nil {
		return nil, false, err
	}
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *fakeStore) Set(_ context.Context, key string, val []byte) error {
	if err := s.err(); err != nil {
		return err
	}
	s.m[key] = val
	return nil
}

func (s *fakeStore) SetNX(_ context.Context, key string, val []byte) (bool, error) {
	if _, ok := s.m[key]; ok {
		return false, s.err()
	}
	s.m[key] = val
	return true, s.err()
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	delete(s.m, key)
	return s.err()
}

func (s *fakeStore) GetDel(_ context.Context, key string) ([]byte, bool, error) {
	if err := s.err(); err != nil {
		return nil, false, err
	}
	v, ok := s.m[key]
	delete(s.m, key)
	return v, ok, nil
}

func (s *fakeStore) GetIDs(_ context.Context, key string) ([]int64, bool, error) {
	v, ok, err := s.Get(nil, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	var ids []int64
	if err := json.Unmarshal(v, &ids); err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

func (s *fakeStore) SetIDs(_ context.Context, key string, ids []int64) error {
	b, _ := json.Marshal(ids)
	return s.Set(nil, key, b)
}

func (s *fakeStore) AddIDs(context.Context, string, ...int64) error { return nil }
func (s *fakeStore) Close() error                                   { return nil }

// recordingEnqueuer captures enqueued tasks
type recordingEnqueuer struct {
	tasks []courier.Task
	err   error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, t courier.Task) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	e.tasks = append(e.tasks, t)
	return "job-1", nil
}

type fakeCats struct{ cats []discourse.Category }

func (f *fakeCats) Categories(context.Context) ([]discourse.Category, error) {
	return f.cats, nil
}

func seedStream(s *fakeStore, topicID int64, streamLen int) {
	ids := make([]int64, streamLen)
	for i := range ids {
		ids[i] = int64(i + 100)
	}
	_ = s.SetIDs(nil, keys.PostStreamVersion(topicID, 5), ids)
	ptr, _ := json.Marshal(int64(5))
	_ = s.Set(nil, keys.PostStreamCurrent(topicID), ptr)
}

func TestPageMissWithoutStreamQueuesRefresh(t *testing.T) {
	store := newFakeStore()
	enq := &recordingEnqueuer{}
	svc := service.New(store, enq, &fakeCats{})

	page, err := svc.Page(context.Background(), 42, 0, "sam")
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if page != nil {
		t.Fatalf("expected pending sentinel, got %+v", page)
	}
	if len(enq.tasks) != 1 {
		t.Fatalf("enqueued %d tasks, want 1", len(enq.tasks))
	}
	if _, ok := enq.tasks[0].(courier.CachePostStream); !ok {
		t.Fatalf("expected stream refresh, got %#v", enq.tasks[0])
	}
}

func TestPageMissWithStreamQueuesPageJob(t *testing.T) {
	store := newFakeStore()
	enq := &recordingEnqueuer{}
	svc := service.New(store, enq, &fakeCats{})
	seedStream(store, 42, 37)

	page, err := svc.Page(context.Background(), 42, 1, "sam")
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if page != nil {
		t.Fatal("expected pending sentinel on page miss")
	}
	cc, ok := enq.tasks[0].(courier.CacheComments)
	if !ok || cc.TopicID != 42 || cc.Page != 1 {
		t.Fatalf("unexpected task %#v", enq.tasks[0])
	}
}

func TestPageHitComputesNavigation(t *testing.T) {
	store := newFakeStore()
	enq := &recordingEnqueuer{}
	svc := service.New(store, enq, &fakeCats{})
	seedStream(store, 42, 37)

	posts := []discourse.Post{{ID: 120, TopicID: 42, PostNumber: 21, Username: "sam"}}
	b, _ := json.Marshal(posts)
	_ = store.Set(nil, keys.CommentsPage(42, 1), b)

	page, err := svc.Page(context.Background(), 42, 1, "sam")
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if page == nil {
		t.Fatal("expected a hit")
	}
	if page.TotalPages != 2 {
		t.Fatalf("totalPages = %d want 2", page.TotalPages)
	}
	if page.NextPage != nil {
		t.Fatal("last page should have no next")
	}
	if page.PrevPage == nil || *page.PrevPage != 0 {
		t.Fatalf("prevPage wrong: %v", page.PrevPage)
	}
	if len(page.Posts) != 1 || page.Posts[0].ID != 120 {
		t.Fatalf("posts wrong: %+v", page.Posts)
	}
	if len(enq.tasks) != 0 {
		t.Fatalf("hit should not enqueue, got %d tasks", len(enq.tasks))
	}
}

func TestPageBeyondStreamIsNotFound(t *testing.T) {
	store := newFakeStore()
	svc := service.New(store, &recordingEnqueuer{}, &fakeCats{})
	seedStream(store, 42, 37)

	_, err := svc.Page(context.Background(), 42, 2, "")
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCacheOutageAbortsWithoutEnqueue(t *testing.T) {
	store := newFakeStore()
	store.failing = true
	enq := &recordingEnqueuer{}
	svc := service.New(store, enq, &fakeCats{})

	_, err := svc.Map(context.Background(), 42, "")
	if !perr.IsCode(err, perr.ErrorCodeCache) {
		t.Fatalf("expected cache error, got %v", err)
	}
	if len(enq.tasks) != 0 {
		t.Fatal("outage must not enqueue jobs")
	}
}

func TestMapMissQueuesExactlyOneJob(t *testing.T) {
	store := newFakeStore()
	enq := &recordingEnqueuer{}
	svc := service.New(store, enq, &fakeCats{})

	m, err := svc.Map(context.Background(), 42, "sam")
	if err != nil || m != nil {
		t.Fatalf("expected pending: m=%v err=%v", m, err)
	}
	if len(enq.tasks) != 1 {
		t.Fatalf("enqueued %d tasks, want 1", len(enq.tasks))
	}
}

func TestResultConsumedOnce(t *testing.T) {
	store := newFakeStore()
	svc := service.New(store, &recordingEnqueuer{}, &fakeCats{})

	res := courier.Result{JobID: "job-1", Kind: courier.KindCacheComments, OK: true}
	b, _ := json.Marshal(res)
	_ = store.Set(nil, keys.JobResult("job-1"), b)

	got, err := svc.Result(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if !got.OK || got.JobID != "job-1" {
		t.Fatalf("wrong result %+v", got)
	}

	again, err := svc.Result(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if again != nil {
		t.Fatalf("second read should be a pending miss, got %+v", again)
	}
}

func TestResultPendingUntilWritten(t *testing.T) {
	store := newFakeStore()
	svc := service.New(store, &recordingEnqueuer{}, &fakeCats{})

	got, err := svc.Result(context.Background(), "job-still-running")
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if got != nil {
		t.Fatalf("expected pending sentinel, got %+v", got)
	}
}

func TestRepliesMissQueuesReplyJob(t *testing.T) {
	store := newFakeStore()
	enq := &recordingEnqueuer{}
	svc := service.New(store, enq, &fakeCats{})

	r, err := svc.PostReplies(context.Background(), 42, 900, 5, "sam")
	if err != nil || r != nil {
		t.Fatalf("expected pending: r=%v err=%v", r, err)
	}
	pr, ok := enq.tasks[0].(courier.CachePostReplies)
	if !ok || pr.PostID != 900 || pr.PostNumber != 5 || pr.TopicID != 42 {
		t.Fatalf("unexpected task %#v", enq.tasks[0])
	}
}

func TestRefreshAlwaysEnqueues(t *testing.T) {
	store := newFakeStore()
	enq := &recordingEnqueuer{}
	svc := service.New(store, enq, &fakeCats{})
	seedStream(store, 42, 37)

	jobID, err := svc.Refresh(context.Background(), 42, "sam")
	if err != nil || jobID == "" {
		t.Fatalf("refresh: id=%q err=%v", jobID, err)
	}
	cs, ok := enq.tasks[0].(courier.CachePostStream)
	if !ok || cs.TopicID != 42 || cs.Username != "sam" {
		t.Fatalf("unexpected task %#v", enq.tasks[0])
	}
}

func TestPermissionsHit(t *testing.T) {
	store := newFakeStore()
	enq := &recordingEnqueuer{}
	svc := service.New(store, enq, &fakeCats{})

	perm := discourse.Permissions{Username: "sam", CanCreatePost: true}
	b, _ := json.Marshal(perm)
	_ = store.Set(nil, keys.TopicPermissions(42, "sam"), b)

	got, err := svc.Permissions(context.Background(), 42, "sam")
	if err != nil || got == nil {
		t.Fatalf("permissions: got=%v err=%v", got, err)
	}
	if !got.CanCreatePost {
		t.Fatal("permission flag lost")
	}
	if len(enq.tasks) != 0 {
		t.Fatal("hit should not enqueue")
	}
}
