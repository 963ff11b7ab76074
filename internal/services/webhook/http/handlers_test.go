package http_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"backtalk/internal/adapters/discourse"
	phttp "backtalk/internal/platform/net/http"
	courier "backtalk/internal/services/courier/domain"
	webhookhttp "backtalk/internal/services/webhook/http"
	webhooksvc "backtalk/internal/services/webhook/service"
)

type nullStore struct{ m map[string][]byte }

func (s *nullStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (s *nullStore) Set(_ context.Context, k string, v []byte) error {
	s.m[k] = v
	return nil
}
func (s *nullStore) SetNX(context.Context, string, []byte) (bool, error)   { return true, nil }
func (s *nullStore) Delete(context.Context, string) error                  { return nil }
func (s *nullStore) GetDel(context.Context, string) ([]byte, bool, error)  { return nil, false, nil }
func (s *nullStore) GetIDs(context.Context, string) ([]int64, bool, error) { return nil, false, nil }
func (s *nullStore) SetIDs(context.Context, string, []int64) error         { return nil }
func (s *nullStore) AddIDs(context.Context, string, ...int64) error        { return nil }
func (s *nullStore) Close() error                                          { return nil }

type nullEnqueuer struct{ n int }

func (e *nullEnqueuer) Enqueue(context.Context, courier.Task) (string, error) {
	e.n++
	return "job-1", nil
}

type okParser struct{}

func (okParser) ParseWebhookPost([]byte) (discourse.Post, error) {
	return discourse.Post{ID: 900, TopicID: 42, PostNumber: 1, Username: "sam"}, nil
}

func newServer(t *testing.T, secret string) (*httptest.Server, *nullEnqueuer) {
	t.Helper()
	enq := &nullEnqueuer{}
	s := webhooksvc.New(secret, &nullStore{m: map[string][]byte{}}, enq, okParser{})
	r := phttp.AdaptChi(chi.NewMux())
	webhookhttp.Register(r, s)
	srv := httptest.NewServer(r.Mux())
	t.Cleanup(srv.Close)
	return srv, enq
}

func deliver(t *testing.T, url, event, signature string, body []byte) int {
	t.Helper()
	req, err := stdhttp.NewRequest(stdhttp.MethodPost, url+"/discourse", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("X-Discourse-Event", event)
	req.Header.Set("X-Discourse-Event-Signature", signature)
	resp, err := stdhttp.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestSignedEventAccepted(t *testing.T) {
	srv, enq := newServer(t, "sekrit")
	body := []byte(`{"post":{"id":900}}`)

	code := deliver(t, srv.URL, "post_created", sign("sekrit", body), body)
	if code != stdhttp.StatusNoContent {
		t.Fatalf("status = %d want 204", code)
	}
	if enq.n != 1 {
		t.Fatalf("enqueued %d jobs, want 1", enq.n)
	}
}

func TestUnsignedEventRejected(t *testing.T) {
	srv, enq := newServer(t, "sekrit")
	body := []byte(`{"post":{"id":900}}`)

	code := deliver(t, srv.URL, "post_created", "", body)
	if code != stdhttp.StatusUnauthorized {
		t.Fatalf("status = %d want 401", code)
	}
	if enq.n != 0 {
		t.Fatal("rejected delivery must not enqueue")
	}
}

func TestTamperedBodyRejected(t *testing.T) {
	srv, _ := newServer(t, "sekrit")
	sig := sign("sekrit", []byte(`{"post":{"id":900}}`))

	code := deliver(t, srv.URL, "post_created", sig, []byte(`{"post":{"id":901}}`))
	if code != stdhttp.StatusUnauthorized {
		t.Fatalf("status = %d want 401", code)
	}
}

func TestPingAccepted(t *testing.T) {
	srv, enq := newServer(t, "sekrit")
	body := []byte(`{"ping":"ok"}`)

	code := deliver(t, srv.URL, "ping", sign("sekrit", body), body)
	if code != stdhttp.StatusNoContent {
		t.Fatalf("status = %d want 204", code)
	}
	if enq.n != 0 {
		t.Fatal("ping must not enqueue")
	}
}
