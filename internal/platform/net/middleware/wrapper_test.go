package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"backtalk/internal/platform/logger"
	pnet "backtalk/internal/platform/net"
	"backtalk/internal/platform/net/middleware"
	"backtalk/internal/platform/testkit"
)

func TestIdentityStoresUsername(t *testing.T) {
	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = pnet.Username(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(middleware.UsernameHeader, "eviltrout")
	middleware.Identity()(next).ServeHTTP(httptest.NewRecorder(), req)

	if got != "eviltrout" {
		t.Fatalf("username = %q", got)
	}
}

func TestIdentityLeavesContextAloneWithoutHeader(t *testing.T) {
	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = pnet.Username(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	middleware.Identity()(next).ServeHTTP(httptest.NewRecorder(), req)

	if got != "" {
		t.Fatalf("unexpected username %q", got)
	}
}

func TestRequestIDReachesRequestLogs(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Options{Level: "debug", Format: "json", Writer: &buf})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.C(r.Context()).Info().Msg("handled")
	})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "req-abc123")
	middleware.RequestID()(next).ServeHTTP(httptest.NewRecorder(), req)

	testkit.MustContain(t, buf.String(), `"request_id":"req-abc123"`)
}

func TestHeartbeat(t *testing.T) {
	h := middleware.Heartbeat("/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/other", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("passthrough = %d", rr.Code)
	}
}
