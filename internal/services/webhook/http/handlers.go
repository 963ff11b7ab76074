// Package http provides the webhook receive endpoint
package http

import (
	"io"
	stdhttp "net/http"

	"backtalk/internal/modkit/httpkit"
	perr "backtalk/internal/platform/errors"
	svc "backtalk/internal/services/webhook/service"
)

// Header names the forum sets on webhook deliveries
const (
	headerEvent     = "X-Discourse-Event"
	headerSignature = "X-Discourse-Event-Signature"
)

// maxBody bounds webhook payload reads; post bodies are small
const maxBody = 1 << 20

// Register mounts the webhook receive endpoint
func Register(r httpkit.Router, s *svc.Svc) {
	h := &handlers{svc: s}
	r.Post("/discourse", httpkit.Handle(h.receive))
}

type handlers struct{ svc *svc.Svc }

// receive reads the raw body before anything else: the signature covers the
// exact bytes on the wire, so no JSON binding may happen first
func (h *handlers) receive(r *stdhttp.Request) httpkit.Response {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return httpkit.Error(perr.JSONErrf("unreadable body: %v", err))
	}
	if err := h.svc.Verify(r.Header.Get(headerSignature), body); err != nil {
		return httpkit.Error(err)
	}
	if err := h.svc.Handle(r.Context(), r.Header.Get(headerEvent), body); err != nil {
		return httpkit.Error(err)
	}
	return httpkit.NoContent()
}
