// Package http provides http transport for the comments read surface
package http

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"strconv"
	"strings"

	"backtalk/internal/modkit/httpkit"
	perr "backtalk/internal/platform/errors"
	pnet "backtalk/internal/platform/net"
	"backtalk/internal/pollkit"
	"backtalk/internal/services/comments/domain"

	"github.com/go-chi/chi/v5"
)

// Register mounts the comments endpoints on the given router.
// Every read either serves a cache hit or answers with a null data payload
// after queueing the fill job; clients poll until data arrives. A page read
// with wait=true polls server side instead, holding the request open.
func Register(r httpkit.Router, s domain.ReaderPort) {
	h := &handlers{
		svc:       s,
		pagePolls: pollkit.NewGroup[domain.Page](pollkit.Options{}),
	}
	httpkit.Get(r, "/topics/{topicID}/comments", h.page)
	httpkit.Get(r, "/topics/{topicID}/comments-map", h.commentsMap)
	httpkit.Get(r, "/topics/{topicID}/posts/{postID}/replies", h.replies)
	httpkit.Get(r, "/topics/{topicID}/permissions", h.permissions)
	httpkit.Get(r, "/jobs/{jobID}", h.result)
	httpkit.Get(r, "/categories", h.categories)
	httpkit.PostJSON[domain.RefreshInput](r, "/topics/{topicID}/refresh", h.refresh)
}

type handlers struct {
	svc       domain.ReaderPort
	pagePolls *pollkit.Group[domain.Page]
}

func (h *handlers) page(r *stdhttp.Request) (any, error) {
	topicID, err := pathInt64(r, "topicID")
	if err != nil {
		return nil, err
	}
	page, err := queryInt(r, "page", 0)
	if err != nil {
		return nil, err
	}
	username := actingUsername(r)

	if !queryBool(r, "wait") {
		return h.svc.Page(r.Context(), topicID, page, username)
	}
	return h.pagePolls.Poll(r.Context(), fmt.Sprintf("page:%d:%d", topicID, page),
		func(ctx context.Context) (*domain.Page, error) {
			return h.svc.Page(ctx, topicID, page, username)
		})
}

func (h *handlers) refresh(r *stdhttp.Request, in domain.RefreshInput) (any, error) {
	topicID, err := pathInt64(r, "topicID")
	if err != nil {
		return nil, err
	}
	username := in.Username
	if username == "" {
		username = actingUsername(r)
	}
	jobID, err := h.svc.Refresh(r.Context(), topicID, username)
	if err != nil {
		return nil, err
	}
	return domain.RefreshAccepted{JobID: jobID}, nil
}

func (h *handlers) commentsMap(r *stdhttp.Request) (any, error) {
	topicID, err := pathInt64(r, "topicID")
	if err != nil {
		return nil, err
	}
	return h.svc.Map(r.Context(), topicID, actingUsername(r))
}

func (h *handlers) replies(r *stdhttp.Request) (any, error) {
	topicID, err := pathInt64(r, "topicID")
	if err != nil {
		return nil, err
	}
	postID, err := pathInt64(r, "postID")
	if err != nil {
		return nil, err
	}
	postNumber, err := queryInt(r, "postNumber", 0)
	if err != nil {
		return nil, err
	}
	return h.svc.PostReplies(r.Context(), topicID, postID, postNumber, actingUsername(r))
}

func (h *handlers) permissions(r *stdhttp.Request) (any, error) {
	topicID, err := pathInt64(r, "topicID")
	if err != nil {
		return nil, err
	}
	return h.svc.Permissions(r.Context(), topicID, actingUsername(r))
}

func (h *handlers) result(r *stdhttp.Request) (any, error) {
	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if jobID == "" {
		return nil, perr.InvalidArgf("missing job id")
	}
	return h.svc.Result(r.Context(), jobID)
}

func (h *handlers) categories(r *stdhttp.Request) (any, error) {
	return h.svc.Categories(r.Context())
}

// actingUsername prefers the identity middleware, falling back to the query
// param the embed script sends
func actingUsername(r *stdhttp.Request) string {
	if u := pnet.Username(r.Context()); u != "" {
		return u
	}
	return strings.TrimSpace(r.URL.Query().Get("username"))
}

func pathInt64(r *stdhttp.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, perr.InvalidArgf("invalid %s %q", name, raw)
	}
	return v, nil
}

func queryBool(r *stdhttp.Request, name string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(name)))
	return err == nil && v
}

func queryInt(r *stdhttp.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, perr.InvalidArgf("invalid %s %q", name, raw)
	}
	return v, nil
}
