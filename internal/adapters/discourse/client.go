// Package discourse provides the authenticated client for the upstream forum
// API plus the transform from upstream JSON to the normalized cached shapes.
// The client never retries: transient failures surface as coded errors and
// retry policy belongs to the courier queue.
package discourse

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	perr "backtalk/internal/platform/errors"
	"backtalk/internal/platform/logger"
	"backtalk/internal/platform/net/http/bind"

	"github.com/viccon/sturdyc"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultUA          = "backtalk-courier"
	defaultCategoryTTL = 5 * time.Minute
)

// Options configures the Client
type Options struct {
	// BaseURL of the upstream forum, e.g. https://forum.example.com
	BaseURL string

	// APIKey and SystemUsername authenticate requests. SystemUsername is the
	// acting identity whenever no user context is supplied
	APIKey         string
	SystemUsername string

	UserAgent string
	Timeout   time.Duration

	// CategoryTTL bounds how stale cached category data may get
	CategoryTTL time.Duration
}

// Client is a minimal forum REST client
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
	now  func() time.Time
	cats *sturdyc.Client[[]Category]
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.SystemUsername == "" {
		o.SystemUsername = "system"
	}
	if o.CategoryTTL <= 0 {
		o.CategoryTTL = defaultCategoryTTL
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("discourse"),
		now:  time.Now,
		cats: sturdyc.New[[]Category](64, 1, o.CategoryTTL, 10),
	}
}

// do issues one GET with auth headers and returns the body on 2xx.
// Non-success statuses map to an upstream error carrying the status code;
// transport failures map to unavailable. No retry here, by contract.
func (c *Client) do(ctx context.Context, path, username string) ([]byte, error) {
	url := c.opts.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "discourse new request failed")
	}
	if username == "" {
		username = c.opts.SystemUsername
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Api-Key", c.opts.APIKey)
	req.Header.Set("Api-Username", username)

	start := c.now()
	resp, err := c.http.Do(req)
	lat := c.now().Sub(start)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "discourse do failed")
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", lat).
		Msg("discourse http response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// read a small tail for diagnostics then return
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, perr.Upstreamf(resp.StatusCode, "discourse %s returned %d body %s", path, resp.StatusCode, string(body))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "discourse read body failed")
	}
	return body, nil
}

// getJSON fetches path, decodes into T and schema-checks it.
// Decode and validation failures come back as validation errors so callers
// can tell "upstream unreachable" from "upstream changed its contract".
func getJSON[T any](ctx context.Context, c *Client, path, username string) (T, error) {
	var dst T
	body, err := c.do(ctx, path, username)
	if err != nil {
		return dst, err
	}
	if err := json.Unmarshal(body, &dst); err != nil {
		return dst, perr.Validationf("discourse %s: body does not decode: %v", path, err)
	}
	if err := bind.Check(&dst); err != nil {
		return dst, perr.Wrapf(err, perr.ErrorCodeValidation, "discourse %s: unexpected response shape", path)
	}
	return dst, nil
}
