// Package pollkit implements the client side of the pending-sentinel
// protocol: retry an async read on a fixed cadence until data lands or the
// attempt ceiling is hit, while suppressing duplicate pollers per key
package pollkit

import (
	"context"
	"time"

	perr "backtalk/internal/platform/errors"

	"github.com/puzpuzpuz/xsync/v3"
)

// Sentinel errors
var (
	// ErrNotAvailable means every attempt came back pending
	ErrNotAvailable = perr.Unavailablef("data not available after polling")

	// ErrInFlight means another poller already owns this key; callers should
	// not start a second poll loop for the same resource
	ErrInFlight = perr.Unavailablef("poll already in flight")
)

// Fetch performs one read attempt. (nil, nil) means still pending.
type Fetch[T any] func(ctx context.Context) (*T, error)

// Options tunes a poll group
type Options struct {
	// Interval between attempts, default one second
	Interval time.Duration

	// Attempts is the total try ceiling, default five
	Attempts int
}

func (o Options) normalized() Options {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Attempts <= 0 {
		o.Attempts = 5
	}
	return o
}

// Group runs poll loops with per-key duplicate suppression. A key moves
// idle -> loading on the first Poll and back to idle when that poll settles;
// a second Poll while loading fails fast with ErrInFlight.
type Group[T any] struct {
	opts     Options
	inflight *xsync.MapOf[string, struct{}]
}

// NewGroup builds a poll group
func NewGroup[T any](opts Options) *Group[T] {
	return &Group[T]{
		opts:     opts.normalized(),
		inflight: xsync.NewMapOf[string, struct{}](),
	}
}

// Poll fetches immediately, then on each interval tick, until data arrives,
// fetch returns an error, the attempt ceiling is reached, or ctx is done
func (g *Group[T]) Poll(ctx context.Context, key string, fetch Fetch[T]) (*T, error) {
	if _, loaded := g.inflight.LoadOrStore(key, struct{}{}); loaded {
		return nil, ErrInFlight
	}
	defer g.inflight.Delete(key)

	ticker := time.NewTicker(g.opts.Interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
		if attempt >= g.opts.Attempts {
			return nil, ErrNotAvailable
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
