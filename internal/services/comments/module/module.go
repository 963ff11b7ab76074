// Package module wires the comments read surface into the API using modkit
package module

import (
	"net/http"

	"backtalk/internal/adapters/discourse"
	modkit "backtalk/internal/modkit"
	"backtalk/internal/modkit/httpkit"
	str "backtalk/internal/platform/strings"
	"backtalk/internal/services/comments/domain"
	commentshttp "backtalk/internal/services/comments/http"
	commentssvc "backtalk/internal/services/comments/service"
	courier "backtalk/internal/services/courier/domain"
)

// Ports exposed by the comments module
type Ports struct {
	Reader domain.ReaderPort
}

// Module implements the modkit.Module interface
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws      []func(http.Handler) http.Handler
	ports    Ports
	register func(httpkit.Router)

	svc *commentssvc.Svc
}

// New constructs the comments module. The enqueuer port comes from the
// courier module; the upstream client only serves TTL-cached category data.
func New(deps modkit.Deps, enq courier.Enqueuer, client *discourse.Client, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("comments")}, opts...)...)

	svc := commentssvc.New(deps.KV, enq, client)

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		svc:    svc,
		ports:  Ports{Reader: svc},
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		commentshttp.Register(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	mount := func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		m.register(rr)
	}
	if m.prefix == "" {
		mount(r)
		return
	}
	r.Route(m.prefix, mount)
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return m.prefix }

// Ports returns the module ports for cross wiring
func (m *Module) Ports() any { return m.ports }
