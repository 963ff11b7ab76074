// Package module wires the webhook receiver into the API using modkit
package module

import (
	"net/http"

	"backtalk/internal/adapters/discourse"
	modkit "backtalk/internal/modkit"
	"backtalk/internal/modkit/httpkit"
	str "backtalk/internal/platform/strings"
	courier "backtalk/internal/services/courier/domain"
	webhookhttp "backtalk/internal/services/webhook/http"
	webhooksvc "backtalk/internal/services/webhook/service"
)

// Module implements the modkit.Module interface
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws      []func(http.Handler) http.Handler
	register func(httpkit.Router)

	svc *webhooksvc.Svc
}

// New constructs the webhook module. The signing secret comes from
// WEBHOOK_SECRET; without it the receive endpoint answers 401 to everything.
func New(deps modkit.Deps, enq courier.Enqueuer, client *discourse.Client, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("webhook"),
		modkit.WithPrefix("/webhooks"),
	}, opts...)...)

	secret := deps.Cfg.Prefix("WEBHOOK_").MayString("SECRET", "")
	svc := webhooksvc.New(secret, deps.KV, enq, client)

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		svc:    svc,
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		webhookhttp.Register(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		m.register(rr)
	})
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports returns the module ports; the webhook module exposes none
func (m *Module) Ports() any { return nil }
