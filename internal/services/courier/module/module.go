// Package module implements the courier service module
package module

import (
	"backtalk/internal/adapters/discourse"
	"backtalk/internal/modkit"
	"backtalk/internal/modkit/httpkit"
	"backtalk/internal/services/courier/domain"
	"backtalk/internal/services/courier/queue"
	"backtalk/internal/services/courier/service"
)

// Ports exposed by the courier module. The API modules take Enqueuer; only
// the courier binary drives Runner.
type Ports struct {
	Enqueuer domain.Enqueuer
	Runner   domain.Runner
}

// Module implements the courier service module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new courier module around the durable queue and the
// upstream client built in main
func New(deps modkit.Deps, q *queue.Queue, client *discourse.Client) *Module {
	cfg := service.ConfigFromEnv(deps.Cfg.Prefix("COURIER_"))
	svc := service.New(cfg, deps.KV, q, client)

	m := &Module{deps: deps}
	m.ports = Ports{
		Enqueuer: svc,
		Runner:   svc,
	}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "courier" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix satisfies modkit.Module
func (m *Module) Prefix() string { return "" }

// MountRoutes satisfies modkit.Module; the courier has no HTTP surface
func (m *Module) MountRoutes(r httpkit.Router) {}
