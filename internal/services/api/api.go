// Package api composes the HTTP API for the comment mirror
package api

import (
	stdhttp "net/http"

	"backtalk/internal/adapters/discourse"
	"backtalk/internal/core/version"
	"backtalk/internal/platform/config"
	"backtalk/internal/platform/kv"
	"backtalk/internal/platform/logger"
	phttp "backtalk/internal/platform/net/http"
	"backtalk/internal/services/courier/queue"

	"backtalk/internal/modkit"
	"backtalk/internal/modkit/httpkit"
	"backtalk/internal/modkit/module"

	commentsmod "backtalk/internal/services/comments/module"
	couriermod "backtalk/internal/services/courier/module"
	webhookmod "backtalk/internal/services/webhook/module"
)

// Options are the API options. The cache store, queue, and upstream client
// are constructed once in main and injected here.
type Options struct {
	Config config.Conf
	KV     kv.Store
	Queue  *queue.Queue
	Client *discourse.Client
}

// Mount mounts the API onto the given router
func Mount(r phttp.Router, opt Options) {
	deps := modkit.Deps{
		Log: *logger.Get(),
		Cfg: opt.Config,
		KV:  opt.KV,
	}

	// The courier module owns the Enqueuer port; every producer goes
	// through it so jobs always land in the durable queue.
	courier := couriermod.New(deps, opt.Queue, opt.Client)
	enq := module.MustPortsOf[couriermod.Ports](courier).Enqueuer

	comments := commentsmod.New(deps, enq, opt.Client)
	webhooks := webhookmod.New(deps, enq, opt.Client)

	mods := []module.Module{
		courier,
		comments,
		webhooks,
	}

	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		httpkit.Get(api, "/version", func(_ *stdhttp.Request) (any, error) {
			return version.Info(), nil
		})

		for _, m := range mods {
			module.Register(m.Name(), m.Ports())
			m.MountRoutes(api)
		}
	})
}
