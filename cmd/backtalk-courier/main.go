package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"backtalk/internal/adapters/discourse"
	"backtalk/internal/modkit"
	"backtalk/internal/modkit/module"
	"backtalk/internal/platform/config"
	"backtalk/internal/platform/kv"
	"backtalk/internal/platform/logger"
	couriermod "backtalk/internal/services/courier/module"
	"backtalk/internal/services/courier/queue"
)

func main() {
	_ = godotenv.Load()

	root := config.New()
	cacheCfg := root.Prefix("CACHE_")
	forumCfg := root.Prefix("DISCOURSE_")

	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := kv.Open(ctx, cacheCfg.MayString("PATH", "backtalk-cache.db"))
	if err != nil {
		l.Panic().Err(err).Msg("cache open failed")
	}
	defer func() {
		if err := store.Close(); err != nil {
			l.Error().Err(err).Msg("failed to close cache store")
		}
	}()

	q, err := queue.Open(ctx, cacheCfg.MayString("QUEUE_PATH", "backtalk-queue.db"))
	if err != nil {
		l.Panic().Err(err).Msg("queue open failed")
	}
	defer func() {
		if err := q.Close(); err != nil {
			l.Error().Err(err).Msg("failed to close queue")
		}
	}()

	client := discourse.NewClient(discourse.Options{
		BaseURL:        forumCfg.MustURL("BASE_URL").String(),
		APIKey:         forumCfg.MustString("API_KEY"),
		SystemUsername: forumCfg.MayString("SYSTEM_USERNAME", "system"),
		Timeout:        forumCfg.MayDuration("TIMEOUT", 0),
		CategoryTTL:    forumCfg.MayDuration("CATEGORY_TTL", 0),
	})

	deps := modkit.Deps{Log: *l, Cfg: root, KV: store}

	mod := couriermod.New(deps, q, client)
	module.Register(mod.Name(), mod.Ports())

	ports := module.MustPortsOf[couriermod.Ports](mod)
	if err := ports.Runner.Run(ctx); err != nil && ctx.Err() == nil {
		l.Fatal().Err(err).Msg("courier worker failed")
	}
}
