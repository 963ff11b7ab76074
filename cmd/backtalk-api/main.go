package main

import (
	"context"

	"github.com/joho/godotenv"

	"backtalk/internal/adapters/discourse"
	"backtalk/internal/platform/config"
	"backtalk/internal/platform/kv"
	"backtalk/internal/platform/logger"
	phttp "backtalk/internal/platform/net/http"
	"backtalk/internal/services/api"
	"backtalk/internal/services/courier/queue"
)

func main() {
	_ = godotenv.Load()

	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	cacheCfg := root.Prefix("CACHE_")
	forumCfg := root.Prefix("DISCOURSE_")

	l := logger.Get()
	ctx := context.Background()

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

	// http server (reads CORE_API_ADDR)
	srv := phttp.NewServer(apiCfg)

	api.Mount(srv.Router(), api.Options{
		Config: root,
		KV:     store,
		Queue:  q,
		Client: client,
	})

	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
