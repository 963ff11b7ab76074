// Package modkit provides module wiring and core deps
package modkit

import (
	"backtalk/internal/platform/config"
	"backtalk/internal/platform/kv"
	"backtalk/internal/platform/logger"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
// the cache store is constructed once in main and injected here,
// never reached through a lazy global
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	KV  kv.Store
}
