package cache

import (
	"github.com/melosso/portway/internal/config"
	"github.com/melosso/portway/internal/logging"
)

// New builds the configured Provider: a standalone Memory provider for
// CacheBackend "memory", or a Redis provider (with memory fallback wired
// in) for "redis".
func New(cfg config.Config, log *logging.Logger) Provider {
	if cfg.CacheBackend == "redis" {
		return NewRedis(cfg.RedisAddr, 10000, log)
	}
	return NewMemory(10000)
}
