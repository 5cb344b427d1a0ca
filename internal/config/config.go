// Package config loads the gateway's service-level settings. Endpoint and
// environment *data* (entity.json, settings.json) are owned by the
// registry/envreg packages and always read as JSON per the wire format;
// this package only covers process knobs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved set of service-level knobs.
type Config struct {
	Addr string

	EndpointsRoot    string
	EnvironmentsRoot string
	FilesRoot        string
	AuthDBPath       string

	DefaultTopCap int

	SQLTimeout      time.Duration
	UpstreamTimeout time.Duration
	CacheOpTimeout  time.Duration
	HealthTimeout   time.Duration

	ReloadDebounce time.Duration

	CacheBackend string // "memory" | "redis"
	RedisAddr    string

	RateLimitPerSecond float64
	RateLimitBurst      int

	FileMemoryCacheMB int

	ProxyCacheTTL time.Duration
}

// Load reads config.yaml (if present) plus PORTWAY_* environment
// overrides, mirroring the pack's own viper-based config loading
// (storj-storj, grafana-tempo, jpbetz-kubernetes all depend on viper).
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(defaultIfEmpty(path, "config.yaml"))
	v.SetEnvPrefix("PORTWAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("addr", ":8080")
	v.SetDefault("endpoints_root", "endpoints")
	v.SetDefault("environments_root", "environments")
	v.SetDefault("files_root", "files")
	v.SetDefault("auth_db_path", "auth.db")
	v.SetDefault("default_top_cap", 100)
	v.SetDefault("sql_timeout", "30s")
	v.SetDefault("upstream_timeout", "30s")
	v.SetDefault("cache_op_timeout", "5s")
	v.SetDefault("health_timeout", "5s")
	v.SetDefault("reload_debounce", "2s")
	v.SetDefault("cache_backend", "memory")
	v.SetDefault("redis_addr", "")
	v.SetDefault("rate_limit_per_second", 20.0)
	v.SetDefault("rate_limit_burst", 40)
	v.SetDefault("file_memory_cache_mb", 256)
	v.SetDefault("proxy_cache_ttl", "30s")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}

	cfg := Config{
		Addr:                v.GetString("addr"),
		EndpointsRoot:       v.GetString("endpoints_root"),
		EnvironmentsRoot:    v.GetString("environments_root"),
		FilesRoot:           v.GetString("files_root"),
		AuthDBPath:          v.GetString("auth_db_path"),
		DefaultTopCap:       v.GetInt("default_top_cap"),
		SQLTimeout:          v.GetDuration("sql_timeout"),
		UpstreamTimeout:     v.GetDuration("upstream_timeout"),
		CacheOpTimeout:      v.GetDuration("cache_op_timeout"),
		HealthTimeout:       v.GetDuration("health_timeout"),
		ReloadDebounce:      v.GetDuration("reload_debounce"),
		CacheBackend:        strings.ToLower(v.GetString("cache_backend")),
		RedisAddr:           v.GetString("redis_addr"),
		RateLimitPerSecond:  v.GetFloat64("rate_limit_per_second"),
		RateLimitBurst:      v.GetInt("rate_limit_burst"),
		FileMemoryCacheMB:   v.GetInt("file_memory_cache_mb"),
		ProxyCacheTTL:       v.GetDuration("proxy_cache_ttl"),
	}

	if cfg.CacheBackend == "redis" && strings.TrimSpace(cfg.RedisAddr) == "" {
		return Config{}, fmt.Errorf("config: cache_backend=redis requires redis_addr")
	}
	return cfg, nil
}

func defaultIfEmpty(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
