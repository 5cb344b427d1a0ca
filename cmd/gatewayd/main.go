package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/melosso/portway/internal/authz"
	"github.com/melosso/portway/internal/cache"
	"github.com/melosso/portway/internal/config"
	"github.com/melosso/portway/internal/envreg"
	"github.com/melosso/portway/internal/logging"
	"github.com/melosso/portway/internal/ratelimit"
	"github.com/melosso/portway/internal/registry"
	"github.com/melosso/portway/internal/router"
)

func main() {
	logger := logging.New("gatewayd ")

	cfg, err := config.Load(os.Getenv("PORTWAY_CONFIG"))
	if err != nil {
		logger.Errorf("config: %v", err)
		os.Exit(1)
	}

	var decryptor *envreg.Decryptor
	if keyPath := os.Getenv("PORTWAY_ENCRYPTION_KEY"); keyPath != "" {
		pemBytes, err := os.ReadFile(keyPath)
		if err != nil {
			logger.Errorf("encryption key: %v", err)
			os.Exit(1)
		}
		decryptor, err = envreg.NewDecryptor(pemBytes)
		if err != nil {
			logger.Errorf("encryption key: %v", err)
			os.Exit(1)
		}
	}

	envs, err := envreg.NewRegistry(cfg.EnvironmentsRoot, nil, decryptor)
	if err != nil {
		logger.Errorf("environment registry: %v", err)
		os.Exit(1)
	}

	globalAllowList := map[string]bool{}
	for _, name := range envs.Environments() {
		globalAllowList[name] = true
	}
	reg := registry.New(cfg.EndpointsRoot, globalAllowList, logger)

	stop := make(chan struct{})
	go reg.Watch(stop, registry.WatchOptions{Debounce: cfg.ReloadDebounce}, logger)

	store, err := authz.Open(cfg.AuthDBPath)
	if err != nil {
		logger.Errorf("auth store: %v", err)
		os.Exit(1)
	}
	defer store.Close()
	authorizer := authz.New(store)

	limiter := ratelimit.New(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	cacheProvider := cache.New(cfg, logger)

	srv := router.New(cfg, reg, envs, authorizer, limiter, cacheProvider, logger)
	srv.StartHealthProbe(stop)
	srv.WatchRegistry(stop)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Event("listening", map[string]any{"addr": cfg.Addr})
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("server: %v", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)
	<-sig
	logger.Event("shutting_down", nil)
	close(stop)
	_ = httpSrv.Close()
}
