package router

import (
	"context"
	"net/http"
	"sync"
	"time"
)

func (s *Server) handleHealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// healthCache holds the last-probed per-environment reachability snapshot,
// refreshed by a background loop every 30s so /health/details never blocks
// a request on a live backend probe.
type healthCache struct {
	mu   sync.RWMutex
	data map[string]bool
}

func (s *Server) handleHealthDetails(w http.ResponseWriter, _ *http.Request) {
	s.health.mu.RLock()
	snapshot := make(map[string]bool, len(s.health.data))
	for k, v := range s.health.data {
		snapshot[k] = v
	}
	s.health.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "environments": snapshot})
}

// StartHealthProbe launches the background refresh loop; call once during
// startup and close stop on shutdown to end it.
func (s *Server) StartHealthProbe(stop <-chan struct{}) {
	if s.health == nil {
		s.health = &healthCache{data: map[string]bool{}}
	}
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		s.refreshHealth()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.refreshHealth()
			}
		}
	}()
}

func (s *Server) refreshHealth() {
	next := map[string]bool{}
	for _, name := range s.envs.Environments() {
		env, err := s.envs.Resolve(name)
		if err != nil {
			next[name] = false
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HealthTimeout)
		db, err := s.pools.Get(ctx, env)
		if err != nil {
			cancel()
			next[name] = false
			continue
		}
		next[name] = db.PingContext(ctx) == nil
		cancel()
	}
	s.health.mu.Lock()
	s.health.data = next
	s.health.mu.Unlock()
}
