// Package router dispatches the gateway's single authenticated HTTP
// surface: URL parsing, rate limiting, endpoint lookup, and handing the
// request to the matching kind's executor.
package router

import (
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/melosso/portway/internal/authz"
	"github.com/melosso/portway/internal/cache"
	"github.com/melosso/portway/internal/composite"
	"github.com/melosso/portway/internal/config"
	"github.com/melosso/portway/internal/envreg"
	"github.com/melosso/portway/internal/fileengine"
	"github.com/melosso/portway/internal/gwerr"
	"github.com/melosso/portway/internal/logging"
	"github.com/melosso/portway/internal/proxyengine"
	"github.com/melosso/portway/internal/ratelimit"
	"github.com/melosso/portway/internal/registry"
	"github.com/melosso/portway/internal/sqlengine"
)

// Server wires every gateway component into one HTTP handler.
type Server struct {
	cfg     config.Config
	reg     *registry.Registry
	envs    *envreg.Registry
	auth    *authz.Authorizer
	limiter *ratelimit.Limiter
	cache   cache.Provider
	proxy   *proxyengine.Engine
	pools   *sqlengine.Pools
	meta    *sqlengine.MetadataCache
	log     *logging.Logger
	health  *healthCache

	filesMu  sync.Mutex
	fileStores map[string]*fileengine.Store
	fileIdx    map[string]*fileengine.Index
}

// New assembles a Server from its already-constructed collaborators.
func New(cfg config.Config, reg *registry.Registry, envs *envreg.Registry, auth *authz.Authorizer,
	limiter *ratelimit.Limiter, cacheProvider cache.Provider, log *logging.Logger) *Server {
	return &Server{
		cfg:        cfg,
		reg:        reg,
		envs:       envs,
		auth:       auth,
		limiter:    limiter,
		cache:      cacheProvider,
		proxy:      proxyengine.New(cacheProvider, cfg.UpstreamTimeout),
		pools:      sqlengine.NewPools(),
		meta:       sqlengine.NewMetadataCache(),
		log:        log,
		health:     &healthCache{data: map[string]bool{}},
		fileStores: map[string]*fileengine.Store{},
		fileIdx:    map[string]*fileengine.Index{},
	}
}

// WatchRegistry invalidates the SQL metadata cache whenever the endpoint
// registry reloads, so a changed AllowedColumns/Schema takes effect
// without a process restart.
func (s *Server) WatchRegistry(stop <-chan struct{}) {
	s.meta.Watch(s.reg.Subscribe(), stop)
}

// Router builds the chi handler tree: a single wildcard route per §4.9's
// rationale that kind is resolved by registry lookup, not by path shape.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealthLive)
	r.Get("/health/live", s.handleHealthLive)
	r.Get("/health/details", s.handleHealthDetails)

	r.HandleFunc("/api/{environment}/*", s.handleAPI)

	return r
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	environment := chi.URLParam(r, "environment")
	suffix := strings.TrimPrefix(chi.URLParam(r, "*"), "/")

	if !s.envs.IsAllowed(environment) {
		writeError(w, gwerr.New(gwerr.CodeNotFound, "router.dispatch", environment, nil))
		return
	}

	limitKey := environment + ":" + clientIP(r)
	if ok, retryAfter := s.limiter.Allow(limitKey); !ok {
		w.Header().Set("Retry-After", formatRetryAfter(retryAfter))
		writeError(w, gwerr.New(gwerr.CodeRateLimited, "router.ratelimit", limitKey, nil))
		return
	}

	segments := strings.Split(suffix, "/")
	switch segments[0] {
	case "composite":
		s.handleComposite(w, r, environment, strings.Join(segments[1:], "/"))
		return
	case "files":
		s.handleFiles(w, r, environment, segments[1:])
		return
	case "webhook":
		s.handleWebhook(w, r, environment, strings.Join(segments[1:], "/"))
		return
	}

	s.handleEndpoint(w, r, environment, suffix)
}

// handleEndpoint dispatches SQL, Proxy, and Static endpoints: the three
// kinds whose path shape is "the rest of the URL after the environment".
func (s *Server) handleEndpoint(w http.ResponseWriter, r *http.Request, environment, suffix string) {
	endpointPath, pathSuffix := splitEndpointPath(suffix)

	def, err := s.reg.Lookup(environment, endpointPath, r.Method)
	if err != nil {
		writeError(w, err)
		return
	}

	scope := scopeName(def)
	decision, err := s.auth.FromRequest(r, environment, scope)
	if err != nil {
		writeError(w, err)
		return
	}

	switch def.Kind {
	case registry.KindSQL:
		s.handleSQL(w, r, def, environment, pathSuffix, decision)
	case registry.KindProxy:
		s.handleProxy(w, r, def, environment, pathSuffix)
	case registry.KindStatic:
		s.handleStatic(w, r, def)
	default:
		writeError(w, gwerr.New(gwerr.CodeNotFound, "router.dispatch", endpointPath, nil))
	}
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request, def *registry.Definition) {
	if r.Method != http.MethodGet {
		writeError(w, gwerr.New(gwerr.CodeForbidden, "router.static", def.Name, nil))
		return
	}
	writeJSON(w, http.StatusOK, def.StaticBody)
}

func scopeName(def *registry.Definition) string {
	if def.Namespace != "" {
		return def.Namespace + "." + def.Name
	}
	return def.Name
}

// splitEndpointPath separates the registered endpoint path (namespace and
// name) from any trailing key/path segments an SQL mutation or Proxy
// forward passes through to the backend.
func splitEndpointPath(suffix string) (endpointPath, rest string) {
	suffix = path.Clean("/" + suffix)[1:]
	parts := strings.SplitN(suffix, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return r.RemoteAddr
}

func formatRetryAfter(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
