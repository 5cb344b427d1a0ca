package registry

import (
	"strings"
	"sync"

	"github.com/melosso/portway/internal/gwerr"
	"github.com/melosso/portway/internal/logging"
)

// ChangeEvent is published on every reload, for dependent caches (SQL
// metadata, documentation) to invalidate lazily.
type ChangeEvent struct {
	Kind   Kind
	Name   string
	Change string // "reload"
}

// snapshot is one immutable generation of the registry's data: readers
// hold a *snapshot and never block a concurrent reload.
type snapshot struct {
	byKind map[Kind][]*Definition
	// index maps an environment|namespace/name key to its definition for
	// O(1) lookup; "" environment key is not used, lookups always scope by env.
	index map[string]*Definition
}

// Registry is the endpoint registry: thread-safe, hot-reloadable, and
// publishes a subscribe() stream of ChangeEvent for cache invalidation.
type Registry struct {
	root            string
	globalAllowList map[string]bool
	log             *logging.Logger

	mu   sync.Mutex // serializes reloads across files (per §4.1 ordering)
	snap atomicSnapshot

	subMu sync.Mutex
	subs  []chan ChangeEvent
}

// atomicSnapshot is a tiny RWMutex-guarded pointer box, kept separate from
// Registry.mu: readers (Lookup/List) must never block on the reload mutex.
type atomicSnapshot struct {
	mu sync.RWMutex
	v  *snapshot
}

func (a *atomicSnapshot) load() *snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.v
}

func (a *atomicSnapshot) store(s *snapshot) {
	a.mu.Lock()
	a.v = s
	a.mu.Unlock()
}

// New builds a Registry rooted at dir (endpoints/) and performs the
// initial load.
func New(dir string, globalAllowList map[string]bool, log *logging.Logger) *Registry {
	r := &Registry{root: dir, globalAllowList: globalAllowList, log: log}
	r.reloadAll()
	return r
}

// reloadAll re-walks the whole endpoints/ tree. Parse failures are logged
// and the offending definition is omitted — they never crash the process.
func (r *Registry) reloadAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	results := discoverAndLoad(r.root, r.globalAllowList)
	byKind := map[Kind][]*Definition{}
	index := map[string]*Definition{}
	var changed []ChangeEvent

	for kind, res := range results {
		for _, err := range res.errs {
			if r.log != nil {
				r.log.Event("registry.parse_error", map[string]any{"kind": string(kind), "error": err.Error()})
			}
		}
		byKind[kind] = res.defs
		for _, def := range res.defs {
			for env := range def.AllowedEnvironments {
				index[indexKey(env, def.Namespace, def.Name)] = def
			}
			changed = append(changed, ChangeEvent{Kind: kind, Name: def.Name, Change: "reload"})
		}
	}

	r.snap.store(&snapshot{byKind: byKind, index: index})
	r.publish(changed)
}

func indexKey(env, namespace, name string) string {
	return strings.ToLower(env) + "|" + strings.ToLower(namespace) + "/" + strings.ToLower(name)
}

// Lookup resolves (environment, endpointPath, method) to a Definition, or
// a typed NotFound/NotAllowed error.
func (r *Registry) Lookup(environment, endpointPath, method string) (*Definition, error) {
	s := r.snap.load()
	if s == nil {
		return nil, gwerr.New(gwerr.CodeNotFound, "registry.lookup", endpointPath, nil)
	}
	namespace, name := splitNamespacedPath(endpointPath)
	def, ok := s.index[indexKey(environment, namespace, name)]
	if !ok {
		// retry with empty namespace in case endpointPath has no namespace segment
		def, ok = s.index[indexKey(environment, "", endpointPath)]
	}
	if !ok {
		return nil, gwerr.New(gwerr.CodeNotFound, "registry.lookup", endpointPath, nil)
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if !def.AllowedMethods[method] {
		return nil, gwerr.New(gwerr.CodeForbidden, "registry.lookup", endpointPath, nil).
			WithDetail("method not allowed for this endpoint")
	}
	return def, nil
}

func splitNamespacedPath(path string) (namespace, name string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

// List returns every non-private Definition visible to environment, in the
// order they were discovered.
func (r *Registry) List(environment string) []*Definition {
	s := r.snap.load()
	if s == nil {
		return nil
	}
	env := strings.ToLower(environment)
	var out []*Definition
	seen := map[*Definition]bool{}
	for _, defs := range s.byKind {
		for _, def := range defs {
			if def.IsPrivate || seen[def] {
				continue
			}
			if !def.AllowedEnvironments[env] {
				continue
			}
			seen[def] = true
			out = append(out, def)
		}
	}
	return out
}

// Subscribe returns a channel of ChangeEvent. Sends are non-blocking: a
// slow subscriber drops events rather than stalling the registry.
func (r *Registry) Subscribe() <-chan ChangeEvent {
	ch := make(chan ChangeEvent, 32)
	r.subMu.Lock()
	r.subs = append(r.subs, ch)
	r.subMu.Unlock()
	return ch
}

func (r *Registry) publish(events []ChangeEvent) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		for _, ev := range events {
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
