package authz

import (
	"path"
	"strings"
)

// MatchScope reports whether any of granted authorizes the requested
// endpoint scope. A granted entry matches requested by exact equality, by
// prefix ("reports.*" matches "reports.monthly"), or by a filepath.Match-
// style glob ("reports.*.export").
func MatchScope(granted []string, requested string) bool {
	requested = strings.ToLower(strings.TrimSpace(requested))
	for _, g := range granted {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" {
			continue
		}
		if g == "*" || g == requested {
			return true
		}
		if strings.HasSuffix(g, ".*") && strings.HasPrefix(requested, strings.TrimSuffix(g, "*")) {
			return true
		}
		if ok, _ := path.Match(g, requested); ok {
			return true
		}
	}
	return false
}

// MatchEnvironment reports whether granted authorizes environment. An
// empty granted list means "every environment the global allow-list
// admits" (admin-style tokens), matching the registry's own semantics for
// an absent AllowedEnvironments restriction. Otherwise an entry matches by
// "*", exact name, or a path.Match-style glob ("prod*" matches "production").
func MatchEnvironment(granted []string, environment string) bool {
	if len(granted) == 0 {
		return true
	}
	environment = strings.ToLower(strings.TrimSpace(environment))
	for _, g := range granted {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "*" || g == environment {
			return true
		}
		if ok, _ := path.Match(g, environment); ok {
			return true
		}
	}
	return false
}
