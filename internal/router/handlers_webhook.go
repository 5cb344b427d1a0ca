package router

import (
	"encoding/json"
	"net/http"

	"github.com/melosso/portway/internal/gwerr"
	"github.com/melosso/portway/internal/registry"
	"github.com/melosso/portway/internal/webhook"
)

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request, environment, name string) {
	if r.Method != http.MethodPost {
		writeError(w, gwerr.New(gwerr.CodeForbidden, "router.webhook", name, nil))
		return
	}

	def, err := s.reg.Lookup(environment, name, r.Method)
	if err != nil {
		writeError(w, err)
		return
	}
	if def.Kind != registry.KindWebhook {
		writeError(w, gwerr.New(gwerr.CodeNotFound, "router.webhook", name, nil))
		return
	}
	if _, err := s.auth.FromRequest(r, environment, scopeName(def)); err != nil {
		writeError(w, err)
		return
	}

	var body map[string]any
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, gwerr.New(gwerr.CodeQuerySyntax, "router.webhook", name, err).WithDetail("invalid JSON body"))
			return
		}
	}

	env, err := s.envs.Resolve(environment)
	if err != nil {
		writeError(w, err)
		return
	}
	db, err := s.pools.Get(r.Context(), env)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := webhook.Persist(r.Context(), db, def, body); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}
