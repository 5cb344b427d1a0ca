package router

import (
	"context"
	"net/http"

	"github.com/melosso/portway/internal/composite"
	"github.com/melosso/portway/internal/gwerr"
	"github.com/melosso/portway/internal/registry"
	"github.com/melosso/portway/internal/sqlengine"
)

func (s *Server) handleComposite(w http.ResponseWriter, r *http.Request, environment, name string) {
	if r.Method != http.MethodPost {
		writeError(w, gwerr.New(gwerr.CodeForbidden, "router.composite", name, nil))
		return
	}

	def, err := s.reg.Lookup(environment, name, r.Method)
	if err != nil {
		writeError(w, err)
		return
	}
	if def.Kind != registry.KindComposite {
		writeError(w, gwerr.New(gwerr.CodeNotFound, "router.composite", name, nil))
		return
	}

	if _, err := s.auth.FromRequest(r, environment, scopeName(def)); err != nil {
		writeError(w, err)
		return
	}

	result := composite.Run(r.Context(), def, s.stepExecutor(r, environment))
	if result.Err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success":    false,
			"failedStep": result.FailedStep,
			"error":      result.Err.Error(),
			"steps":      result.StepResults,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "steps": result.StepResults})
}

// stepExecutor adapts a composite step's (targetEndpoint, method, body)
// call into a registry lookup plus the same token authorization a direct
// request to that endpoint would get. Only SQL stored-procedure targets
// are executed; any other target kind is refused with Forbidden.
func (s *Server) stepExecutor(r *http.Request, environment string) composite.StepExecutor {
	return func(ctx context.Context, targetEndpoint, method string, body map[string]any) (map[string]any, error) {
		def, err := s.reg.Lookup(environment, targetEndpoint, method)
		if err != nil {
			return nil, err
		}
		if _, err := s.auth.FromRequest(r, environment, scopeName(def)); err != nil {
			return nil, err
		}

		switch def.Kind {
		case registry.KindSQL:
			if def.ObjectType != registry.ObjectStoredProcedure {
				return nil, gwerr.New(gwerr.CodeForbidden, "router.composite.step", targetEndpoint, nil)
			}
			env, err := s.envs.Resolve(environment)
			if err != nil {
				return nil, err
			}
			db, err := s.pools.Get(ctx, env)
			if err != nil {
				return nil, err
			}
			params := sqlengine.BindProcedureParams(body, method)
			result, err := sqlengine.ExecuteProcedure(ctx, db, def, params)
			if err != nil {
				return nil, err
			}
			if len(result.Rows) == 0 {
				return map[string]any{}, nil
			}
			return result.Rows[0], nil
		default:
			return nil, gwerr.New(gwerr.CodeForbidden, "router.composite.step", targetEndpoint, nil).
				WithDetail("composite steps only target SQL stored-procedure endpoints")
		}
	}
}
