package router

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/melosso/portway/internal/authz"
	"github.com/melosso/portway/internal/gwerr"
	"github.com/melosso/portway/internal/registry"
	"github.com/melosso/portway/internal/sqlengine"
)

func (s *Server) handleSQL(w http.ResponseWriter, r *http.Request, def *registry.Definition, environment, pathSuffix string, _ authz.Decision) {
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

	if r.Method == http.MethodGet {
		s.handleSQLQuery(w, r, def, db, pathSuffix)
		return
	}

	if def.ObjectType != registry.ObjectStoredProcedure {
		writeError(w, gwerr.New(gwerr.CodeForbidden, "router.sql", def.Name, nil).
			WithDetail("mutating methods require a StoredProcedure endpoint"))
		return
	}
	s.handleSQLProcedure(w, r, def, db)
}

func (s *Server) handleSQLQuery(w http.ResponseWriter, r *http.Request, def *registry.Definition, db *sql.DB, pathSuffix string) {
	meta, err := s.objectMetadata(r.Context(), def, db)
	if err != nil {
		writeError(w, err)
		return
	}

	query, err := sqlengine.ParseQuery(r.URL.Query(), s.cfg.DefaultTopCap, sqlengine.MaxTop)
	if err != nil {
		writeError(w, err)
		return
	}

	var tvfArgs []any
	if def.ObjectType == registry.ObjectTableValuedFunction {
		pathParams := buildTVFPathParams(def, pathSuffix)
		tvfArgs, err = sqlengine.BindTVFParameters(def, pathParams, r.URL.Query(), r.Header)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	compiled, err := sqlengine.Compile(def, query, meta, sqlengine.MSSQLDialect{}, tvfArgs)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := sqlengine.Execute(r.Context(), db, def, compiled, query.Top)
	if err != nil {
		writeError(w, err)
		return
	}

	values := make([]any, len(result.Rows))
	for i, row := range result.Rows {
		values[i] = row
	}
	out := QueryResult{Count: len(values), Value: values}
	if result.NextLink {
		out.NextLink = buildNextLink(r.URL, query.Skip+query.Top)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSQLProcedure(w http.ResponseWriter, r *http.Request, def *registry.Definition, db *sql.DB) {
	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	params := sqlengine.BindProcedureParams(body, r.Method)

	result, err := sqlengine.ExecuteProcedure(r.Context(), db, def, params)
	if err != nil {
		writeError(w, err)
		return
	}

	values := make([]any, len(result.Rows))
	for i, row := range result.Rows {
		values[i] = row
	}
	writeJSON(w, http.StatusOK, QueryResult{Count: len(values), Value: values})
}

// objectMetadata returns the endpoint's cached column metadata, loading it
// from the backing object's system catalog on first use and invalidating
// on registry change events (wired in cmd/gatewayd).
func (s *Server) objectMetadata(ctx context.Context, def *registry.Definition, db *sql.DB) (*sqlengine.ObjectMetadata, error) {
	key := scopeName(def)
	if meta, ok := s.meta.Get(key); ok {
		return meta, nil
	}
	meta, err := sqlengine.LoadColumnMetadata(ctx, db, def.Schema, def.ObjectName)
	if err != nil {
		return nil, err
	}
	s.meta.Set(key, meta)
	return meta, nil
}

func buildTVFPathParams(def *registry.Definition, pathSuffix string) map[string]string {
	segments := strings.Split(strings.Trim(pathSuffix, "/"), "/")
	out := map[string]string{}
	for _, p := range def.TVFParameters {
		if p.Source != registry.SourcePath || p.Position == nil {
			continue
		}
		idx := *p.Position - 1
		if idx >= 0 && idx < len(segments) && segments[idx] != "" {
			out[p.Name] = segments[idx]
		}
	}
	return out
}

func buildNextLink(u *url.URL, nextSkip int) string {
	q := u.Query()
	q.Set("$skip", fmt.Sprintf("%d", nextSkip))
	next := *u
	next.RawQuery = q.Encode()
	return next.String()
}
