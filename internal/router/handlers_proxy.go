package router

import (
	"io"
	"net/http"

	"github.com/melosso/portway/internal/proxyengine"
	"github.com/melosso/portway/internal/registry"
)

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request, def *registry.Definition, environment, pathSuffix string) {
	env, err := s.envs.Resolve(environment)
	if err != nil {
		writeError(w, err)
		return
	}

	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
	}

	req := proxyengine.Request{
		Method:                   r.Method,
		PathSuffix:               pathSuffix,
		RawQuery:                 r.URL.RawQuery,
		Body:                     body,
		Headers:                  r.Header,
		Environment:              environment,
		Endpoint:                 scopeName(def),
		PublicBase:               publicBaseFor(r, environment, def),
		AcceptLanguage:           r.Header.Get("Accept-Language"),
		AuthorizationContextHash: r.Header.Get("Authorization"),
		DefaultCacheTTL:          s.cfg.ProxyCacheTTL,
		EndpointCacheTTLOverride: 0,
	}

	resp, err := s.proxy.Forward(r.Context(), def, env, req)
	if err != nil {
		writeError(w, err)
		return
	}

	for name, values := range resp.Headers {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func publicBaseFor(r *http.Request, environment string, def *registry.Definition) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return proxyengine.PublicBase(scheme, r.Host, environment, scopeName(def))
}
