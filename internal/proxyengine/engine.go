package proxyengine

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/melosso/portway/internal/cache"
	"github.com/melosso/portway/internal/envreg"
	"github.com/melosso/portway/internal/gwerr"
	"github.com/melosso/portway/internal/httpx"
	"github.com/melosso/portway/internal/netpolicy"
	"github.com/melosso/portway/internal/registry"
)

// headerAllowList is the set of inbound request headers forwarded
// upstream verbatim; everything else is dropped so the upstream only ever
// sees what the endpoint explicitly opts into.
var headerAllowList = map[string]bool{
	"Accept":            true,
	"Accept-Language":   true,
	"Content-Type":      true,
	"If-None-Match":     true,
	"If-Modified-Since": true,
}

// Request describes one inbound call the engine must forward.
type Request struct {
	Method                   string
	PathSuffix               string // everything after the endpoint-path segment
	RawQuery                 string
	Body                     []byte
	Headers                  http.Header
	Environment              string
	Endpoint                 string
	PublicBase               string
	AcceptLanguage           string
	AuthorizationContextHash string
	DefaultCacheTTL          time.Duration
	EndpointCacheTTLOverride time.Duration
}

// Response is what the dispatcher writes back to the client.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
	Cached  bool
}

// Engine executes Proxy endpoints.
type Engine struct {
	cache   cache.Provider
	timeout time.Duration
}

func New(c cache.Provider, timeout time.Duration) *Engine {
	return &Engine{cache: c, timeout: timeout}
}

// Forward dispatches req to def's upstream, applying method translation,
// header append, caching, and response URL rewriting.
func (e *Engine) Forward(ctx context.Context, def *registry.Definition, env *envreg.Environment, req Request) (Response, error) {
	originalMethod := strings.ToUpper(req.Method)
	translated := ApplyMethodTranslation(def.HTTPMethodTranslation, originalMethod)

	if translated == http.MethodGet {
		if resp, ok, err := e.tryCache(ctx, def, req); err != nil {
			return Response{}, err
		} else if ok {
			return resp, nil
		}
	}

	resp, err := e.doForward(ctx, def, env, req, originalMethod, translated)
	if err != nil {
		return Response{}, err
	}

	if translated == http.MethodGet && IsCacheableStatus(resp.Status) && IsRewritableContentType(resp.Headers.Get("Content-Type")) {
		e.storeCache(ctx, def, req, resp)
	} else if !netpolicy.IsSafeMethod(translated) {
		// Mutating methods on this endpoint invalidate every cached GET for it.
		_, prefix := CacheKey(CacheKeyParts{Environment: req.Environment, Endpoint: req.Endpoint})
		_ = e.cache.RemovePrefix(ctx, prefix)
	}

	return resp, nil
}

func (e *Engine) tryCache(ctx context.Context, def *registry.Definition, req Request) (Response, bool, error) {
	key, _ := CacheKey(CacheKeyParts{
		Method: http.MethodGet, URL: req.PathSuffix + "?" + req.RawQuery,
		Environment: req.Environment, Endpoint: req.Endpoint,
		AcceptLanguage: req.AcceptLanguage, AuthorizationContextHash: req.AuthorizationContextHash,
	})
	body, hit, err := e.cache.Get(ctx, key)
	if err != nil {
		return Response{}, false, gwerr.New(gwerr.CodeCacheUnavailable, "proxy.cache", req.Endpoint, err)
	}
	if !hit {
		return Response{}, false, nil
	}
	return Response{Status: http.StatusOK, Headers: http.Header{"Content-Type": {"application/json"}}, Body: body, Cached: true}, true, nil
}

func (e *Engine) storeCache(ctx context.Context, def *registry.Definition, req Request, resp Response) {
	key, _ := CacheKey(CacheKeyParts{
		Method: http.MethodGet, URL: req.PathSuffix + "?" + req.RawQuery,
		Environment: req.Environment, Endpoint: req.Endpoint,
		AcceptLanguage: req.AcceptLanguage, AuthorizationContextHash: req.AuthorizationContextHash,
	})
	ttl := ResolveTTL(resp.Headers, req.EndpointCacheTTLOverride, req.DefaultCacheTTL)
	_ = e.cache.Set(ctx, key, resp.Body, ttl)
}

func (e *Engine) doForward(ctx context.Context, def *registry.Definition, env *envreg.Environment, req Request, originalMethod, translatedMethod string) (Response, error) {
	url := strings.TrimRight(def.UpstreamURL, "/") + "/" + strings.TrimLeft(req.PathSuffix, "/")
	if req.RawQuery != "" {
		url += "?" + req.RawQuery
	}

	client := httpx.SharedClient(e.timeout)
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, translatedMethod, url, bytes.NewReader(req.Body))
		if err != nil {
			return Response{}, gwerr.New(gwerr.CodeUpstreamBadGateway, "proxy.build_request", req.Endpoint, err)
		}
		copyAllowedHeaders(req.Headers, httpReq.Header)
		if env != nil {
			for k, v := range env.Headers {
				httpReq.Header.Set(k, v)
			}
		}
		ApplyHeaderAppend(def.HTTPMethodAppendHeaders, originalMethod, translatedMethod, httpReq.Header, ConflictOverwrite)

		httpResp, err := client.Do(httpReq)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return Response{}, gwerr.New(gwerr.CodeUpstreamTimeout, "proxy.forward", req.Endpoint, ctx.Err())
			}
			if !netpolicy.IsSafeMethod(translatedMethod) || attempt == 3 {
				return Response{}, gwerr.New(gwerr.CodeUpstreamUnavailable, "proxy.forward", req.Endpoint, err)
			}
			if sleepErr := netpolicy.SleepForRetry(ctx, attempt, nil); sleepErr != nil {
				return Response{}, gwerr.New(gwerr.CodeUpstreamTimeout, "proxy.forward", req.Endpoint, sleepErr)
			}
			continue
		}

		body, err := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if err != nil {
			return Response{}, gwerr.New(gwerr.CodeUpstreamBadGateway, "proxy.read_response", req.Endpoint, err)
		}

		if httpResp.StatusCode >= 500 && netpolicy.IsSafeMethod(translatedMethod) && attempt < 3 {
			lastErr = gwerr.New(gwerr.CodeUpstreamBadGateway, "proxy.forward", req.Endpoint, nil)
			if sleepErr := netpolicy.SleepForRetry(ctx, attempt, httpResp.Header); sleepErr != nil {
				return Response{}, gwerr.New(gwerr.CodeUpstreamTimeout, "proxy.forward", req.Endpoint, sleepErr)
			}
			continue
		}

		if def.RewriteResponseURLs && IsRewritableContentType(httpResp.Header.Get("Content-Type")) {
			body = RewriteResponseURLs(body, def.UpstreamURL, req.PublicBase)
		}

		return Response{Status: httpResp.StatusCode, Headers: httpResp.Header, Body: body}, nil
	}
	return Response{}, gwerr.New(gwerr.CodeUpstreamUnavailable, "proxy.forward", req.Endpoint, lastErr)
}

func copyAllowedHeaders(src, dst http.Header) {
	for name, values := range src {
		if !headerAllowList[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}
