package proxyengine

import (
	"net/http"
	"testing"
	"time"
)

func TestCacheKeyStableAndDistinguishing(t *testing.T) {
	base := CacheKeyParts{Method: "GET", URL: "/orders", Environment: "prod", Endpoint: "orders"}
	k1, prefix1 := CacheKey(base)
	k2, _ := CacheKey(base)
	if k1 != k2 {
		t.Fatal("CacheKey should be deterministic for identical parts")
	}

	other := base
	other.AuthorizationContextHash = "different-caller"
	k3, _ := CacheKey(other)
	if k1 == k3 {
		t.Fatal("different authorization context should produce a different key")
	}

	if k1[:len(prefix1)] != prefix1 {
		t.Fatal("key should be prefixed with the endpoint-scoped invalidation prefix")
	}
}

func TestResolveTTLPicksMinimum(t *testing.T) {
	headers := http.Header{"Cache-Control": {"max-age=30"}}
	got := ResolveTTL(headers, 2*time.Minute, 5*time.Minute)
	if got != 30*time.Second {
		t.Fatalf("ResolveTTL = %v, want 30s (the smallest of the three)", got)
	}
}

func TestResolveTTLFallsBackToDefault(t *testing.T) {
	got := ResolveTTL(http.Header{}, 0, time.Minute)
	if got != time.Minute {
		t.Fatalf("ResolveTTL = %v, want the default when no other bound applies", got)
	}
}

func TestIsCacheableStatus(t *testing.T) {
	if !IsCacheableStatus(200) || !IsCacheableStatus(204) {
		t.Fatal("2xx should be cacheable")
	}
	if IsCacheableStatus(404) || IsCacheableStatus(500) || IsCacheableStatus(301) {
		t.Fatal("non-2xx should never be cacheable")
	}
}
