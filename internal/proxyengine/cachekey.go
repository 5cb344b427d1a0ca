package proxyengine

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CacheKeyParts is the tuple §4.5 hashes together to form a GET cache key.
type CacheKeyParts struct {
	Method                string
	URL                   string
	Environment           string
	Endpoint              string
	AcceptLanguage        string
	AuthorizationContextHash string
}

// CacheKey hashes parts into the stable cache key string, and returns the
// endpoint-scoped prefix every mutating request on the same endpoint
// invalidates.
func CacheKey(p CacheKeyParts) (key, invalidationPrefix string) {
	prefix := "proxy:" + strings.ToLower(p.Environment) + ":" + strings.ToLower(p.Endpoint) + ":"
	h := sha256.New()
	h.Write([]byte(strings.ToUpper(p.Method)))
	h.Write([]byte{0})
	h.Write([]byte(p.URL))
	h.Write([]byte{0})
	h.Write([]byte(p.AcceptLanguage))
	h.Write([]byte{0})
	h.Write([]byte(p.AuthorizationContextHash))
	return prefix + hex.EncodeToString(h.Sum(nil)), prefix
}

// ResolveTTL picks min(response max-age, per-endpoint override, default),
// per §4.5's "Duration = min(...)" rule. A zero endpoint override or a
// missing/zero max-age is treated as "no opinion" and excluded from the
// min; defaultTTL always takes part.
func ResolveTTL(respHeaders http.Header, endpointOverride, defaultTTL time.Duration) time.Duration {
	candidates := []time.Duration{defaultTTL}
	if endpointOverride > 0 {
		candidates = append(candidates, endpointOverride)
	}
	if maxAge, ok := parseMaxAge(respHeaders); ok && maxAge > 0 {
		candidates = append(candidates, maxAge)
	}
	min := candidates[0]
	for _, c := range candidates[1:] {
		if c < min {
			min = c
		}
	}
	return min
}

func parseMaxAge(headers http.Header) (time.Duration, bool) {
	cc := headers.Get("Cache-Control")
	if cc == "" {
		return 0, false
	}
	for _, directive := range strings.Split(cc, ",") {
		name, value, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found || !strings.EqualFold(strings.TrimSpace(name), "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		return time.Duration(seconds) * time.Second, true
	}
	return 0, false
}

// IsCacheableStatus reports whether status is eligible for caching;
// non-2xx responses are never cached.
func IsCacheableStatus(status int) bool {
	return status >= 200 && status < 300
}
