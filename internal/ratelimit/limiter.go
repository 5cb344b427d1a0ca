// Package ratelimit enforces token-bucket limits per caller-supplied key
// before an endpoint is even looked up, per the router's "rate limiting
// applied before endpoint selection" contract. The router keys buckets by
// environment and client IP; there is no per-token bucket.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per key (IP address or token id),
// creating buckets lazily and never persisting them across restarts —
// the decided semantics for the "should rate-limit state survive a
// restart" open question is no: a fresh process starts every bucket full.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func New(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		perSecond = 20
	}
	if burst <= 0 {
		burst = 40
	}
	return &Limiter{
		buckets: map[string]*rate.Limiter{},
		rps:     rate.Limit(perSecond),
		burst:   burst,
	}
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.rps, l.burst)
		l.buckets[key] = b
	}
	return b
}

// Allow reports whether key may proceed now, and if not, how long the
// caller should wait before retrying (for the Retry-After header).
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	b := l.bucket(key)
	res := b.ReserveN(time.Now(), 1)
	if !res.OK() {
		return false, 0
	}
	delay := res.Delay()
	if delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}
