package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/melosso/portway/internal/logging"
)

// Redis is the distributed cache Provider. While connected it serves
// directly from the Redis client; on connection loss it fails over to an
// in-process Memory provider (per §5's "maintains a single connection
// multiplexer with an exponential-backoff reconnection loop and ... fails
// over to the memory provider until reconnection succeeds") and resumes
// Redis once the reconnect loop reports success.
type Redis struct {
	client   *redis.Client
	fallback *Memory
	log      *logging.Logger

	connected atomic.Bool
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewRedis builds a Redis provider against addr, starting a background
// reconnection monitor immediately.
func NewRedis(addr string, fallbackEntries int, log *logging.Logger) *Redis {
	r := &Redis{
		client:   redis.NewClient(&redis.Options{Addr: addr}),
		fallback: NewMemory(fallbackEntries),
		log:      log,
		stop:     make(chan struct{}),
	}
	r.connected.Store(r.ping())
	go r.reconnectLoop()
	return r
}

func (r *Redis) ping() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err() == nil
}

// reconnectLoop is the exponential-backoff reconnection monitor: while
// disconnected it probes with growing delay (capped at 30s); on success it
// flips back to serving from Redis.
func (r *Redis) reconnectLoop() {
	delay := 500 * time.Millisecond
	for {
		select {
		case <-r.stop:
			return
		case <-time.After(delay):
		}
		if r.connected.Load() {
			delay = 500 * time.Millisecond
			continue
		}
		if r.ping() {
			r.connected.Store(true)
			if r.log != nil {
				r.log.Event("cache.redis_reconnected", nil)
			}
			delay = 500 * time.Millisecond
			continue
		}
		delay *= 2
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
	}
}

func (r *Redis) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
	_ = r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !r.connected.Load() {
		return r.fallback.Get(ctx, key)
	}
	v, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		r.markDisconnected()
		return r.fallback.Get(ctx, key)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !r.connected.Load() {
		return r.fallback.Set(ctx, key, value, ttl)
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.markDisconnected()
		return r.fallback.Set(ctx, key, value, ttl)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	if !r.connected.Load() {
		return r.fallback.Remove(ctx, key)
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.markDisconnected()
		return r.fallback.Remove(ctx, key)
	}
	return nil
}

func (r *Redis) RemovePrefix(ctx context.Context, prefix string) error {
	if !r.connected.Load() {
		return r.fallback.RemovePrefix(ctx, prefix)
	}
	iter := r.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.markDisconnected()
		return r.fallback.RemovePrefix(ctx, prefix)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) AcquireLock(ctx context.Context, key string, expiry, wait, retry time.Duration) (Lock, bool, error) {
	if !r.connected.Load() {
		return r.fallback.AcquireLock(ctx, key, expiry, wait, retry)
	}
	deadline := time.Now().Add(wait)
	for {
		ok, err := r.client.SetNX(ctx, "lock:"+key, "1", expiry).Result()
		if err != nil {
			r.markDisconnected()
			return r.fallback.AcquireLock(ctx, key, expiry, wait, retry)
		}
		if ok {
			return &redisLock{client: r.client, key: "lock:" + key}, true, nil
		}
		if wait <= 0 || time.Now().After(deadline) {
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(retry):
		}
	}
}

func (r *Redis) markDisconnected() {
	if r.connected.CompareAndSwap(true, false) && r.log != nil {
		r.log.Event("cache.redis_disconnected", nil)
	}
}

type redisLock struct {
	client *redis.Client
	key    string
}

func (l *redisLock) Release(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}
