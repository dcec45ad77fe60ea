package httpmiddleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window.
	Max    int
	Window time.Duration
	// KeyFunc extracts the client key. Defaults to the client IP.
	KeyFunc func(*http.Request) string
	// Store holds the counters. Defaults to an in-process MemoryStore.
	Store CounterStore
}

// CounterStore counts requests per key in fixed windows. Incr records a hit
// in the window starting at start and returns the counts of that window and
// the one before it.
type CounterStore interface {
	Incr(ctx context.Context, key string, start time.Time, window time.Duration) (curr, prev int64, err error)
}

// RateLimit enforces a per-key sliding window limit. The previous window's
// count is weighted by its overlap with the sliding window. Every response
// carries X-RateLimit-* headers; rejected requests get 429. A failing store
// lets requests through.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	limit := strconv.Itoa(cfg.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			start := now.Truncate(cfg.Window)
			resetAt := start.Add(cfg.Window)

			curr, prev, err := cfg.Store.Incr(r.Context(), cfg.KeyFunc(r), start, cfg.Window)
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limit store failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			overlap := 1 - float64(now.Sub(start))/float64(cfg.Window)
			used := float64(prev)*math.Max(overlap, 0) + float64(curr)
			remaining := max(cfg.Max-int(math.Ceil(used)), 0)

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if used > float64(cfg.Max) {
				retry := int(math.Ceil(time.Until(resetAt).Seconds()))
				h.Set("Retry-After", strconv.Itoa(max(retry, 0)))
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys requests by the first X-Forwarded-For hop, then X-Real-IP,
// then the connection's remote host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    status,
		"message": msg,
	})
}

type memoryCounter struct {
	start      time.Time
	curr, prev int64
}

// MemoryStore is a process-local CounterStore.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*memoryCounter)}
}

// Incr implements CounterStore.
func (s *MemoryStore) Incr(_ context.Context, key string, start time.Time, window time.Duration) (curr, prev int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	switch {
	case !ok:
		c = &memoryCounter{start: start}
		s.counters[key] = c
	case start.Equal(c.start.Add(window)):
		c.start, c.prev, c.curr = start, c.curr, 0
	case !start.Equal(c.start):
		c.start, c.prev, c.curr = start, 0, 0
	}
	c.curr++
	return c.curr, c.prev, nil
}

// Evict drops counters whose windows ended before now-window.
func (s *MemoryStore) Evict(now time.Time, window time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, c := range s.counters {
		if now.Sub(c.start) >= 2*window {
			delete(s.counters, key)
		}
	}
}

// RunEviction calls Evict every 2*window until ctx is done.
func (s *MemoryStore) RunEviction(ctx context.Context, window time.Duration) {
	ticker := time.NewTicker(2 * window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Evict(now, window)
		}
	}
}

// RedisStore shares counters between replicas. Each window is one key that
// expires after two windows.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore returns a RedisStore writing keys under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(key string, start time.Time) string {
	return s.prefix + key + ":" + strconv.FormatInt(start.UnixMilli(), 10)
}

// Incr implements CounterStore.
func (s *RedisStore) Incr(ctx context.Context, key string, start time.Time, window time.Duration) (curr, prev int64, err error) {
	var (
		incr *redis.IntCmd
		get  *redis.StringCmd
	)
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		k := s.key(key, start)
		incr = p.Incr(ctx, k)
		p.PExpire(ctx, k, 2*window)
		get = p.Get(ctx, s.key(key, start.Add(-window)))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, errors.Wrap(err, "rate limit pipeline")
	}

	prev, err = get.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, errors.Wrap(err, "previous window")
	}
	return incr.Val(), prev, nil
}
