package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// LocalLimiter is a per-key token bucket held in process memory.
type LocalLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter allows perMinute requests per key with the given burst.
// PRE: perMinute > 0, burst > 0
// POST: Returns a limiter; call StartJanitor to evict idle keys
func NewLocalLimiter(perMinute, burst int) *LocalLimiter {
	return &LocalLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		idleTTL: 15 * time.Minute,
	}
}

func (l *LocalLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok {
		e.lastSeen = now
		return e.lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.entries[key] = &limiterEntry{lim: lim, lastSeen: now}
	return lim
}

// Allow takes a token for key. A denied request reports when the next token is due.
func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := time.Now()
	lim := l.get(key, now)
	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return Decision{Allowed: false, RetryAfter: time.Minute}, nil
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}
	return Decision{Allowed: true, Remaining: int(lim.TokensAt(now))}, nil
}

// Cleanup evicts keys idle for longer than the idle TTL.
func (l *LocalLimiter) Cleanup(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}

// StartJanitor evicts idle keys every interval until ctx is cancelled.
func (l *LocalLimiter) StartJanitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				l.Cleanup(now)
			}
		}
	}()
}

// RedisLimiter is a fixed-window counter in Redis (Upstash compatible).
// Keys are ratelimit:<scope>:<key>:<window-number>.
type RedisLimiter struct {
	rdb    redis.Cmdable
	scope  string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter allows limit requests per window for each key.
func NewRedisLimiter(rdb redis.Cmdable, scope string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, scope: scope, limit: limit, window: window, now: time.Now}
}

// Allow increments the key's counter for the current window.
// POST: On Redis failure the request is allowed and the error returned for logging
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	slot := now.UnixNano() / int64(l.window)
	k := fmt.Sprintf("ratelimit:%s:%s:%d", l.scope, key, slot)

	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return Decision{Allowed: true}, fmt.Errorf("redis rate limit: %w", err)
	}
	count := int(incr.Val())
	if count > l.limit {
		windowEnd := time.Unix(0, (slot+1)*int64(l.window))
		return Decision{Allowed: false, RetryAfter: windowEnd.Sub(now)}, nil
	}
	return Decision{Allowed: true, Remaining: l.limit - count}, nil
}

var (
	_ Limiter = (*LocalLimiter)(nil)
	_ Limiter = (*RedisLimiter)(nil)
)

// KeyFunc derives the rate limit key from a request.
type KeyFunc func(r *http.Request) string

// ClientIP keys on the first X-Forwarded-For hop when trustProxy is set,
// otherwise on the RemoteAddr host.
func ClientIP(trustProxy bool) KeyFunc {
	return func(r *http.Request) string {
		if trustProxy {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}
		if host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr)); err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// RateLimit rejects requests over the limit with 429 and Retry-After.
// Limiter errors are logged and the request is let through.
func RateLimit(limiter Limiter, keyFn KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			dec, err := limiter.Allow(r.Context(), key)
			if err != nil {
				slog.Error("rate_limit_error", "error", err, "path", r.URL.Path)
			}
			if !dec.Allowed {
				secs := int(math.Ceil(dec.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				slog.Warn("rate_limit_exceeded", "key", key, "path", r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
