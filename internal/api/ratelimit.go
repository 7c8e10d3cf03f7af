package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tahcohcat/meechain/internal/apperr"
	"github.com/tahcohcat/meechain/internal/auth"
	"github.com/tahcohcat/meechain/internal/logger"
	"golang.org/x/time/rate"
)

// KeyedRateLimiter keeps one token bucket per player (or per IP for
// anonymous requests).
type KeyedRateLimiter struct {
	keys  map[string]*rateLimiterEntry
	mu    sync.Mutex
	r     rate.Limit
	burst int
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedRateLimiter creates a limiter allowing rps requests per second with
// the given burst.
func NewKeyedRateLimiter(rps float64, burst int) *KeyedRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &KeyedRateLimiter{
		keys:  make(map[string]*rateLimiterEntry),
		r:     rate.Limit(rps),
		burst: burst,
	}
}

// Run evicts idle buckets every minute until ctx is done.
func (rl *KeyedRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evict(3 * time.Minute)
		case <-ctx.Done():
			return
		}
	}
}

func (rl *KeyedRateLimiter) evict(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, entry := range rl.keys {
		if time.Since(entry.lastSeen) > idle {
			delete(rl.keys, key)
		}
	}
}

func (rl *KeyedRateLimiter) GetLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.keys[key]
	if !exists {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.r, rl.burst)}
		rl.keys[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// Middleware answers 429 once the caller's bucket is empty.
func (rl *KeyedRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := auth.PlayerFromContext(r.Context())
		if !ok {
			key = clientIP(r)
		}

		if !rl.GetLimiter(key).Allow() {
			logger.New().With("key", key).With("path", r.URL.Path).Warn("rate limit exceeded")
			apperr.Write(w, apperr.ErrRateLimit)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
