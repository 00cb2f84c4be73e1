// Package ratelimit implements per-client token bucket rate limiting for HTTP handlers.
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/coreapi/internal/api"
	"github.com/JakeFAU/coreapi/internal/metrics"
)

const (
	defaultIdleTTL = 10 * time.Minute
	pruneThreshold = 4096
)

// Config holds rate limiter configuration.
type Config struct {
	// Name labels rejections in metrics.
	Name string
	// RPS is the sustained rate per client. Zero or less disables limiting.
	RPS float64
	// Burst is the bucket size per client.
	Burst int
	// IdleTTL is how long an unused client bucket is kept.
	IdleTTL time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter manages one token bucket per client key.
type Limiter struct {
	name    string
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = defaultIdleTTL
	}
	name := cfg.Name
	if name == "" {
		name = "default"
	}
	return &Limiter{
		name:    name,
		limit:   r,
		burst:   burst,
		idleTTL: ttl,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether key may proceed now, consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	if l.limit == rate.Inf {
		return true
	}
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= pruneThreshold {
			l.pruneLocked(now)
		}
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

func (l *Limiter) pruneLocked(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, k)
		}
	}
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Middleware rejects requests over the per-client rate with 429.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ClientIP(r)) {
			metrics.ObserveRateLimited(l.name)
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfterSeconds()))
			api.WriteError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) retryAfterSeconds() int {
	secs := int(1 / float64(l.limit))
	if secs < 1 {
		return 1
	}
	return secs
}

// ClientIP returns the host part of the request's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
