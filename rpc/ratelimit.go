package rpc

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterSweepAbove = 4096
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters keeps one token bucket per client source. A non-positive
// rate disables limiting.
type clientLimiters struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	entries map[string]*limiterEntry
	nowFn   func() time.Time
}

func newClientLimiters(perSecond float64, burst int) *clientLimiters {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiters{
		limit:   limit,
		burst:   burst,
		entries: make(map[string]*limiterEntry),
		nowFn:   time.Now,
	}
}

func (c *clientLimiters) allow(source string) bool {
	if c.limit == rate.Inf {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	now := c.nowFn()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) > limiterSweepAbove {
		for key, entry := range c.entries {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(c.entries, key)
			}
		}
	}
	entry, ok := c.entries[source]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.entries[source] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		source := s.clientSource(r)
		if !s.limits.allow(source) {
			s.metrics.ObserveThrottle()
			w.Header().Set("Content-Type", "application/json")
			writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", source)
			return
		}
		next.ServeHTTP(w, r)
	})
}
