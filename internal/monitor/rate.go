package monitor

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sourceRateLimiter tracks an independent token bucket per source.
type sourceRateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	rate       rate.Limit
	burst      int
}

func newSourceRateLimiter(perSecond float64, burst int) *sourceRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &sourceRateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		rate:       rate.Limit(perSecond),
		burst:      burst,
	}
}

func (s *sourceRateLimiter) Allow(source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, exists := s.limiters[source]
	if !exists {
		limiter = rate.NewLimiter(s.rate, s.burst)
		s.limiters[source] = limiter
	}
	s.lastAccess[source] = time.Now()
	return limiter.Allow()
}

// Evict removes source limiters that haven't been accessed within maxAge.
func (s *sourceRateLimiter) Evict(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	for source, last := range s.lastAccess {
		if last.Before(cutoff) {
			delete(s.limiters, source)
			delete(s.lastAccess, source)
		}
	}
}
