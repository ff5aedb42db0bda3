package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LimiterStore keeps one token bucket per identifier and satisfies echo's
// middleware.RateLimiterStore. Buckets idle longer than expiresIn are
// dropped on the next sweep.
type LimiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*entry
	r         rate.Limit
	burst     int
	expiresIn time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewLimiterStore(r rate.Limit, burst int, expiresIn time.Duration) *LimiterStore {
	if expiresIn <= 0 {
		expiresIn = 3 * time.Minute
	}
	return &LimiterStore{
		limiters:  make(map[string]*entry),
		r:         r,
		burst:     burst,
		expiresIn: expiresIn,
		now:       time.Now,
	}
}

func (s *LimiterStore) GetLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)
	if e, ok := s.limiters[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	e := &entry{limiter: rate.NewLimiter(s.r, s.burst), lastSeen: now}
	s.limiters[key] = e
	return e.limiter
}

// Allow consumes one token for identifier.
func (s *LimiterStore) Allow(identifier string) (bool, error) {
	limiter := s.GetLimiter(identifier)
	return limiter.AllowN(s.now(), 1), nil
}

// Len is the number of live buckets.
func (s *LimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

func (s *LimiterStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < s.expiresIn {
		return
	}
	for key, e := range s.limiters {
		if now.Sub(e.lastSeen) > s.expiresIn {
			delete(s.limiters, key)
		}
	}
	s.lastSweep = now
}
