package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// ResetThrottle caps how many reset requests one email can trigger per window.
// State is per process.
type ResetThrottle struct {
	mu     sync.Mutex
	counts *cache.Cache
	limit  int
}

// NewResetThrottle returns a throttle allowing limit requests per window. A limit of zero disables it.
func NewResetThrottle(limit int, window time.Duration) *ResetThrottle {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &ResetThrottle{
		counts: cache.New(window, 2*window),
		limit:  limit,
	}
}

// Allow records a request for email and reports whether it is within the limit.
func (t *ResetThrottle) Allow(email string) bool {
	if t == nil || t.limit <= 0 {
		return true
	}
	key := strings.ToLower(strings.TrimSpace(email))

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, found := t.counts.Get(key); !found {
		t.counts.SetDefault(key, 1)
		return true
	}
	n, err := t.counts.IncrementInt(key, 1)
	if err != nil {
		t.counts.SetDefault(key, 1)
		return true
	}
	return n <= t.limit
}
