package httpapi

import (
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// rateLimiter is a per-key token bucket guarding admin login attempts.
type rateLimiter struct {
	mu    sync.Mutex
	rps   float64
	burst int
	bkts  map[string]*bucket // key: ip
	now   func() time.Time
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{rps: rps, burst: burst, bkts: make(map[string]*bucket), now: time.Now}
}

func (rl *rateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	bkt, ok := rl.bkts[key]
	if !ok {
		rl.prune(now)
		bkt = &bucket{tokens: float64(rl.burst), lastRefill: now}
		rl.bkts[key] = bkt
	}

	elapsed := now.Sub(bkt.lastRefill).Seconds()
	bkt.tokens = min(float64(rl.burst), bkt.tokens+elapsed*rl.rps)
	bkt.lastRefill = now

	if bkt.tokens >= 1 {
		bkt.tokens -= 1
		return true
	}
	return false
}

// Reset forgets a key, e.g. after a successful login.
func (rl *rateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.bkts, key)
}

// prune drops buckets that have refilled completely; they behave the same as
// a fresh bucket.
func (rl *rateLimiter) prune(now time.Time) {
	if rl.rps <= 0 {
		return
	}
	full := time.Duration(float64(rl.burst) / rl.rps * float64(time.Second))
	for k, b := range rl.bkts {
		if now.Sub(b.lastRefill) >= full {
			delete(rl.bkts, k)
		}
	}
}
