// Package ratelimit keeps one token bucket per identity.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Visitors hands out a limiter per key. A zero or negative limit disables
// limiting.
type Visitors struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewVisitors allows perSecond events per key with the given burst.
func NewVisitors(perSecond float64, burst int) *Visitors {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Visitors{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		now:      time.Now,
	}
}

func (v *Visitors) get(key string) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()

	vis, ok := v.visitors[key]
	if !ok {
		vis = &visitor{limiter: rate.NewLimiter(v.limit, v.burst)}
		v.visitors[key] = vis
	}
	vis.lastSeen = v.now()
	return vis.limiter
}

// Allow reports whether key may act now.
func (v *Visitors) Allow(key string) bool {
	return v.get(key).Allow()
}

// Sweep forgets keys idle for longer than maxIdle and returns how many it dropped.
func (v *Visitors) Sweep(maxIdle time.Duration) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	dropped := 0
	cutoff := v.now().Add(-maxIdle)
	for key, vis := range v.visitors {
		if vis.lastSeen.Before(cutoff) {
			delete(v.visitors, key)
			dropped++
		}
	}
	return dropped
}

// Run sweeps idle keys every interval until ctx is done.
func (v *Visitors) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.Sweep(maxIdle)
		}
	}
}

// Len returns the number of tracked keys.
func (v *Visitors) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.visitors)
}
