package session

import (
	"sync"
	"time"

	"github.com/dkeye/Lounge/internal/protocol"
)

// throttled lists the kinds a client emits at frame rate. Everything else
// is signaling or user actions and always goes out.
var throttled = map[protocol.OutboundKind]bool{
	protocol.PlayerPositionUpdate: true,
}

// rateLimiter allows at most limit sends of each throttled kind within a
// sliding window. A nil limiter allows everything.
type rateLimiter struct {
	mu       sync.Mutex
	history  map[protocol.OutboundKind][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func newRateLimiter(limit int, interval time.Duration) *rateLimiter {
	if limit <= 0 || interval <= 0 {
		return nil
	}
	return &rateLimiter{
		history:  make(map[protocol.OutboundKind][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *rateLimiter) Allow(kind protocol.OutboundKind) bool {
	if rl == nil || !throttled[kind] {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[kind]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[kind] = fresh
		return false
	}
	rl.history[kind] = append(fresh, now)
	return true
}
