// Package spam implements the per (room, user) chat cooldown gate. State is
// transient and fail-open: losing it never locks a user out.
package spam

import (
	"sync"
	"time"
)

const (
	DefaultCooldown = 3 * time.Second
	MinCooldown     = 1 * time.Second
	MaxCooldown     = 30 * time.Second

	sweepEvery = 512
)

// ClampCooldown forces a per-room cooldown into the supported range.
func ClampCooldown(d time.Duration) time.Duration {
	if d < MinCooldown {
		return MinCooldown
	}
	if d > MaxCooldown {
		return MaxCooldown
	}

	return d
}

type key struct {
	roomId string
	userId string
}

type Governor struct {
	mu        sync.Mutex
	cooldowns map[key]time.Time
	checks    int
	now       func() time.Time
}

func NewGovernor() *Governor {
	return &Governor{
		cooldowns: make(map[key]time.Time),
		now:       time.Now,
	}
}

// Check reports whether a message from (roomId, userId) is admitted. On
// admission the cooldown window is armed to now+cooldown. A rejected attempt
// returns the remaining wait and leaves the existing window untouched.
func (g *Governor) Check(roomId, userId string, cooldown time.Duration) (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	k := key{roomId: roomId, userId: userId}

	if until, ok := g.cooldowns[k]; ok && now.Before(until) {
		return until.Sub(now), false
	}

	g.cooldowns[k] = now.Add(ClampCooldown(cooldown))

	g.checks++
	if g.checks%sweepEvery == 0 {
		g.sweep(now)
	}

	return 0, true
}

// Forget drops the window for a user, e.g. when they leave the room.
func (g *Governor) Forget(roomId, userId string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.cooldowns, key{roomId: roomId, userId: userId})
}

func (g *Governor) sweep(now time.Time) {
	for k, until := range g.cooldowns {
		if !now.Before(until) {
			delete(g.cooldowns, k)
		}
	}
}
