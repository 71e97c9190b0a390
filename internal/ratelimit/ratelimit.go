package ratelimit

import (
	"sync"
	"time"
)

// RateLimiter caps simulation launches per client with a fixed window
type RateLimiter struct {
	mu           sync.Mutex
	tokens       map[string]int
	lastReset    map[string]time.Time
	maxPerWindow int
	window       time.Duration
}

// New creates a limiter allowing maxPerWindow launches per key per window
func New(maxPerWindow int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:       make(map[string]int),
		lastReset:    make(map[string]time.Time),
		maxPerWindow: maxPerWindow,
		window:       window,
	}
}

// Allow checks if key may launch another simulation
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	lastReset, exists := rl.lastReset[key]

	// Refill once the window has passed
	if !exists || now.Sub(lastReset) > rl.window {
		rl.tokens[key] = rl.maxPerWindow
		rl.lastReset[key] = now
	}

	if rl.tokens[key] > 0 {
		rl.tokens[key]--
		return true
	}

	return false
}
