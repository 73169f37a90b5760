package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowEntry struct {
	attempts    int
	windowStart time.Time
}

// MemoryLimiter keeps all state in process memory. Cleanup is lazy: every
// Check scans all entries and drops the aged ones, which is fine for the
// bounded client cardinality of a single instance.
type MemoryLimiter struct {
	mu      sync.Mutex
	policy  Policy
	entries map[string]*windowEntry
	blocked map[string]time.Time
	now     func() time.Time
}

func NewMemoryLimiter(policy Policy) *MemoryLimiter {
	return &MemoryLimiter{
		policy:  policy,
		entries: make(map[string]*windowEntry),
		blocked: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Check(_ context.Context, clientID string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanup(now)

	if blockedAt, ok := l.blocked[clientID]; ok {
		remaining := l.policy.Block - now.Sub(blockedAt)
		if remaining > 0 {
			return false, remaining
		}
		delete(l.blocked, clientID)
	}

	// Reset an expired window lazily; Check itself never counts an attempt.
	if entry, ok := l.entries[clientID]; ok {
		if now.Sub(entry.windowStart) > l.policy.Window {
			entry.attempts = 0
			entry.windowStart = now
		}
	}

	return true, 0
}

func (l *MemoryLimiter) RecordAttempt(_ context.Context, clientID string, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if success {
		delete(l.entries, clientID)
		delete(l.blocked, clientID)
		return
	}

	now := l.now()
	entry, ok := l.entries[clientID]
	if !ok || now.Sub(entry.windowStart) > l.policy.Window {
		entry = &windowEntry{attempts: 1, windowStart: now}
		l.entries[clientID] = entry
	} else {
		entry.attempts++
	}

	if entry.attempts >= l.policy.MaxAttempts {
		l.blocked[clientID] = now
		delete(l.entries, clientID)
	}
}

func (l *MemoryLimiter) cleanup(now time.Time) {
	for key, entry := range l.entries {
		if now.Sub(entry.windowStart) > l.policy.Window {
			delete(l.entries, key)
		}
	}
	for key, blockedAt := range l.blocked {
		if now.Sub(blockedAt) > l.policy.Block {
			delete(l.blocked, key)
		}
	}
}
