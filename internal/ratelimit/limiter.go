// Package ratelimit guards authentication endpoints against repeated
// failed attempts per client identity. Callers own the sequencing: Check
// before verifying credentials, RecordAttempt after.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Limiter is the failed-attempt guard contract. The in-memory
// implementation is single-instance only; the Redis one shares state
// across instances.
type Limiter interface {
	// Check reports whether clientID may attempt authentication. When
	// blocked, retryAfter is the remaining block time. Check never records
	// an attempt.
	Check(ctx context.Context, clientID string) (allowed bool, retryAfter time.Duration)

	// RecordAttempt records the outcome of one authentication attempt.
	// A success clears all standing state for clientID.
	RecordAttempt(ctx context.Context, clientID string, success bool)
}

// Policy bounds failed attempts: maxAttempts failures within window block
// the client for the block duration.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
	Block       time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Window:      5 * time.Minute,
		Block:       15 * time.Minute,
	}
}

// ClientID derives the client identity from the X-Forwarded-For header
// (first entry, trimmed) or the direct connection address. This trusts
// upstream proxies; behind an untrusted proxy the header is spoofable.
func ClientID(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
		if first != "" {
			return first
		}
	}
	if remoteAddr != "" {
		return remoteAddr
	}
	return "unknown"
}
