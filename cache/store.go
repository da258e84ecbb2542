package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrMiss is returned by Get when the key is absent or expired.
	ErrMiss = errors.New("cache miss")
	// ErrUnavailable wraps backend connectivity failures.
	ErrUnavailable = errors.New("cache unavailable")
	// ErrInvalidTTL is returned by SetWithTTL for non-positive durations.
	ErrInvalidTTL = errors.New("cache ttl must be positive")
)

// Store is a key/value cache with expiring entries and pattern deletion.
//
// DeleteMatching takes a Redis-style glob. Every key that matched when the
// call started and still exists when it returns is gone afterwards; keys
// written while the call runs may or may not be removed.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteMatching(ctx context.Context, pattern string) (int, error)
	Ping(ctx context.Context) error
}

// EscapeGlob quotes the glob metacharacters in s so it matches literally.
func EscapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
