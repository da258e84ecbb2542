package tokenstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/MrEthical07/goFleet/jwt"
)

var (
	// ErrNotFound is returned by FindActive for unknown, expired, revoked,
	// wrong-kind, or foreign-owner tokens. Callers cannot tell these apart.
	ErrNotFound = errors.New("refresh token record not found")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("token store unavailable")
)

// Record is the persisted state of one issued refresh token.
type Record struct {
	ID        string
	TokenHash string
	UserID    string
	Kind      jwt.Kind
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Active reports whether r can still be rotated at now.
func (r *Record) Active(now time.Time) bool {
	return r != nil && !r.Revoked && r.ExpiresAt.After(now)
}

// Store persists refresh token records.
//
// Revoke is idempotent. RevokeIfActive is a compare-and-revoke: among
// concurrent callers for the same id, at most one observes true.
type Store interface {
	Persist(ctx context.Context, token, userID string, kind jwt.Kind, expiresAt time.Time) (*Record, error)
	FindActive(ctx context.Context, token string, kind jwt.Kind, userID string) (*Record, error)
	Revoke(ctx context.Context, id string) error
	RevokeIfActive(ctx context.Context, id string) (bool, error)
}

// HashToken returns the lookup digest for token. Stores never keep the raw
// token string.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
