package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goFleet/jwt"
	"github.com/MrEthical07/goFleet/tokenstore"
	"github.com/google/uuid"
)

// TokenStore implements tokenstore.Store on the refresh_tokens table. Only
// the SHA-256 digest of a token is stored.
type TokenStore struct {
	db  DBTX
	now func() time.Time
}

func NewTokenStore(db DBTX) *TokenStore {
	return &TokenStore{db: db, now: time.Now}
}

func (s *TokenStore) Persist(ctx context.Context, token, userID string, kind jwt.Kind, expiresAt time.Time) (*tokenstore.Record, error) {
	rec := &tokenstore.Record{
		ID:        uuid.NewString(),
		TokenHash: tokenstore.HashToken(token),
		UserID:    userID,
		Kind:      kind,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: s.now().UTC(),
	}
	query := `
		INSERT INTO refresh_tokens (id, token_hash, user_id, kind, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
	`
	if _, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.TokenHash, rec.UserID, string(rec.Kind), rec.ExpiresAt, rec.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: %v", tokenstore.ErrUnavailable, err)
	}
	return rec, nil
}

func (s *TokenStore) FindActive(ctx context.Context, token string, kind jwt.Kind, userID string) (*tokenstore.Record, error) {
	query := `
		SELECT id, token_hash, user_id, kind, expires_at, revoked, created_at
		FROM refresh_tokens
		WHERE token_hash = $1 AND kind = $2 AND user_id = $3
		  AND revoked = FALSE AND expires_at > $4
	`
	var (
		rec     tokenstore.Record
		kindStr string
	)
	err := s.db.QueryRowContext(ctx, query, tokenstore.HashToken(token), string(kind), userID, s.now().UTC()).
		Scan(&rec.ID, &rec.TokenHash, &rec.UserID, &kindStr, &rec.ExpiresAt, &rec.Revoked, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tokenstore.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", tokenstore.ErrUnavailable, err)
	}
	rec.Kind = jwt.Kind(kindStr)
	return &rec, nil
}

func (s *TokenStore) Revoke(ctx context.Context, id string) error {
	query := `
		UPDATE refresh_tokens SET revoked = TRUE
		WHERE id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("%w: %v", tokenstore.ErrUnavailable, err)
	}
	return nil
}

// RevokeIfActive flips revoked in a single conditional UPDATE, so among
// concurrent callers exactly one sees a row affected.
func (s *TokenStore) RevokeIfActive(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE refresh_tokens SET revoked = TRUE
		WHERE id = $1 AND revoked = FALSE AND expires_at > $2
	`
	res, err := s.db.ExecContext(ctx, query, id, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("%w: %v", tokenstore.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", tokenstore.ErrUnavailable, err)
	}
	return n == 1, nil
}

var _ tokenstore.Store = (*TokenStore)(nil)
