package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/goFleet/jwt"
	"github.com/MrEthical07/goFleet/tokenstore"
	"github.com/stretchr/testify/require"
)

func fixedTokenStore(db *sql.DB, now time.Time) *TokenStore {
	s := NewTokenStore(db)
	s.now = func() time.Time { return now }
	return s
}

func TestTokenStorePersistStoresDigestOnly(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := fixedTokenStore(db, now)
	expires := now.Add(time.Hour)

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+refresh_tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*FALSE,\s*\$6\)`).
		WithArgs(sqlmock.AnyArg(), tokenstore.HashToken("raw-token"), "u1", "refresh", expires, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := s.Persist(context.Background(), "raw-token", "u1", jwt.KindRefresh, expires)
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.NotEqual(t, "raw-token", rec.TokenHash)
	require.False(t, rec.Revoked)
}

func TestTokenStorePersistUnavailable(t *testing.T) {
	db, mock := newMock(t)
	s := NewTokenStore(db)

	mock.ExpectExec(`INSERT\s+INTO\s+refresh_tokens`).WillReturnError(errors.New("db down"))

	_, err := s.Persist(context.Background(), "tok", "u1", jwt.KindRefresh, time.Now().Add(time.Hour))
	require.ErrorIs(t, err, tokenstore.ErrUnavailable)
}

func TestTokenStoreFindActive(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := fixedTokenStore(db, now)

	rows := sqlmock.NewRows([]string{"id", "token_hash", "user_id", "kind", "expires_at", "revoked", "created_at"}).
		AddRow("r1", tokenstore.HashToken("tok"), "u1", "refresh", now.Add(time.Hour), false, now.Add(-time.Minute))
	mock.ExpectQuery(`(?s)FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1.*revoked\s*=\s*FALSE\s+AND\s+expires_at\s*>\s*\$4`).
		WithArgs(tokenstore.HashToken("tok"), "refresh", "u1", now).
		WillReturnRows(rows)

	rec, err := s.FindActive(context.Background(), "tok", jwt.KindRefresh, "u1")
	require.NoError(t, err)
	require.Equal(t, "r1", rec.ID)
	require.Equal(t, jwt.KindRefresh, rec.Kind)
	require.True(t, rec.Active(now))
}

func TestTokenStoreFindActiveNotFound(t *testing.T) {
	db, mock := newMock(t)
	s := NewTokenStore(db)

	mock.ExpectQuery(`FROM\s+refresh_tokens`).WillReturnError(sql.ErrNoRows)

	_, err := s.FindActive(context.Background(), "tok", jwt.KindRefresh, "u1")
	require.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestTokenStoreRevokeIfActiveSingleWinner(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := fixedTokenStore(db, now)

	q := `(?s)UPDATE\s+refresh_tokens\s+SET\s+revoked\s*=\s*TRUE\s+WHERE\s+id\s*=\s*\$1\s+AND\s+revoked\s*=\s*FALSE\s+AND\s+expires_at\s*>\s*\$2`
	mock.ExpectExec(q).WithArgs("r1", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("r1", now).WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := s.RevokeIfActive(context.Background(), "r1")
	require.NoError(t, err)
	require.True(t, won)

	won, err = s.RevokeIfActive(context.Background(), "r1")
	require.NoError(t, err)
	require.False(t, won)
}

func TestTokenStoreRevoke(t *testing.T) {
	db, mock := newMock(t)
	s := NewTokenStore(db)

	mock.ExpectExec(`UPDATE\s+refresh_tokens\s+SET\s+revoked\s*=\s*TRUE\s+WHERE\s+id\s*=\s*\$1\s*$`).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Revoke(context.Background(), "r1"))
}
