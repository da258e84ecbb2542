package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	goFleet "github.com/MrEthical07/goFleet"
)

// UserStore implements goFleet.UserStore.
type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateUser(ctx context.Context, u goFleet.UserRecord) (goFleet.UserRecord, error) {
	query := `
		INSERT INTO users (id, username, password_hash, organization, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.ExecContext(ctx, query, u.ID, u.Handle, u.PasswordHash, u.TenantID, u.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return goFleet.UserRecord{}, goFleet.ErrDuplicateIdentity
		}
		return goFleet.UserRecord{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetUserByHandle(ctx context.Context, handle string) (goFleet.UserRecord, error) {
	query := `
		SELECT id, username, password_hash, organization, created_at
		FROM users
		WHERE username = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, handle))
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (goFleet.UserRecord, error) {
	query := `
		SELECT id, username, password_hash, organization, created_at
		FROM users
		WHERE id = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	query := `
		UPDATE users SET password_hash = $2
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, id, hash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return goFleet.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) scanOne(row *sql.Row) (goFleet.UserRecord, error) {
	var u goFleet.UserRecord
	if err := row.Scan(&u.ID, &u.Handle, &u.PasswordHash, &u.TenantID, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return goFleet.UserRecord{}, goFleet.ErrUserNotFound
		}
		return goFleet.UserRecord{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

var _ goFleet.UserStore = (*UserStore)(nil)
