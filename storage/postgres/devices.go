package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goFleet "github.com/MrEthical07/goFleet"
	"github.com/MrEthical07/goFleet/device"
	"github.com/jackc/pgx/v5/pgconn"
)

const invalidTextRepresentation = "22P02"

// DeviceStore implements device.Store.
type DeviceStore struct {
	db *sql.DB
}

func NewDeviceStore(db *sql.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

const deviceColumns = `id, name, status, organization, last_heartbeat, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (device.Device, error) {
	var (
		d      device.Device
		status string
		hb     sql.NullTime
	)
	if err := row.Scan(&d.ID, &d.Name, &status, &d.TenantID, &hb, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return device.Device{}, err
	}
	d.Status = device.Status(status)
	if hb.Valid {
		t := hb.Time
		d.LastHeartbeat = &t
	}
	return d, nil
}

func (s *DeviceStore) List(ctx context.Context, tenantID string) ([]device.Device, error) {
	query := `SELECT ` + deviceColumns + `
		FROM devices
		WHERE organization = $1
		ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]device.Device, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (s *DeviceStore) Get(ctx context.Context, tenantID, id string) (device.Device, error) {
	query := `SELECT ` + deviceColumns + `
		FROM devices
		WHERE id = $1 AND organization = $2
	`
	d, err := scanDevice(s.db.QueryRowContext(ctx, query, id, tenantID))
	if err != nil {
		return device.Device{}, mapLookupErr(err)
	}
	return d, nil
}

func (s *DeviceStore) Create(ctx context.Context, d device.Device) (device.Device, error) {
	query := `
		INSERT INTO devices (id, name, status, organization, last_heartbeat, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := s.db.ExecContext(ctx, query,
		d.ID, d.Name, string(d.Status), d.TenantID, nullTime(d.LastHeartbeat), d.CreatedAt, d.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return device.Device{}, goFleet.ErrDuplicateIdentity
		}
		return device.Device{}, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

// Update locks the row, applies p and writes it back in one transaction.
func (s *DeviceStore) Update(ctx context.Context, tenantID, id string, p device.Patch, now time.Time) (device.Device, error) {
	var out device.Device
	err := WithTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		query := `SELECT ` + deviceColumns + `
			FROM devices
			WHERE id = $1 AND organization = $2
			FOR UPDATE
		`
		cur, err := scanDevice(tx.QueryRowContext(ctx, query, id, tenantID))
		if err != nil {
			return mapLookupErr(err)
		}

		out = p.Apply(cur, now)
		update := `
			UPDATE devices
			SET name = $2, status = $3, last_heartbeat = $4, updated_at = $5
			WHERE id = $1
		`
		if _, err := tx.ExecContext(ctx, update,
			out.ID, out.Name, string(out.Status), nullTime(out.LastHeartbeat), out.UpdatedAt); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil {
		return device.Device{}, err
	}
	return out, nil
}

func mapLookupErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return goFleet.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation {
		return goFleet.ErrNotFound
	}
	return fmt.Errorf("db error: %w", err)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ device.Store = (*DeviceStore)(nil)
