package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	goFleet "github.com/MrEthical07/goFleet"
	"github.com/MrEthical07/goFleet/device"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

var deviceCols = []string{"id", "name", "status", "organization", "last_heartbeat", "created_at", "updated_at"}

func TestDeviceStoreListEmpty(t *testing.T) {
	db, mock := newMock(t)
	s := NewDeviceStore(db)

	mock.ExpectQuery(`(?s)FROM\s+devices\s+WHERE\s+organization\s*=\s*\$1\s+ORDER\s+BY`).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(deviceCols))

	got, err := s.List(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestDeviceStoreList(t *testing.T) {
	db, mock := newMock(t)
	s := NewDeviceStore(db)
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(deviceCols).
		AddRow("d1", "gateway", "online", "acme", ts, ts, ts).
		AddRow("d2", "sensor", "offline", "acme", nil, ts, ts)
	mock.ExpectQuery(`FROM\s+devices`).WithArgs("acme").WillReturnRows(rows)

	got, err := s.List(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, device.StatusOnline, got[0].Status)
	require.NotNil(t, got[0].LastHeartbeat)
	require.Nil(t, got[1].LastHeartbeat)
}

func TestDeviceStoreGetNotFound(t *testing.T) {
	db, mock := newMock(t)
	s := NewDeviceStore(db)

	mock.ExpectQuery(`FROM\s+devices`).WithArgs("d9", "acme").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`FROM\s+devices`).WithArgs("not-a-uuid", "acme").
		WillReturnError(&pgconn.PgError{Code: "22P02"})

	_, err := s.Get(context.Background(), "acme", "d9")
	require.ErrorIs(t, err, goFleet.ErrNotFound)
	_, err = s.Get(context.Background(), "acme", "not-a-uuid")
	require.ErrorIs(t, err, goFleet.ErrNotFound)
}

func TestDeviceStoreCreate(t *testing.T) {
	db, mock := newMock(t)
	s := NewDeviceStore(db)
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	d := device.Device{ID: "d1", Name: "gateway", Status: device.StatusOffline, TenantID: "acme", CreatedAt: ts, UpdatedAt: ts}

	mock.ExpectExec(`INSERT\s+INTO\s+devices`).
		WithArgs("d1", "gateway", "offline", "acme", sqlmock.AnyArg(), ts, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := s.Create(context.Background(), d)
	require.NoError(t, err)
	require.Equal(t, d, got)
}

func TestDeviceStoreUpdateInTransaction(t *testing.T) {
	db, mock := newMock(t)
	s := NewDeviceStore(db)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	now := created.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)FROM\s+devices\s+WHERE\s+id\s*=\s*\$1\s+AND\s+organization\s*=\s*\$2\s+FOR\s+UPDATE`).
		WithArgs("d1", "acme").
		WillReturnRows(sqlmock.NewRows(deviceCols).AddRow("d1", "gateway", "offline", "acme", nil, created, created))
	mock.ExpectExec(`UPDATE\s+devices\s+SET\s+name\s*=\s*\$2`).
		WithArgs("d1", "gateway", "online", sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	online := device.StatusOnline
	got, err := s.Update(context.Background(), "acme", "d1", device.Patch{Status: &online}, now)
	require.NoError(t, err)
	require.Equal(t, device.StatusOnline, got.Status)
	require.True(t, got.UpdatedAt.Equal(now))
	require.True(t, got.CreatedAt.Equal(created))
}

func TestDeviceStoreUpdateOtherTenantRollsBack(t *testing.T) {
	db, mock := newMock(t)
	s := NewDeviceStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR\s+UPDATE`).WithArgs("d1", "globex").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	name := "x"
	_, err := s.Update(context.Background(), "globex", "d1", device.Patch{Name: &name}, time.Now())
	require.ErrorIs(t, err, goFleet.ErrNotFound)
}

func TestDeviceStoreUpdateWriteFailureRollsBack(t *testing.T) {
	db, mock := newMock(t)
	s := NewDeviceStore(db)
	ts := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR\s+UPDATE`).WithArgs("d1", "acme").
		WillReturnRows(sqlmock.NewRows(deviceCols).AddRow("d1", "gateway", "offline", "acme", nil, ts, ts))
	mock.ExpectExec(`UPDATE\s+devices`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	name := "renamed"
	_, err := s.Update(context.Background(), "acme", "d1", device.Patch{Name: &name}, ts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
}
