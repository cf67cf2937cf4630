package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Leganyst/consultation-booking/internal/apperror"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return NewGormStore(gdb), mock
}

// Claim must stay a single conditional UPDATE, never a read followed by a write.
func TestGormClaim_IsConditionalUpdate(t *testing.T) {
	store, mock := newMockStore(t)
	slotID, bookingID := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "time_slots" SET "booked"=$1,"booking_id"=$2,"updated_at"=$3 WHERE id = $4 AND booked = $5`)).
		WithArgs(true, bookingID, sqlmock.AnyArg(), slotID, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := store.Slots().Claim(context.Background(), slotID, bookingID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormClaim_DriverErrorIsStoreUnavailable(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE "time_slots"`).WillReturnError(errors.New("connection reset"))

	_, err := store.Slots().Claim(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
