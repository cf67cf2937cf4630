package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/Leganyst/consultation-booking/internal/apperror"
	"github.com/Leganyst/consultation-booking/internal/db"
	"github.com/Leganyst/consultation-booking/internal/model"
)

type storeFactory func(t *testing.T) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"gorm":   newSQLiteStore,
	}
}

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.NewTestDB(name)
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(gdb))

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewGormStore(gdb)
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

var base = time.Date(2030, 6, 3, 9, 0, 0, 0, time.UTC)

func seedSlot(t *testing.T, s Store, consultant uuid.UUID, start time.Time) model.TimeSlot {
	t.Helper()
	slot := model.TimeSlot{ConsultantID: consultant, StartsAt: start, EndsAt: start.Add(time.Hour)}
	require.NoError(t, s.Slots().Create(context.Background(), &slot))
	return slot
}

func TestSlots_CreateAndList(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		consultant := uuid.New()

		later := seedSlot(t, s, consultant, base.Add(2*time.Hour))
		first := seedSlot(t, s, consultant, base)
		seedSlot(t, s, uuid.New(), base)

		dup := model.TimeSlot{ConsultantID: consultant, StartsAt: base, EndsAt: base.Add(time.Hour)}
		assert.ErrorIs(t, s.Slots().Create(ctx, &dup), apperror.ErrSlotOverlap)

		free, err := s.Slots().ListFree(ctx, consultant, base)
		require.NoError(t, err)
		require.Len(t, free, 2)
		assert.Equal(t, first.ID, free[0].ID)
		assert.Equal(t, later.ID, free[1].ID)

		inRange, err := s.Slots().ListByConsultantRange(ctx, consultant, base.Add(30*time.Minute), base.Add(90*time.Minute))
		require.NoError(t, err)
		require.Len(t, inRange, 1)
		assert.Equal(t, first.ID, inRange[0].ID)

		_, err = s.Slots().GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, apperror.ErrSlotNotFound)
	})
}

func TestSlots_CreateIfAbsent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		consultant := uuid.New()

		a := model.TimeSlot{ConsultantID: consultant, StartsAt: base, EndsAt: base.Add(time.Hour)}
		created, err := s.Slots().CreateIfAbsent(ctx, &a)
		require.NoError(t, err)
		assert.True(t, created)

		b := model.TimeSlot{ConsultantID: consultant, StartsAt: base, EndsAt: base.Add(time.Hour)}
		created, err = s.Slots().CreateIfAbsent(ctx, &b)
		require.NoError(t, err)
		assert.False(t, created)
	})
}

func TestSlots_ClaimReleaseWithdraw(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		slot := seedSlot(t, s, uuid.New(), base)
		spare := seedSlot(t, s, slot.ConsultantID, base.Add(time.Hour))
		bookingID := uuid.New()

		n, err := s.Slots().Claim(ctx, slot.ID, bookingID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = s.Slots().Claim(ctx, slot.ID, uuid.New())
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		n, err = s.Slots().Claim(ctx, uuid.New(), bookingID)
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		n, err = s.Slots().Release(ctx, slot.ID, uuid.New(), base)
		require.NoError(t, err)
		assert.EqualValues(t, 0, n, "only the holder can release")

		n, err = s.Slots().Release(ctx, slot.ID, bookingID, base)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		got, err := s.Slots().GetByID(ctx, slot.ID)
		require.NoError(t, err)
		assert.True(t, got.Booked)
		require.NotNil(t, got.BookingID)
		assert.Equal(t, bookingID, *got.BookingID)
		assert.True(t, got.Released())
		_, active := got.ActiveBookingID()
		assert.False(t, active)

		n, err = s.Slots().Withdraw(ctx, spare.ID, base)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		free, err := s.Slots().ListFree(ctx, slot.ConsultantID, base.Add(-time.Hour))
		require.NoError(t, err)
		assert.Empty(t, free)
	})
}

// N concurrent claims on one slot: exactly one wins.
// sqlite is capped at one open connection, so the gorm run is serialized;
// the guarded update itself is pinned in claim_sqlmock_test.go.
func TestSlots_ConcurrentClaim(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		slot := seedSlot(t, s, uuid.New(), base)

		const n = 32
		var (
			wg      sync.WaitGroup
			wins    atomic.Int64
			winner  atomic.Value
			start   = make(chan struct{})
			errsMu  sync.Mutex
			errList []error
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				id := uuid.New()
				affected, err := s.Slots().Claim(ctx, slot.ID, id)
				if err != nil {
					errsMu.Lock()
					errList = append(errList, err)
					errsMu.Unlock()
					return
				}
				if affected == 1 {
					wins.Add(1)
					winner.Store(id)
				}
			}()
		}
		close(start)
		wg.Wait()

		require.Empty(t, errList)
		assert.EqualValues(t, 1, wins.Load())

		got, err := s.Slots().GetByID(ctx, slot.ID)
		require.NoError(t, err)
		require.NotNil(t, got.BookingID)
		assert.Equal(t, winner.Load().(uuid.UUID), *got.BookingID)
	})
}

func seedBooking(t *testing.T, s Store, slot model.TimeSlot, client uuid.UUID) model.Booking {
	t.Helper()
	b := model.Booking{
		ClientID:     client,
		ConsultantID: slot.ConsultantID,
		SlotID:       slot.ID,
		Status:       model.BookingStatusPending,
	}
	require.NoError(t, s.Bookings().Create(context.Background(), &b))
	return b
}

func TestBookings_CreateGetUpdate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		slot := seedSlot(t, s, uuid.New(), base)
		b := seedBooking(t, s, slot, uuid.New())

		again := model.Booking{ClientID: uuid.New(), ConsultantID: slot.ConsultantID, SlotID: slot.ID, Status: model.BookingStatusPending}
		assert.ErrorIs(t, s.Bookings().Create(ctx, &again), apperror.ErrSlotAlreadyBooked)

		got, err := s.Bookings().GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusPending, got.Status)
		require.NotNil(t, got.Slot)
		assert.Equal(t, slot.ID, got.Slot.ID)

		at := base.Add(-48 * time.Hour)
		got.Status = model.BookingStatusCancelled
		got.CancelledAt = &at
		got.CancelledBy = &got.ClientID
		require.NoError(t, s.Bookings().Update(ctx, got))

		locked, err := s.Bookings().GetByIDForUpdate(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusCancelled, locked.Status)
		require.NotNil(t, locked.CancelledAt)
		assert.True(t, at.Equal(*locked.CancelledAt))

		_, err = s.Bookings().GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, apperror.ErrBookingNotFound)
		assert.ErrorIs(t, s.Bookings().Update(ctx, &model.Booking{ID: uuid.New(), Status: model.BookingStatusPending}), apperror.ErrBookingNotFound)
	})
}

func TestBookings_List(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		consultant := uuid.New()
		client := uuid.New()

		var ids []uuid.UUID
		for i := 0; i < 3; i++ {
			slot := seedSlot(t, s, consultant, base.Add(time.Duration(i)*time.Hour))
			b := seedBooking(t, s, slot, client)
			ids = append(ids, b.ID)
			time.Sleep(2 * time.Millisecond)
		}
		other := seedSlot(t, s, uuid.New(), base)
		seedBooking(t, s, other, uuid.New())

		all, total, err := s.Bookings().List(ctx, BookingFilter{ClientID: &client})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		require.Len(t, all, 3)
		assert.Equal(t, ids[2], all[0].ID, "newest first")
		assert.NotNil(t, all[0].Slot)

		page, total, err := s.Bookings().List(ctx, BookingFilter{ConsultantID: &consultant, Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		require.Len(t, page, 1)
		assert.Equal(t, ids[0], page[0].ID)

		window, _, err := s.Bookings().List(ctx, BookingFilter{
			ConsultantID: &consultant,
			Statuses:     []model.BookingStatus{model.BookingStatusPending, model.BookingStatusConfirmed},
			SlotFrom:     base.Add(time.Hour),
			SlotTo:       base.Add(3 * time.Hour),
		})
		require.NoError(t, err)
		assert.Len(t, window, 2)

		none, total, err := s.Bookings().List(ctx, BookingFilter{ClientID: &client, Statuses: []model.BookingStatus{model.BookingStatusCompleted}})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, none)
	})
}

func TestRules_Upsert(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		consultant := uuid.New()

		rule := model.AvailabilityRule{
			ConsultantID: consultant,
			DayOfWeek:    int(time.Monday),
			StartTime:    datatypes.NewTime(9, 0, 0, 0),
			EndTime:      datatypes.NewTime(11, 0, 0, 0),
			TimeZone:     "UTC",
			Active:       true,
		}
		require.NoError(t, s.Rules().Upsert(ctx, &rule))
		require.NotEqual(t, uuid.Nil, rule.ID)

		friday := model.AvailabilityRule{
			ConsultantID: consultant,
			DayOfWeek:    int(time.Friday),
			StartTime:    datatypes.NewTime(14, 0, 0, 0),
			EndTime:      datatypes.NewTime(16, 0, 0, 0),
			TimeZone:     "UTC",
			Active:       true,
		}
		require.NoError(t, s.Rules().Upsert(ctx, &friday))

		rule.Active = false
		require.NoError(t, s.Rules().Upsert(ctx, &rule))

		active, err := s.Rules().ListByConsultant(ctx, consultant, true)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, friday.ID, active[0].ID)

		all, err := s.Rules().ListByConsultant(ctx, consultant, false)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, rule.ID, all[0].ID)

		got, err := s.Rules().GetByID(ctx, rule.ID)
		require.NoError(t, err)
		assert.False(t, got.Active)
		assert.Equal(t, datatypes.NewTime(9, 0, 0, 0), got.StartTime)

		foreign := rule
		foreign.ConsultantID = uuid.New()
		assert.ErrorIs(t, s.Rules().Upsert(ctx, &foreign), apperror.ErrRuleNotFound)
	})
}

func TestTransaction_RollsBack(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		slot := seedSlot(t, s, uuid.New(), base)
		boom := errors.New("boom")

		err := s.Transaction(ctx, func(tx Store) error {
			n, err := tx.Slots().Claim(ctx, slot.ID, uuid.New())
			require.NoError(t, err)
			require.EqualValues(t, 1, n)
			require.NoError(t, tx.Events().Append(ctx, &model.Event{Type: model.EventTypeBookingCreated, BookingID: uuid.New()}))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := s.Slots().GetByID(ctx, slot.ID)
		require.NoError(t, err)
		assert.False(t, got.Booked)
	})
}

func TestTransaction_Commits(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		slot := seedSlot(t, s, uuid.New(), base)
		bookingID := uuid.New()

		err := s.Transaction(ctx, func(tx Store) error {
			if _, err := tx.Slots().Claim(ctx, slot.ID, bookingID); err != nil {
				return err
			}
			return tx.Events().Append(ctx, &model.Event{
				Type:      model.EventTypeBookingCreated,
				BookingID: bookingID,
				Payload:   datatypes.JSON(`{"status":"pending"}`),
			})
		})
		require.NoError(t, err)

		events, err := s.Events().ListByBooking(ctx, bookingID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, model.EventTypeBookingCreated, events[0].Type)

		got, err := s.Slots().GetByID(ctx, slot.ID)
		require.NoError(t, err)
		assert.True(t, got.Booked)
	})
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Slots().GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrStoreUnavailable)
	assert.True(t, apperror.Retryable(err))
}
