package ledger

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leganyst/consultation-booking/internal/apperror"
	"github.com/Leganyst/consultation-booking/internal/db"
	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/internal/repository"
)

var start = time.Date(2030, 6, 3, 9, 0, 0, 0, time.UTC)

func stores(t *testing.T) map[string]repository.Store {
	t.Helper()
	gdb, err := db.NewTestDB(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(gdb))
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return map[string]repository.Store{
		"memory": repository.NewMemoryStore(),
		"gorm":   repository.NewGormStore(gdb),
	}
}

func newSlot(t *testing.T, l *Ledger, consultant uuid.UUID, at time.Time) model.TimeSlot {
	t.Helper()
	slot := model.TimeSlot{ConsultantID: consultant, StartsAt: at, EndsAt: at.Add(time.Hour)}
	require.NoError(t, l.Add(context.Background(), &slot))
	return slot
}

// The sqlite store runs on a single connection, so its claims are serialized.
// On a real database exclusivity rests on the conditional "booked = false"
// update pinned in repository/claim_sqlmock_test.go.
func TestClaim_ExactlyOneOfNConcurrent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			l := New(store.Slots())
			slot := newSlot(t, l, uuid.New(), start)

			for _, n := range []int{2, 8, 50} {
				target := slot
				if n != 2 {
					target = newSlot(t, l, slot.ConsultantID, start.Add(time.Duration(n)*time.Hour))
				}

				var (
					wg      sync.WaitGroup
					mu      sync.Mutex
					ok      int
					lost    int
					other   []error
					barrier = make(chan struct{})
				)
				for i := 0; i < n; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						<-barrier
						err := l.Claim(context.Background(), target.ID, uuid.New())
						mu.Lock()
						defer mu.Unlock()
						switch {
						case err == nil:
							ok++
						case IsConflict(err):
							lost++
						default:
							other = append(other, err)
						}
					}()
				}
				close(barrier)
				wg.Wait()

				assert.Empty(t, other)
				assert.Equal(t, 1, ok, "n=%d", n)
				assert.Equal(t, n-1, lost, "n=%d", n)
			}
		})
	}
}

func TestClaim_UnknownSlot(t *testing.T) {
	l := New(repository.NewMemoryStore().Slots())
	err := l.Claim(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrSlotNotFound)
}

func TestRelease_KeepsSlotConsumed(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := New(store.Slots())
			slot := newSlot(t, l, uuid.New(), start)
			bookingID := uuid.New()

			require.NoError(t, l.Claim(ctx, slot.ID, bookingID))
			require.NoError(t, l.Release(ctx, slot.ID, bookingID, start.Add(-48*time.Hour)))
			require.NoError(t, l.Release(ctx, slot.ID, bookingID, start.Add(-47*time.Hour)), "second release is a no-op")

			assert.ErrorIs(t, l.Claim(ctx, slot.ID, uuid.New()), apperror.ErrSlotAlreadyBooked)
			assert.ErrorIs(t, l.Release(ctx, slot.ID, uuid.New(), start), apperror.ErrInvalidArgument)
			assert.ErrorIs(t, l.Release(ctx, uuid.New(), bookingID, start), apperror.ErrSlotNotFound)

			free, err := l.ListAvailable(ctx, slot.ConsultantID, start.Add(-time.Hour))
			require.NoError(t, err)
			assert.Empty(t, free)
		})
	}
}

func TestListAvailable_OrderedAndFiltered(t *testing.T) {
	ctx := context.Background()
	l := New(repository.NewMemoryStore().Slots())
	consultant := uuid.New()

	s3 := newSlot(t, l, consultant, start.Add(3*time.Hour))
	s1 := newSlot(t, l, consultant, start.Add(time.Hour))
	newSlot(t, l, consultant, start)
	s2 := newSlot(t, l, consultant, start.Add(2*time.Hour))
	require.NoError(t, l.Claim(ctx, s2.ID, uuid.New()))

	free, err := l.ListAvailable(ctx, consultant, start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, free, 2)
	assert.Equal(t, s1.ID, free[0].ID)
	assert.Equal(t, s3.ID, free[1].ID)
}

func TestAdd_RejectsOverlapAndEmptyRange(t *testing.T) {
	ctx := context.Background()
	l := New(repository.NewMemoryStore().Slots())
	consultant := uuid.New()
	newSlot(t, l, consultant, start)

	overlap := model.TimeSlot{ConsultantID: consultant, StartsAt: start.Add(30 * time.Minute), EndsAt: start.Add(90 * time.Minute)}
	assert.ErrorIs(t, l.Add(ctx, &overlap), apperror.ErrSlotOverlap)

	adjacent := model.TimeSlot{ConsultantID: consultant, StartsAt: start.Add(time.Hour), EndsAt: start.Add(2 * time.Hour)}
	assert.NoError(t, l.Add(ctx, &adjacent))

	empty := model.TimeSlot{ConsultantID: consultant, StartsAt: start.Add(5 * time.Hour), EndsAt: start.Add(5 * time.Hour)}
	assert.ErrorIs(t, l.Add(ctx, &empty), apperror.ErrInvalidRange)
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	l := New(repository.NewMemoryStore().Slots())
	consultant := uuid.New()
	free := newSlot(t, l, consultant, start)
	taken := newSlot(t, l, consultant, start.Add(time.Hour))
	require.NoError(t, l.Claim(ctx, taken.ID, uuid.New()))

	require.NoError(t, l.Withdraw(ctx, free.ID, start))
	assert.ErrorIs(t, l.Claim(ctx, free.ID, uuid.New()), apperror.ErrSlotAlreadyBooked)
	assert.ErrorIs(t, l.Withdraw(ctx, taken.ID, start), apperror.ErrSlotAlreadyBooked)
	assert.ErrorIs(t, l.Withdraw(ctx, uuid.New(), start), apperror.ErrSlotNotFound)
}

func TestMaterialize_SkipsExistingStarts(t *testing.T) {
	ctx := context.Background()
	l := New(repository.NewMemoryStore().Slots())
	consultant := uuid.New()
	newSlot(t, l, consultant, start)

	stored, err := l.Materialize(ctx, []model.TimeSlot{
		{ConsultantID: consultant, StartsAt: start, EndsAt: start.Add(time.Hour)},
		{ConsultantID: consultant, StartsAt: start.Add(time.Hour), EndsAt: start.Add(2 * time.Hour)},
	})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, start.Add(time.Hour), stored[0].StartsAt)
}
