package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/storage/memory"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func record(mint string, at time.Time) domain.PurchaseRecord {
	return domain.PurchaseRecord{
		ID:        "id-" + mint,
		Mint:      mint,
		Venue:     domain.VenuePumpFun,
		Amount:    decimal.RequireFromString("0.1"),
		TxID:      "tx-" + mint,
		Timestamp: at,
	}
}

func TestIsCycleDue_Boundaries(t *testing.T) {
	l := New(3, DefaultCycleLength, WithClock(clock(t0)))

	assert.False(t, l.IsCycleDue(t0.Add(29*24*time.Hour)))
	assert.False(t, l.IsCycleDue(t0.Add(30*24*time.Hour-time.Second)))
	assert.True(t, l.IsCycleDue(t0.Add(30*24*time.Hour)))
	assert.True(t, l.IsCycleDue(t0.Add(30*24*time.Hour+time.Second)))
}

func TestRecordBuy_QuotaAndRollover(t *testing.T) {
	ctx := context.Background()
	l := New(2, DefaultCycleLength, WithClock(clock(t0)))

	require.True(t, l.CanBuy())
	require.NoError(t, l.RecordBuy(ctx, record("a", t0.Add(time.Hour))))
	require.NoError(t, l.RecordBuy(ctx, record("b", t0.Add(2*time.Hour))))
	assert.False(t, l.CanBuy())
	assert.ErrorIs(t, l.RecordBuy(ctx, record("c", t0.Add(3*time.Hour))), ErrQuotaExhausted)

	snap := l.Snapshot()
	assert.Equal(t, 2, snap.BuysCompleted)
	assert.Len(t, snap.Records, 2)
	assert.True(t, snap.Records[0].CycleStart.Equal(t0))

	next := t0.Add(30*24*time.Hour + time.Second)
	closed := l.Rollover(ctx, next)
	assert.Equal(t, 2, closed.BuysCompleted)
	assert.True(t, closed.CycleStart.Equal(t0))

	snap = l.Snapshot()
	assert.Equal(t, 0, snap.BuysCompleted)
	assert.Empty(t, snap.Records)
	assert.True(t, snap.CycleStart.Equal(next))
	assert.True(t, l.CanBuy())
}

func TestRolloverIfDue_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	l := New(3, DefaultCycleLength, WithClock(clock(t0)))
	require.NoError(t, l.RecordBuy(ctx, record("a", t0)))

	assert.Nil(t, l.RolloverIfDue(ctx, t0.Add(24*time.Hour)))

	due := t0.Add(31 * 24 * time.Hour)
	var wg sync.WaitGroup
	var mu sync.Mutex
	closed := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if snap := l.RolloverIfDue(ctx, due); snap != nil {
				mu.Lock()
				closed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, closed)
}

func TestReserve_QuotaInvariantUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	l := New(3, DefaultCycleLength, WithClock(clock(t0)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	bought := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := l.Reserve()
			if err != nil {
				return
			}
			time.Sleep(time.Millisecond) // swap in flight
			if _, err := res.Commit(ctx, record(fmt.Sprintf("m%d", i), t0)); err != nil {
				return
			}
			mu.Lock()
			bought++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, bought)
	assert.Equal(t, 3, l.Snapshot().BuysCompleted)
}

func TestReserve_HoldsSlotWithoutLock(t *testing.T) {
	ctx := context.Background()
	l := New(1, DefaultCycleLength, WithClock(clock(t0)))

	res, err := l.Reserve()
	require.NoError(t, err)

	// the ledger stays usable while the slot is held
	assert.False(t, l.CanBuy())
	assert.Nil(t, l.RolloverIfDue(ctx, t0.Add(time.Hour)))
	_, err = l.Reserve()
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, 0, l.Snapshot().BuysCompleted)

	res.Cancel()
	assert.True(t, l.CanBuy())

	res, err = l.Reserve()
	require.NoError(t, err)
	stored, err := res.Commit(ctx, record("a", t0.Add(time.Minute)))
	require.NoError(t, err)
	assert.True(t, stored.CycleStart.Equal(t0))
	assert.Equal(t, 1, l.Snapshot().BuysCompleted)

	// settled reservations do not touch the count again
	res.Cancel()
	_, err = res.Commit(ctx, record("b", t0))
	assert.Error(t, err)
	assert.Equal(t, 1, l.Snapshot().BuysCompleted)
	assert.False(t, l.CanBuy())
}

func TestRestore_FromStores(t *testing.T) {
	ctx := context.Background()
	purchases := memory.NewPurchaseStore()
	cycles := memory.NewCycleStore()

	first := New(3, DefaultCycleLength, WithClock(clock(t0)), WithStores(purchases, cycles))
	require.NoError(t, first.Restore(ctx))
	require.NoError(t, first.RecordBuy(ctx, record("a", t0.Add(time.Minute))))
	require.NoError(t, first.RecordBuy(ctx, record("b", t0.Add(2*time.Minute))))

	// restart ten days later
	second := New(3, DefaultCycleLength, WithClock(clock(t0.Add(10*24*time.Hour))), WithStores(purchases, cycles))
	require.NoError(t, second.Restore(ctx))

	snap := second.Snapshot()
	assert.True(t, snap.CycleStart.Equal(t0))
	assert.Equal(t, 2, snap.BuysCompleted)
	assert.Equal(t, "a", snap.Records[0].Mint)

	// rollover persists the new cycle; records from the old one stay stored
	next := t0.Add(30 * 24 * time.Hour)
	second.Rollover(ctx, next)

	third := New(3, DefaultCycleLength, WithClock(clock(next.Add(time.Hour))), WithStores(purchases, cycles))
	require.NoError(t, third.Restore(ctx))
	assert.True(t, third.Snapshot().CycleStart.Equal(next))
	assert.Equal(t, 0, third.Snapshot().BuysCompleted)

	stored, err := purchases.GetByMint(ctx, "a")
	require.NoError(t, err)
	assert.True(t, stored.CycleStart.Equal(t0))
}

func TestRestore_EmptyStoreSavesCurrentCycle(t *testing.T) {
	ctx := context.Background()
	cycles := memory.NewCycleStore()

	l := New(1, DefaultCycleLength, WithClock(clock(t0)), WithStores(memory.NewPurchaseStore(), cycles))
	require.NoError(t, l.Restore(ctx))

	state, err := cycles.Current(ctx)
	require.NoError(t, err)
	assert.True(t, state.CycleStart.Equal(t0))
}

func TestNew_TruncatesToMillis(t *testing.T) {
	at := t0.Add(1234567 * time.Nanosecond)
	l := New(1, time.Hour, WithClock(clock(at)))
	assert.Equal(t, t0.Add(time.Millisecond), l.Snapshot().CycleStart)
}
