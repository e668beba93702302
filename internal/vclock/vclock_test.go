package vclock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeClock(t *int64) Clock {
	return func() int64 { return *t }
}

func TestVirtualClock_FirstCallEstablishesBaseline(t *testing.T) {
	t.Parallel()

	var now int64 = 1_000_000_000
	vc := New(DefaultLinkSpeedMbps, fakeClock(&now))

	oldV, newV := vc.Update(false, 1)
	require.EqualValues(t, 0, oldV)
	require.EqualValues(t, 0, newV)
}

func TestVirtualClock_AdvancesAtDrainRateWhenNoER(t *testing.T) {
	t.Parallel()

	var now int64 = 0
	vc := New(DefaultLinkSpeedMbps, fakeClock(&now))
	vc.Update(false, 1) // baseline

	now += 1_000_000 // 1ms later
	_, newV := vc.Update(false, 1)
	require.Greater(t, newV, uint64(0))
}

func TestVirtualClock_NoAdvanceWhileER(t *testing.T) {
	t.Parallel()

	var now int64 = 0
	vc := New(DefaultLinkSpeedMbps, fakeClock(&now))
	vc.Update(true, 1) // baseline

	now += 1_000_000
	_, newV := vc.Update(true, 1)
	require.EqualValues(t, 0, newV)
}

func TestVirtualClock_DebtRetiredThenDrains(t *testing.T) {
	t.Parallel()

	var now int64 = 0
	vc := New(DefaultLinkSpeedMbps, fakeClock(&now))
	vc.Update(false, 1) // baseline

	vc.RecordDequeue(1500, 1)
	require.Greater(t, vc.VDiffSum(), uint64(0))
	require.Greater(t, vc.TDiffSum(), uint64(0))

	// advance past the full recorded debt window, and then some.
	now += int64(vc.TDiffSum()) * 2
	_, newV := vc.Update(false, 1)
	require.EqualValues(t, 0, vc.TDiffSum())
	require.EqualValues(t, 0, vc.VDiffSum())
	require.Greater(t, newV, uint64(0))
}

func TestVirtualClock_PartialDebtPayment(t *testing.T) {
	t.Parallel()

	var now int64 = 0
	vc := New(DefaultLinkSpeedMbps, fakeClock(&now))
	vc.Update(false, 1)

	vc.RecordDequeue(1500, 1)
	debtWindow := vc.TDiffSum()

	now += int64(debtWindow) / 4
	_, newV := vc.Update(true, 1)
	require.Greater(t, newV, uint64(0))
	require.Greater(t, vc.TDiffSum(), uint64(0))
	require.Less(t, vc.TDiffSum(), debtWindow)
}

func TestVirtualClock_IdempotentWithinSameNanosecond(t *testing.T) {
	t.Parallel()

	var now int64 = 100
	vc := New(DefaultLinkSpeedMbps, fakeClock(&now))
	vc.Update(false, 1)

	now += 1000
	_, v1 := vc.Update(false, 1)
	_, v2 := vc.Update(false, 1) // same `now`, must be a no-op
	require.Equal(t, v1, v2)
}
