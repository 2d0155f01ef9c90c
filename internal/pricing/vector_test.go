package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-fi/exchange/backend/internal/fixedmath"
)

const (
	day       = int64(86_400)
	basePrice = uint64(1_000_000_000)
)

func dailyVector(baseTime int64, apr uint64) Vector {
	return Vector{
		BaseTime:    baseTime,
		BasePrice:   basePrice,
		APR:         apr,
		StepSeconds: uint64(day),
	}
}

func mustInsert(t *testing.T, s *Set, v Vector, now int64) {
	t.Helper()
	_, evicted, err := s.Insert(v, now)
	require.NoError(t, err)
	require.False(t, evicted)
}

func TestVectorPriceAtCalibration(t *testing.T) {
	start := int64(1_700_000_000)
	v := dailyVector(start, 36_500)

	var s Set
	mustInsert(t, &s, v, start)

	// At t == startTime the first step already counts: 1.0001 exactly.
	price, err := s.PriceAt(start)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_100_000, price)
}

func TestVectorPriceConstantWithinStep(t *testing.T) {
	start := int64(1_700_000_000)
	var s Set
	mustInsert(t, &s, dailyVector(start, 36_500), start)

	first, err := s.PriceAt(start)
	require.NoError(t, err)
	for _, offset := range []int64{1, day / 2, day - 1} {
		price, err := s.PriceAt(start + offset)
		require.NoError(t, err)
		assert.Equal(t, first, price, "offset %d", offset)
	}
}

func TestVectorPriceStepsUp(t *testing.T) {
	start := int64(1_700_000_000)
	var s Set
	mustInsert(t, &s, dailyVector(start, 36_500), start)

	previous := uint64(0)
	for k := int64(0); k < 30; k++ {
		price, err := s.PriceAt(start + k*day)
		require.NoError(t, err)
		assert.Greater(t, price, previous, "step %d", k)
		previous = price
	}
}

func TestVectorZeroAPRInvariant(t *testing.T) {
	start := int64(1_700_000_000)
	var s Set
	mustInsert(t, &s, dailyVector(start, 0), start)

	for _, offset := range []int64{0, day, 365 * day, 10 * 365 * day} {
		price, err := s.PriceAt(start + offset)
		require.NoError(t, err)
		assert.Equal(t, basePrice, price, "offset %d", offset)
	}
}

func TestVectorYearOfAccrual(t *testing.T) {
	start := int64(1_700_000_000)
	var s Set
	mustInsert(t, &s, dailyVector(start, 36_500), start)

	// 365 elapsed days counts 366 steps under the +1 rule.
	price, err := s.PriceAt(start + 365*day)
	require.NoError(t, err)
	assert.EqualValues(t, 1_036_600_000, price)
}

func TestInsertClampsPastBaseTime(t *testing.T) {
	now := int64(1_700_000_000)
	var s Set
	_, _, err := s.Insert(dailyVector(now-1_000, 36_500), now)
	require.NoError(t, err)

	active, err := s.ActiveAt(now)
	require.NoError(t, err)
	assert.Equal(t, now, active.StartTime)
	assert.Equal(t, now-1_000, active.BaseTime)
}

func TestInsertRejectsDuplicateStartTime(t *testing.T) {
	now := int64(1_700_000_000)
	var s Set
	mustInsert(t, &s, dailyVector(now+500, 36_500), now)

	_, _, err := s.Insert(dailyVector(now+500, 0), now)
	assert.ErrorIs(t, err, ErrVectorExists)
}

func TestInsertEvictsOldestElapsed(t *testing.T) {
	now := int64(1_700_000_000)
	var s Set
	for i := int64(0); i < Capacity; i++ {
		mustInsert(t, &s, dailyVector(now+i, 36_500), now-1)
	}
	require.Equal(t, Capacity, s.Len())

	// now+0 .. now+9 are all elapsed once the clock passes them; the earliest
	// activation must be the victim.
	evicted, didEvict, err := s.Insert(dailyVector(now+100, 36_500), now+50)
	require.NoError(t, err)
	require.True(t, didEvict)
	assert.Equal(t, now, evicted.StartTime)
	assert.Equal(t, Capacity, s.Len())
}

func TestInsertFailsWhenFullOfFutureVectors(t *testing.T) {
	now := int64(1_700_000_000)
	var s Set
	for i := int64(1); i <= Capacity; i++ {
		mustInsert(t, &s, dailyVector(now+i*day, 36_500), now)
	}

	_, _, err := s.Insert(dailyVector(now+100*day, 36_500), now)
	assert.ErrorIs(t, err, ErrSetFull)
}

func TestActiveAndPreviousSelection(t *testing.T) {
	now := int64(1_700_000_000)
	var s Set
	mustInsert(t, &s, dailyVector(now+1_000, 36_500), now)
	mustInsert(t, &s, dailyVector(now+2_000, 73_000), now)

	_, err := s.ActiveAt(now)
	assert.ErrorIs(t, err, ErrNoActiveVector)

	later := now + 3_000
	active, err := s.ActiveAt(later)
	require.NoError(t, err)
	assert.Equal(t, now+2_000, active.StartTime)

	previous, err := s.PreviousAt(later)
	require.NoError(t, err)
	assert.Equal(t, now+1_000, previous.StartTime)

	// Between the two activations only the first is live and has no previous.
	between := now + 1_500
	active, err = s.ActiveAt(between)
	require.NoError(t, err)
	assert.Equal(t, now+1_000, active.StartTime)
	_, err = s.PreviousAt(between)
	assert.ErrorIs(t, err, ErrNoPreviousVector)
}

func TestDeleteFutureOnly(t *testing.T) {
	now := int64(1_700_000_000)
	var s Set
	mustInsert(t, &s, dailyVector(now-day, 36_500), now-day)   // past, active
	mustInsert(t, &s, dailyVector(now+day, 36_500), now)       // future
	mustInsert(t, &s, dailyVector(now-2*day, 36_500), now-2*day) // older past

	_, err := s.Delete(now-day, now)
	assert.ErrorIs(t, err, ErrVectorNotFuture)
	_, err = s.Delete(now-2*day, now)
	assert.ErrorIs(t, err, ErrVectorNotFuture)
	_, err = s.Delete(0, now)
	assert.ErrorIs(t, err, ErrVectorNotFound)
	_, err = s.Delete(now+999, now)
	assert.ErrorIs(t, err, ErrVectorNotFound)

	removed, err := s.Delete(now+day, now)
	require.NoError(t, err)
	assert.Equal(t, now+day, removed.StartTime)
	assert.Equal(t, 2, s.Len())

	// The freed slot is reusable.
	mustInsert(t, &s, dailyVector(now+day, 36_500), now)
}

func TestAdjustmentAt(t *testing.T) {
	now := int64(1_700_000_000)
	var s Set
	mustInsert(t, &s, dailyVector(now, 0), now)
	mustInsert(t, &s, Vector{
		BaseTime:    now + day,
		BasePrice:   1_100_000_000,
		APR:         0,
		StepSeconds: uint64(day),
	}, now)

	delta, err := s.AdjustmentAt(now + 2*day)
	require.NoError(t, err)
	assert.EqualValues(t, 100_000_000, delta)
}

func TestVectorsOrdered(t *testing.T) {
	now := int64(1_700_000_000)
	var s Set
	mustInsert(t, &s, dailyVector(now+3*day, 1), now)
	mustInsert(t, &s, dailyVector(now+day, 2), now)
	mustInsert(t, &s, dailyVector(now+2*day, 3), now)

	vectors := s.Vectors()
	require.Len(t, vectors, 3)
	assert.Equal(t, now+day, vectors[0].StartTime)
	assert.Equal(t, now+2*day, vectors[1].StartTime)
	assert.Equal(t, now+3*day, vectors[2].StartTime)
}

func TestGrowthMatchesFixedmath(t *testing.T) {
	start := int64(1_700_000_000)
	v := dailyVector(start, 36_500)
	v.StartTime = start

	for k := uint64(0); k < 5; k++ {
		growth, err := fixedmath.GrowthFactor(36_500, k+1, uint64(day))
		require.NoError(t, err)
		expected, err := fixedmath.MulScaled(basePrice, growth)
		require.NoError(t, err)

		price, err := v.PriceAt(start + int64(k)*day)
		require.NoError(t, err)
		assert.Equal(t, expected, price)
	}
}
