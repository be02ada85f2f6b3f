package rangecalc

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ranger/internal/tickmath"
)

func sqrtAt(t *testing.T, tick int32) *uint256.Int {
	t.Helper()
	price, err := tickmath.SqrtRatioAtTick(tick)
	require.NoError(t, err)
	return price
}

func TestResolvePriceRangeRejectsWidth(t *testing.T) {
	for _, width := range []uint32{0, BasisPoints, BasisPoints + 1} {
		_, _, err := ResolvePriceRange(tickmath.Q96, width)
		assert.ErrorIs(t, err, ErrInvalidWidth, "width %d", width)
	}
}

func TestResolvePriceRangeRejectsZeroPrice(t *testing.T) {
	_, _, err := ResolvePriceRange(new(uint256.Int), 500)
	assert.ErrorIs(t, err, ErrArithmeticDomain)

	_, _, err = ResolvePriceRange(nil, 500)
	assert.ErrorIs(t, err, ErrArithmeticDomain)
}

func TestResolvePriceRangeFivePercent(t *testing.T) {
	lower, upper, err := ResolvePriceRange(tickmath.Q96, 500)
	require.NoError(t, err)

	// floor(log_1.0001(0.95)) = -513, floor(log_1.0001(1.05)) = 487
	assert.True(t, lower.Eq(sqrtAt(t, -513)), "lower %s", lower.Dec())
	assert.True(t, upper.Eq(sqrtAt(t, 487)), "upper %s", upper.Dec())
}

func TestResolvePriceRangeBoundsAreTickPrices(t *testing.T) {
	current := sqrtAt(t, -137)
	current.AddUint64(current, 12345)

	lower, upper, err := ResolvePriceRange(current, 250)
	require.NoError(t, err)

	for _, bound := range []*uint256.Int{lower, upper} {
		tick, err := tickmath.TickAtSqrtRatio(bound)
		require.NoError(t, err)
		assert.True(t, bound.Eq(sqrtAt(t, tick)), "bound %s is not a tick price", bound.Dec())
	}
}

func TestResolvePriceRangeStraddlesCurrent(t *testing.T) {
	currents := []*uint256.Int{
		tickmath.Q96,
		sqrtAt(t, -200),
		sqrtAt(t, 200),
		new(uint256.Int).AddUint64(sqrtAt(t, 57), 1),
		new(uint256.Int).SubUint64(sqrtAt(t, -58), 1),
		sqrtAt(t, 250000),
		sqrtAt(t, -250000),
	}
	widths := []uint32{1, 2, 3, 10, 100, 500, 2500, 5000, 9999}

	for _, current := range currents {
		for _, width := range widths {
			lower, upper, err := ResolvePriceRange(current, width)
			require.NoError(t, err, "current %s width %d", current.Dec(), width)
			assert.True(t, lower.Lt(current), "lower %s !< current %s (width %d)", lower.Dec(), current.Dec(), width)
			assert.True(t, current.Lt(upper), "current %s !< upper %s (width %d)", current.Dec(), upper.Dec(), width)
		}
	}
}

func TestResolvePriceRangeNarrowestWidthStraddles(t *testing.T) {
	lower, upper, err := ResolvePriceRange(tickmath.Q96, 1)
	require.NoError(t, err)
	assert.True(t, lower.Eq(sqrtAt(t, -2)), "lower %s", lower.Dec())
	assert.True(t, upper.Eq(sqrtAt(t, 1)), "upper %s", upper.Dec())

	offsets := []uint64{0, 1, 1000}
	for tick := int32(-2000); tick <= 2000; tick += 7 {
		for _, off := range offsets {
			current := new(uint256.Int).AddUint64(sqrtAt(t, tick), off)
			for _, width := range []uint32{1, 2, 3} {
				lower, upper, err := ResolvePriceRange(current, width)
				require.NoError(t, err, "tick %d off %d width %d", tick, off, width)
				require.True(t, lower.Lt(current), "lower at tick %d off %d width %d", tick, off, width)
				require.True(t, current.Lt(upper), "upper at tick %d off %d width %d", tick, off, width)
			}
		}
	}
}

func TestScaleSqrtPriceRounding(t *testing.T) {
	down, err := scaleSqrtPrice(tickmath.Q96, BasisPoints+1, false)
	require.NoError(t, err)
	up, err := scaleSqrtPrice(tickmath.Q96, BasisPoints+1, true)
	require.NoError(t, err)
	assert.True(t, up.Gt(down), "up %s down %s", up.Dec(), down.Dec())

	exact, err := scaleSqrtPrice(tickmath.Q96, BasisPoints, true)
	require.NoError(t, err)
	assert.True(t, exact.Eq(tickmath.Q96), "factor of one must stay exact, got %s", exact.Dec())
}

func TestResolvePriceRangeWidensMonotonically(t *testing.T) {
	prevLower, prevUpper, err := ResolvePriceRange(tickmath.Q96, 1)
	require.NoError(t, err)

	for width := uint32(100); width < BasisPoints; width += 100 {
		lower, upper, err := ResolvePriceRange(tickmath.Q96, width)
		require.NoError(t, err)
		assert.False(t, lower.Gt(prevLower), "width %d", width)
		assert.False(t, upper.Lt(prevUpper), "width %d", width)
		prevLower, prevUpper = lower, upper
	}
}

func TestResolvePriceRangeOutOfDomain(t *testing.T) {
	_, _, err := ResolvePriceRange(tickmath.MinSqrtRatio, 500)
	assert.ErrorIs(t, err, ErrArithmeticDomain)

	nearMax := new(uint256.Int).SubUint64(tickmath.MaxSqrtRatio, 1)
	_, _, err = ResolvePriceRange(nearMax, 500)
	assert.ErrorIs(t, err, ErrArithmeticDomain)

	huge := new(uint256.Int).SetAllOne()
	_, _, err = ResolvePriceRange(huge, 9999)
	assert.ErrorIs(t, err, ErrArithmeticDomain)
}

func TestSnapRangeRejectsCollapsedBounds(t *testing.T) {
	price := sqrtAt(t, 10)
	_, _, err := snapRange(price, new(uint256.Int).AddUint64(price, 1))
	assert.ErrorIs(t, err, ErrInvalidPriceRange)

	_, _, err = snapRange(sqrtAt(t, 11), sqrtAt(t, 10))
	assert.ErrorIs(t, err, ErrInvalidPriceRange)
}
