package dlmmmath

import (
	"testing"

	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

var priceOne = uint128.New(0, 1)

// single-bin exact-in fee math.
func TestFeeInclusiveSingleBinExactIn(t *testing.T) {
	fee, err := FeeInclusive(200_000, 30_000)
	require.NoError(t, err)
	require.Equal(t, uint64(6), fee)

	net := 200_000 - fee
	require.Equal(t, uint64(199_994), net)

	out, err := AmountOutFromIn(net, priceOne, true)
	require.NoError(t, err)
	require.Equal(t, uint64(199_994), out)
}

// FeeFloor rounds down, unlike FeeInclusive's ceiling division.
func TestFeeFloorRoundsDown(t *testing.T) {
	floor, err := FeeFloor(200_001, 30_000)
	require.NoError(t, err)
	require.Equal(t, uint64(6), floor) // 6_000_030_000 / 1e9 floors to 6

	ceil, err := FeeInclusive(200_001, 30_000)
	require.NoError(t, err)
	require.Equal(t, uint64(7), ceil) // same input, one step up under ceiling division
}

// composition fee at the 10% ceiling.
func TestCompositionFeeAtCeilingRate(t *testing.T) {
	fee, err := CompositionFee(50, 100_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(5), fee)
}

func TestCompositionFeeRejectsRateAboveCeiling(t *testing.T) {
	_, err := CompositionFee(50, MaxCompositionFeeRate+1)
	require.Error(t, err)
}

// round-trip within rounding, testable property.
func TestAmountRoundTrip(t *testing.T) {
	price := uint128.New(1, 3) // an arbitrary non-trivial Q64.64 price
	for _, x := range []uint64{1, 7, 1000, 123456} {
		in, err := AmountInFromOut(x, price, true)
		require.NoError(t, err)
		loOut, err := AmountOutFromIn(in, price, true)
		require.NoError(t, err)
		require.LessOrEqual(t, loOut, x)

		hiOut, err := AmountOutFromIn(in+1, price, true)
		require.NoError(t, err)
		require.GreaterOrEqual(t, hiOut, x)
	}
}

func TestLiquidityFromAmountsConstantSum(t *testing.T) {
	l, err := LiquidityFromAmounts(1_000_000, 500_000, priceOne)
	require.NoError(t, err)
	// price == 1<<64: liquidity == amount_a + (amount_b << 64) in Q64.64
	// terms, so the high word equals amount_a + amount_b and the low word
	// stays zero since both inputs are whole units.
	require.Equal(t, uint64(0), l.Lo)
}

func TestGrowthAmountRoundTrip(t *testing.T) {
	liquidity := uint128.New(0, 1_000_000)
	growth, err := GrowthFromAmount(100, liquidity)
	require.NoError(t, err)
	back, err := AmountFromGrowth(growth, liquidity)
	require.NoError(t, err)
	require.LessOrEqual(t, back, uint64(100))
}

func TestFeeExclusiveRejectsRateAtPrecision(t *testing.T) {
	_, err := FeeExclusive(100, FeePrecision)
	require.Error(t, err)
}
