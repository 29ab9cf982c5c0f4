package bin

import (
	"testing"

	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

func newFundedBin(t *testing.T, id int32, binStep uint16, amountA, amountB uint64) *Bin {
	t.Helper()
	b, err := New(id, binStep)
	require.NoError(t, err)
	_, err = b.AddLiquidity(amountA, amountB)
	require.NoError(t, err)
	return b
}

// single-bin exact-in.
func TestSwapOneBinExactIn(t *testing.T) {
	b := newFundedBin(t, 0, 25, 1_000_000, 500_000)

	step, err := b.SwapOneBin(200_000, true, true, 30_000, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(6), step.Fee)
	require.Equal(t, uint64(199_994), step.AmountOut)
}

func TestSwapOneBinDepletesSide(t *testing.T) {
	b := newFundedBin(t, 0, 25, 1_000_000, 500_000)

	step, err := b.SwapOneBin(10_000_000, true, true, 30_000, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(500_000), step.AmountOut)
	require.Equal(t, uint64(0), b.AmountB)
}

func TestSwapOneBinEmptySideReturnsZeroStep(t *testing.T) {
	b, err := New(0, 25)
	require.NoError(t, err)

	step, err := b.SwapOneBin(1000, true, true, 30_000, 0)
	require.NoError(t, err)
	require.Equal(t, SwapStep{}, step)
}

func TestApplyLPFeeGrowthCreditsSupply(t *testing.T) {
	b := newFundedBin(t, 0, 25, 1_000_000, 500_000)
	before := b.FeeAGrowthGlobal

	require.NoError(t, b.ApplyLPFeeGrowth(1000, true))
	require.Equal(t, 1, b.FeeAGrowthGlobal.Cmp(before))
}

func TestApplyLPFeeGrowthNoopOnEmptyBin(t *testing.T) {
	b, err := New(0, 25)
	require.NoError(t, err)
	require.NoError(t, b.ApplyLPFeeGrowth(1000, true))
	require.True(t, b.FeeAGrowthGlobal.IsZero())
}

func TestAddThenRemoveLiquidityRoundTrips(t *testing.T) {
	b, err := New(0, 25)
	require.NoError(t, err)

	deltaL, err := b.AddLiquidity(1_000_000, 500_000)
	require.NoError(t, err)
	require.False(t, deltaL.IsZero())

	amountA, amountB, err := b.RemoveLiquidity(deltaL)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), amountA)
	require.Equal(t, uint64(500_000), amountB)
	require.True(t, b.IsEmpty())
}

func TestRemoveLiquidityRejectsExcessShare(t *testing.T) {
	b := newFundedBin(t, 0, 25, 1_000_000, 500_000)
	_, _, err := b.RemoveLiquidity(b.LiquiditySupply.Add(uint128.From64(1)))
	require.Error(t, err)
}

func TestConstantSumInvariantHoldsAfterFunding(t *testing.T) {
	b := newFundedBin(t, 0, 25, 1_000_000, 500_000)
	require.NoError(t, b.checkConstantSum())
}
