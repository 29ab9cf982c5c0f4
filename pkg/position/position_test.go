package position

import (
	"testing"

	"github.com/lbpair/dlmm-engine/pkg/bin"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

var poolID = [32]byte{1, 2, 3}

func TestNewRejectsBadWidth(t *testing.T) {
	_, err := New(poolID, 0, 0)
	require.Error(t, err)
	_, err = New(poolID, 0, MaxWidth+1)
	require.Error(t, err)
}

func TestNewSeedsStatBinIDs(t *testing.T) {
	p, err := New(poolID, -2, 5)
	require.NoError(t, err)
	require.Equal(t, int32(2), p.UpperID())
	for i, s := range p.Stats {
		require.Equal(t, int32(-2)+int32(i), s.BinID)
	}
}

func TestAddLiquidityThenSettleBinCreditsFeeOwed(t *testing.T) {
	p, err := New(poolID, 0, 1)
	require.NoError(t, err)

	b, err := bin.New(0, 25)
	require.NoError(t, err)

	require.NoError(t, p.SettleBin(b)) // first settle: zero share, just snapshots
	require.NoError(t, p.AddLiquidity(0, uint128.New(0, 1)))

	b.FeeAGrowthGlobal = uint128.New(0, 2) // growth of 2 (Q64.64) since snapshot
	require.NoError(t, p.SettleBin(b))

	feeA, feeB := p.CollectFees()
	require.Equal(t, uint64(2), feeA)
	require.Equal(t, uint64(0), feeB)
}

func TestSettleBinRejectsBinOutsideRange(t *testing.T) {
	p, err := New(poolID, 0, 1)
	require.NoError(t, err)
	b, err := bin.New(5, 25)
	require.NoError(t, err)
	require.Error(t, p.SettleBin(b))
}

func TestRemoveLiquidityRejectsExcess(t *testing.T) {
	p, err := New(poolID, 0, 1)
	require.NoError(t, err)
	require.NoError(t, p.AddLiquidity(0, uint128.From64(10)))
	require.Error(t, p.RemoveLiquidity(0, uint128.From64(11)))
}

func TestCollectRewardZeroesBalance(t *testing.T) {
	p, err := New(poolID, 0, 1)
	require.NoError(t, err)
	p.RewardsOwed[2] = 50

	amount, err := p.CollectReward(2)
	require.NoError(t, err)
	require.Equal(t, uint64(50), amount)
	require.Equal(t, uint64(0), p.RewardsOwed[2])
}

func TestIsEmptyRequiresNoShareOrOwedAmounts(t *testing.T) {
	p, err := New(poolID, 0, 2)
	require.NoError(t, err)
	require.True(t, p.IsEmpty())

	require.NoError(t, p.AddLiquidity(0, uint128.From64(1)))
	require.False(t, p.IsEmpty())

	require.NoError(t, p.RemoveLiquidity(0, uint128.From64(1)))
	require.True(t, p.IsEmpty())

	p.FeeOwedA = 1
	require.False(t, p.IsEmpty())
}

func TestBeginEndFlashBalance(t *testing.T) {
	p, err := New(poolID, 0, 1)
	require.NoError(t, err)
	require.Error(t, p.EndFlash())

	p.BeginFlash()
	require.NoError(t, p.EndFlash())
}

func TestTotalLiquidityAtOutsideRangeIsZero(t *testing.T) {
	p, err := New(poolID, 0, 1)
	require.NoError(t, err)
	require.True(t, p.TotalLiquidityAt(99).IsZero())
}
