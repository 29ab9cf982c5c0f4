package reward

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/lbpair/dlmm-engine/pkg/bin"
	"github.com/lbpair/dlmm-engine/pkg/typetag"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

const t0 int64 = 1_757_332_800

func TestInitializeRejectsDuplicateSlot(t *testing.T) {
	e := NewEngine(3600)
	require.NoError(t, e.Initialize(0, typetag.FromBytes([]byte("r")), t0, false))
	require.Error(t, e.Initialize(0, typetag.FromBytes([]byte("r")), t0, false))
}

func TestAddRewardRejectsDurationBelowMinimum(t *testing.T) {
	e := NewEngine(3600)
	token := typetag.FromBytes([]byte("r"))
	require.NoError(t, e.Initialize(0, token, t0, false))
	vault := typetag.NewBalances()

	err := e.AddReward(0, 1000, nil, t0+10, t0, vault)
	require.Error(t, err)
}

// reward refund: settle across a window split between
// zero active liquidity (refund) and funded liquidity (growth).
func TestSettleRefundThenGrowth(t *testing.T) {
	e := NewEngine(3600)
	token := typetag.FromBytes([]byte("reward-token"))
	require.NoError(t, e.Initialize(0, token, t0, false))

	vault := typetag.NewBalances()
	require.NoError(t, e.AddReward(0, 604_800, nil, t0+604_800, t0, vault))
	require.Equal(t, uint64(604_800), vault.Balance(token))

	slot := e.Slot(0)

	emptyBin, err := bin.New(0, 25)
	require.NoError(t, err)
	require.NoError(t, e.Settle(0, t0+5, emptyBin))
	require.Equal(t, uint128.New(0, 1), slot.CurrentEmissionRate) // rate = 1<<64/s, picked up by Settle
	require.Equal(t, uint128.From64(5), slot.RewardRefunded)
	require.True(t, slot.RewardReleased.IsZero())

	fundedBin, err := bin.New(1, 25)
	require.NoError(t, err)
	fundedBin.LiquiditySupply = uint128.New(0, 1) // L = 2^64
	require.NoError(t, e.Settle(0, t0+10, fundedBin))

	require.Equal(t, uint128.From64(5), slot.RewardRefunded) // unchanged
	require.Equal(t, uint128.New(0, 5), fundedBin.RewardsGrowthGlobal[0])

	want := new(uint256.Int).Lsh(uint256.NewInt(5), 64) // reward_released Q64.64 = 5<<64
	require.True(t, slot.RewardReleased.Eq(want))
}

func TestHarvestDebitsVaultAndCreditsHarvested(t *testing.T) {
	e := NewEngine(3600)
	token := typetag.FromBytes([]byte("reward-token"))
	require.NoError(t, e.Initialize(0, token, t0, false))
	vault := typetag.NewBalances()
	require.NoError(t, e.AddReward(0, 604_800, nil, t0+604_800, t0, vault))

	require.NoError(t, e.Harvest(0, 1000, vault))
	require.Equal(t, uint64(603_800), vault.Balance(token))
	require.Equal(t, uint128.From64(1000), e.Slot(0).RewardHarvested)
}

func TestHarvestRejectsInsufficientVault(t *testing.T) {
	e := NewEngine(3600)
	token := typetag.FromBytes([]byte("reward-token"))
	require.NoError(t, e.Initialize(0, token, t0, false))
	vault := typetag.NewBalances()

	require.Error(t, e.Harvest(0, 1, vault))
}

func TestSettleIsIdempotentWhenNowDoesNotAdvance(t *testing.T) {
	e := NewEngine(3600)
	token := typetag.FromBytes([]byte("reward-token"))
	require.NoError(t, e.Initialize(0, token, t0, false))
	vault := typetag.NewBalances()
	require.NoError(t, e.AddReward(0, 604_800, nil, t0+604_800, t0, vault))

	b, err := bin.New(0, 25)
	require.NoError(t, err)
	require.NoError(t, e.Settle(0, t0+5, b))
	refundAfterFirst := e.Slot(0).RewardRefunded

	require.NoError(t, e.Settle(0, t0+5, b)) // now == LastUpdatedTime: no-op
	require.Equal(t, refundAfterFirst, e.Slot(0).RewardRefunded)
}

// A second AddReward call at the same instant as the first must not cause
// Settle to double-apply either schedule entry.
func TestAddRewardTwiceThenSettleDoesNotDoubleCount(t *testing.T) {
	e := NewEngine(3600)
	token := typetag.FromBytes([]byte("reward-token"))
	require.NoError(t, e.Initialize(0, token, t0, false))
	vault := typetag.NewBalances()

	require.NoError(t, e.AddReward(0, 604_800, nil, t0+604_800, t0, vault))
	require.NoError(t, e.AddReward(0, 604_800, nil, t0+604_800, t0, vault))

	b, err := bin.New(0, 25)
	require.NoError(t, err)
	b.LiquiditySupply = uint128.New(0, 1)
	require.NoError(t, e.Settle(0, t0+5, b))

	slot := e.Slot(0)
	require.Equal(t, uint128.New(0, 2), slot.CurrentEmissionRate) // two rates merged into one schedule entry

	// rate 2<<64 for 5s over L=2^64 => growth delta of 10 (Q64.64), not 20.
	require.Equal(t, uint128.New(0, 10), b.RewardsGrowthGlobal[0])
}
