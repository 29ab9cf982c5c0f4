// Package position implements multi-bin liquidity positions: per-bin
// liquidity shares, growth snapshots, settled-but-uncollected fee/reward
// balances, and the certificate discipline that stands in for a
// flash/hot-potato pattern. Grounded on the PositionV2 share/fee-owed field
// layout, generalized from its two fixed fee sides to a fee-plus-reward-slot
// snapshot vector.
package position

import (
	"github.com/google/uuid"
	"github.com/lbpair/dlmm-engine/internal/fixedmath"
	"github.com/lbpair/dlmm-engine/pkg/bin"
	"github.com/lbpair/dlmm-engine/pkg/dlmmerr"
	"lukechampine.com/uint128"
)

// MaxWidth is the position-width ceiling.
const MaxWidth = 1000

// MaxRewardSlots mirrors bin.MaxRewardSlots.
const MaxRewardSlots = bin.MaxRewardSlots

// Stat is the per-bin accounting row.
type Stat struct {
	BinID                  int32
	LiquidityShare         uint128.Uint128
	FeeAGrowthSnapshot     uint128.Uint128
	FeeBGrowthSnapshot     uint128.Uint128
	RewardsGrowthSnapshot  [MaxRewardSlots]uint128.Uint128
}

// Position is a contiguous range of bins a single owner has liquidity in.
type Position struct {
	ID           uuid.UUID
	PoolID       [32]byte
	LowerID      int32
	Width        int32
	Stats        []Stat // len == Width, Stats[i].BinID == LowerID+i
	FeeOwedA     uint64
	FeeOwedB     uint64
	RewardsOwed  [MaxRewardSlots]uint64
	FlashCount   uint32
}

// New creates an empty position over [lowerID, lowerID+width).
func New(poolID [32]byte, lowerID int32, width int32) (*Position, error) {
	if width <= 0 || width > MaxWidth {
		return nil, dlmmerr.ErrPositionWidthInvalid
	}
	stats := make([]Stat, width)
	for i := range stats {
		stats[i].BinID = lowerID + int32(i)
	}
	return &Position{
		ID:      uuid.New(),
		PoolID:  poolID,
		LowerID: lowerID,
		Width:   width,
		Stats:   stats,
	}, nil
}

// UpperID returns the inclusive upper bound of the position's bin range.
func (p *Position) UpperID() int32 {
	return p.LowerID + p.Width - 1
}

func (p *Position) statIndex(binID int32) (int, error) {
	idx := binID - p.LowerID
	if idx < 0 || idx >= p.Width {
		return 0, dlmmerr.New(dlmmerr.KindPositionMismatch, "bin id outside position range")
	}
	return int(idx), nil
}

// SettleBin runs the settlement step for one bin the position
// holds: the owed delta is the held share times the growth accrued since the
// last snapshot, floor-divided by 2^128. Must be called (for every bin about
// to be touched) after RewardEngine.Settle and before any add/remove/collect
// mutates that bin or the position's stats.
func (p *Position) SettleBin(b *bin.Bin) error {
	i, err := p.statIndex(b.ID)
	if err != nil {
		return err
	}
	s := &p.Stats[i]
	if s.LiquidityShare.IsZero() {
		s.FeeAGrowthSnapshot = b.FeeAGrowthGlobal
		s.FeeBGrowthSnapshot = b.FeeBGrowthGlobal
		s.RewardsGrowthSnapshot = b.RewardsGrowthGlobal
		return nil
	}

	feeA, err := owedFromGrowth(s.LiquidityShare, s.FeeAGrowthSnapshot, b.FeeAGrowthGlobal)
	if err != nil {
		return err
	}
	feeB, err := owedFromGrowth(s.LiquidityShare, s.FeeBGrowthSnapshot, b.FeeBGrowthGlobal)
	if err != nil {
		return err
	}
	p.FeeOwedA += feeA
	p.FeeOwedB += feeB
	s.FeeAGrowthSnapshot = b.FeeAGrowthGlobal
	s.FeeBGrowthSnapshot = b.FeeBGrowthGlobal

	for slot := 0; slot < MaxRewardSlots; slot++ {
		owed, err := owedFromGrowth(s.LiquidityShare, s.RewardsGrowthSnapshot[slot], b.RewardsGrowthGlobal[slot])
		if err != nil {
			return err
		}
		p.RewardsOwed[slot] += owed
		s.RewardsGrowthSnapshot[slot] = b.RewardsGrowthGlobal[slot]
	}
	return nil
}

// owedFromGrowth computes floor(share * (current - snapshot) / 2^128), the
// per-bin settlement formula. Growth accumulators are
// monotonic, so current >= snapshot always holds for a well-formed bin.
func owedFromGrowth(share, snapshot, current uint128.Uint128) (uint64, error) {
	if current.Cmp(snapshot) < 0 {
		return 0, dlmmerr.New(dlmmerr.KindLiquidityUnderflow, "growth accumulator moved backward")
	}
	delta := current.Sub(snapshot)
	if delta.IsZero() || share.IsZero() {
		return 0, nil
	}
	owed, err := fixedmath.MulShiftRight(share, delta, 128)
	if err != nil {
		return 0, err
	}
	if owed.Hi != 0 {
		return 0, dlmmerr.ErrAmountOverflow
	}
	return owed.Lo, nil
}

// AddLiquidity credits deltaL of liquidity share to the bin at binID,
// recording the position-side half of add-liquidity step.
// The caller is responsible for mutating the Bin itself and for having run
// SettleBin first.
func (p *Position) AddLiquidity(binID int32, deltaL uint128.Uint128) error {
	i, err := p.statIndex(binID)
	if err != nil {
		return err
	}
	p.Stats[i].LiquidityShare = p.Stats[i].LiquidityShare.Add(deltaL)
	return nil
}

// RemoveLiquidity debits deltaShare of liquidity share from the bin at
// binID. The caller mutates the Bin itself and must have run SettleBin
// first.
func (p *Position) RemoveLiquidity(binID int32, deltaShare uint128.Uint128) error {
	i, err := p.statIndex(binID)
	if err != nil {
		return err
	}
	if deltaShare.Cmp(p.Stats[i].LiquidityShare) > 0 {
		return dlmmerr.ErrLiquidityUnderflow
	}
	p.Stats[i].LiquidityShare = p.Stats[i].LiquidityShare.Sub(deltaShare)
	return nil
}

// CollectFees zeroes and returns the settled fee balances.
func (p *Position) CollectFees() (feeA, feeB uint64) {
	feeA, feeB = p.FeeOwedA, p.FeeOwedB
	p.FeeOwedA, p.FeeOwedB = 0, 0
	return
}

// CollectReward zeroes and returns the settled balance for reward slot idx.
func (p *Position) CollectReward(idx int) (uint64, error) {
	if idx < 0 || idx >= MaxRewardSlots {
		return 0, dlmmerr.ErrRewardMissing
	}
	amount := p.RewardsOwed[idx]
	p.RewardsOwed[idx] = 0
	return amount, nil
}

// IsEmpty reports whether the position holds no liquidity and has nothing
// uncollected, the destroyability condition a caller checks before closing.
func (p *Position) IsEmpty() bool {
	if p.FeeOwedA != 0 || p.FeeOwedB != 0 {
		return false
	}
	for _, owed := range p.RewardsOwed {
		if owed != 0 {
			return false
		}
	}
	for _, s := range p.Stats {
		if !s.LiquidityShare.IsZero() {
			return false
		}
	}
	return true
}

// TotalLiquidityAt returns the liquidity share held at binID, or zero if
// binID is outside the position's range.
func (p *Position) TotalLiquidityAt(binID int32) uint128.Uint128 {
	i, err := p.statIndex(binID)
	if err != nil {
		return uint128.Zero
	}
	return p.Stats[i].LiquidityShare
}

// BeginFlash increments the in-flight certificate counter; the pool refuses
// swaps while any of its positions has a nonzero counter.
func (p *Position) BeginFlash() {
	p.FlashCount++
}

// EndFlash decrements the in-flight certificate counter.
func (p *Position) EndFlash() error {
	if p.FlashCount == 0 {
		return dlmmerr.New(dlmmerr.KindOpsBlocked, "no outstanding certificate to close")
	}
	p.FlashCount--
	return nil
}
