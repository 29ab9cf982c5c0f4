package pool

import (
	"github.com/google/uuid"
	"lukechampine.com/uint128"

	"github.com/lbpair/dlmm-engine/internal/fixedmath"
	"github.com/lbpair/dlmm-engine/pkg/bin"
	"github.com/lbpair/dlmm-engine/pkg/dlmmerr"
	"github.com/lbpair/dlmm-engine/pkg/dlmmmath"
	"github.com/lbpair/dlmm-engine/pkg/position"
)

// mulDivFloorU128 computes floor(a*b/d) over Q64.64-shaped Uint128 values,
// reusing fixedmath's big.Int staging rather than a second fixed-width
// implementation.
func mulDivFloorU128(a, b, d uint128.Uint128) (uint128.Uint128, error) {
	return fixedmath.MulDivFloor(a, b, d)
}

// OpenPosition allocates an empty position over [lowerID, lowerID+width)
// and bumps ActiveOpenPositions, blocking swaps until the returned cert is
// repaid. If activeIncluded is set, the range must
// actually contain the pool's current active id.
func (p *Pool) OpenPosition(lowerID, width int32, activeIncluded bool) (*position.Position, *OpenCert, error) {
	if err := p.requireNotPaused(); err != nil {
		return nil, nil, err
	}
	pos, err := position.New(p.ID, lowerID, width)
	if err != nil {
		return nil, nil, err
	}
	if activeIncluded {
		if p.ActiveID < lowerID || p.ActiveID > pos.UpperID() {
			return nil, nil, dlmmerr.ErrActiveIDExpected
		}
	}
	pos.BeginFlash()
	p.ActiveOpenPositions++
	p.Positions[pos.ID] = pos
	return pos, &OpenCert{PositionID: pos.ID, PoolID: p.ID}, nil
}

// RepayOpen consumes an OpenCert. Its totals are always zero, so the only
// valid repayment is (0, 0); this exists so open/repay share the add/repay
// certificate discipline.
func (p *Pool) RepayOpen(cert *OpenCert, balanceA, balanceB uint64) error {
	if cert.consumed {
		return dlmmerr.New(dlmmerr.KindOpsBlocked, "certificate already consumed")
	}
	if balanceA != cert.TotalA || balanceB != cert.TotalB {
		return dlmmerr.ErrCertAmountMismatch
	}
	pos, ok := p.Positions[cert.PositionID]
	if !ok {
		return dlmmerr.ErrPositionMismatch
	}
	if err := pos.EndFlash(); err != nil {
		return err
	}
	cert.consumed = true
	if p.ActiveOpenPositions > 0 {
		p.ActiveOpenPositions--
	}
	return nil
}

// compositionFee applies the composition-fee rule to one bin's
// worth of an active-bin liquidity add. It returns the net amounts actually
// credited to the bin/position and the fee charged, denominated in the token
// of the excess side. The caller credits the fee into the bin's fee-growth
// accumulator on the side the excess was converted from (mirroring a
// regular swap fee, since existing LPs bear the imbalance risk of a
// one-sided add).
func compositionFee(b *bin.Bin, da, db, totalFeeRate uint64) (netDa, netDb, fee uint64, err error) {
	x, y := b.AmountA, b.AmountB
	if x == 0 && y == 0 {
		return da, db, 0, nil
	}

	xInB, err := dlmmmath.AmountOutFromIn(x, b.Price, true)
	if err != nil {
		return 0, 0, 0, err
	}
	daInB, err := dlmmmath.AmountOutFromIn(da, b.Price, true)
	if err != nil {
		return 0, 0, 0, err
	}
	totalInB := xInB + y
	addedInB := daInB + db
	if totalInB == 0 || addedInB == 0 {
		return da, db, 0, nil
	}

	targetAInB := mulDivFloorU64(addedInB, xInB, totalInB)

	switch {
	case daInB > targetAInB:
		targetDaInA, err := dlmmmath.AmountInFromOut(targetAInB, b.Price, true)
		if err != nil {
			return 0, 0, 0, err
		}
		if targetDaInA >= da {
			return da, db, 0, nil
		}
		excessA := da - targetDaInA
		fee, err = dlmmmath.CompositionFee(excessA, totalFeeRate)
		if err != nil {
			return 0, 0, 0, err
		}
		if fee > excessA {
			fee = excessA
		}
		convertedB, err := dlmmmath.AmountOutFromIn(excessA-fee, b.Price, true)
		if err != nil {
			return 0, 0, 0, err
		}
		return targetDaInA, db + convertedB, fee, nil

	case db > (addedInB - targetAInB):
		targetDbInB := addedInB - targetAInB
		excessB := db - targetDbInB
		fee, err = dlmmmath.CompositionFee(excessB, totalFeeRate)
		if err != nil {
			return 0, 0, 0, err
		}
		if fee > excessB {
			fee = excessB
		}
		convertedA, err := dlmmmath.AmountOutFromIn(excessB-fee, b.Price, false)
		if err != nil {
			return 0, 0, 0, err
		}
		return da + convertedA, targetDbInB, fee, nil

	default:
		return da, db, 0, nil
	}
}

func mulDivFloorU64(a, b, d uint64) uint64 {
	if d == 0 {
		return 0
	}
	hi, lo := mul64(a, b)
	return div128By64(hi, lo, d)
}

// mul64 returns the 128-bit product of a*b as (hi, lo).
func mul64(a, b uint64) (hi, lo uint64) {
	const mask32 = 1<<32 - 1
	aLo, aHi := a&mask32, a>>32
	bLo, bHi := b&mask32, b>>32
	t := aLo * bLo
	w0 := t & mask32
	k := t >> 32
	t = aHi*bLo + k
	w1 := t & mask32
	w2 := t >> 32
	t = aLo*bHi + w1
	k = t >> 32
	lo = (t << 32) | w0
	hi = aHi*bHi + w2 + k
	return
}

// div128By64 divides the 128-bit value (hi:lo) by d, assuming the quotient
// fits in 64 bits (guaranteed here since hi < d for any well-formed ratio).
func div128By64(hi, lo, d uint64) uint64 {
	if hi == 0 {
		return lo / d
	}
	rem := hi
	quotient := uint64(0)
	for i := 63; i >= 0; i-- {
		rem = (rem << 1) | ((lo >> uint(i)) & 1)
		quotient <<= 1
		if rem >= d {
			rem -= d
			quotient |= 1
		}
	}
	return quotient
}

// AddLiquidity funds bins within an open position, applying composition fee
// where the touched bin is the pool's current active bin and off-active
// side restrictions otherwise. It returns a cert for the
// sum of the amounts requested across all bins (the amounts the caller must
// repay, independent of any internal composition-fee conversion).
func (p *Pool) AddLiquidity(pos *position.Position, now int64, binIDs []int32, amountsA, amountsB []uint64) (*AddCert, error) {
	if err := p.requireNotPaused(); err != nil {
		return nil, err
	}
	if err := p.requireOwnPosition(pos); err != nil {
		return nil, err
	}
	if len(binIDs) != len(amountsA) || len(binIDs) != len(amountsB) {
		return nil, dlmmerr.New(dlmmerr.KindPositionMismatch, "mismatched bin/amount slice lengths")
	}
	if err := p.settleRewards(now); err != nil {
		return nil, err
	}

	totalFeeRate, err := p.totalFeeRate()
	if err != nil {
		return nil, err
	}

	cert := &AddCert{PositionID: pos.ID, PoolID: p.ID}
	for i, id := range binIDs {
		da, db := amountsA[i], amountsB[i]
		if id > p.ActiveID && db != 0 {
			return nil, dlmmerr.ErrAmountZero
		}
		if id < p.ActiveID && da != 0 {
			return nil, dlmmerr.ErrAmountZero
		}

		b, err := p.Bins.GetOrCreate(id, p.BinStep)
		if err != nil {
			return nil, err
		}
		if err := pos.SettleBin(b); err != nil {
			return nil, err
		}

		netDa, netDb := da, db
		if id == p.ActiveID {
			var fee uint64
			netDa, netDb, fee, err = compositionFee(b, da, db, totalFeeRate)
			if err != nil {
				return nil, err
			}
			if fee > 0 {
				a2b := netDb > db // excess converted from a into b
				if err := b.ApplyLPFeeGrowth(fee, a2b); err != nil {
					return nil, err
				}
			}
		}

		deltaL, err := b.AddLiquidity(netDa, netDb)
		if err != nil {
			return nil, err
		}
		if err := pos.AddLiquidity(id, deltaL); err != nil {
			return nil, err
		}

		cert.TotalA += da
		cert.TotalB += db
	}

	pos.BeginFlash()
	return cert, nil
}

// RepayAdd consumes an AddCert; balances must equal the cert totals exactly.
func (p *Pool) RepayAdd(cert *AddCert, balanceA, balanceB uint64) error {
	if cert.consumed {
		return dlmmerr.New(dlmmerr.KindOpsBlocked, "certificate already consumed")
	}
	if balanceA != cert.TotalA || balanceB != cert.TotalB {
		return dlmmerr.ErrCertAmountMismatch
	}
	pos, ok := p.Positions[cert.PositionID]
	if !ok {
		return dlmmerr.ErrPositionMismatch
	}
	if err := pos.EndFlash(); err != nil {
		return err
	}
	cert.consumed = true
	return nil
}

// ProjectAddLiquidity previews the net (amounts, fee) an AddLiquidity call
// would produce against bin id, without mutating any state. It is a pure
// what-if function; callers compare its output against their own
// expected-active-id assumption before submitting the real call.
func (p *Pool) ProjectAddLiquidity(id int32, da, db uint64) (netDa, netDb, fee uint64, err error) {
	b, ok := p.Bins.Get(id)
	if !ok {
		return da, db, 0, nil
	}
	if id != p.ActiveID {
		return da, db, 0, nil
	}
	totalFeeRate, err := p.totalFeeRate()
	if err != nil {
		return 0, 0, 0, err
	}
	shadow := *b
	return compositionFee(&shadow, da, db, totalFeeRate)
}

// RemoveLiquidity burns shares from a set of bins, settling growth first and
// dropping any bin that drains to zero liquidity from the BinStore.
func (p *Pool) RemoveLiquidity(pos *position.Position, now int64, binIDs []int32, shares []uint128.Uint128) (balanceA, balanceB uint64, err error) {
	if err := p.requireNotPaused(); err != nil {
		return 0, 0, err
	}
	if err := p.requireOwnPosition(pos); err != nil {
		return 0, 0, err
	}
	if len(binIDs) != len(shares) {
		return 0, 0, dlmmerr.New(dlmmerr.KindPositionMismatch, "mismatched bin/share slice lengths")
	}
	if err := p.settleRewards(now); err != nil {
		return 0, 0, err
	}

	for i, id := range binIDs {
		b, ok := p.Bins.Get(id)
		if !ok {
			return 0, 0, dlmmerr.ErrBinMissing
		}
		if err := pos.SettleBin(b); err != nil {
			return 0, 0, err
		}

		a, bb, err := b.RemoveLiquidity(shares[i])
		if err != nil {
			return 0, 0, err
		}
		if err := pos.RemoveLiquidity(id, shares[i]); err != nil {
			return 0, 0, err
		}
		balanceA += a
		balanceB += bb

		if b.IsEmpty() {
			p.Bins.Remove(id)
		}
	}
	return balanceA, balanceB, nil
}

// RemoveByPercent removes percentBp (basis points of 10000) of the
// liquidity share held in every bin within [minID, maxID].
func (p *Pool) RemoveByPercent(pos *position.Position, now int64, minID, maxID int32, percentBp uint32) (balanceA, balanceB uint64, err error) {
	if percentBp > 10_000 {
		return 0, 0, dlmmerr.New(dlmmerr.KindFeeRateInvalid, "percent exceeds 10000 bp")
	}
	var ids []int32
	var shares []uint128.Uint128
	for id := minID; id <= maxID; id++ {
		share := pos.TotalLiquidityAt(id)
		if share.IsZero() {
			continue
		}
		delta, err := mulDivFloorU128(share, uint128.From64(uint64(percentBp)), uint128.From64(10_000))
		if err != nil {
			return 0, 0, err
		}
		if delta.IsZero() {
			continue
		}
		ids = append(ids, id)
		shares = append(shares, delta)
	}
	if len(ids) == 0 {
		return 0, 0, nil
	}
	return p.RemoveLiquidity(pos, now, ids, shares)
}

// CollectFees drains a position's settled fee balances, after a fresh
// settlement pass over its bins.
func (p *Pool) CollectFees(pos *position.Position, now int64) (feeA, feeB uint64, err error) {
	if err := p.requireOwnPosition(pos); err != nil {
		return 0, 0, err
	}
	if err := p.settleRewards(now); err != nil {
		return 0, 0, err
	}
	if err := p.settlePositionBins(pos, pos.LowerID, pos.UpperID()); err != nil {
		return 0, 0, err
	}
	a, b := pos.CollectFees()
	return a, b, nil
}

// CollectReward drains a position's settled balance for reward slot idx,
// paying out of the pool's reward vault.
func (p *Pool) CollectReward(pos *position.Position, now int64, idx int) (uint64, error) {
	if err := p.requireOwnPosition(pos); err != nil {
		return 0, err
	}
	if err := p.settleRewards(now); err != nil {
		return 0, err
	}
	if err := p.settlePositionBins(pos, pos.LowerID, pos.UpperID()); err != nil {
		return 0, err
	}
	amount, err := pos.CollectReward(idx)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, nil
	}
	slot := p.Rewards.Slot(idx)
	if slot == nil {
		return 0, dlmmerr.ErrRewardMissing
	}
	if err := p.Rewards.Harvest(idx, amount, p.RewardVault); err != nil {
		return 0, err
	}
	return amount, nil
}

// ClosePosition settles all outstanding fees/rewards, requires the position
// hold no liquidity, and removes it from the pool, returning rewards one
// slot at a time via the cert.
func (p *Pool) ClosePosition(pos *position.Position, now int64) (*ClosePositionCert, uint64, uint64, error) {
	if err := p.requireOwnPosition(pos); err != nil {
		return nil, 0, 0, err
	}
	if pos.FlashCount != 0 {
		return nil, 0, 0, dlmmerr.ErrOpsBlocked
	}
	if err := p.settleRewards(now); err != nil {
		return nil, 0, 0, err
	}
	if err := p.settlePositionBins(pos, pos.LowerID, pos.UpperID()); err != nil {
		return nil, 0, 0, err
	}

	for _, s := range pos.Stats {
		if !s.LiquidityShare.IsZero() {
			return nil, 0, 0, dlmmerr.New(dlmmerr.KindLiquidityUnderflow, "position still holds liquidity")
		}
	}

	feeA, feeB := pos.CollectFees()
	cert := &ClosePositionCert{PositionID: pos.ID, PoolID: p.ID, BalanceA: feeA, BalanceB: feeB}
	for i := 0; i < position.MaxRewardSlots; i++ {
		amount, _ := pos.CollectReward(i)
		if amount == 0 {
			continue
		}
		if p.Rewards.Slot(i) != nil {
			if err := p.Rewards.Harvest(i, amount, p.RewardVault); err != nil {
				return nil, 0, 0, err
			}
		}
		cert.RewardSlots[i] = amount
	}

	if !pos.IsEmpty() {
		return nil, 0, 0, dlmmerr.New(dlmmerr.KindLiquidityUnderflow, "position not fully settled")
	}
	delete(p.Positions, pos.ID)
	return cert, feeA, feeB, nil
}
