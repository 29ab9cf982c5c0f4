// Package bin implements the single price point: an
// inventory of two assets, a liquidity-share supply, and the fee/reward
// growth accumulators LPs settle against. SwapOneBin is the direct
// generalization of MeteoraDlmmPool.Swap(bin *Bin, amountIn
// uint64, swapForY bool) — same five-step shape, regrounded on
// pkg/dlmmmath instead of inlined math/big calls.
package bin

import (
	"github.com/lbpair/dlmm-engine/pkg/dlmmerr"
	"github.com/lbpair/dlmm-engine/pkg/dlmmmath"
	"github.com/lbpair/dlmm-engine/pkg/pricemath"
	"lukechampine.com/uint128"
)

// MaxRewardSlots is R, the number of reward slots each bin tracks.
const MaxRewardSlots = 5

// Bin is a single discrete price point.
type Bin struct {
	ID                  int32
	Price               uint128.Uint128
	AmountA             uint64
	AmountB             uint64
	LiquiditySupply     uint128.Uint128
	FeeAGrowthGlobal    uint128.Uint128
	FeeBGrowthGlobal    uint128.Uint128
	RewardsGrowthGlobal [MaxRewardSlots]uint128.Uint128
}

// New creates an empty bin at id, with price derived from bin_step.
func New(id int32, binStep uint16) (*Bin, error) {
	price, err := pricemath.PriceFromID(id, binStep)
	if err != nil {
		return nil, err
	}
	return &Bin{ID: id, Price: price}, nil
}

// IsEmpty reports whether the bin holds no liquidity at all.
func (b *Bin) IsEmpty() bool {
	return b.LiquiditySupply.IsZero()
}

// checkConstantSum verifies liquidity_supply == price*amount_a + (amount_b<<64),
// the invariant that liquidity_supply always equals the constant-sum value.
func (b *Bin) checkConstantSum() error {
	want, err := dlmmmath.LiquidityFromAmounts(b.AmountA, b.AmountB, b.Price)
	if err != nil {
		return err
	}
	if want != b.LiquiditySupply {
		return dlmmerr.New(dlmmerr.KindLiquidityOverflow, "constant-sum invariant violated")
	}
	return nil
}

// SwapStep is the outcome of one bin's participation in a swap.
type SwapStep struct {
	AmountInUsed uint64 // net amount entering the bin's inventory (pre-fee)
	AmountOut    uint64
	Fee          uint64 // total swap fee (LP + protocol + partner), pre-split
	ProtocolFee  uint64
}

// SwapOneBin executes one bin's worth of a swap. It mutates
// the bin's inventory (amount_a/amount_b) but deliberately leaves the fee/
// reward growth accumulators untouched: per the "apply the split before
// computing growth" rule, the LP share of the fee is only known once the
// caller (Pool) has subtracted the protocol and partner cuts, so growth
// application is the caller's job via ApplyLPFeeGrowth.
func (b *Bin) SwapOneBin(amountRemaining uint64, a2b, byAmountIn bool, totalFeeRate, protocolFeeRate uint64) (SwapStep, error) {
	var availableOut uint64
	if a2b {
		availableOut = b.AmountB
	} else {
		availableOut = b.AmountA
	}
	if availableOut == 0 {
		return SwapStep{}, nil
	}

	maxIn, err := dlmmmath.AmountInFromOut(availableOut, b.Price, a2b)
	if err != nil {
		return SwapStep{}, err
	}

	var amountInUsed, amountOut, fee, protocolFee uint64

	if byAmountIn {
		fee, err = dlmmmath.FeeInclusive(amountRemaining, totalFeeRate)
		if err != nil {
			return SwapStep{}, err
		}
		if fee > amountRemaining {
			return SwapStep{}, dlmmerr.ErrAmountOverflow
		}
		net := amountRemaining - fee

		if net >= maxIn {
			amountInUsed = maxIn
			fee, err = dlmmmath.FeeInclusive(maxIn+fee, totalFeeRate)
			if err != nil {
				return SwapStep{}, err
			}
			amountOut = availableOut
		} else {
			amountInUsed = net
			out, err := dlmmmath.AmountOutFromIn(net, b.Price, a2b)
			if err != nil {
				return SwapStep{}, err
			}
			if out > availableOut {
				out = availableOut
			}
			amountOut = out
		}
	} else {
		desiredOut := amountRemaining
		if desiredOut > availableOut {
			desiredOut = availableOut
		}
		amountInUsed, err = dlmmmath.AmountInFromOut(desiredOut, b.Price, a2b)
		if err != nil {
			return SwapStep{}, err
		}
		fee, err = dlmmmath.FeeExclusive(amountInUsed, totalFeeRate)
		if err != nil {
			return SwapStep{}, err
		}
		amountOut = desiredOut
	}

	protocolFee, err = dlmmmath.FeeInclusive(fee, protocolFeeRate)
	if err != nil {
		return SwapStep{}, err
	}

	if a2b {
		b.AmountA += amountInUsed
		if b.AmountB < amountOut {
			return SwapStep{}, dlmmerr.New(dlmmerr.KindLiquidityUnderflow, "insufficient amount_b")
		}
		b.AmountB -= amountOut
	} else {
		b.AmountB += amountInUsed
		if b.AmountA < amountOut {
			return SwapStep{}, dlmmerr.New(dlmmerr.KindLiquidityUnderflow, "insufficient amount_a")
		}
		b.AmountA -= amountOut
	}

	return SwapStep{
		AmountInUsed: amountInUsed,
		AmountOut:    amountOut,
		Fee:          fee,
		ProtocolFee:  protocolFee,
	}, nil
}

// ApplyLPFeeGrowth credits the LP's net share of a swap's fee (fee minus
// protocol and partner cuts) to the bin's fee-growth accumulator for the
// side the fee was collected in.
func (b *Bin) ApplyLPFeeGrowth(lpFee uint64, a2b bool) error {
	if lpFee == 0 || b.LiquiditySupply.IsZero() {
		return nil
	}
	delta, err := dlmmmath.GrowthFromAmount(lpFee, b.LiquiditySupply)
	if err != nil {
		return err
	}
	if a2b {
		b.FeeAGrowthGlobal = b.FeeAGrowthGlobal.Add(delta)
	} else {
		b.FeeBGrowthGlobal = b.FeeBGrowthGlobal.Add(delta)
	}
	return nil
}

// ApplyRewardGrowth credits a reward growth delta to slot.
func (b *Bin) ApplyRewardGrowth(slot int, delta uint128.Uint128) {
	b.RewardsGrowthGlobal[slot] = b.RewardsGrowthGlobal[slot].Add(delta)
}

// AddLiquidity adds (deltaA, deltaB) to the bin's inventory, returning the
// liquidity share minted.
func (b *Bin) AddLiquidity(deltaA, deltaB uint64) (uint128.Uint128, error) {
	deltaL, err := dlmmmath.LiquidityFromAmounts(deltaA, deltaB, b.Price)
	if err != nil {
		return uint128.Zero, err
	}
	b.AmountA += deltaA
	b.AmountB += deltaB
	b.LiquiditySupply = b.LiquiditySupply.Add(deltaL)
	return deltaL, nil
}

// RemoveLiquidity burns deltaShare of the bin's liquidity supply, returning
// the proportional (amountA, amountB) owed back to the caller.
func (b *Bin) RemoveLiquidity(deltaShare uint128.Uint128) (amountA, amountB uint64, err error) {
	if deltaShare.Cmp(b.LiquiditySupply) > 0 {
		return 0, 0, dlmmerr.ErrLiquidityUnderflow
	}
	amountA, amountB, err = dlmmmath.AmountsFromLiquidity(b.AmountA, b.AmountB, deltaShare, b.LiquiditySupply)
	if err != nil {
		return 0, 0, err
	}
	if amountA > b.AmountA || amountB > b.AmountB {
		return 0, 0, dlmmerr.ErrLiquidityUnderflow
	}
	b.AmountA -= amountA
	b.AmountB -= amountB
	b.LiquiditySupply = b.LiquiditySupply.Sub(deltaShare)
	if b.LiquiditySupply.IsZero() && (b.AmountA != 0 || b.AmountB != 0) {
		return 0, 0, dlmmerr.New(dlmmerr.KindLiquidityUnderflow, "liquidity drained to zero with residual inventory")
	}
	return amountA, amountB, nil
}
