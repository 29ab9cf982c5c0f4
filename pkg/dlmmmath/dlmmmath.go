// Package dlmmmath implements per-bin swap, fee, composition-fee and growth
// math, all over Q64.64 fixed point. Rounding direction is contractual:
// amounts owed to the pool round up, amounts owed from the pool round down —
// mirrored from a ComputeFee-style helper that always rounds the taker's fee
// up via ceiling division.
package dlmmmath

import (
	"math/big"

	"github.com/lbpair/dlmm-engine/internal/fixedmath"
	"github.com/lbpair/dlmm-engine/pkg/dlmmerr"
	"lukechampine.com/uint128"
)

// FeePrecision is the 10^9 basis used for fee rates throughout the engine,
// matching a FeePrecision constant for Meteora's ceiling-divide
// fee math.
const FeePrecision uint64 = 1_000_000_000

// MaxCompositionFeeRate bounds CompositionFee's rate argument at 10%.
const MaxCompositionFeeRate uint64 = 100_000_000

func u64FromBigChecked(b *big.Int) (uint64, error) {
	if b.Sign() < 0 || !b.IsUint64() {
		return 0, dlmmerr.New(dlmmerr.KindAmountOverflow, "amount exceeds uint64 range")
	}
	return b.Uint64(), nil
}

// AmountOutFromIn computes the floor output for a given input at price:
// a2b divides by price's reciprocal, b2a multiplies by it.
func AmountOutFromIn(amountIn uint64, price uint128.Uint128, a2b bool) (uint64, error) {
	if price.IsZero() {
		return 0, dlmmerr.ErrPriceZero
	}
	in := uint128.From64(amountIn)
	var out uint128.Uint128
	var err error
	if a2b {
		out, err = fixedmath.MulShiftRight(in, price, 64)
	} else {
		out, err = fixedmath.MulDivFloor(in, fixedmath.Q64AsUint128(), price)
	}
	if err != nil {
		return 0, err
	}
	return u64FromBigChecked(fixedmath.ToBig(out))
}

// AmountInFromOut computes the ceiling input required to obtain amountOut at
// price — symmetric with AmountOutFromIn.
func AmountInFromOut(amountOut uint64, price uint128.Uint128, a2b bool) (uint64, error) {
	if price.IsZero() {
		return 0, dlmmerr.ErrPriceZero
	}
	out := uint128.From64(amountOut)
	var in uint128.Uint128
	var err error
	if a2b {
		in, err = fixedmath.MulDivCeil(out, fixedmath.Q64AsUint128(), price)
	} else {
		in, err = fixedmath.MulDivCeil(out, price, fixedmath.Q64AsUint128())
	}
	if err != nil {
		return 0, err
	}
	return u64FromBigChecked(fixedmath.ToBig(in))
}

// LiquidityFromAmounts returns the constant-sum liquidity measure
// price*amount_a + (amount_b << 64), rejecting results over 128 bits.
func LiquidityFromAmounts(amountA, amountB uint64, price uint128.Uint128) (uint128.Uint128, error) {
	priceTerm := new(big.Int).Mul(fixedmath.ToBig(price), new(big.Int).SetUint64(amountA))
	bTerm := new(big.Int).Lsh(new(big.Int).SetUint64(amountB), 64)
	total := new(big.Int).Add(priceTerm, bTerm)
	return fixedmath.FromBigChecked(total)
}

// AmountsFromLiquidity splits (amountA, amountB) proportionally to
// deltaL/L, flooring the result.
func AmountsFromLiquidity(amountA, amountB uint64, deltaL, liquidity uint128.Uint128) (outA, outB uint64, err error) {
	if liquidity.IsZero() {
		return 0, 0, dlmmerr.New(dlmmerr.KindLiquidityUnderflow, "liquidity supply is zero")
	}
	aOut, err := fixedmath.MulDivFloor(uint128.From64(amountA), deltaL, liquidity)
	if err != nil {
		return 0, 0, err
	}
	bOut, err := fixedmath.MulDivFloor(uint128.From64(amountB), deltaL, liquidity)
	if err != nil {
		return 0, 0, err
	}
	outA, err = u64FromBigChecked(fixedmath.ToBig(aOut))
	if err != nil {
		return 0, 0, err
	}
	outB, err = u64FromBigChecked(fixedmath.ToBig(bOut))
	if err != nil {
		return 0, 0, err
	}
	return outA, outB, nil
}

// FeeInclusive returns ceil(amount*rate/FeePrecision): the fee owed when rate
// is expressed against the gross (fee-inclusive) amount.
func FeeInclusive(amount, rate uint64) (uint64, error) {
	num := new(big.Int).Mul(new(big.Int).SetUint64(amount), new(big.Int).SetUint64(rate))
	den := new(big.Int).SetUint64(FeePrecision)
	return u64FromBigChecked(fixedmath.CeilDivBig(num, den))
}

// FeeFloor returns floor(amount*rate/FeePrecision): a cut taken out of an
// amount that already includes it, rounded down in the payer's favor.
func FeeFloor(amount, rate uint64) (uint64, error) {
	num := new(big.Int).Mul(new(big.Int).SetUint64(amount), new(big.Int).SetUint64(rate))
	num.Div(num, new(big.Int).SetUint64(FeePrecision))
	return u64FromBigChecked(num)
}

// FeeExclusive returns ceil(amount*rate/(FeePrecision-rate)): used when the
// caller supplies a net amount and the engine must recover the fee on top.
func FeeExclusive(amount, rate uint64) (uint64, error) {
	if rate >= FeePrecision {
		return 0, dlmmerr.ErrFeeRateInvalid
	}
	num := new(big.Int).Mul(new(big.Int).SetUint64(amount), new(big.Int).SetUint64(rate))
	den := new(big.Int).SetUint64(FeePrecision - rate)
	return u64FromBigChecked(fixedmath.CeilDivBig(num, den))
}

// CompositionFee returns floor(amount*rate*(FeePrecision+rate)/FeePrecision^2),
// the linear-plus-quadratic charge on liquidity forced across the active
// price. Requires rate <= 10% and enforces the result is strictly less than
// amount, flooring the result.
func CompositionFee(amount, rate uint64) (uint64, error) {
	if rate > MaxCompositionFeeRate {
		return 0, dlmmerr.ErrFeeRateInvalid
	}
	amountBig := new(big.Int).SetUint64(amount)
	rateBig := new(big.Int).SetUint64(rate)
	precisionBig := new(big.Int).SetUint64(FeePrecision)

	num := new(big.Int).Mul(amountBig, rateBig)
	num.Mul(num, new(big.Int).Add(precisionBig, rateBig))
	den := new(big.Int).Mul(precisionBig, precisionBig)
	num.Div(num, den)

	fee, err := u64FromBigChecked(num)
	if err != nil {
		return 0, err
	}
	if fee >= amount {
		return 0, dlmmerr.New(dlmmerr.KindFeeRateInvalid, "composition fee must be strictly less than amount")
	}
	return fee, nil
}

// GrowthFromAmount returns floor(amount<<128 / L), the Q64.64
// per-unit-liquidity growth delta a fee/reward amount contributes.
func GrowthFromAmount(amount uint64, liquidity uint128.Uint128) (uint128.Uint128, error) {
	if liquidity.IsZero() {
		return uint128.Zero, dlmmerr.New(dlmmerr.KindLiquidityUnderflow, "liquidity supply is zero")
	}
	num := new(big.Int).Lsh(new(big.Int).SetUint64(amount), 128)
	num.Div(num, fixedmath.ToBig(liquidity))
	return fixedmath.FromBigChecked(num)
}

// AmountFromGrowth returns floor(deltaGrowth * L / 2^128), converting a
// Q64.64 growth delta back into a raw amount for a given liquidity share.
func AmountFromGrowth(deltaGrowth, liquidity uint128.Uint128) (uint64, error) {
	num := new(big.Int).Mul(fixedmath.ToBig(deltaGrowth), fixedmath.ToBig(liquidity))
	num.Rsh(num, 128)
	return u64FromBigChecked(num)
}
