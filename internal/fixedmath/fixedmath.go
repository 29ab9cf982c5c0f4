// Package fixedmath holds the Q64.64 multiply/shift/divide helpers shared by
// pricemath and dlmmmath. Intermediate products can need up to 256 bits
// before truncating back to 128, so — like a GetBaseFee-style helper that
// reaches for math/big and checks BitLen() once a computation no longer fits
// cleanly in a fixed width — these helpers stage the arithmetic in
// math/big.Int and convert back to uint128.Uint128 with an explicit range
// check, rather than trusting undocumented overflow behavior of a 128-bit
// multiply.
package fixedmath

import (
	"math/big"

	"github.com/lbpair/dlmm-engine/pkg/dlmmerr"
	"lukechampine.com/uint128"
)

// Q64 is 2^64, the fixed-point scale for Q64.64 values.
var Q64 = new(big.Int).Lsh(big.NewInt(1), 64)

// Q128 is 2^128, the width ceiling for a Uint128.
var Q128 = new(big.Int).Lsh(big.NewInt(1), 128)

// Q64AsUint128 returns 1<<64 as a Uint128, the Q64.64 representation of the
// integer 1.
func Q64AsUint128() uint128.Uint128 {
	return uint128.New(0, 1)
}

// ToBig widens a Uint128 into an unsigned math/big.Int.
func ToBig(u uint128.Uint128) *big.Int {
	return u.Big()
}

// FromBigChecked narrows a non-negative math/big.Int back into a Uint128,
// failing with dlmmerr.ErrLiquidityOverflow if it doesn't fit in 128 bits.
func FromBigChecked(b *big.Int) (uint128.Uint128, error) {
	if b.Sign() < 0 {
		return uint128.Zero, dlmmerr.New(dlmmerr.KindAmountOverflow, "negative intermediate result")
	}
	if b.Cmp(Q128) >= 0 {
		return uint128.Zero, dlmmerr.New(dlmmerr.KindLiquidityOverflow, "intermediate exceeds 128 bits")
	}
	return uint128.FromBig(b), nil
}

// MulShiftRight computes floor(a*b / 2^shift) and checks the result fits in
// 128 bits. Used by pow_q64's squaring ladder and by growth/amount
// conversions that multiply two Q64.64 values together.
func MulShiftRight(a, b uint128.Uint128, shift uint) (uint128.Uint128, error) {
	prod := new(big.Int).Mul(ToBig(a), ToBig(b))
	prod.Rsh(prod, shift)
	return FromBigChecked(prod)
}

// MulDivFloor computes floor(a*b / d), erroring on division by zero or an
// overflowing result.
func MulDivFloor(a, b, d uint128.Uint128) (uint128.Uint128, error) {
	if d.IsZero() {
		return uint128.Zero, dlmmerr.New(dlmmerr.KindPriceZero, "division by zero")
	}
	prod := new(big.Int).Mul(ToBig(a), ToBig(b))
	prod.Div(prod, ToBig(d))
	return FromBigChecked(prod)
}

// MulDivCeil computes ceil(a*b / d), erroring on division by zero or an
// overflowing result.
func MulDivCeil(a, b, d uint128.Uint128) (uint128.Uint128, error) {
	if d.IsZero() {
		return uint128.Zero, dlmmerr.New(dlmmerr.KindPriceZero, "division by zero")
	}
	prod := new(big.Int).Mul(ToBig(a), ToBig(b))
	dBig := ToBig(d)
	prod.Add(prod, new(big.Int).Sub(dBig, big.NewInt(1)))
	prod.Div(prod, dBig)
	return FromBigChecked(prod)
}

// CeilDivBig computes ceil(num/den) over math/big, for the fee ceiling-
// division pattern a ComputeFee-style helper uses.
func CeilDivBig(num, den *big.Int) *big.Int {
	out := new(big.Int).Add(num, new(big.Int).Sub(den, big.NewInt(1)))
	return out.Div(out, den)
}
