// Package pricemath converts between bin ids and Q64.64 prices. It is the
// Go generalization of a repeated-squaring power ladder built with math/big in
// MeteoraDlmmPool.ComputeVariableFee and friends, pulled out into a pure,
// allocation-light function pinned to the Q64.64 fixed-point convention
// used throughout this engine.
package pricemath

import (
	"github.com/lbpair/dlmm-engine/internal/fixedmath"
	"github.com/lbpair/dlmm-engine/pkg/dlmmerr"
	"lukechampine.com/uint128"
)

// MinBinID and MaxBinID bound the valid bin-id range.
const (
	MinBinID    int32  = -443636
	MaxBinID    int32  = 443636
	ScoreOffset int64  = 443636
	basisPoints uint64 = 10000
	// maxPowExponent is the exclusive bound on |exp| for pow_q64: it is the
	// first value the binary ladder (19 bits, 0..=18) cannot represent.
	maxPowExponent = 0x80000
)

// One is 1<<64, the Q64.64 representation of the integer 1.
var One = uint128.New(0, 1)

// Score maps a bin id into BinStore's non-negative group-ordering key.
func Score(id int32) int64 {
	return int64(id) + ScoreOffset
}

// IDFromScore inverts Score.
func IDFromScore(score int64) int32 {
	return int32(score - ScoreOffset)
}

// ValidateBinID rejects ids outside [MinBinID, MaxBinID].
func ValidateBinID(id int32) error {
	if id < MinBinID || id > MaxBinID {
		return dlmmerr.New(dlmmerr.KindBinIDRange, "bin id out of range")
	}
	return nil
}

// PriceFromID computes price = (1 + bin_step/10000)^id in Q64.64.
func PriceFromID(id int32, binStep uint16) (uint128.Uint128, error) {
	if err := ValidateBinID(id); err != nil {
		return uint128.Zero, err
	}
	bps, err := fixedmath.MulDivFloor(uint128.From64(uint64(binStep)), One, uint128.From64(basisPoints))
	if err != nil {
		return uint128.Zero, err
	}
	base := One.Add(bps)
	return PowQ64(base, int64(id))
}

// PowQ64 performs binary exponentiation of a Q64.64 base by a signed
// exponent:
//   - exp == 0, or base == 1<<64 (identity), returns 1<<64.
//   - negative exponents are computed on |exp| and inverted at the end.
//   - bases at or above 1<<64 are inverted up front (uint128.Max/base) to
//     keep every squaring step inside 128 bits, and the invert flag is
//     toggled to compensate.
//   - |exp| must be < 0x80000 (19 bits); larger exponents are rejected.
func PowQ64(base uint128.Uint128, exp int64) (uint128.Uint128, error) {
	if exp == 0 {
		return One, nil
	}
	if base == One {
		return One, nil
	}

	invert := exp < 0
	absExp := exp
	if invert {
		absExp = -exp
	}
	if absExp >= maxPowExponent {
		return uint128.Zero, dlmmerr.New(dlmmerr.KindAmountOverflow, "pow_q64 exponent out of range")
	}

	if base.Cmp(One) >= 0 {
		if base.IsZero() {
			return uint128.Zero, dlmmerr.New(dlmmerr.KindPriceZero, "pow_q64 base is zero")
		}
		base = uint128.Max.Div(base)
		invert = !invert
	}

	result := One
	for i := uint(0); i <= 18; i++ {
		if absExp&(1<<i) != 0 {
			r, err := fixedmath.MulShiftRight(result, base, 64)
			if err != nil {
				return uint128.Zero, err
			}
			result = r
		}
		b, err := fixedmath.MulShiftRight(base, base, 64)
		if err != nil {
			return uint128.Zero, err
		}
		base = b
	}

	if result.IsZero() {
		return uint128.Zero, dlmmerr.New(dlmmerr.KindAmountOverflow, "pow_q64 result underflowed to zero")
	}

	if invert {
		result = uint128.Max.Div(result)
	}

	return result, nil
}
