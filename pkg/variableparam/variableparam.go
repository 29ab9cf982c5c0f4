// Package variableparam implements the dynamic-fee volatility state machine.
// It ports the UpdateReferences /
// UpdateVolatilityAccumulator / ComputeVariableFee trio (same elapsed-time
// branch, same reduction factor, same (v*bin_step)^2 scaling and ceiling-
// scale constants) as pure functions over a value type instead of methods
// reaching into borsh-decoded pool bytes.
package variableparam

import (
	"math/big"

	"github.com/lbpair/dlmm-engine/internal/fixedmath"
	"github.com/lbpair/dlmm-engine/pkg/dlmmerr"
)

// BasisPointMax is the 10,000-denominator basis used for reduction_factor,
// matching Meteora's BasisPointMax constant.
const BasisPointMax uint32 = 10_000

// MaxFeeRate is the 10^8 (10%) ceiling on total fee rate.
const MaxFeeRate uint64 = 100_000_000

// FeeRateScale is the 10^11 ceiling-scale divisor.
const FeeRateScale uint64 = 100_000_000_000

// Config is the constant configuration portion of VariableParams.
type Config struct {
	FilterPeriod             uint16
	DecayPeriod              uint16
	ReductionFactor          uint16
	BaseFactor               uint16
	BinStep                  uint16
	VariableFeeControl       uint32
	MaxVolatilityAccumulator uint32
	ProtocolFeeRate          uint64
}

// Params is the mutable dynamic-fee volatility state.
type Params struct {
	VolatilityAccumulator uint32
	VolatilityReference   uint32
	IndexReference        int32
	LastUpdateTimestamp   int64
	Config                Config
}

// New builds Params with the active id as the initial index reference.
func New(cfg Config, activeID int32, now int64) *Params {
	return &Params{
		IndexReference:      activeID,
		LastUpdateTimestamp: now,
		Config:              cfg,
	}
}

// UpdateReferences runs steps 1-2, once per swap before any bin
// is consumed.
func (p *Params) UpdateReferences(now int64, activeID int32) {
	elapsed := now - p.LastUpdateTimestamp
	if elapsed >= int64(p.Config.FilterPeriod) {
		p.IndexReference = activeID
		if elapsed < int64(p.Config.DecayPeriod) {
			accum := uint64(p.VolatilityAccumulator) * uint64(p.Config.ReductionFactor)
			p.VolatilityReference = uint32(accum / uint64(BasisPointMax))
		} else {
			p.VolatilityReference = 0
		}
	}
}

// AdvanceVolatility runs step 3, called on every active-id
// change during the swap.
func (p *Params) AdvanceVolatility(activeID int32) {
	delta := int64(activeID) - int64(p.IndexReference)
	if delta < 0 {
		delta = -delta
	}
	accum := uint64(p.VolatilityReference) + uint64(delta)*uint64(BasisPointMax)
	max := uint64(p.Config.MaxVolatilityAccumulator)
	if accum > max {
		accum = max
	}
	p.VolatilityAccumulator = uint32(accum)
}

// Finalize runs step 4, called once the swap completes.
func (p *Params) Finalize(now int64) {
	p.LastUpdateTimestamp = now
}

// BaseFeeRate computes base_factor * bin_step * 10, the static component of
// the total fee rate (matching a GetBaseFee-style baseline).
func (p *Params) BaseFeeRate() uint64 {
	return uint64(p.Config.BaseFactor) * uint64(p.Config.BinStep) * 10
}

// VariableFeeRate computes the dynamic surcharge from the current
// volatility accumulator:
//
//	v = volatility_accumulator * bin_step
//	v_fee = variable_fee_control * v^2
//	rate = ceil(v_fee / 10^11)
// v and v_fee are staged in math/big: with volatility_accumulator capped
// only at max_volatility_accumulator (a uint32, commonly 350_000+) and
// bin_step up to 1000, v^2 alone can exceed 2^64, and v_fee is v^2 times
// variable_fee_control on top of that — a uint64 product overflows silently
// for realistic configs.
func (p *Params) VariableFeeRate() uint64 {
	if p.Config.VariableFeeControl == 0 {
		return 0
	}
	v := new(big.Int).Mul(
		new(big.Int).SetUint64(uint64(p.VolatilityAccumulator)),
		new(big.Int).SetUint64(uint64(p.Config.BinStep)),
	)
	vFee := new(big.Int).Mul(new(big.Int).SetUint64(uint64(p.Config.VariableFeeControl)), v)
	vFee.Mul(vFee, v)
	rate := fixedmath.CeilDivBig(vFee, new(big.Int).SetUint64(FeeRateScale))
	if rate.Cmp(new(big.Int).SetUint64(MaxFeeRate)) >= 0 {
		return MaxFeeRate
	}
	return rate.Uint64()
}

// TotalFeeRate combines base and variable fee rates, capped at MaxFeeRate,
// and rejects a base rate that is already invalid.
func (p *Params) TotalFeeRate() (uint64, error) {
	base := p.BaseFeeRate()
	if base >= 1_000_000_000 {
		return 0, dlmmerr.ErrFeeRateInvalid
	}
	total := base + p.VariableFeeRate()
	if total > MaxFeeRate {
		total = MaxFeeRate
	}
	return total, nil
}
