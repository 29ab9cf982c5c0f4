package pool

import (
	"go.uber.org/zap"

	"github.com/lbpair/dlmm-engine/pkg/dlmmerr"
	"github.com/lbpair/dlmm-engine/pkg/dlmmmath"
	"github.com/lbpair/dlmm-engine/pkg/typetag"
)

// StepResult is one bin's contribution to a swap.
type StepResult struct {
	BinID      int32
	AmountIn   uint64
	AmountOut  uint64
	Fee        uint64
	VarFeeRate uint64
}

// SwapResult is the accumulated outcome of a multi-bin swap.
type SwapResult struct {
	AmountIn     uint64
	AmountOut    uint64
	Fee          uint64
	ProtocolFee  uint64
	RefFee       uint64
	Steps        []StepResult
}

// ascendingFor reports whether a swap in direction a2b advances toward
// increasing bin id.
// Selling A for B drains a bin's B inventory and pushes the market price
// down, so a2b walks toward decreasing ids; b2a walks the opposite way.
func ascendingFor(a2b bool) bool {
	return !a2b
}

func (p *Pool) feeSideTag(a2b bool) typetag.TypeTag {
	if a2b {
		return p.TokenA
	}
	return p.TokenB
}

// SwapExactIn consumes up to amountIn of the input side, walking bins in
// swap direction until the input is exhausted or liquidity runs out.
// partner, if non-nil, receives floor(step.Fee * Pool.PartnerFeeRate / 1e9)
// per bin, clamped to the LP share of that fee net of the protocol cut.
func (p *Pool) SwapExactIn(amountIn uint64, a2b bool, now int64, partner *typetag.TypeTag) (*SwapResult, error) {
	return p.swap(amountIn, a2b, true, now, partner)
}

// SwapExactOut requests exactly amountOut of the output side.
func (p *Pool) SwapExactOut(amountOut uint64, a2b bool, now int64, partner *typetag.TypeTag) (*SwapResult, error) {
	return p.swap(amountOut, a2b, false, now, partner)
}

func (p *Pool) swap(amount uint64, a2b, byAmountIn bool, now int64, partner *typetag.TypeTag) (*SwapResult, error) {
	if amount == 0 {
		return nil, dlmmerr.ErrAmountZero
	}
	if err := p.requireNotPaused(); err != nil {
		return nil, err
	}
	if err := p.requireNoOpenCerts(); err != nil {
		return nil, err
	}

	p.Params.UpdateReferences(now, p.ActiveID)

	ascending := ascendingFor(a2b)
	feeTag := p.feeSideTag(a2b)

	res := &SwapResult{}
	remaining := amount

	for remaining > 0 {
		b, err := p.activeBin()
		if err != nil {
			return nil, err
		}

		totalFeeRate, err := p.totalFeeRate()
		if err != nil {
			return nil, err
		}

		step, err := b.SwapOneBin(remaining, a2b, byAmountIn, totalFeeRate, p.Params.Config.ProtocolFeeRate)
		if err != nil {
			return nil, err
		}

		if step.AmountInUsed == 0 && step.AmountOut == 0 {
			if nb, ok := p.Bins.NextOccupied(p.ActiveID, ascending); ok {
				p.log().Debug("active bin advanced", zap.Int32("from", p.ActiveID), zap.Int32("to", nb.ID))
				p.ActiveID = nb.ID
				p.Params.AdvanceVolatility(p.ActiveID)
				continue
			}
			return nil, dlmmerr.ErrBinMissing
		}

		lpFee := step.Fee - step.ProtocolFee
		var refFee uint64
		if partner != nil && p.PartnerFeeRate > 0 {
			refFee, err = dlmmmath.FeeFloor(step.Fee, p.PartnerFeeRate)
			if err != nil {
				return nil, err
			}
			if refFee > lpFee {
				refFee = lpFee
			}
			lpFee -= refFee
			bag, ok := p.PartnerFees[*partner]
			if !ok {
				bag = typetag.NewBalances()
				p.PartnerFees[*partner] = bag
			}
			bag.Deposit(feeTag, refFee)
		}

		if err := b.ApplyLPFeeGrowth(lpFee, a2b); err != nil {
			return nil, err
		}
		p.ProtocolFees.Deposit(feeTag, step.ProtocolFee)

		grossIn := step.AmountInUsed + step.Fee
		res.AmountIn += grossIn
		res.AmountOut += step.AmountOut
		res.Fee += step.Fee
		res.ProtocolFee += step.ProtocolFee
		res.RefFee += refFee
		res.Steps = append(res.Steps, StepResult{
			BinID:      b.ID,
			AmountIn:   grossIn,
			AmountOut:  step.AmountOut,
			Fee:        step.Fee,
			VarFeeRate: p.Params.VariableFeeRate(),
		})

		if byAmountIn {
			remaining -= grossIn
		} else {
			remaining -= step.AmountOut
		}

		if remaining == 0 {
			break
		}

		nb, ok := p.Bins.NextOccupied(p.ActiveID, ascending)
		if !ok {
			return nil, dlmmerr.ErrBinMissing
		}
		p.log().Debug("active bin advanced", zap.Int32("from", p.ActiveID), zap.Int32("to", nb.ID))
		p.ActiveID = nb.ID
		p.Params.AdvanceVolatility(p.ActiveID)
	}

	p.Params.Finalize(now)
	p.log().Debug("swap completed",
		zap.Uint64("amount_in", res.AmountIn),
		zap.Uint64("amount_out", res.AmountOut),
		zap.Uint64("fee", res.Fee),
		zap.Uint64("protocol_fee", res.ProtocolFee),
		zap.Uint64("ref_fee", res.RefFee),
		zap.Int("steps", len(res.Steps)),
		zap.Int32("active_id", p.ActiveID),
	)
	return res, nil
}
