package pool

import (
	"github.com/lbpair/dlmm-engine/pkg/dlmmerr"
	"github.com/lbpair/dlmm-engine/pkg/position"
	"github.com/lbpair/dlmm-engine/pkg/typetag"
	"github.com/lbpair/dlmm-engine/pkg/variableparam"
)

// InitializeReward opens reward slot idx for token. reserved is recorded on
// the slot. The last slot index is restricted to calls with privileged set;
// the caller (not this engine) is responsible for deciding privileged.
func (p *Pool) InitializeReward(idx int, token typetag.TypeTag, now int64, reserved, privileged bool) error {
	if err := reservedSlotGuard(idx, privileged); err != nil {
		return err
	}
	return p.Rewards.Initialize(idx, token, now, reserved)
}

// AddReward funds reward slot idx for [start, end).
func (p *Pool) AddReward(idx int, amount uint64, start *int64, end, now int64) error {
	return p.Rewards.AddReward(idx, amount, start, end, now, p.RewardVault)
}

// Pause blocks swaps, OpenPosition, AddLiquidity and liquidity removal until
// Unpause is called, an externally triggered switch. Fee and reward
// collection, ClosePosition, certificate repayment and reward funding are
// not blocked.
func (p *Pool) Pause() {
	p.Paused = true
}

// Unpause clears the pause flag.
func (p *Pool) Unpause() {
	p.Paused = false
}

// UpdateBaseFeeRate is the admin knob, rejecting a rate
// that would push total fee rate past the fee-precision ceiling.
func (p *Pool) UpdateBaseFeeRate(newRate uint64) error {
	if newRate >= MaxBaseFeeRate {
		return dlmmerr.ErrFeeRateInvalid
	}
	p.BaseFeeRate = newRate
	return nil
}

// totalFeeRate combines the admin-set BaseFeeRate with the current
// volatility surcharge, capped at variableparam.MaxFeeRate. Pool.BaseFeeRate
// is the authoritative base rate (mutable via UpdateBaseFeeRate); it
// supersedes Params.BaseFeeRate(), which only supplies the initial value at
// CreatePool.
func (p *Pool) totalFeeRate() (uint64, error) {
	if p.BaseFeeRate >= MaxBaseFeeRate {
		return 0, dlmmerr.ErrFeeRateInvalid
	}
	total := p.BaseFeeRate + p.Params.VariableFeeRate()
	if total > variableparam.MaxFeeRate {
		total = variableparam.MaxFeeRate
	}
	return total, nil
}

// CollectProtocolFees drains the protocol fee sink for both sides of the
// pool's token pair.
func (p *Pool) CollectProtocolFees() (amountA, amountB uint64) {
	amountA = p.ProtocolFees.Balance(p.TokenA)
	amountB = p.ProtocolFees.Balance(p.TokenB)
	p.ProtocolFees.Withdraw(p.TokenA, amountA)
	p.ProtocolFees.Withdraw(p.TokenB, amountB)
	return amountA, amountB
}

// reservedSlotGuard rejects InitializeReward calls into the last reward slot
// (index MaxRewardSlots-1) unless privileged is true.
func reservedSlotGuard(idx int, privileged bool) error {
	const reservedFrom = position.MaxRewardSlots - 1
	if idx >= reservedFrom && !privileged {
		return dlmmerr.ErrOpsBlocked
	}
	return nil
}
