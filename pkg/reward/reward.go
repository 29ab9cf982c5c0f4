// Package reward implements the per-reward emission schedule, global growth
// accumulation and refund accounting. No
// counterpart exists in the retrieved Meteora files (the pack's copy of
// MeteoraDlmmPool carries rewardInfos fields but no settlement logic);
// grounded instead on the toole-brendan/shell liquidity package's
// epoch/schedule/claim shape (ordered time segments, per-segment accrual,
// refund bookkeeping) and the Osmosis concentrated-liquidity fee
// accumulator's settle-before-mutate ordering.
package reward

import (
	"math/big"
	"sort"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"lukechampine.com/uint128"

	"github.com/lbpair/dlmm-engine/internal/fixedmath"
	"github.com/lbpair/dlmm-engine/pkg/bin"
	"github.com/lbpair/dlmm-engine/pkg/dlmmerr"
	"github.com/lbpair/dlmm-engine/pkg/typetag"
)

// MaxSlots is R, the number of reward slots a pool carries.
const MaxSlots = bin.MaxRewardSlots

type scheduleEntry struct {
	at    int64
	delta *big.Int // signed Q64.64 delta-rate
}

// Slot is one reward's state.
type Slot struct {
	TokenType           typetag.TypeTag
	Reserved            bool
	CurrentEmissionRate uint128.Uint128 // Q64.64 units/second
	Schedule            []scheduleEntry
	scheduleCursor      int // index of the first not-yet-applied schedule entry
	RewardReleased      *uint256.Int // cumulative Q64.64 amount
	RewardRefunded      uint128.Uint128
	RewardHarvested     uint128.Uint128
	LastUpdatedTime     int64
}

// Engine holds up to MaxSlots reward slots for one pool.
type Engine struct {
	slots             [MaxSlots]*Slot
	minRewardDuration int64

	// Logger is nil-safe; a nil Engine.Logger logs nowhere.
	Logger *zap.Logger
}

// NewEngine builds an empty reward engine. minRewardDuration enforces
// add_reward duration floor.
func NewEngine(minRewardDuration int64) *Engine {
	return &Engine{minRewardDuration: minRewardDuration}
}

// SetLogger attaches a structured logger; passing nil restores the no-op
// default.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.Logger = l
}

func (e *Engine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Slot returns the slot at idx, or nil if uninitialized.
func (e *Engine) Slot(idx int) *Slot {
	if idx < 0 || idx >= MaxSlots {
		return nil
	}
	return e.slots[idx]
}

// Initialize appends a reward slot at idx. Reserved slots at the tail are
// restricted to privileged callers — the Engine itself is permission-
// agnostic and only records reserved; Pool gates the last slot index on the
// caller's privilege before calling Initialize.
func (e *Engine) Initialize(idx int, token typetag.TypeTag, now int64, reserved bool) error {
	if idx < 0 || idx >= MaxSlots {
		return dlmmerr.ErrRewardSlotFull
	}
	if e.slots[idx] != nil {
		return dlmmerr.ErrRewardExists
	}
	e.slots[idx] = &Slot{
		TokenType:       token,
		Reserved:        reserved,
		RewardReleased:  uint256.NewInt(0),
		LastUpdatedTime: now,
	}
	return nil
}

// AddReward funds a reward slot for the window [start, end). start
// defaults to now and is floored at now; end must exceed start
// by at least the configured minimum duration. The new rate is appended as
// a +rate/-rate pair to the schedule; CurrentEmissionRate is not touched
// here, and the next Settle that reaches start folds the rate in. amount is
// deposited into vault under the slot's TokenType.
func (e *Engine) AddReward(idx int, amount uint64, start *int64, end, now int64, vault *typetag.Balances) error {
	s := e.slots[idx]
	if s == nil {
		return dlmmerr.ErrRewardMissing
	}
	effectiveStart := now
	if start != nil && *start > effectiveStart {
		effectiveStart = *start
	}
	if end <= effectiveStart {
		return dlmmerr.ErrRewardDurationTooShort
	}
	duration := end - effectiveStart
	if duration < e.minRewardDuration {
		return dlmmerr.ErrRewardDurationTooShort
	}

	amountQ64 := new(big.Int).Lsh(new(big.Int).SetUint64(amount), 64)
	newRateBig := new(big.Int).Div(amountQ64, big.NewInt(duration))
	if _, err := fixedmath.FromBigChecked(newRateBig); err != nil {
		return err
	}
	halfMax := new(big.Int).Rsh(fixedmath.Q128, 1)
	if newRateBig.Cmp(halfMax) > 0 {
		return dlmmerr.New(dlmmerr.KindAmountOverflow, "reward rate exceeds half of max uint128")
	}

	s.insertScheduleEntry(effectiveStart, new(big.Int).Set(newRateBig))
	s.insertScheduleEntry(end, new(big.Int).Neg(newRateBig))

	if vault != nil {
		vault.Deposit(s.TokenType, amount)
	}
	return nil
}

func (s *Slot) insertScheduleEntry(at int64, delta *big.Int) {
	i := sort.Search(len(s.Schedule), func(i int) bool { return s.Schedule[i].at >= at })
	if i < len(s.Schedule) && s.Schedule[i].at == at {
		s.Schedule[i].delta.Add(s.Schedule[i].delta, delta)
		return
	}
	entry := scheduleEntry{at: at, delta: delta}
	s.Schedule = append(s.Schedule, scheduleEntry{})
	copy(s.Schedule[i+1:], s.Schedule[i:])
	s.Schedule[i] = entry
	if i < s.scheduleCursor {
		s.scheduleCursor++
	}
}

// Settle walks the schedule from the slot's last-updated time to now,
// segment by segment, crediting growth to activeBin when it holds
// liquidity and refunding otherwise. activeBin may be nil
// (no bins occupied), which is treated like zero liquidity.
func (e *Engine) Settle(idx int, now int64, activeBin *bin.Bin) error {
	s := e.slots[idx]
	if s == nil {
		return dlmmerr.ErrRewardMissing
	}
	if now <= s.LastUpdatedTime {
		return nil
	}

	cursor := s.LastUpdatedTime
	rate := s.CurrentEmissionRate
	rateBig := fixedmath.ToBig(rate)

	si := s.scheduleCursor
	for cursor < now {
		segEnd := now
		for si < len(s.Schedule) && s.Schedule[si].at <= cursor {
			rateBig.Add(rateBig, s.Schedule[si].delta)
			si++
		}
		if si < len(s.Schedule) && s.Schedule[si].at < segEnd {
			segEnd = s.Schedule[si].at
		}
		if segEnd <= cursor {
			segEnd = cursor + 1
			if si < len(s.Schedule) {
				segEnd = s.Schedule[si].at
			}
		}
		if segEnd > now {
			segEnd = now
		}

		deltaT := segEnd - cursor
		if deltaT > 0 {
			if rateBig.Sign() < 0 {
				rateBig.SetInt64(0)
			}
			releasedBig := new(big.Int).Mul(rateBig, big.NewInt(deltaT))
			released, err := fixedmath.FromBigChecked(releasedBig)
			if err != nil {
				return err
			}

			if activeBin != nil && !activeBin.LiquiditySupply.IsZero() {
				num := new(big.Int).Lsh(fixedmath.ToBig(released), 64)
				num.Div(num, fixedmath.ToBig(activeBin.LiquiditySupply))
				delta, err := fixedmath.FromBigChecked(num)
				if err != nil {
					return err
				}
				activeBin.ApplyRewardGrowth(idx, delta)

				releasedU256, err := uint256FromBig(releasedBig)
				if err != nil {
					return err
				}
				s.RewardReleased = new(uint256.Int).Add(s.RewardReleased, releasedU256)
			} else {
				refund := new(big.Int).Rsh(releasedBig, 64)
				refundU128, err := fixedmath.FromBigChecked(refund)
				if err != nil {
					return err
				}
				s.RewardRefunded = s.RewardRefunded.Add(refundU128)
				e.log().Warn("reward refunded, no active liquidity",
					zap.Int("slot", idx),
					zap.Int64("segment_start", cursor),
					zap.Int64("segment_end", segEnd),
				)
			}
		}

		cursor = segEnd
	}

	s.CurrentEmissionRate, _ = fixedmath.FromBigChecked(rateBig)
	s.scheduleCursor = si
	s.LastUpdatedTime = now
	return nil
}

func uint256FromBig(b *big.Int) (*uint256.Int, error) {
	if b.Sign() < 0 {
		return nil, dlmmerr.New(dlmmerr.KindAmountOverflow, "negative reward amount")
	}
	z, overflow := uint256.FromBig(b)
	if overflow {
		return nil, dlmmerr.New(dlmmerr.KindAmountOverflow, "reward released exceeds 256 bits")
	}
	return z, nil
}

// Harvest adds amount to the slot's harvested-to-positions running total and
// debits it from the shared vault, paying a position's settled reward.
func (e *Engine) Harvest(idx int, amount uint64, vault *typetag.Balances) error {
	s := e.slots[idx]
	if s == nil {
		return dlmmerr.ErrRewardMissing
	}
	if vault == nil || !vault.Withdraw(s.TokenType, amount) {
		return dlmmerr.New(dlmmerr.KindAmountOverflow, "insufficient reward vault balance")
	}
	s.RewardHarvested = s.RewardHarvested.Add(uint128.From64(amount))
	return nil
}
