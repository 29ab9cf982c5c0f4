// Package pool orchestrates swaps, position lifecycle, reward funding and
// admin operations over a single pool's BinStore, Positions table and
// RewardEngine. It is the widest component in the system and is grounded
// throughout on MeteoraDlmmPool: the swap loop generalizes
// MeteoraDlmmPool.SwapExactIn's bin-advance-until-filled shape to the full
// multi-bin traversal with dynamic-fee updates interleaved per step.
package pool

import (
	bin2 "github.com/gagliardetto/binary"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/lbpair/dlmm-engine/pkg/bin"
	"github.com/lbpair/dlmm-engine/pkg/binstore"
	"github.com/lbpair/dlmm-engine/pkg/dlmmerr"
	"github.com/lbpair/dlmm-engine/pkg/position"
	"github.com/lbpair/dlmm-engine/pkg/reward"
	"github.com/lbpair/dlmm-engine/pkg/typetag"
	"github.com/lbpair/dlmm-engine/pkg/variableparam"
)

// MinRewardDuration is the floor on (end - start) for AddReward.
const MinRewardDuration int64 = 3600

// MaxProtocolFeeRate is the 30% ceiling on ProtocolFeeRate.
const MaxProtocolFeeRate uint64 = 300_000_000

// MaxBaseFeeRate is the fee-precision ceiling (1e9).
const MaxBaseFeeRate uint64 = 1_000_000_000

// MaxBinStep is the bin_step ceiling.
const MaxBinStep uint16 = 1000

// Pool is one DLMM market: token pair, bin store, positions, reward
// schedules and the protocol fee sink.
type Pool struct {
	ID      [32]byte
	TokenA  typetag.TypeTag
	TokenB  typetag.TypeTag
	BinStep uint16

	ActiveID    int32
	BaseFeeRate uint64
	Params      *variableparam.Params
	Bins        *binstore.BinStore

	Rewards     *reward.Engine
	RewardVault *typetag.Balances

	PartnerFeeRate uint64 // fraction of each step's total fee routed to partner out of the LP share, scale 1e9
	PartnerFees    map[typetag.TypeTag]*typetag.Balances

	ProtocolFees *typetag.Balances

	Positions map[uuid.UUID]*position.Position

	Paused              bool
	ActiveOpenPositions uint32

	// Logger is nil-safe; a nil Pool.Logger logs nowhere. Set it directly,
	// or via SetLogger, to get structured swap/reward events.
	Logger *zap.Logger
}

// SetLogger attaches a structured logger to the pool and its reward engine;
// passing nil restores the no-op default on both.
func (p *Pool) SetLogger(l *zap.Logger) {
	p.Logger = l
	p.Rewards.SetLogger(l)
}

func (p *Pool) log() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// Config carries the admin-set constants needed at creation time.
type Config struct {
	BinStep                  uint16
	BaseFactor               uint16
	FilterPeriod             uint16
	DecayPeriod              uint16
	ReductionFactor          uint16
	VariableFeeControl       uint32
	MaxVolatilityAccumulator uint32
	ProtocolFeeRate          uint64
	PartnerFeeRate           uint64
}

// computeKey derives the deterministic pool key :
// hash(token_a, token_b, bin_step, base_factor) over the canonically
// ordered pair, using unkeyed blake2b-256.
func computeKey(tokenA, tokenB typetag.TypeTag, binStep uint16, baseFactor uint16) [32]byte {
	h, _ := blake2b.New256(nil)
	h.Write(tokenA[:])
	h.Write(tokenB[:])
	h.Write([]byte{byte(binStep), byte(binStep >> 8)})
	h.Write([]byte{byte(baseFactor), byte(baseFactor >> 8)})
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// CreatePool is the Registry collaborator's entry point : it
// orders the token pair canonically, rejects same-coin pairs, and derives
// the pool's deterministic key.
func CreatePool(cfg Config, activeID int32, tokenA, tokenB typetag.TypeTag, now int64) (*Pool, error) {
	if cfg.BinStep == 0 || cfg.BinStep > MaxBinStep {
		return nil, dlmmerr.ErrBinIDRange
	}
	if cfg.ProtocolFeeRate > MaxProtocolFeeRate {
		return nil, dlmmerr.ErrFeeRateInvalid
	}
	lo, hi, sameCoin := typetag.CanonicalPair(tokenA, tokenB)
	if sameCoin {
		return nil, dlmmerr.ErrSameCoin
	}
	if err := pricemathValidate(activeID); err != nil {
		return nil, err
	}

	vp := variableparam.New(variableparam.Config{
		FilterPeriod:             cfg.FilterPeriod,
		DecayPeriod:              cfg.DecayPeriod,
		ReductionFactor:          cfg.ReductionFactor,
		BaseFactor:               cfg.BaseFactor,
		BinStep:                  cfg.BinStep,
		VariableFeeControl:       cfg.VariableFeeControl,
		MaxVolatilityAccumulator: cfg.MaxVolatilityAccumulator,
		ProtocolFeeRate:          cfg.ProtocolFeeRate,
	}, activeID, now)

	p := &Pool{
		ID:             computeKey(lo, hi, cfg.BinStep, cfg.BaseFactor),
		TokenA:         lo,
		TokenB:         hi,
		BinStep:        cfg.BinStep,
		ActiveID:       activeID,
		BaseFeeRate:    vp.BaseFeeRate(),
		Params:         vp,
		Bins:           binstore.New(),
		Rewards:        reward.NewEngine(MinRewardDuration),
		RewardVault:    typetag.NewBalances(),
		PartnerFeeRate: cfg.PartnerFeeRate,
		PartnerFees:    make(map[typetag.TypeTag]*typetag.Balances),
		ProtocolFees:   typetag.NewBalances(),
		Positions:      make(map[uuid.UUID]*position.Position),
	}
	if _, err := p.Bins.GetOrCreate(activeID, cfg.BinStep); err != nil {
		return nil, err
	}
	return p, nil
}

func pricemathValidate(id int32) error {
	const minID, maxID = -443636, 443636
	if id < minID || id > maxID {
		return dlmmerr.ErrBinIDRange
	}
	return nil
}

// OpenCert is the obligation returned by OpenPosition. OpenPosition itself
// adds no liquidity, so its cert always carries zero totals; it exists so
// open/repay share the same two-phase discipline as add/repay.
type OpenCert struct {
	PositionID uuid.UUID
	PoolID     [32]byte
	TotalA     uint64
	TotalB     uint64
	consumed   bool
}

// AddCert is the obligation returned by AddLiquidity: the caller must repay
// exactly (TotalA, TotalB), the sum of the amounts requested across all
// bins touched by the call.
type AddCert struct {
	PositionID uuid.UUID
	PoolID     [32]byte
	TotalA     uint64
	TotalB     uint64
	consumed   bool
}

// ClosePositionCert carries the final balances and per-slot reward amounts
// released when a position is closed, taken one reward type at a time.
type ClosePositionCert struct {
	PositionID   uuid.UUID
	PoolID       [32]byte
	BalanceA     uint64
	BalanceB     uint64
	RewardSlots  [position.MaxRewardSlots]uint64
}

func (p *Pool) requireNotPaused() error {
	if p.Paused {
		return dlmmerr.ErrOpsBlocked
	}
	return nil
}

func (p *Pool) requireNoOpenCerts() error {
	if p.ActiveOpenPositions > 0 {
		return dlmmerr.ErrOpsBlocked
	}
	for _, pos := range p.Positions {
		if pos.FlashCount > 0 {
			return dlmmerr.ErrOpsBlocked
		}
	}
	return nil
}

func (p *Pool) requireOwnPosition(pos *position.Position) error {
	if pos.PoolID != p.ID {
		return dlmmerr.ErrPositionMismatch
	}
	return nil
}

// activeBin fetches the current active bin, creating an empty one if it does
// not exist (it is seeded at CreatePool, and RemoveLiquidity drops it from
// the BinStore once it drains to zero liquidity).
func (p *Pool) activeBin() (*bin.Bin, error) {
	return p.Bins.GetOrCreate(p.ActiveID, p.BinStep)
}

// settleRewards runs RewardEngine.settle against the current active bin for
// every initialized reward slot, step 1. Must be called
// before any position settlement in the same operation.
func (p *Pool) settleRewards(now int64) error {
	ab, err := p.activeBin()
	if err != nil {
		return err
	}
	for i := 0; i < position.MaxRewardSlots; i++ {
		if p.Rewards.Slot(i) == nil {
			continue
		}
		if err := p.Rewards.Settle(i, now, ab); err != nil {
			return err
		}
	}
	return nil
}

// settlePositionBins runs per-bin settlement step for every
// bin in [lowerID, upperID] the position holds, crediting owed amounts from
// the growth diff before any mutation.
func (p *Pool) settlePositionBins(pos *position.Position, lowerID, upperID int32) error {
	for id := lowerID; id <= upperID; id++ {
		b, ok := p.Bins.Get(id)
		if !ok {
			continue
		}
		if err := pos.SettleBin(b); err != nil {
			return err
		}
	}
	return nil
}

// DispatchReserved rejects the reserved OperationKind boundary values from
// ("Reserved OperationKind variants (RESERVED_0..2) are unused;
// reject them at the boundary"). Callers that plumb an external op-kind
// enum into this engine should route RESERVED_0..2 through here before
// dispatching to any other Pool method.
func DispatchReserved(kind int) error {
	switch kind {
	case -1, -2, -3:
		return dlmmerr.New(dlmmerr.KindOpsBlocked, "reserved operation kind")
	default:
		return nil
	}
}

// poolSnapshot is the borsh-laid-out subset of Pool state worth persisting
// across process restarts: the admin-set constants and scalar fee/volatility
// state, the same fields MeteoraDlmmPool packs into its on-chain account.
// Bins, Positions and the reward schedule are reconstructed by replaying
// operations rather than snapshotted, since they are owned collaborators
// (BinStore, the positions table, RewardEngine) rather than Pool's own state.
type poolSnapshot struct {
	ID                       [32]byte `bin:"borsh"`
	TokenA                   [32]byte `bin:"borsh"`
	TokenB                   [32]byte `bin:"borsh"`
	BinStep                  uint16   `bin:"borsh"`
	ActiveID                 int32    `bin:"borsh"`
	BaseFeeRate              uint64   `bin:"borsh"`
	BaseFactor               uint16   `bin:"borsh"`
	FilterPeriod             uint16   `bin:"borsh"`
	DecayPeriod              uint16   `bin:"borsh"`
	ReductionFactor          uint16   `bin:"borsh"`
	VariableFeeControl       uint32   `bin:"borsh"`
	MaxVolatilityAccumulator uint32   `bin:"borsh"`
	ProtocolFeeRate          uint64   `bin:"borsh"`
	PartnerFeeRate           uint64   `bin:"borsh"`
	Paused                   bool     `bin:"borsh"`
}

// MarshalBinary encodes the pool's persisted scalar state as borsh, the
// ecosystem's own wire format for Solana account payloads. It is additive: no
// swap, liquidity or reward path calls it, and it never round-trips Bins,
// Positions or reward schedules.
func (p *Pool) MarshalBinary() ([]byte, error) {
	snap := poolSnapshot{
		ID:                       p.ID,
		TokenA:                   p.TokenA,
		TokenB:                   p.TokenB,
		BinStep:                  p.BinStep,
		ActiveID:                 p.ActiveID,
		BaseFeeRate:              p.BaseFeeRate,
		BaseFactor:               p.Params.Config.BaseFactor,
		FilterPeriod:             p.Params.Config.FilterPeriod,
		DecayPeriod:              p.Params.Config.DecayPeriod,
		ReductionFactor:          p.Params.Config.ReductionFactor,
		VariableFeeControl:       p.Params.Config.VariableFeeControl,
		MaxVolatilityAccumulator: p.Params.Config.MaxVolatilityAccumulator,
		ProtocolFeeRate:          p.Params.Config.ProtocolFeeRate,
		PartnerFeeRate:           p.PartnerFeeRate,
		Paused:                   p.Paused,
	}
	return bin2.MarshalBorsh(snap)
}

// UnmarshalBinary restores the scalar fields MarshalBinary wrote. The caller
// is responsible for re-seeding Bins, Positions and Rewards (e.g. by
// replaying CreatePool with the decoded Config and then re-applying whatever
// external liquidity/reward ledger backs this pool).
func (p *Pool) UnmarshalBinary(data []byte) error {
	var snap poolSnapshot
	if err := bin2.UnmarshalBorsh(&snap, data); err != nil {
		return err
	}
	p.ID = snap.ID
	p.TokenA = snap.TokenA
	p.TokenB = snap.TokenB
	p.BinStep = snap.BinStep
	p.ActiveID = snap.ActiveID
	p.BaseFeeRate = snap.BaseFeeRate
	p.PartnerFeeRate = snap.PartnerFeeRate
	p.Paused = snap.Paused
	p.Params = variableparam.New(variableparam.Config{
		FilterPeriod:             snap.FilterPeriod,
		DecayPeriod:              snap.DecayPeriod,
		ReductionFactor:          snap.ReductionFactor,
		BaseFactor:               snap.BaseFactor,
		BinStep:                  snap.BinStep,
		VariableFeeControl:       snap.VariableFeeControl,
		MaxVolatilityAccumulator: snap.MaxVolatilityAccumulator,
		ProtocolFeeRate:          snap.ProtocolFeeRate,
	}, snap.ActiveID, 0)
	return nil
}
