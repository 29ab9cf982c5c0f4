// Package dlmmerr defines the typed, return-value error kinds raised by the
// DLMM engine. Every kind is a sentinel so callers can branch with
// errors.Is instead of string-matching, the way an RPC client package
// wraps RPC failures with fmt.Errorf("...: %w", err).
package dlmmerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error families the engine can return.
type Kind int

const (
	KindUnknown Kind = iota
	KindBinMissing
	KindBinIDRange
	KindLiquidityOverflow
	KindAmountOverflow
	KindLiquidityUnderflow
	KindPriceZero
	KindAmountZero
	KindFeeRateInvalid
	KindRewardSlotFull
	KindRewardExists
	KindRewardMissing
	KindRewardDurationTooShort
	KindPositionWidthInvalid
	KindPositionMismatch
	KindCertAmountMismatch
	KindActiveIDExpected
	KindOpsBlocked
	KindNotEnoughLiquidity
	KindSameCoin
)

func (k Kind) String() string {
	switch k {
	case KindBinMissing:
		return "BinMissing"
	case KindBinIDRange:
		return "BinIdRange"
	case KindLiquidityOverflow:
		return "LiquidityOverflow"
	case KindAmountOverflow:
		return "AmountOverflow"
	case KindLiquidityUnderflow:
		return "LiquidityUnderflow"
	case KindPriceZero:
		return "PriceZero"
	case KindAmountZero:
		return "AmountZero"
	case KindFeeRateInvalid:
		return "FeeRateInvalid"
	case KindRewardSlotFull:
		return "RewardSlotFull"
	case KindRewardExists:
		return "RewardExists"
	case KindRewardMissing:
		return "RewardMissing"
	case KindRewardDurationTooShort:
		return "RewardDurationTooShort"
	case KindPositionWidthInvalid:
		return "PositionWidthInvalid"
	case KindPositionMismatch:
		return "PositionMismatch"
	case KindCertAmountMismatch:
		return "CertAmountMismatch"
	case KindActiveIDExpected:
		return "ActiveIdExpected"
	case KindOpsBlocked:
		return "OpsBlocked"
	case KindNotEnoughLiquidity:
		return "NotEnoughLiquidity"
	case KindSameCoin:
		return "SameCoin"
	default:
		return "Unknown"
	}
}

// Error wraps a Kind with a human message and an optional cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, dlmmerr.ErrBinMissing) match any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New constructs an *Error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs an *Error of the given kind around a cause.
func Wrap(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// KindOf reports the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindUnknown, false
}

// Sentinels usable directly with errors.Is — each carries no message, only a
// Kind, and matches any *Error with the same Kind via the Is method above.
var (
	ErrBinMissing            = &Error{Kind: KindBinMissing, Msg: "bin missing"}
	ErrBinIDRange            = &Error{Kind: KindBinIDRange, Msg: "bin id out of range"}
	ErrLiquidityOverflow     = &Error{Kind: KindLiquidityOverflow, Msg: "liquidity overflow"}
	ErrAmountOverflow        = &Error{Kind: KindAmountOverflow, Msg: "amount overflow"}
	ErrLiquidityUnderflow    = &Error{Kind: KindLiquidityUnderflow, Msg: "liquidity underflow"}
	ErrPriceZero             = &Error{Kind: KindPriceZero, Msg: "price is zero"}
	ErrAmountZero            = &Error{Kind: KindAmountZero, Msg: "amount is zero"}
	ErrFeeRateInvalid        = &Error{Kind: KindFeeRateInvalid, Msg: "fee rate invalid"}
	ErrRewardSlotFull        = &Error{Kind: KindRewardSlotFull, Msg: "reward slots full"}
	ErrRewardExists          = &Error{Kind: KindRewardExists, Msg: "reward slot already initialized"}
	ErrRewardMissing         = &Error{Kind: KindRewardMissing, Msg: "reward slot missing"}
	ErrRewardDurationTooShort = &Error{Kind: KindRewardDurationTooShort, Msg: "reward duration too short"}
	ErrPositionWidthInvalid  = &Error{Kind: KindPositionWidthInvalid, Msg: "position width invalid"}
	ErrPositionMismatch      = &Error{Kind: KindPositionMismatch, Msg: "position does not belong to pool"}
	ErrCertAmountMismatch    = &Error{Kind: KindCertAmountMismatch, Msg: "certificate amount mismatch"}
	ErrActiveIDExpected      = &Error{Kind: KindActiveIDExpected, Msg: "active bin expected"}
	ErrOpsBlocked            = &Error{Kind: KindOpsBlocked, Msg: "operation blocked"}
	ErrNotEnoughLiquidity    = &Error{Kind: KindNotEnoughLiquidity, Msg: "not enough liquidity"}
	ErrSameCoin              = &Error{Kind: KindSameCoin, Msg: "token_a and token_b are the same coin type"}
)
