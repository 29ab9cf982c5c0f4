// Package typetag provides the opaque token/coin identity used by the DLMM
// engine and the off-instance balance bag reward vaults and protocol-fee
// sinks deposit into. The engine never calls user-supplied code against a
// TypeTag; it only compares and stores it, so a 32-byte, byte-wise ordered
// value — the same representation used for Solana mint addresses — is a
// natural fit for an opaque token identifier.
package typetag

import (
	"bytes"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// TypeTag is an opaque, byte-wise comparable token identifier.
type TypeTag [32]byte

// FromPublicKey adapts a solana.PublicKey, the ecosystem's mint-address type.
func FromPublicKey(pk solana.PublicKey) TypeTag {
	return TypeTag(pk)
}

// FromBytes builds a TypeTag from a raw 32-byte identifier, left-padding with
// zeroes if shorter.
func FromBytes(b []byte) TypeTag {
	var t TypeTag
	if len(b) > 32 {
		copy(t[:], b[len(b)-32:])
		return t
	}
	copy(t[32-len(b):], b)
	return t
}

// String renders the tag the way the ecosystem renders mint addresses.
func (t TypeTag) String() string {
	return base58.Encode(t[:])
}

// Compare gives the canonical byte-wise ordering used for token-pair
// ordering.
func Compare(a, b TypeTag) int {
	return bytes.Compare(a[:], b[:])
}

// Less reports whether a sorts before b under the canonical ordering.
func Less(a, b TypeTag) bool {
	return Compare(a, b) < 0
}

// Equal reports byte-wise equality.
func Equal(a, b TypeTag) bool {
	return a == b
}

// CanonicalPair orders (tokenA, tokenB) canonically and reports whether the
// inputs were already same-coin (which callers must reject).
func CanonicalPair(tokenA, tokenB TypeTag) (lo, hi TypeTag, sameCoin bool) {
	if Equal(tokenA, tokenB) {
		return tokenA, tokenB, true
	}
	if Less(tokenA, tokenB) {
		return tokenA, tokenB, false
	}
	return tokenB, tokenA, false
}

// Balances is the off-instance balance bag keyed by TypeTag — the vault the
// reward engine deposits emissions into and the protocol-fee sink accrues
// into, mirroring an "opaque balance bag" keyed by token identity.
type Balances struct {
	m map[TypeTag]uint64
}

// NewBalances builds an empty balance bag.
func NewBalances() *Balances {
	return &Balances{m: make(map[TypeTag]uint64)}
}

// Deposit credits amount into tag's balance. Saturates rather than wraps on
// overflow, since a vault overflowing uint64 indicates a caller bug, not a
// recoverable accounting state.
func (b *Balances) Deposit(tag TypeTag, amount uint64) {
	if b.m == nil {
		b.m = make(map[TypeTag]uint64)
	}
	cur := b.m[tag]
	next := cur + amount
	if next < cur {
		next = ^uint64(0)
	}
	b.m[tag] = next
}

// Withdraw debits amount from tag's balance, returning false if insufficient.
func (b *Balances) Withdraw(tag TypeTag, amount uint64) bool {
	if b.m == nil {
		return false
	}
	cur := b.m[tag]
	if cur < amount {
		return false
	}
	b.m[tag] = cur - amount
	return true
}

// Balance reports the current balance for tag.
func (b *Balances) Balance(tag TypeTag) uint64 {
	if b.m == nil {
		return 0
	}
	return b.m[tag]
}
