// Package runes implements the core Runes-protocol data model: rune
// identifiers, names, entries, and the checked u128 arithmetic the ledger
// math in internal/updater depends on.
package runes

import (
	"fmt"
	"math/big"
)

// maxU128 is the inclusive upper bound for every Lot and Rune value.
var maxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

func bigFromUint64(n uint64) *big.Int {
	return new(big.Int).SetUint64(n)
}

// Lot is a u128 rune balance. It is never negative; subtraction below zero
// or addition above 2^128-1 is a bug in the caller, not a recoverable
// condition, so both panic rather than returning an error — mirroring the
// checked-arithmetic-that-asserts style of the reference implementation.
type Lot struct {
	v *big.Int
}

// ZeroLot returns the zero balance.
func ZeroLot() Lot {
	return Lot{v: new(big.Int)}
}

// NewLot builds a Lot from a uint64 amount.
func NewLot(n uint64) Lot {
	return Lot{v: new(big.Int).SetUint64(n)}
}

// LotFromBigInt builds a Lot from an existing big.Int, which must be in [0, 2^128-1].
func LotFromBigInt(n *big.Int) (Lot, error) {
	if n.Sign() < 0 || n.Cmp(maxU128) > 0 {
		return Lot{}, fmt.Errorf("lot out of u128 range: %s", n.String())
	}
	return Lot{v: new(big.Int).Set(n)}, nil
}

// LotFromString parses a decimal string into a Lot, for callers reading a
// Lot back out of storage.
func LotFromString(s string) (Lot, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Lot{}, fmt.Errorf("invalid lot string %q", s)
	}
	return LotFromBigInt(n)
}

func (l Lot) bi() *big.Int {
	if l.v == nil {
		return new(big.Int)
	}
	return l.v
}

// IsZero reports whether the balance is zero.
func (l Lot) IsZero() bool {
	return l.bi().Sign() == 0
}

// Cmp compares two lots the way big.Int.Cmp does.
func (l Lot) Cmp(o Lot) int {
	return l.bi().Cmp(o.bi())
}

// Min returns the smaller of the two lots.
func (l Lot) Min(o Lot) Lot {
	if l.Cmp(o) <= 0 {
		return l
	}
	return o
}

// Add returns l+o, panicking on overflow past 2^128-1 — an overflow here
// means the index computed an impossible balance and must stop.
func (l Lot) Add(o Lot) Lot {
	sum := new(big.Int).Add(l.bi(), o.bi())
	if sum.Cmp(maxU128) > 0 {
		panic(fmt.Sprintf("rune balance overflow: %s + %s", l.bi(), o.bi()))
	}
	return Lot{v: sum}
}

// CheckedAdd returns l+o, or an error on overflow, for callers (the
// end-of-block burn accumulation) that want to treat overflow as a
// reported fatal condition instead of a panic.
func (l Lot) CheckedAdd(o Lot) (Lot, error) {
	sum := new(big.Int).Add(l.bi(), o.bi())
	if sum.Cmp(maxU128) > 0 {
		return Lot{}, fmt.Errorf("rune balance overflow: %s + %s", l.bi(), o.bi())
	}
	return Lot{v: sum}, nil
}

// Sub returns l-o, panicking if the result would be negative. Every call
// site in the updater is expected to clamp with Min first; a panic here
// means that invariant was violated.
func (l Lot) Sub(o Lot) Lot {
	if l.Cmp(o) < 0 {
		panic(fmt.Sprintf("rune balance underflow: %s - %s", l.bi(), o.bi()))
	}
	return Lot{v: new(big.Int).Sub(l.bi(), o.bi())}
}

// DivMod divides the lot by a small positive divisor, returning quotient and remainder.
func (l Lot) DivMod(divisor uint64) (Lot, uint64) {
	if divisor == 0 {
		panic("division by zero")
	}
	d := new(big.Int).SetUint64(divisor)
	q, r := new(big.Int).QuoRem(l.bi(), d, new(big.Int))
	return Lot{v: q}, r.Uint64()
}

// N returns the lot's value as a u128 represented in decimal string form,
// the same "n()" accessor the reference implementation exposes for logging
// and event payloads.
func (l Lot) N() string {
	return l.bi().String()
}

// BigInt returns a copy of the underlying big.Int.
func (l Lot) BigInt() *big.Int {
	return new(big.Int).Set(l.bi())
}

// String implements fmt.Stringer.
func (l Lot) String() string {
	return l.bi().String()
}

// MarshalText implements encoding.TextMarshaler so Lot stores cleanly as a
// decimal string column.
func (l Lot) MarshalText() ([]byte, error) {
	return []byte(l.bi().String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lot) UnmarshalText(text []byte) error {
	n, ok := new(big.Int).SetString(string(text), 10)
	if !ok {
		return fmt.Errorf("invalid lot text %q", text)
	}
	if n.Sign() < 0 || n.Cmp(maxU128) > 0 {
		return fmt.Errorf("lot out of u128 range: %s", n.String())
	}
	l.v = n
	return nil
}
