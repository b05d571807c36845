package runes

import (
	"fmt"
	"math/big"
	"strings"
)

// Rune is the u128 identifier a rune name encodes to. Names are read in a
// bijective base-26 numeral system over 'A'-'Z', the same system spreadsheet
// column names use extended to 128 bits.
type Rune struct {
	v *big.Int
}

// reserved is the first value of the reserved-rune range: runes etched
// without an explicit name (cenotaph-adjacent "reserved" etchings) take
// values starting here, offset by the etching's block and tx index.
var reserved = func() *big.Int {
	n, ok := new(big.Int).SetString("6402364363415443603228541259936211926", 10)
	if !ok {
		panic("invalid reserved constant")
	}
	return n
}()

// Reserved returns the reserved rune for an etching at the given block/tx.
func Reserved(block uint64, tx uint32) Rune {
	offset := new(big.Int).Lsh(new(big.Int).SetUint64(block), 32)
	offset.Or(offset, new(big.Int).SetUint64(uint64(tx)))
	v := new(big.Int).Add(reserved, offset)
	return Rune{v: v}
}

// IsReserved reports whether r falls in the reserved range.
func (r Rune) IsReserved() bool {
	return r.bi().Cmp(reserved) >= 0
}

func (r Rune) bi() *big.Int {
	if r.v == nil {
		return new(big.Int)
	}
	return r.v
}

// RuneFromBigInt builds a Rune from its raw u128 value, as carried on the
// wire in a runestone's Rune field (the field stores the interned integer
// directly, not the base-26 name).
func RuneFromBigInt(n *big.Int) (Rune, error) {
	if n.Sign() < 0 || n.Cmp(maxU128) > 0 {
		return Rune{}, fmt.Errorf("rune value out of u128 range: %s", n.String())
	}
	return Rune{v: new(big.Int).Set(n)}, nil
}

// BigInt returns a copy of the rune's underlying u128 value.
func (r Rune) BigInt() *big.Int {
	return new(big.Int).Set(r.bi())
}

// Cmp orders runes by their underlying u128 value.
func (r Rune) Cmp(o Rune) int {
	return r.bi().Cmp(o.bi())
}

// MarshalText implements encoding.TextMarshaler, rendering the rune as its
// canonical name so it serializes cleanly as a JSON string.
func (r Rune) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rune) UnmarshalText(text []byte) error {
	parsed, err := ParseRune(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRune decodes a rune name (letters A-Z only, no spacers) into its value.
func ParseRune(s string) (Rune, error) {
	if s == "" {
		return Rune{}, fmt.Errorf("empty rune name")
	}
	x := new(big.Int)
	for i, c := range s {
		if i > 0 {
			x.Add(x, big.NewInt(1))
		}
		x.Mul(x, big.NewInt(26))
		if c < 'A' || c > 'Z' {
			return Rune{}, fmt.Errorf("invalid character in rune name: %q", c)
		}
		x.Add(x, big.NewInt(int64(c-'A')))
	}
	if x.Cmp(maxU128) > 0 {
		return Rune{}, fmt.Errorf("rune name out of range: %s", s)
	}
	return Rune{v: x}, nil
}

// String renders the rune's canonical name.
func (r Rune) String() string {
	n := new(big.Int).Set(r.bi())
	if n.Cmp(maxU128) == 0 {
		return "BCGDENLQRQWDSLRUGSNLBTMFIJAV"
	}
	n.Add(n, big.NewInt(1))
	var symbol []byte
	one := big.NewInt(1)
	twentySix := big.NewInt(26)
	for n.Sign() > 0 {
		m := new(big.Int).Sub(n, one)
		_, rem := new(big.Int).QuoRem(m, twentySix, new(big.Int))
		symbol = append(symbol, byte('A')+byte(rem.Int64()))
		n = new(big.Int).Quo(m, twentySix)
	}
	for i, j := 0, len(symbol)-1; i < j; i, j = i+1, j-1 {
		symbol[i], symbol[j] = symbol[j], symbol[i]
	}
	return string(symbol)
}

// Commitment returns the minimal little-endian encoding of the rune's value,
// with trailing zero bytes stripped — the bytes committed to in the taproot
// reveal-script envelope so the protocol can bind an etching to its
// transaction without a direct signature over the name.
func (r Rune) Commitment() []byte {
	var buf [16]byte
	b := r.bi().Bytes() // big-endian, minimal
	// place big-endian bytes into the low end of buf, then reverse to LE
	copy(buf[16-len(b):], b)
	le := make([]byte, 16)
	for i := 0; i < 16; i++ {
		le[i] = buf[15-i]
	}
	end := len(le)
	for end > 0 && le[end-1] == 0 {
		end--
	}
	return le[:end]
}

// MinimumLength returns the smallest rune whose name has the given length —
// the first name of that length in the bijective ordering, i.e. "AAA...A".
func MinimumLength(length int) Rune {
	if length <= 0 {
		r, _ := ParseRune("")
		return r
	}
	r, err := ParseRune(strings.Repeat("A", length))
	if err != nil {
		panic(err)
	}
	return r
}

// Uint64LE is a convenience accessor used by tests and logging; it panics if
// the rune does not fit in 64 bits.
func (r Rune) Uint64LE() uint64 {
	if !r.bi().IsUint64() {
		panic("rune value does not fit in u64")
	}
	return r.bi().Uint64()
}
