// Package runestone implements the Rune protocol's OP_RETURN wire format:
// encoding and deciphering the tagged integer stream that carries an
// etching, its edicts, and the optional mint/pointer fields.
package runestone

import (
	"fmt"
	"math/big"
)

// EncodeUvarint appends n's LEB128 encoding to buf. Runestone integers are
// u128-capable, so the encoding operates on big.Int rather than a fixed
// machine word.
func EncodeUvarint(buf []byte, n *big.Int) []byte {
	v := new(big.Int).Set(n)
	mask := big.NewInt(0x7f)
	for {
		b := new(big.Int).And(v, mask).Uint64()
		v.Rsh(v, 7)
		if v.Sign() == 0 {
			buf = append(buf, byte(b))
			return buf
		}
		buf = append(buf, byte(b)|0x80)
	}
}

// DecodeUvarint reads one LEB128-encoded integer from buf starting at
// offset, returning the value and the number of bytes consumed.
func DecodeUvarint(buf []byte, offset int) (*big.Int, int, error) {
	n := new(big.Int)
	shift := uint(0)
	for i := offset; i < len(buf); i++ {
		b := buf[i]
		if shift >= 128 {
			return nil, 0, fmt.Errorf("varint too long at offset %d", offset)
		}
		chunk := new(big.Int).SetUint64(uint64(b & 0x7f))
		chunk.Lsh(chunk, shift)
		n.Or(n, chunk)
		if b&0x80 == 0 {
			return n, i - offset + 1, nil
		}
		shift += 7
	}
	return nil, 0, fmt.Errorf("truncated varint at offset %d", offset)
}

// DecodeAllUvarints decodes buf fully into a slice of integers, erroring if
// any trailing partial varint remains.
func DecodeAllUvarints(buf []byte) ([]*big.Int, error) {
	var out []*big.Int
	offset := 0
	for offset < len(buf) {
		n, consumed, err := DecodeUvarint(buf, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
		offset += consumed
	}
	return out, nil
}
