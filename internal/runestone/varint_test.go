package runestone

import (
	"math/big"
	"testing"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(127),
		big.NewInt(128),
		big.NewInt(300),
		new(big.Int).Lsh(big.NewInt(1), 100),
		maxU128Test(),
	}
	for _, v := range values {
		buf := EncodeUvarint(nil, v)
		got, consumed, err := DecodeUvarint(buf, 0)
		if err != nil {
			t.Fatalf("decode %s: %v", v, err)
		}
		if consumed != len(buf) {
			t.Errorf("consumed %d, want %d for %s", consumed, len(buf), v)
		}
		if got.Cmp(v) != 0 {
			t.Errorf("round trip %s: got %s", v, got)
		}
	}
}

func maxU128Test() *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
}

func TestDecodeAllUvarintsRejectsTruncation(t *testing.T) {
	if _, err := DecodeAllUvarints([]byte{0x80}); err == nil {
		t.Fatal("expected error for truncated varint")
	}
}

func TestDecodeAllUvarintsMultiple(t *testing.T) {
	var buf []byte
	buf = EncodeUvarint(buf, big.NewInt(5))
	buf = EncodeUvarint(buf, big.NewInt(300))
	buf = EncodeUvarint(buf, big.NewInt(0))
	ints, err := DecodeAllUvarints(buf)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{5, 300, 0}
	if len(ints) != len(want) {
		t.Fatalf("got %d integers, want %d", len(ints), len(want))
	}
	for i, w := range want {
		if ints[i].Int64() != w {
			t.Errorf("ints[%d] = %s, want %d", i, ints[i], w)
		}
	}
}
