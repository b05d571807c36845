package runes

import "testing"

func TestRuneIdStringParseRoundTrip(t *testing.T) {
	id := RuneId{Block: 840000, Tx: 42}
	parsed, err := ParseRuneId(id.String())
	if err != nil {
		t.Fatal(err)
	}
	if parsed != id {
		t.Errorf("round trip mismatch: got %+v, want %+v", parsed, id)
	}
}

func TestRuneIdDeltaNextRoundTrip(t *testing.T) {
	base := RuneId{Block: 840000, Tx: 1}
	next := RuneId{Block: 840002, Tx: 3}
	blockDelta, txDelta, ok := base.Delta(next)
	if !ok {
		t.Fatal("expected delta to succeed for forward id")
	}
	if got := base.Next(blockDelta, txDelta); got != next {
		t.Errorf("Next(%d,%d) from %v = %v, want %v", blockDelta, txDelta, base, got, next)
	}
}

func TestRuneIdDeltaSameBlock(t *testing.T) {
	base := RuneId{Block: 840000, Tx: 1}
	next := RuneId{Block: 840000, Tx: 5}
	blockDelta, txDelta, ok := base.Delta(next)
	if !ok || blockDelta != 0 || txDelta != 4 {
		t.Fatalf("same-block delta = (%d,%d,%v), want (0,4,true)", blockDelta, txDelta, ok)
	}
}

func TestRuneIdDeltaRejectsBackwards(t *testing.T) {
	base := RuneId{Block: 840000, Tx: 5}
	next := RuneId{Block: 840000, Tx: 1}
	if _, _, ok := base.Delta(next); ok {
		t.Fatal("expected delta to fail for backwards id")
	}
}

func TestRuneIdCmp(t *testing.T) {
	a := RuneId{Block: 1, Tx: 9}
	b := RuneId{Block: 2, Tx: 0}
	if a.Cmp(b) >= 0 {
		t.Error("expected a < b")
	}
	if b.Cmp(a) <= 0 {
		t.Error("expected b > a")
	}
	if a.Cmp(a) != 0 {
		t.Error("expected a == a")
	}
}
