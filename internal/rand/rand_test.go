package rand

import "testing"

func TestSource32ReturnsDistinctValues(t *testing.T) {
	a, err := Source32()
	if err != nil {
		t.Fatalf("Source32: %v", err)
	}
	b, err := Source32()
	if err != nil {
		t.Fatalf("Source32: %v", err)
	}
	if a == b {
		t.Fatal("expected two independent calls to differ")
	}
}
