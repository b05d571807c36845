package icpfee

import (
	"context"
	"errors"
	"testing"

	"github.com/Fantasim/runeidx/internal/config"
)

func TestChargeInsufficientBalance(t *testing.T) {
	l := NewMemoryLedger(map[string]uint64{"alice": 100})
	if err := l.Charge(context.Background(), "alice", 200); !errors.Is(err, config.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestChargeAndRefundRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(map[string]uint64{"alice": 1000})

	if err := l.Charge(ctx, "alice", 400); err != nil {
		t.Fatalf("Charge: %v", err)
	}
	bal, _ := l.Allowance(ctx, "alice")
	if bal != 600 {
		t.Fatalf("balance = %d, want 600", bal)
	}

	if err := l.Refund(ctx, "alice", 400); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	bal, _ = l.Allowance(ctx, "alice")
	if bal != 1000 {
		t.Fatalf("balance = %d, want 1000", bal)
	}
}
