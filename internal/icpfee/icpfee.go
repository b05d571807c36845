// Package icpfee tracks the ICP-denominated fee allowance each caller of
// the etching orchestrator holds, the way the canister ledger would via
// ICRC-2 approvals. A local in-memory ledger stands in for the real ICP
// ledger canister call.
package icpfee

import (
	"context"
	"fmt"
	"sync"

	"github.com/Fantasim/runeidx/internal/config"
)

// Ledger debits and credits ICP-denominated fee allowances, in e8s.
type Ledger interface {
	// Allowance returns the remaining balance available to principal.
	Allowance(ctx context.Context, principal string) (uint64, error)
	// Charge debits feeE8s from principal's allowance, failing if the
	// balance is insufficient.
	Charge(ctx context.Context, principal string, feeE8s uint64) error
	// Refund credits feeE8s back to principal, used when an etching
	// request fails before any Bitcoin fee was spent.
	Refund(ctx context.Context, principal string, feeE8s uint64) error
}

// MemoryLedger is an in-memory Ledger for local development and tests.
type MemoryLedger struct {
	mu      sync.Mutex
	balance map[string]uint64
}

// NewMemoryLedger creates a ledger with the given starting balances.
func NewMemoryLedger(initial map[string]uint64) *MemoryLedger {
	balance := make(map[string]uint64, len(initial))
	for k, v := range initial {
		balance[k] = v
	}
	return &MemoryLedger{balance: balance}
}

func (l *MemoryLedger) Allowance(_ context.Context, principal string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance[principal], nil
}

func (l *MemoryLedger) Charge(_ context.Context, principal string, feeE8s uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balance[principal] < feeE8s {
		return fmt.Errorf("%w: principal %s has %d e8s, needs %d", config.ErrInsufficientBalance, principal, l.balance[principal], feeE8s)
	}
	l.balance[principal] -= feeE8s
	return nil
}

func (l *MemoryLedger) Refund(_ context.Context, principal string, feeE8s uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance[principal] += feeE8s
	return nil
}

// Credit adds to principal's balance, used by tests and by an operator
// top-up endpoint.
func (l *MemoryLedger) Credit(principal string, amountE8s uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance[principal] += amountE8s
}

var _ Ledger = (*MemoryLedger)(nil)
