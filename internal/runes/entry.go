package runes

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// Terms are the optional open-mint terms attached to an etching: how much
// each mint produces, how many mints are allowed, and the block-height or
// block-count window mints are valid within.
type Terms struct {
	Amount      *Lot    // rune units minted per call, nil if minting is closed
	Cap         *uint64 // maximum number of mint calls, nil for uncapped
	HeightStart *uint64 // absolute block height mint opens, inclusive
	HeightEnd   *uint64 // absolute block height mint closes, exclusive
	OffsetStart *uint64 // blocks after etching height mint opens
	OffsetEnd   *uint64 // blocks after etching height mint closes
}

// Mintable reports whether a mint at the given height is within the terms'
// height/offset windows, combining both the absolute and relative bounds the
// way the reference updater does: the tighter of the two applies.
func (t *Terms) Mintable(etchingHeight, height uint64) bool {
	if t == nil || t.Amount == nil {
		return false
	}
	start := t.startHeight(etchingHeight)
	if start != nil && height < *start {
		return false
	}
	end := t.endHeight(etchingHeight)
	if end != nil && height >= *end {
		return false
	}
	return true
}

func (t *Terms) startHeight(etchingHeight uint64) *uint64 {
	var candidates []uint64
	if t.HeightStart != nil {
		candidates = append(candidates, *t.HeightStart)
	}
	if t.OffsetStart != nil {
		candidates = append(candidates, etchingHeight+*t.OffsetStart)
	}
	return maxOf(candidates)
}

func (t *Terms) endHeight(etchingHeight uint64) *uint64 {
	var candidates []uint64
	if t.HeightEnd != nil {
		candidates = append(candidates, *t.HeightEnd)
	}
	if t.OffsetEnd != nil {
		candidates = append(candidates, etchingHeight+*t.OffsetEnd)
	}
	return minOf(candidates)
}

func maxOf(vs []uint64) *uint64 {
	if len(vs) == 0 {
		return nil
	}
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return &m
}

func minOf(vs []uint64) *uint64 {
	if len(vs) == 0 {
		return nil
	}
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return &m
}

// RuneEntry is the indexed, persistent record for one etched rune: its
// identity, supply accounting, and open-mint terms. It is the row stored in
// internal/store under the rune_entries table and rebuilt incrementally by
// internal/updater as blocks are processed.
type RuneEntry struct {
	RuneId       RuneId
	SpacedRune   SpacedRune
	Divisibility uint8
	Symbol       rune // display symbol, 0 if unset (defaults to '¤' at render time)
	Premine      Lot
	Terms        *Terms
	Mints        uint64 // number of completed mint calls so far
	Burned       Lot
	Turbo        bool // opts into future protocol upgrades without re-etching
	Etching      chainhash.Hash
	Number       uint64 // sequential index among all runes etched so far
}

// SupplyCap returns the maximum possible total supply, or nil if uncapped.
func (e *RuneEntry) SupplyCap() *Lot {
	premine := e.Premine
	if e.Terms == nil || e.Terms.Cap == nil || e.Terms.Amount == nil {
		return &premine
	}
	total := e.Terms.Amount.BigInt()
	total.Mul(total, bigFromUint64(*e.Terms.Cap))
	cap, err := LotFromBigInt(total)
	if err != nil {
		// supply overflow past u128: treat as uncapped rather than fail indexing.
		return nil
	}
	sum := premine.Add(cap)
	return &sum
}
