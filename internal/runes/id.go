package runes

import (
	"fmt"
	"strconv"
	"strings"
)

// RuneId identifies an etching by the block and transaction index it was
// etched in. Block 0 is reserved, so RuneId{} is never a valid etched rune
// and is used as the zero value for "no etching".
type RuneId struct {
	Block uint64
	Tx    uint32
}

// String renders the id in the protocol's canonical "block:tx" form.
func (id RuneId) String() string {
	return fmt.Sprintf("%d:%d", id.Block, id.Tx)
}

// ParseRuneId parses a "block:tx" string.
func ParseRuneId(s string) (RuneId, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return RuneId{}, fmt.Errorf("invalid rune id %q: expected block:tx", s)
	}
	block, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return RuneId{}, fmt.Errorf("invalid rune id block %q: %w", parts[0], err)
	}
	tx, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return RuneId{}, fmt.Errorf("invalid rune id tx %q: %w", parts[1], err)
	}
	return RuneId{Block: block, Tx: uint32(tx)}, nil
}

// Delta computes the relative (block, tx) encoding used when an edict's id
// references the immediately preceding edict's id within the same
// runestone, per the compact edict wire format.
func (id RuneId) Delta(next RuneId) (blockDelta uint64, txDelta uint32, ok bool) {
	if next.Block < id.Block {
		return 0, 0, false
	}
	blockDelta = next.Block - id.Block
	if blockDelta == 0 {
		if next.Tx < id.Tx {
			return 0, 0, false
		}
		txDelta = next.Tx - id.Tx
	} else {
		txDelta = next.Tx
	}
	return blockDelta, txDelta, true
}

// Next applies a delta-encoded id relative to id.
func (id RuneId) Next(blockDelta uint64, txDelta uint32) RuneId {
	if blockDelta == 0 {
		return RuneId{Block: id.Block, Tx: id.Tx + txDelta}
	}
	return RuneId{Block: id.Block + blockDelta, Tx: txDelta}
}

// IsZero reports whether id is the zero RuneId.
func (id RuneId) IsZero() bool {
	return id.Block == 0 && id.Tx == 0
}

// Cmp orders ids by block then tx, the order runes are etched in and the
// order balances/entries are iterated in for deterministic output.
func (id RuneId) Cmp(o RuneId) int {
	if id.Block != o.Block {
		if id.Block < o.Block {
			return -1
		}
		return 1
	}
	if id.Tx != o.Tx {
		if id.Tx < o.Tx {
			return -1
		}
		return 1
	}
	return 0
}
