package runes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Outpoint identifies a transaction output by txid and vout, the unit
// internal/store indexes rune balances against.
type Outpoint struct {
	Txid chainhash.Hash
	Vout uint32
}

// String renders the outpoint in the conventional "txid:vout" form.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.Txid.String(), o.Vout)
}

// ParseOutpoint parses a "txid:vout" string.
func ParseOutpoint(s string) (Outpoint, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Outpoint{}, fmt.Errorf("invalid outpoint %q: expected txid:vout", s)
	}
	h, err := chainhash.NewHashFromStr(parts[0])
	if err != nil {
		return Outpoint{}, fmt.Errorf("invalid outpoint txid %q: %w", parts[0], err)
	}
	vout, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Outpoint{}, fmt.Errorf("invalid outpoint vout %q: %w", parts[1], err)
	}
	return Outpoint{Txid: *h, Vout: uint32(vout)}, nil
}

// RuneBalance is a single rune's unit count held on one output, the row
// shape internal/store's balances table persists and internal/api's
// balances endpoint returns.
type RuneBalance struct {
	RuneId RuneId
	Amount Lot
}

// OutputBalances groups every RuneBalance held on a single outpoint, the
// shape get_rune_balances_for_outputs returns per requested output.
type OutputBalances struct {
	Outpoint Outpoint
	Balances []RuneBalance
}
