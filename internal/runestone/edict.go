package runestone

import (
	"fmt"
	"math/big"

	"github.com/Fantasim/runeidx/internal/runes"
)

// Edict is one runestone transfer directive: move amount units of id to
// output (output == len(tx.TxOut) is the "spread across every non-OP_RETURN
// output" sentinel).
type Edict struct {
	Id     runes.RuneId
	Amount runes.Lot
	Output uint32
}

// decodeEdicts reads the Body field's flat integer list as a sequence of
// delta-encoded (id_block, id_tx, amount, output) quadruples. Any trailing
// partial quadruple is a cenotaph-triggering flaw.
func decodeEdicts(ints []*big.Int) ([]Edict, error) {
	if len(ints)%4 != 0 {
		return nil, fmt.Errorf("trailing integers in edict list: %d extra", len(ints)%4)
	}
	var edicts []Edict
	id := runes.RuneId{}
	for i := 0; i < len(ints); i += 4 {
		blockDelta := ints[i]
		txDelta := ints[i+1]
		amount := ints[i+2]
		output := ints[i+3]

		if !blockDelta.IsUint64() || !txDelta.IsUint64() {
			return nil, fmt.Errorf("edict id delta out of range")
		}
		if !output.IsUint64() {
			return nil, fmt.Errorf("edict output out of range")
		}

		var next runes.RuneId
		if blockDelta.Sign() == 0 {
			next = runes.RuneId{Block: id.Block, Tx: id.Tx + uint32(txDelta.Uint64())}
		} else {
			next = runes.RuneId{Block: id.Block + blockDelta.Uint64(), Tx: uint32(txDelta.Uint64())}
		}
		id = next

		lot, err := runes.LotFromBigInt(amount)
		if err != nil {
			return nil, fmt.Errorf("edict amount: %w", err)
		}

		edicts = append(edicts, Edict{
			Id:     id,
			Amount: lot,
			Output: uint32(output.Uint64()),
		})
	}
	return edicts, nil
}

// encodeEdicts appends the delta-encoded quadruples for edicts, in the
// order given, to buf. Edicts must already be sorted by Id for the deltas
// to stay non-negative, matching the encoder's contract on the caller.
func encodeEdicts(buf []byte, edicts []Edict) []byte {
	id := runes.RuneId{}
	for _, e := range edicts {
		blockDelta, txDelta, ok := id.Delta(e.Id)
		if !ok {
			// Caller violated the sorted-ascending contract; encode a
			// zero delta rather than panic, so encoding never corrupts
			// unrelated edicts.
			blockDelta, txDelta = 0, 0
		}
		buf = EncodeUvarint(buf, new(big.Int).SetUint64(blockDelta))
		buf = EncodeUvarint(buf, new(big.Int).SetUint64(uint64(txDelta)))
		buf = EncodeUvarint(buf, e.Amount.BigInt())
		buf = EncodeUvarint(buf, new(big.Int).SetUint64(uint64(e.Output)))
		id = e.Id
	}
	return buf
}
