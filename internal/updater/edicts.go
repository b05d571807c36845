package updater

import (
	"github.com/btcsuite/btcd/wire"

	"github.com/Fantasim/runeidx/internal/runes"
	"github.com/Fantasim/runeidx/internal/runestone"
)

// applyEdicts allocates balances according to edicts, in declared order,
// mutating unallocated and allocated in place. etchedID is the RuneId the
// zero sentinel (RuneId{}) resolves to when this transaction admitted an
// etching; if it didn't, edicts referencing the sentinel are skipped.
func applyEdicts(edicts []runestone.Edict, etchedID runes.RuneId, unallocated map[runes.RuneId]runes.Lot, allocated []map[runes.RuneId]runes.Lot, msgTx *wire.MsgTx) {
	for _, edict := range edicts {
		id := edict.Id
		if id.IsZero() {
			if etchedID.IsZero() {
				continue
			}
			id = etchedID
		}

		balance, ok := unallocated[id]
		if !ok {
			continue
		}

		if int(edict.Output) == len(msgTx.TxOut) {
			applySpreadEdict(edict, id, balance, unallocated, allocated, msgTx)
			continue
		}

		outIdx := int(edict.Output)
		if outIdx >= len(msgTx.TxOut) {
			continue
		}
		amt := balance
		if !edict.Amount.IsZero() {
			amt = edict.Amount.Min(balance)
		}
		if amt.IsZero() {
			continue
		}
		addLot(allocated[outIdx], id, amt)
		unallocated[id] = balance.Sub(amt)
	}
}

// applySpreadEdict handles the output == len(tx.output) sentinel: spread
// balance across every non-OP_RETURN output. A zero edict amount divides
// balance evenly, handing the remainder one unit at a time to the first
// destinations in output-index order. A positive amount hands up to amount
// to each destination independently, subject to what's left of balance.
func applySpreadEdict(edict runestone.Edict, id runes.RuneId, balance runes.Lot, unallocated map[runes.RuneId]runes.Lot, allocated []map[runes.RuneId]runes.Lot, msgTx *wire.MsgTx) {
	destinations := nonOpReturnOutputs(msgTx)
	if len(destinations) == 0 {
		return
	}

	if edict.Amount.IsZero() {
		per, remainder := balance.DivMod(uint64(len(destinations)))
		for i, outIdx := range destinations {
			amt := per
			if uint64(i) < remainder {
				amt = amt.Add(runes.NewLot(1))
			}
			if amt.IsZero() {
				continue
			}
			addLot(allocated[outIdx], id, amt)
		}
		unallocated[id] = runes.ZeroLot()
		return
	}

	remaining := balance
	for _, outIdx := range destinations {
		amt := edict.Amount.Min(remaining)
		if amt.IsZero() {
			break
		}
		addLot(allocated[outIdx], id, amt)
		remaining = remaining.Sub(amt)
	}
	unallocated[id] = remaining
}
