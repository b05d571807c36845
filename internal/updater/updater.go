// Package updater implements the Rune protocol's per-transaction ledger
// math: deciphering the runestone embedded in a transaction, folding spent
// outputs into an unallocated pool, applying mints and edicts, admitting
// new etchings, and burning whatever a cenotaph or a dangling leftover
// balance can't find a home for. It is the one piece of the indexer that
// mutates internal/store's rune tables; everything else only reads them.
package updater

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Fantasim/runeidx/internal/bitcoinrpc"
	"github.com/Fantasim/runeidx/internal/config"
	"github.com/Fantasim/runeidx/internal/runes"
	"github.com/Fantasim/runeidx/internal/runestone"
	"github.com/Fantasim/runeidx/internal/store"
)

// RuneUpdater applies one block's worth of transactions to the store, in
// the consensus-relevant order the protocol defines. A fresh RuneUpdater
// must be constructed per block: it accumulates burns in memory and only
// flushes them in Update, and its admission checks are only valid against
// the minimum name length at the height it was built for.
type RuneUpdater struct {
	store  *store.Store
	rpc    bitcoinrpc.Client
	height uint64

	minimum    runes.Rune
	nextNumber uint64
	burned     map[runes.RuneId]runes.Lot
}

// NewRuneUpdater builds a RuneUpdater for the block at height on network,
// seeded with the rune count already indexed (the next etching's sequential
// Number) as of the start of the block.
func NewRuneUpdater(s *store.Store, rpc bitcoinrpc.Client, network runes.Network, height, startingNumber uint64) *RuneUpdater {
	return &RuneUpdater{
		store:      s,
		rpc:        rpc,
		height:     height,
		minimum:    runes.MinimumAtHeight(network, height),
		nextNumber: startingNumber,
		burned:     make(map[runes.RuneId]runes.Lot),
	}
}

// NetworkFromParams maps a chaincfg.Params to the runes.Network the name
// halving schedule is evaluated against.
func NetworkFromParams(net *chaincfg.Params) runes.Network {
	switch net.Name {
	case chaincfg.TestNet3Params.Name:
		return runes.Testnet
	case chaincfg.SigNetParams.Name:
		return runes.Signet
	case chaincfg.RegressionNetParams.Name:
		return runes.Regtest
	default:
		return runes.Mainnet
	}
}

// IndexBlock processes every transaction in txs in order and flushes the
// block's accumulated burns. Callers are expected to run this inside a
// single store transaction (dbtx) spanning the whole block, alongside a
// store.SetCursor call, so a crash mid-block leaves no partial state.
func (u *RuneUpdater) IndexBlock(ctx context.Context, dbtx *sql.Tx, txs []*wire.MsgTx) error {
	for i, tx := range txs {
		if err := u.ProcessTransaction(ctx, dbtx, i, tx); err != nil {
			return fmt.Errorf("process tx %d (%s): %w", i, tx.TxHash(), err)
		}
	}
	return u.Update(dbtx)
}

// ProcessTransaction runs the full unallocated -> allocated -> burned
// pipeline for one transaction: steps 1-8 of the per-transaction ledger
// algorithm. txIndex is the transaction's position within the block (used
// both as the RuneId.Tx for any etching admitted here, and for the
// reserved-name synthesis when no explicit name is given).
func (u *RuneUpdater) ProcessTransaction(ctx context.Context, dbtx *sql.Tx, txIndex int, msgTx *wire.MsgTx) error {
	txid := msgTx.TxHash()

	artifact, err := runestone.Decipher(msgTx)
	if err != nil {
		return fmt.Errorf("decipher runestone: %w", err)
	}
	var rs *runestone.Runestone
	var cenotaph *runestone.Cenotaph
	if artifact != nil {
		rs = artifact.Runestone
		cenotaph = artifact.Cenotaph
	}

	unallocated, err := u.collectUnallocated(dbtx, msgTx)
	if err != nil {
		return err
	}

	allocated := make([]map[runes.RuneId]runes.Lot, len(msgTx.TxOut))
	for i := range allocated {
		allocated[i] = make(map[runes.RuneId]runes.Lot)
	}

	if rs != nil && rs.Mint != nil {
		if err := u.tryMint(dbtx, *rs.Mint, unallocated); err != nil {
			return fmt.Errorf("mint step: %w", err)
		}
	}

	etchedID, entry, err := u.tryEtch(ctx, dbtx, rs, cenotaph, txIndex, txid, msgTx)
	if err != nil {
		return fmt.Errorf("etching admission: %w", err)
	}
	if entry != nil && !entry.Premine.IsZero() {
		addLot(unallocated, etchedID, entry.Premine)
	}

	if rs != nil {
		applyEdicts(rs.Edicts, etchedID, unallocated, allocated, msgTx)
	}

	if cenotaph != nil {
		for id, amt := range unallocated {
			u.addBurn(id, amt)
		}
	} else {
		u.assignLeftovers(rs, unallocated, allocated, msgTx)
	}

	return u.persistAllocations(dbtx, msgTx, allocated)
}

// collectUnallocated folds every input's previously-recorded balances into
// the unallocated pool, removing each outpoint's record as it is consumed
// so it never double-counts a later reference to the same output.
func (u *RuneUpdater) collectUnallocated(dbtx *sql.Tx, msgTx *wire.MsgTx) (map[runes.RuneId]runes.Lot, error) {
	unallocated := make(map[runes.RuneId]runes.Lot)
	for _, in := range msgTx.TxIn {
		op := runes.Outpoint{Txid: in.PreviousOutPoint.Hash, Vout: in.PreviousOutPoint.Index}
		balances, err := u.store.GetOutpointBalancesTx(dbtx, op)
		if err != nil {
			return nil, fmt.Errorf("load unallocated balances for %s: %w", op, err)
		}
		if len(balances) == 0 {
			continue
		}
		if err := u.store.DeleteOutpointBalances(dbtx, op); err != nil {
			return nil, fmt.Errorf("clear spent outpoint %s: %w", op, err)
		}
		if err := u.store.DeleteOutpointHeight(dbtx, op); err != nil {
			return nil, fmt.Errorf("clear spent outpoint height %s: %w", op, err)
		}
		for _, b := range balances {
			addLot(unallocated, b.RuneId, b.Amount)
		}
	}
	return unallocated, nil
}

// assignLeftovers sends whatever remains unallocated after mint/etch/edicts
// to the runestone's declared pointer output, the first non-OP_RETURN
// output if none was declared, or burns it if neither exists.
func (u *RuneUpdater) assignLeftovers(rs *runestone.Runestone, unallocated map[runes.RuneId]runes.Lot, allocated []map[runes.RuneId]runes.Lot, msgTx *wire.MsgTx) {
	pointerIdx := firstNonOpReturn(msgTx)
	if rs != nil && rs.Pointer != nil {
		pointerIdx = int(*rs.Pointer)
	}
	for id, amt := range unallocated {
		if amt.IsZero() {
			continue
		}
		if pointerIdx >= 0 {
			addLot(allocated[pointerIdx], id, amt)
		} else {
			u.addBurn(id, amt)
		}
	}
}

// persistAllocations writes each output's final allocation to the store,
// redirecting anything landing on an OP_RETURN output to burned instead.
func (u *RuneUpdater) persistAllocations(dbtx *sql.Tx, msgTx *wire.MsgTx, allocated []map[runes.RuneId]runes.Lot) error {
	hash := msgTx.TxHash()
	for outIdx, balMap := range allocated {
		if len(balMap) == 0 {
			continue
		}
		if txscript.GetScriptClass(msgTx.TxOut[outIdx].PkScript) == txscript.NullDataTy {
			for id, amt := range balMap {
				u.addBurn(id, amt)
			}
			continue
		}

		var balances []runes.RuneBalance
		for id, amt := range balMap {
			if amt.IsZero() {
				continue
			}
			balances = append(balances, runes.RuneBalance{RuneId: id, Amount: amt})
		}
		if len(balances) == 0 {
			continue
		}
		sort.Slice(balances, func(i, j int) bool { return balances[i].RuneId.Cmp(balances[j].RuneId) < 0 })

		op := runes.Outpoint{Txid: hash, Vout: uint32(outIdx)}
		if err := u.store.PutOutpointBalances(dbtx, op, balances); err != nil {
			return fmt.Errorf("persist allocated balances for %s: %w", op, err)
		}
		if err := u.store.PutOutpointHeight(dbtx, op, u.height); err != nil {
			return fmt.Errorf("persist height for %s: %w", op, err)
		}
	}
	return nil
}

// addBurn accumulates amt into the block-scoped burn total for id, flushed
// to the store's rune entries at end of block by Update.
func (u *RuneUpdater) addBurn(id runes.RuneId, amt runes.Lot) {
	if amt.IsZero() {
		return
	}
	cur, ok := u.burned[id]
	if !ok {
		cur = runes.ZeroLot()
	}
	u.burned[id] = cur.Add(amt)
}

// Update flushes the block's accumulated burns into each affected rune
// entry's persistent burned total. An arithmetic overflow here is fatal:
// the index has become inconsistent and block processing must stop.
func (u *RuneUpdater) Update(dbtx *sql.Tx) error {
	ids := make([]runes.RuneId, 0, len(u.burned))
	for id := range u.burned {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })

	for _, id := range ids {
		amt := u.burned[id]
		entry, err := u.store.GetRuneEntryTx(dbtx, id)
		if err != nil {
			return fmt.Errorf("load rune entry %s for burn: %w", id, err)
		}
		if entry == nil {
			slog.Error("burn references unknown rune entry", "rune_id", id.String(), "amount", amt.N())
			continue
		}
		newBurned, err := entry.Burned.CheckedAdd(amt)
		if err != nil {
			return fmt.Errorf("%w: %v", config.ErrArithmeticOverflow, err)
		}
		if err := u.store.UpdateRuneEntrySupply(dbtx, id, entry.Mints, newBurned); err != nil {
			return fmt.Errorf("persist burn for %s: %w", id, err)
		}
	}
	return nil
}

func addLot(m map[runes.RuneId]runes.Lot, id runes.RuneId, amt runes.Lot) {
	if amt.IsZero() {
		return
	}
	cur, ok := m[id]
	if !ok {
		cur = runes.ZeroLot()
	}
	m[id] = cur.Add(amt)
}

func nonOpReturnOutputs(msgTx *wire.MsgTx) []int {
	var idxs []int
	for i, out := range msgTx.TxOut {
		if txscript.GetScriptClass(out.PkScript) == txscript.NullDataTy {
			continue
		}
		idxs = append(idxs, i)
	}
	return idxs
}

func firstNonOpReturn(msgTx *wire.MsgTx) int {
	for i, out := range msgTx.TxOut {
		if txscript.GetScriptClass(out.PkScript) != txscript.NullDataTy {
			return i
		}
	}
	return -1
}

func decodeRawTx(hexStr string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("decode raw tx hex: %w", err)
	}
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("deserialize raw tx: %w", err)
	}
	return &tx, nil
}
