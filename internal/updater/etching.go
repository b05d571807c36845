package updater

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Fantasim/runeidx/internal/config"
	"github.com/Fantasim/runeidx/internal/runes"
	"github.com/Fantasim/runeidx/internal/runestone"
)

// tryEtch decides whether txIndex's transaction admits a new rune and, if
// so, creates and persists its RuneEntry. It returns the zero RuneId and a
// nil entry when no etching is admitted — a normal outcome, never an error.
func (u *RuneUpdater) tryEtch(ctx context.Context, dbtx *sql.Tx, rs *runestone.Runestone, cenotaph *runestone.Cenotaph, txIndex int, txid chainhash.Hash, msgTx *wire.MsgTx) (runes.RuneId, *runes.RuneEntry, error) {
	var fields *runestone.Etching
	var explicit *runes.Rune

	switch {
	case rs != nil && rs.Etching != nil:
		fields = rs.Etching
		explicit = rs.Etching.Rune
	case cenotaph != nil && cenotaph.Etching != nil:
		explicit = cenotaph.Etching
	default:
		return runes.RuneId{}, nil, nil
	}

	var rn runes.Rune
	if explicit != nil {
		rn = *explicit
		if rn.Cmp(u.minimum) < 0 {
			return runes.RuneId{}, nil, nil
		}
		if rn.IsReserved() {
			return runes.RuneId{}, nil, nil
		}
		existing, err := u.store.GetRuneEntryByNameTx(dbtx, rn)
		if err != nil {
			return runes.RuneId{}, nil, err
		}
		if existing != nil {
			return runes.RuneId{}, nil, nil
		}
		committed, err := u.checkCommitment(ctx, rn, msgTx)
		if err != nil {
			return runes.RuneId{}, nil, err
		}
		if !committed {
			return runes.RuneId{}, nil, nil
		}
	} else {
		rn = runes.Reserved(u.height, uint32(txIndex))
	}

	id := runes.RuneId{Block: u.height, Tx: uint32(txIndex)}
	entry := &runes.RuneEntry{
		RuneId:     id,
		SpacedRune: runes.SpacedRune{Rune: rn},
		Etching:    txid,
		Premine:    runes.ZeroLot(),
		Burned:     runes.ZeroLot(),
		Number:     u.nextNumber,
	}
	if fields != nil {
		entry.SpacedRune.Spacers = fields.Spacers
		if fields.Divisibility != nil {
			entry.Divisibility = *fields.Divisibility
		}
		if fields.Symbol != nil {
			entry.Symbol = *fields.Symbol
		}
		if fields.Premine != nil {
			entry.Premine = *fields.Premine
		}
		entry.Terms = fields.Terms
		entry.Turbo = fields.Turbo
	}

	if err := u.store.CreateRuneEntry(dbtx, entry); err != nil {
		return runes.RuneId{}, nil, fmt.Errorf("create rune entry %s: %w", id, err)
	}
	u.nextNumber++

	return id, entry, nil
}

// checkCommitment implements the taproot commitment check from the
// etching-admission rule: some input's witness must push rune.Commitment()
// as tapscript pushdata, the output that input spends must be a v1 taproot
// output, and that output's containing block must be at least
// config.CommitConfirmations deep relative to the block being processed.
// RPC lookup failures are treated as "not committing" rather than fatal —
// a transient provider outage shouldn't admit or reject an etching
// differently than the chain itself would.
func (u *RuneUpdater) checkCommitment(ctx context.Context, r runes.Rune, msgTx *wire.MsgTx) (bool, error) {
	commitment := r.Commitment()
	if len(commitment) == 0 {
		return false, nil
	}

	for _, in := range msgTx.TxIn {
		if !containsCommitmentPush(in.Witness, commitment) {
			continue
		}

		info, err := u.rpc.GetRawTransactionInfo(ctx, in.PreviousOutPoint.Hash.String())
		if err != nil || info == nil || info.BlockHeight < 0 {
			continue
		}
		depth := u.height - uint64(info.BlockHeight) + 1
		if depth < config.CommitConfirmations {
			continue
		}

		prevTx, err := decodeRawTx(info.Hex)
		if err != nil {
			continue
		}
		vout := in.PreviousOutPoint.Index
		if int(vout) >= len(prevTx.TxOut) {
			continue
		}
		if txscript.GetScriptClass(prevTx.TxOut[vout].PkScript) != txscript.WitnessV1TaprootTy {
			continue
		}

		return true, nil
	}
	return false, nil
}

// containsCommitmentPush reports whether any element of witness, read as a
// script, pushes exactly commitment — the tapscript redeem script of a
// script-path spend is itself a witness stack element, so this catches the
// inscription envelope's rune-tag pushdata without needing to know the
// leaf's exact structure.
func containsCommitmentPush(witness wire.TxWitness, commitment []byte) bool {
	for _, item := range witness {
		tok := txscript.MakeScriptTokenizer(0, item)
		for tok.Next() {
			if bytes.Equal(tok.Data(), commitment) {
				return true
			}
		}
	}
	return false
}
