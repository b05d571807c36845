package etching

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/Fantasim/runeidx/internal/config"
	"github.com/Fantasim/runeidx/internal/inscription"
	"github.com/Fantasim/runeidx/internal/store"
)

// requestEtchingGuardKey is the single key RequestEtching acquires — the
// entry point is one-in-flight for the whole process, never one per rune
// name or caller.
const requestEtchingGuardKey = "request_etching"

// RequestEtching validates args, builds and signs the commit/reveal pair,
// submits the commit transaction, and records the request. It is
// serialized process-wide by RequestEtchingGuard: a second call for any
// name while the first is still in flight fails immediately with
// config.ErrGuardBusy rather than queueing.
//
// On success it returns the commit transaction's txid — the request is
// now in EtchingStateCommitSent and will be advanced toward reveal by the
// reconciler. On failure, any fee UTXOs reserved for the attempt are
// returned to the pool and no request row is left behind.
func (e *EtchingState) RequestEtching(ctx context.Context, args *inscription.EtchingArgs, principal string) (string, error) {
	release, err := e.reqGuard.Acquire(requestEtchingGuardKey)
	if err != nil {
		return "", err
	}
	defer release()

	if bal, err := e.ledger.Allowance(ctx, principal); err != nil {
		return "", fmt.Errorf("check fee allowance: %w", err)
	} else if bal < e.etchingFeeE8s {
		return "", fmt.Errorf("%w: principal %s has %d e8s, needs %d", config.ErrInsufficientBalance, principal, bal, e.etchingFeeE8s)
	}

	revealVBytes, err := inscription.EstimateRevealVBytes(args, e.net)
	if err != nil {
		return "", fmt.Errorf("estimate reveal size: %w", err)
	}
	fees := inscription.Fees{RevealFee: revealVBytes * e.feeRateHigh}
	fees.CommitFee = inscription.EstimateCommitVBytes(1) * e.feeRateHigh

	required := fees.RevealBalance() + fees.CommitFee
	reserved, err := e.store.ReserveFeeUTXOs(required)
	if err != nil {
		return "", fmt.Errorf("reserve fee UTXOs: %w", err)
	}
	if len(reserved) > 1 {
		// the vbyte estimate above assumed a single input; a multi-UTXO
		// selection needs the commit fee recomputed against the true
		// input count before it's accurate.
		fees.CommitFee = inscription.EstimateCommitVBytes(len(reserved)) * e.feeRateHigh
		required = fees.RevealBalance() + fees.CommitFee
		if sum(reserved) < required {
			e.store.ReleaseFeeUTXOs(reserved)
			return "", fmt.Errorf("%w: reserved %d sats across %d inputs, need %d", config.ErrInsufficientUTXO, sum(reserved), len(reserved), required)
		}
	}

	utxos, err := toInscriptionUTXOs(reserved)
	if err != nil {
		e.store.ReleaseFeeUTXOs(reserved)
		return "", fmt.Errorf("decode reserved fee UTXOs: %w", err)
	}

	result, err := inscription.Build(ctx, args, utxos, fees, e.signer, e.net)
	if err != nil {
		e.store.ReleaseFeeUTXOs(reserved)
		return "", fmt.Errorf("build etching transactions: %w", err)
	}

	commitHex, err := serializeTx(result.CommitTx)
	if err != nil {
		e.store.ReleaseFeeUTXOs(reserved)
		return "", fmt.Errorf("serialize commit transaction: %w", err)
	}
	revealHex, err := serializeTx(result.RevealTx)
	if err != nil {
		e.store.ReleaseFeeUTXOs(reserved)
		return "", fmt.Errorf("serialize reveal transaction: %w", err)
	}

	commitTxid := result.CommitTx.TxHash().String()
	req := &store.EtchingRequest{
		CommitTxid:     commitTxid,
		Rune:           args.RuneName,
		Principal:      principal,
		State:          store.EtchingStateCommitPending,
		FeeE8sCharged:  e.etchingFeeE8s,
		TaprootAddress: result.TaprootAddress,
		RevealTxHex:    revealHex,
	}
	if err := e.store.CreateEtchingRequest(req); err != nil {
		e.store.ReleaseFeeUTXOs(reserved)
		return "", fmt.Errorf("record etching request: %w", err)
	}

	if _, err := e.rpc.SendTransaction(ctx, commitHex); err != nil {
		e.store.ReleaseFeeUTXOs(reserved)
		e.store.UpdateEtchingRequest(commitTxid, store.EtchingStateFailed, "", err.Error())
		return "", fmt.Errorf("%w: %v", config.ErrBitcoinRPCFailed, err)
	}

	if err := e.ledger.Charge(ctx, principal, e.etchingFeeE8s); err != nil {
		// The commit is already broadcast and irreversible; the fee debit
		// failing here is logged on the request but does not unwind it.
		e.store.UpdateEtchingRequest(commitTxid, store.EtchingStateCommitSent, "", fmt.Sprintf("fee charge failed: %v", err))
		return commitTxid, nil
	}

	if change := changeUTXO(result.CommitTx, commitTxid); change != nil {
		e.store.PutFeeUTXOs([]store.FeeUTXO{*change})
	}

	if err := e.store.UpdateEtchingRequest(commitTxid, store.EtchingStateCommitSent, "", ""); err != nil {
		return "", fmt.Errorf("mark request commit_sent: %w", err)
	}

	return commitTxid, nil
}

func sum(utxos []store.FeeUTXO) int64 {
	var total int64
	for _, u := range utxos {
		total += u.Value
	}
	return total
}

func toInscriptionUTXOs(utxos []store.FeeUTXO) ([]inscription.UTXO, error) {
	out := make([]inscription.UTXO, len(utxos))
	for i, u := range utxos {
		hash, err := chainhash.NewHashFromStr(u.Txid)
		if err != nil {
			return nil, fmt.Errorf("parse fee UTXO txid %q: %w", u.Txid, err)
		}
		out[i] = inscription.UTXO{Txid: *hash, Vout: u.Vout, Value: u.Value}
	}
	return out, nil
}

// changeUTXO returns the commit transaction's change output, if any, as a
// fresh fee UTXO — BuildCommitTransaction appends it as output 1 only
// when change >= config.PostageSats.
func changeUTXO(commitTx *wire.MsgTx, commitTxid string) *store.FeeUTXO {
	if len(commitTx.TxOut) < 2 {
		return nil
	}
	return &store.FeeUTXO{Txid: commitTxid, Vout: 1, Value: commitTx.TxOut[1].Value}
}

func serializeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}
