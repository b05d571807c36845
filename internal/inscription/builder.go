package inscription

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Fantasim/runeidx/internal/config"
	"github.com/Fantasim/runeidx/internal/signer"
)

// UTXO is a spendable fee input, independent of internal/store's row shape
// so this package doesn't need to know how the pool is persisted.
type UTXO struct {
	Txid  chainhash.Hash
	Vout  uint32
	Value int64
}

// Fees are the sat amounts the commit and reveal transactions must carry,
// computed from a fee rate and the vbyte estimate.
type Fees struct {
	CommitFee int64
	RevealFee int64
}

// RevealBalance is the amount the commit transaction's taproot output must
// carry: the reveal transaction's own fee plus two postage-sized outputs,
// per the reference fee calculator.
func (f Fees) RevealBalance() int64 {
	return f.RevealFee + config.PostageSats*2
}

// EstimateCommitVBytes applies the reference formula directly: vbyte cost
// scales linearly with input count once the fixed overhead is known, so no
// dummy transaction needs to be built to size the commit side.
func EstimateCommitVBytes(inputCount int) int64 {
	return int64(inputCount)*config.InputSizeVBytes + config.FixedCommitTxVBytes
}

// txVSize computes a transaction's virtual size the standard way: weight is
// 3x the stripped (non-witness) size plus the full serialized size, and
// vsize rounds that weight up to the nearest whole vbyte.
func txVSize(tx *wire.MsgTx) int64 {
	stripped := int64(tx.SerializeSizeStripped())
	full := int64(tx.SerializeSize())
	weight := stripped*3 + full
	return (weight + 3) / 4
}

// BuildCommitTransaction spends utxos (all belonging to senderAddress) to a
// single P2TR output at taprootAddr carrying revealBalance, with any
// leftover returned to senderAddress as change. Returns
// config.ErrInsufficientUTXO if the inputs don't cover revealBalance+commitFee.
func BuildCommitTransaction(utxos []UTXO, senderAddress, taprootAddr btcutil.Address, revealBalance, commitFee int64) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(wire.TxVersion)

	var total int64
	for _, u := range utxos {
		tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: u.Txid, Index: u.Vout}, nil, nil))
		total += u.Value
	}

	required := revealBalance + commitFee
	if total < required {
		return nil, fmt.Errorf("%w: have %d sats, need %d", config.ErrInsufficientUTXO, total, required)
	}

	taprootScript, err := txscript.PayToAddrScript(taprootAddr)
	if err != nil {
		return nil, fmt.Errorf("build taproot output script: %w", err)
	}
	tx.AddTxOut(wire.NewTxOut(revealBalance, taprootScript))

	if change := total - required; change >= config.PostageSats {
		senderScript, err := txscript.PayToAddrScript(senderAddress)
		if err != nil {
			return nil, fmt.Errorf("build change output script: %w", err)
		}
		tx.AddTxOut(wire.NewTxOut(change, senderScript))
	}

	return tx, nil
}

// SignCommitTransaction signs every input of tx with s, assuming all inputs
// spend the same P2WPKH script (the etching account's single address) — the
// BIP-143 sighash the reference wallet computes via p2wpkh_signature_hash.
func SignCommitTransaction(ctx context.Context, tx *wire.MsgTx, utxos []UTXO, senderScript []byte, s signer.Signer) error {
	prevOuts := txscript.NewMultiPrevOutFetcher(make(map[wire.OutPoint]*wire.TxOut, len(utxos)))
	for _, u := range utxos {
		prevOuts.AddPrevOut(wire.OutPoint{Hash: u.Txid, Index: u.Vout}, &wire.TxOut{Value: u.Value, PkScript: senderScript})
	}
	sigHashes := txscript.NewTxSigHashes(tx, prevOuts)

	for i, u := range utxos {
		hash, err := txscript.CalcWitnessSigHash(senderScript, sigHashes, txscript.SigHashAll, tx, i, u.Value)
		if err != nil {
			return fmt.Errorf("compute commit sighash for input %d: %w", i, err)
		}
		var digest [32]byte
		copy(digest[:], hash)

		der, err := s.SignECDSA(ctx, digest)
		if err != nil {
			return fmt.Errorf("sign commit input %d: %w", i, err)
		}

		tx.TxIn[i].Witness = wire.TxWitness{
			append(der, byte(txscript.SigHashAll)),
			s.PublicKey(),
		}
	}
	return nil
}

// BuildRevealTransaction spends the commit transaction's taproot output,
// carrying the runestone (OP_RETURN output) and crediting the premine
// receiver with postage.
func BuildRevealTransaction(input UTXO, runestoneScript []byte, premineReceiver btcutil.Address, postage int64) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: input.Txid, Index: input.Vout}, nil, nil))

	tx.AddTxOut(wire.NewTxOut(0, runestoneScript))

	recvScript, err := txscript.PayToAddrScript(premineReceiver)
	if err != nil {
		return nil, fmt.Errorf("build premine receiver script: %w", err)
	}
	tx.AddTxOut(wire.NewTxOut(postage, recvScript))

	return tx, nil
}

// SignRevealTransaction signs the reveal transaction's single taproot
// script-path input with the ephemeral key taproot.PrivateKey holds —
// that key is never sent through the threshold signer, matching the
// reference MixSigner's local Schnorr signing path. inputAmount is the
// value of the commit transaction's taproot output being spent.
func SignRevealTransaction(tx *wire.MsgTx, taproot *TaprootPayload, inputAmount int64) error {
	pkScript, err := txscript.PayToAddrScript(taproot.Address)
	if err != nil {
		return fmt.Errorf("build taproot prevout script: %w", err)
	}

	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(pkScript, inputAmount)
	sigHashes := txscript.NewTxSigHashes(tx, prevOutFetcher)
	leaf := txscript.NewBaseTapLeaf(taproot.RedeemScript)

	hash, err := txscript.CalcTapscriptSignaturehash(sigHashes, txscript.SigHashDefault, tx, 0, prevOutFetcher, leaf)
	if err != nil {
		return fmt.Errorf("compute reveal sighash: %w", err)
	}

	sig, err := schnorr.Sign(taproot.PrivateKey, hash)
	if err != nil {
		return fmt.Errorf("sign reveal input: %w", err)
	}

	tx.TxIn[0].Witness = wire.TxWitness{
		sig.Serialize(),
		taproot.RedeemScript,
		taproot.ControlBlock,
	}
	return nil
}
