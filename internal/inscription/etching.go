package inscription

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Fantasim/runeidx/internal/config"
	"github.com/Fantasim/runeidx/internal/runestone"
	"github.com/Fantasim/runeidx/internal/signer"
)

// buildRunestone assembles the OP_RETURN runestone the reveal transaction
// carries: the full etching declaration, and a pointer at output 1 iff a
// premine is being credited (output 0 is the OP_RETURN itself).
func buildRunestone(p *parsed, args *EtchingArgs) *runestone.Runestone {
	var pointer *uint32
	if !p.Premine.IsZero() {
		one := uint32(1)
		pointer = &one
	}

	divisibility := p.Divisibility
	etching := &runestone.Etching{
		Divisibility: &divisibility,
		Rune:         &p.SpacedRune.Rune,
		Spacers:      p.SpacedRune.Spacers,
		Symbol:       args.Symbol,
		Terms:        p.Terms,
		Turbo:        args.Turbo,
	}
	if !p.Premine.IsZero() {
		premine := p.Premine
		etching.Premine = &premine
	}

	return &runestone.Runestone{
		Etching: etching,
		Pointer: pointer,
	}
}

// Result is the pair of transactions an etching submission needs to
// broadcast, plus the taproot address the commit transaction pays so a
// caller can poll its balance before reveal.
type Result struct {
	CommitTx      *wire.MsgTx
	RevealTx      *wire.MsgTx
	TaprootAddress string
	RevealBalance int64
}

// EstimateRevealVBytes measures the reveal transaction's vsize by building
// one in full against a throwaway taproot keypair and a dummy input,
// mirroring the reference estimate_tx_vbytes: logo size is the only input
// that changes reveal vsize, so replaying the real build with dummy keys
// captures it precisely without needing a real UTXO yet.
func EstimateRevealVBytes(args *EtchingArgs, net *chaincfg.Params) (int64, error) {
	p, err := args.check()
	if err != nil {
		return 0, err
	}

	dummyTxid, err := chainhash.NewHashFromStr("13a0ea6d76b710a1a9cdf2d8ce37c53feaaf985386f14ba3e65c544833c00a4")
	if err != nil {
		return 0, err
	}
	dummyInput := UTXO{Txid: *dummyTxid, Vout: 0, Value: 100_000}

	receiver := args.PremineReceiver
	if receiver == "" {
		receiver = zeroAddressForNet(net)
	}
	recvAddr, err := btcutil.DecodeAddress(receiver, net)
	if err != nil {
		return 0, fmt.Errorf("invalid premine receiver %q: %w", receiver, err)
	}

	envelope, err := buildEnvelope(args.LogoContentType, p.LogoContent, p.SpacedRune.Rune.Commitment())
	if err != nil {
		return 0, fmt.Errorf("build inscription envelope: %w", err)
	}
	taproot, err := buildTaproot(envelope, net)
	if err != nil {
		return 0, err
	}

	rsScript, err := buildRunestone(p, args).Encipher()
	if err != nil {
		return 0, fmt.Errorf("encode estimate runestone: %w", err)
	}

	tx, err := BuildRevealTransaction(dummyInput, rsScript, recvAddr, config.PostageSats)
	if err != nil {
		return 0, err
	}
	if err := SignRevealTransaction(tx, taproot, dummyInput.Value); err != nil {
		return 0, err
	}

	return txVSize(tx), nil
}

// zeroAddressForNet returns a syntactically valid placeholder address, used
// only when estimating vbytes before a real premine receiver is known.
func zeroAddressForNet(net *chaincfg.Params) string {
	addr, _ := btcutil.NewAddressWitnessPubKeyHash(make([]byte, 20), net)
	return addr.EncodeAddress()
}

// Build constructs and signs the full commit/reveal pair for one etching
// submission: utxos must already cover fees.RevealBalance()+fees.CommitFee
// (the caller, the etching orchestrator, is responsible for selection via
// internal/store.ReserveFeeUTXOs). s signs the commit transaction's P2WPKH
// inputs; the reveal transaction's taproot spend is signed locally against
// a freshly generated, single-use keypair.
func Build(ctx context.Context, args *EtchingArgs, utxos []UTXO, fees Fees, s signer.Signer, net *chaincfg.Params) (*Result, error) {
	p, err := args.check()
	if err != nil {
		return nil, err
	}

	senderAddr, err := btcutil.DecodeAddress(s.Address(), net)
	if err != nil {
		return nil, fmt.Errorf("invalid signer address %q: %w", s.Address(), err)
	}
	senderScript, err := senderScriptFor(senderAddr)
	if err != nil {
		return nil, err
	}

	envelope, err := buildEnvelope(args.LogoContentType, p.LogoContent, p.SpacedRune.Rune.Commitment())
	if err != nil {
		return nil, fmt.Errorf("build inscription envelope: %w", err)
	}
	taproot, err := buildTaproot(envelope, net)
	if err != nil {
		return nil, err
	}

	revealBalance := fees.RevealBalance()
	commitTx, err := BuildCommitTransaction(utxos, senderAddr, taproot.Address, revealBalance, fees.CommitFee)
	if err != nil {
		return nil, err
	}
	if err := SignCommitTransaction(ctx, commitTx, utxos, senderScript, s); err != nil {
		return nil, err
	}

	receiver := args.PremineReceiver
	if receiver == "" {
		receiver = s.Address()
	}
	recvAddr, err := btcutil.DecodeAddress(receiver, net)
	if err != nil {
		return nil, fmt.Errorf("invalid premine receiver %q: %w", receiver, err)
	}

	rsScript, err := buildRunestone(p, args).Encipher()
	if err != nil {
		return nil, fmt.Errorf("encode runestone: %w", err)
	}

	revealInput := UTXO{Txid: commitTx.TxHash(), Vout: 0, Value: revealBalance}
	revealTx, err := BuildRevealTransaction(revealInput, rsScript, recvAddr, config.PostageSats)
	if err != nil {
		return nil, err
	}
	if err := SignRevealTransaction(revealTx, taproot, revealBalance); err != nil {
		return nil, err
	}

	return &Result{
		CommitTx:       commitTx,
		RevealTx:       revealTx,
		TaprootAddress: taproot.Address.EncodeAddress(),
		RevealBalance:  revealBalance,
	}, nil
}

func senderScriptFor(addr btcutil.Address) ([]byte, error) {
	return txscript.PayToAddrScript(addr)
}
