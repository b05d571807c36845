package inscription

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/Fantasim/runeidx/internal/rand"
)

// TaprootPayload is the one-leaf taproot script the reveal transaction
// spends: a fresh keypair seeded by the platform RNG, never reused across
// etchings and never custodied by the threshold signer — the reveal
// signature is produced locally against this ephemeral key, matching the
// reference wallet's MixSigner, which signs Schnorr against the taproot
// keypair directly rather than calling out to sign_with_ecdsa.
type TaprootPayload struct {
	PrivateKey   *btcec.PrivateKey
	RedeemScript []byte
	ControlBlock []byte
	Address      btcutil.Address
}

// buildTaproot generates a fresh keypair via rand.Source32, builds a
// single-leaf taproot tree whose leaf is redeemScript, and derives the
// tweaked output address for net.
func buildTaproot(redeemScript []byte, net *chaincfg.Params) (*TaprootPayload, error) {
	seed, err := rand.Source32()
	if err != nil {
		return nil, fmt.Errorf("generate taproot keypair seed: %w", err)
	}
	priv, _ := btcec.PrivKeyFromBytes(seed[:])

	leaf := txscript.NewBaseTapLeaf(redeemScript)
	tree := txscript.AssembleTaprootScriptTree(leaf)
	rootHash := tree.RootNode.TapHash()

	internalKey := priv.PubKey()
	outputKey := txscript.ComputeTaprootOutputKey(internalKey, rootHash[:])

	proof := tree.LeafMerkleProofs[0]
	controlBlock := proof.ToControlBlock(internalKey)
	controlBlockBytes, err := controlBlock.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize control block: %w", err)
	}

	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), net)
	if err != nil {
		return nil, fmt.Errorf("derive taproot address: %w", err)
	}

	return &TaprootPayload{
		PrivateKey:   priv,
		RedeemScript: redeemScript,
		ControlBlock: controlBlockBytes,
		Address:      addr,
	}, nil
}
