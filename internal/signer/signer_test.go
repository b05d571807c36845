package signer

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"
)

func testMnemonic(t *testing.T) string {
	t.Helper()
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		t.Fatalf("NewEntropy: %v", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		t.Fatalf("NewMnemonic: %v", err)
	}
	return mnemonic
}

func TestNewLocalSignerDerivesStableAddress(t *testing.T) {
	mnemonic := testMnemonic(t)

	s1, err := NewLocalSigner("dev", mnemonic, &chaincfg.RegressionNetParams)
	if err != nil {
		t.Fatalf("NewLocalSigner: %v", err)
	}
	s2, err := NewLocalSigner("dev", mnemonic, &chaincfg.RegressionNetParams)
	if err != nil {
		t.Fatalf("NewLocalSigner: %v", err)
	}

	if s1.Address() != s2.Address() {
		t.Fatalf("derivation not deterministic: %s != %s", s1.Address(), s2.Address())
	}
	if s1.Address() == "" {
		t.Fatal("expected non-empty address")
	}
}

func TestSignECDSAProducesVerifiableSignature(t *testing.T) {
	s, err := NewLocalSigner("dev", testMnemonic(t), &chaincfg.RegressionNetParams)
	if err != nil {
		t.Fatalf("NewLocalSigner: %v", err)
	}

	var digest [32]byte
	for i := range digest {
		digest[i] = byte(i)
	}

	sigBytes, err := s.SignECDSA(context.Background(), digest)
	if err != nil {
		t.Fatalf("SignECDSA: %v", err)
	}

	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		t.Fatalf("parse signature: %v", err)
	}

	pubKey, err := btcec.ParsePubKey(s.PublicKey())
	if err != nil {
		t.Fatalf("parse pubkey: %v", err)
	}

	if !sig.Verify(digest[:], pubKey) {
		t.Fatal("signature did not verify against signer's own public key")
	}
}
