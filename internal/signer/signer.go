// Package signer holds the etching account's signing key and exposes it
// behind the same shape a threshold-ECDSA canister signer would: a public
// key lookup and a sign-digest call, keyed by a key name rather than a
// literal private key. LocalSigner is the only implementation; it derives
// a single BIP-84 account from a mnemonic the way a production signer
// derives from a key name, but holds the key in process memory instead of
// calling out to a management canister.
package signer

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/Fantasim/runeidx/internal/config"
	"github.com/Fantasim/runeidx/internal/wallet"
)

// Signer is everything the etching orchestrator needs from the account
// that pays commit/reveal fees and receives postage back: its address and
// the ability to produce ECDSA signatures over sighash digests for it.
type Signer interface {
	KeyName() string
	Address() string
	PublicKey() []byte
	// DerivationPath identifies which account a threshold-ECDSA adapter
	// would derive; LocalSigner only ever holds one, but exposes it so
	// callers are written against the (key_name, derivation_path) shape a
	// real signing canister expects.
	DerivationPath() string
	SignECDSA(ctx context.Context, digest [32]byte) ([]byte, error)
}

// LocalSigner derives a single P2WPKH account at the fixed etching
// derivation path and signs locally. It is not constant-time and is meant
// for development and test networks, not custody of real funds.
type LocalSigner struct {
	keyName string
	net     *chaincfg.Params
	priv    *btcec.PrivateKey
	addr    string
}

// NewLocalSigner derives the etching account from a BIP-39 mnemonic at
// config.EtchingAccountDerivationPath.
func NewLocalSigner(keyName, mnemonic string, net *chaincfg.Params) (*LocalSigner, error) {
	if err := wallet.ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}

	seed, err := wallet.MnemonicToSeed(mnemonic)
	if err != nil {
		return nil, err
	}

	master, err := wallet.DeriveMasterKey(seed, net)
	if err != nil {
		return nil, err
	}

	priv, addr, err := deriveEtchingAccount(master, net)
	if err != nil {
		return nil, err
	}

	return &LocalSigner{keyName: keyName, net: net, priv: priv, addr: addr}, nil
}

// deriveEtchingAccount walks m/84'/0'/0'/0/0, matching
// config.EtchingAccountDerivationPath.
func deriveEtchingAccount(master *hdkeychain.ExtendedKey, net *chaincfg.Params) (*btcec.PrivateKey, string, error) {
	purpose, err := master.Derive(hdkeychain.HardenedKeyStart + uint32(config.BIP84Purpose))
	if err != nil {
		return nil, "", fmt.Errorf("derive purpose key: %w", err)
	}
	coin, err := purpose.Derive(hdkeychain.HardenedKeyStart + uint32(config.BTCCoinType))
	if err != nil {
		return nil, "", fmt.Errorf("derive coin key: %w", err)
	}
	account, err := coin.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, "", fmt.Errorf("derive account key: %w", err)
	}
	change, err := account.Derive(0)
	if err != nil {
		return nil, "", fmt.Errorf("derive change key: %w", err)
	}
	child, err := change.Derive(0)
	if err != nil {
		return nil, "", fmt.Errorf("derive child key: %w", err)
	}

	priv, err := child.ECPrivKey()
	if err != nil {
		return nil, "", fmt.Errorf("get etching account private key: %w", err)
	}

	witnessProg := btcutil.Hash160(priv.PubKey().SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(witnessProg, net)
	if err != nil {
		return nil, "", fmt.Errorf("create etching account address: %w", err)
	}

	return priv, addr.EncodeAddress(), nil
}

func (s *LocalSigner) KeyName() string        { return s.keyName }
func (s *LocalSigner) Address() string        { return s.addr }
func (s *LocalSigner) DerivationPath() string  { return config.EtchingAccountDerivationPath }
func (s *LocalSigner) PublicKey() []byte {
	return s.priv.PubKey().SerializeCompressed()
}

// SignECDSA signs digest, returning a low-S DER signature.
func (s *LocalSigner) SignECDSA(_ context.Context, digest [32]byte) ([]byte, error) {
	sig := ecdsa.Sign(s.priv, digest[:])
	return sig.Serialize(), nil
}

var _ Signer = (*LocalSigner)(nil)
