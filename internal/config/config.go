// Package config loads and validates process configuration from the
// environment, following the project's convention of a single envconfig
// struct populated from an optional .env file plus real environment
// variables, with real environment variables taking precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	DBPath   string `envconfig:"RUNEIDX_DB_PATH" default:"./data/runeidx.sqlite"`
	Port     int    `envconfig:"RUNEIDX_PORT" default:"8080"`
	LogLevel string `envconfig:"RUNEIDX_LOG_LEVEL" default:"info"`
	LogDir   string `envconfig:"RUNEIDX_LOG_DIR" default:"./logs"`

	// Network selects both the btcsuite chain params used for address
	// encoding and the block-time constant check_time uses to size its
	// confirmation windows.
	Network string `envconfig:"RUNEIDX_NETWORK" default:"testnet"`

	BitcoinRPCURL string `envconfig:"RUNEIDX_BITCOIN_RPC_URL"`

	// EcdsaKeyName selects which threshold-ECDSA key the signer adapter
	// derives the etching account from; meaningless for the local-dev
	// signer but kept so a production signer has somewhere to read it.
	EcdsaKeyName string `envconfig:"RUNEIDX_ECDSA_KEY_NAME" default:"dev"`

	// EtchingMnemonicFile points at a BIP-39 mnemonic file the local-dev
	// signer derives the etching account from. Left empty, the indexer
	// still serves reads but cannot originate new etchings.
	EtchingMnemonicFile string `envconfig:"RUNEIDX_ETCHING_MNEMONIC_FILE"`

	// AllowedHosts lists the Host headers the operator API accepts
	// requests for, and the Origins its CORS policy reflects back. The
	// indexer is meant to be reached by a local operator or a same-host
	// reverse proxy, never the open internet, so this defaults to
	// loopback only.
	AllowedHosts []string `envconfig:"RUNEIDX_ALLOWED_HOSTS" default:"localhost,127.0.0.1"`

	// EtchingFee is the ICP-denominated fee charged per etching request, in
	// e8s. Zero means "use DefaultEtchingFeeE8s".
	EtchingFee uint64 `envconfig:"RUNEIDX_ETCHING_FEE_E8S"`

	BitcoinFeeRateLow    int64 `envconfig:"RUNEIDX_FEE_RATE_LOW" default:"2"`
	BitcoinFeeRateMedium int64 `envconfig:"RUNEIDX_FEE_RATE_MEDIUM" default:"5"`
	BitcoinFeeRateHigh   int64 `envconfig:"RUNEIDX_FEE_RATE_HIGH" default:"10"`

	ReconcileInterval string `envconfig:"RUNEIDX_RECONCILE_INTERVAL" default:"5m"`

	CommitConfirmations uint32 `envconfig:"RUNEIDX_COMMIT_CONFIRMATIONS" default:"6"`
}

// Load reads configuration from .env (if present) then from the real
// environment; real environment variables always win.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			slog.Warn("failed to load .env file", "error", err)
		} else {
			slog.Info("loaded .env file")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	switch c.Network {
	case "mainnet", "testnet", "signet", "regtest":
	default:
		return fmt.Errorf("%w: network must be one of mainnet/testnet/signet/regtest, got %q", ErrInvalidConfig, c.Network)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	if c.BitcoinFeeRateLow <= 0 || c.BitcoinFeeRateMedium < c.BitcoinFeeRateLow || c.BitcoinFeeRateHigh < c.BitcoinFeeRateMedium {
		return fmt.Errorf("%w: fee rates must satisfy 0 < low <= medium <= high", ErrInvalidConfig)
	}
	return nil
}

// ChainParams maps Network to the btcsuite chain params used throughout
// the indexer for address encoding and taproot script construction.
// Validate is assumed to have already rejected any other value.
func (c *Config) ChainParams() *chaincfg.Params {
	switch c.Network {
	case "testnet":
		return &chaincfg.TestNet3Params
	case "signet":
		return &chaincfg.SigNetParams
	case "regtest":
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}
