package config

import "time"

// BIP-32 derivation for the etching account. The orchestrator holds one
// account (not a pool of addresses like a wallet scanner would), so only a
// single coin-type/account pair is needed.
const (
	BIP84Purpose = 84
	BTCCoinType  = 0
	EtchingAccountDerivationPath = "m/84'/0'/0'/0/0"
)

// Rune protocol wire-format limits.
const (
	MaxOutpoints      = 256
	MinRuneNameLength = 10
	MaxRuneNameLength = 26
	MaxDivisibility   = 38
	MaxLogoSize       = 128 * 1024
)

// Taproot inscription/commit-reveal transaction construction.
const (
	PostageSats            = 10_000
	InputSizeVBytes        = 68
	FixedCommitTxVBytes    = 160
	FixedRevealTxVBytes    = 200
	CommitConfirmations    = 6
)

// Etching orchestrator reconciliation.
const (
	DefaultReconcileInterval   = 5 * time.Minute
	RevealMinConfirmations     = 4
	FinalizeMinConfirmations   = 1
	RevealBalanceMinConfirmations = 6
	ProcessingWindow           = 6 * time.Hour
)

// Circuit breaker states and tuning for the Bitcoin RPC adapter's
// per-provider failure protection.
const (
	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half-open"

	CircuitBreakerThreshold   = 5
	CircuitBreakerCooldown    = 30 * time.Second
	CircuitBreakerHalfOpenMax = 1
)

// Per-network average block time, used by check_time to size the
// confirmation-window estimate.
var NetworkBlockTime = map[string]time.Duration{
	"mainnet": 7 * time.Minute,
	"testnet": 1 * time.Minute,
	"signet":  1 * time.Minute,
	"regtest": 1 * time.Second,
}

// Fee rates.
const (
	DefaultFeeRateLow    = 2
	DefaultFeeRateMedium = 5
	DefaultFeeRateHigh   = 10
	DefaultEtchingFeeE8s = 100_000 // 0.001 ICP
)

// Server.
const (
	ServerPort         = 8080
	ServerReadTimeout  = 30 * time.Second
	ServerWriteTimeout = 60 * time.Second
	APITimeout         = 30 * time.Second
	ShutdownTimeout    = 15 * time.Second
)

// Indexer block-ingestion loop.
const (
	PollInterval     = 10 * time.Second
	IndexBatchBlocks = 20
)

// Bitcoin RPC provider rate limiting, requests per second.
const ProviderRateLimitRPS = 5

// Logging.
const (
	LogDir         = "./logs"
	LogFilePattern = "runeidx-%s-%s.log" // date, level
	LogMaxAgeDays  = 30
)

// Database.
const (
	DBPath        = "./data/runeidx.sqlite"
	DBTestPath    = "./data/runeidx_test.sqlite"
	DBWALMode     = true
	DBBusyTimeout = 5000 // milliseconds
)
