package config

import "errors"

// Sentinel errors, grouped by the error-kind taxonomy the etching
// orchestrator and updater classify failures into: Validation, Resource,
// RPC/external, Signature, and Consensus.
var (
	// Validation — rejected synchronously, never retried.
	ErrInvalidRuneName   = errors.New("invalid rune name")
	ErrLogoTooLarge      = errors.New("logo exceeds maximum size")
	ErrDivisibilityRange = errors.New("divisibility exceeds maximum of 38")
	ErrZeroCap           = errors.New("mint cap must be greater than zero")
	ErrZeroAmount        = errors.New("mint amount must be greater than zero")
	ErrInvalidConfig     = errors.New("invalid configuration")

	// Resource — surfaced to the caller; the orchestrator does not retry
	// and any reserved fee UTXOs are returned to the pool.
	ErrInsufficientUTXO    = errors.New("insufficient fee UTXO value to cover required fee")
	ErrInsufficientBalance = errors.New("insufficient ICP fee allowance")
	ErrNoFeeUTXOAvailable  = errors.New("no fee UTXO available")

	// RPC/external.
	ErrBitcoinRPCRejected = errors.New("bitcoin RPC rejected request")
	ErrBitcoinRPCFailed   = errors.New("bitcoin RPC call failed")
	ErrCircuitOpen        = errors.New("bitcoin RPC provider circuit open")
	ErrProviderRateLimit  = errors.New("bitcoin RPC provider rate limited request")
	ErrUTXOFetchFailed    = errors.New("UTXO fetch failed")
	ErrAllProvidersFailed = errors.New("all bitcoin RPC providers failed")

	// Signature.
	ErrInvalidSignature        = errors.New("invalid signature")
	ErrUnexpectedSignatureShape = errors.New("unexpected signature shape")

	// Consensus — fatal, stops block processing.
	ErrArithmeticOverflow = errors.New("arithmetic overflow in rune ledger")
	ErrStoreInvariant     = errors.New("store invariant violated")

	// Guard contention.
	ErrGuardBusy = errors.New("operation already in progress")
)

// Error codes — stable strings surfaced through the operator API.
const (
	ErrorInvalidRuneName        = "ERROR_INVALID_RUNE_NAME"
	ErrorLogoTooLarge           = "ERROR_LOGO_TOO_LARGE"
	ErrorDivisibilityRange      = "ERROR_DIVISIBILITY_RANGE"
	ErrorZeroCap                = "ERROR_ZERO_CAP"
	ErrorZeroAmount             = "ERROR_ZERO_AMOUNT"
	ErrorInvalidConfig          = "ERROR_INVALID_CONFIG"
	ErrorInsufficientUTXO       = "ERROR_INSUFFICIENT_UTXO"
	ErrorInsufficientBalance    = "ERROR_INSUFFICIENT_BALANCE"
	ErrorNoFeeUTXOAvailable     = "ERROR_NO_FEE_UTXO_AVAILABLE"
	ErrorBitcoinRPCRejected     = "ERROR_BITCOIN_RPC_REJECTED"
	ErrorBitcoinRPCFailed       = "ERROR_BITCOIN_RPC_FAILED"
	ErrorInvalidSignature       = "ERROR_INVALID_SIGNATURE"
	ErrorUnexpectedSignatureShape = "ERROR_UNEXPECTED_SIGNATURE_SHAPE"
	ErrorArithmeticOverflow     = "ERROR_ARITHMETIC_OVERFLOW"
	ErrorStoreInvariant         = "ERROR_STORE_INVARIANT"
	ErrorGuardBusy              = "ERROR_GUARD_BUSY"
)
