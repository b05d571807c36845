// Package bitcoinrpc talks to the Bitcoin network through Esplora-compatible
// HTTP APIs (mempool.space, Blockstream), standing in for the Bitcoin RPC
// adapter canister a production deployment would route through. Each
// provider is wrapped in its own rate limiter and circuit breaker so a
// single unhealthy provider degrades gracefully instead of stalling every
// caller.
package bitcoinrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Fantasim/runeidx/internal/config"
)

// UTXO is an unspent output discovered for a fee-paying address.
type UTXO struct {
	Txid        string
	Vout        uint32
	Value       int64
	Confirmed   bool
	BlockHeight int64
}

// TxInfo is the subset of a transaction's on-chain status the etching
// reconciler needs to decide whether to advance an EtchingState.
type TxInfo struct {
	Txid          string
	Confirmations uint32
	BlockHeight   int64
	Hex           string
}

// BlockHeaderInfo identifies a block by height.
type BlockHeaderInfo struct {
	Height uint64
	Hash   string
	Time   time.Time
}

// FeeEstimate holds fee-rate tiers in sat/vB, mirroring mempool.space's
// /fees/recommended response.
type FeeEstimate struct {
	FastestFee  int64
	HalfHourFee int64
	HourFee     int64
	EconomyFee  int64
	MinimumFee  int64
}

// Client is everything the indexer and etching orchestrator need from the
// Bitcoin network: broadcasting signed transactions, reading confirmation
// status, and discovering fee UTXOs.
type Client interface {
	SendTransaction(ctx context.Context, rawHex string) (txid string, err error)
	GetBalance(ctx context.Context, address string) (int64, error)
	ListUnspent(ctx context.Context, address string) ([]UTXO, error)
	GetRawTransactionInfo(ctx context.Context, txid string) (*TxInfo, error)
	GetBlockHeaderInfo(ctx context.Context, height uint64) (*BlockHeaderInfo, error)
	GetBlockTxs(ctx context.Context, height uint64) (hash string, rawTxs []string, err error)
	EstimateFee(ctx context.Context) (*FeeEstimate, error)
}

type provider struct {
	baseURL string
	breaker *CircuitBreaker
	limiter *rateLimiter
}

// HTTPClient implements Client against one or more Esplora-compatible
// providers, rotating round-robin and failing over past providers whose
// circuit breaker is open.
type HTTPClient struct {
	http      *http.Client
	providers []provider
	next      atomic.Uint64
}

// NewHTTPClient builds a client over providerURLs, each rate limited to rps
// requests per second and protected by its own circuit breaker.
func NewHTTPClient(httpClient *http.Client, providerURLs []string, rps int) *HTTPClient {
	providers := make([]provider, len(providerURLs))
	for i, url := range providerURLs {
		providers[i] = provider{
			baseURL: strings.TrimRight(url, "/"),
			breaker: NewCircuitBreaker(config.CircuitBreakerThreshold, config.CircuitBreakerCooldown),
			limiter: newRateLimiter(url, rps),
		}
	}
	slog.Info("bitcoin RPC client created", "providerCount", len(providers), "providers", providerURLs)
	return &HTTPClient{http: httpClient, providers: providers}
}

// withProvider calls fn against providers in round-robin order, skipping
// any whose circuit breaker currently rejects requests, and stops at the
// first success.
func (c *HTTPClient) withProvider(ctx context.Context, fn func(ctx context.Context, p *provider) (any, error)) (any, error) {
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", config.ErrBitcoinRPCFailed)
	}

	var lastErr error
	start := int(c.next.Add(1) - 1)

	for i := 0; i < len(c.providers); i++ {
		p := &c.providers[(start+i)%len(c.providers)]

		if !p.breaker.Allow() {
			slog.Debug("skipping provider with open circuit", "provider", p.baseURL)
			continue
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait for %s: %w", p.baseURL, err)
		}

		result, err := fn(ctx, p)
		if err == nil {
			p.breaker.RecordSuccess()
			return result, nil
		}

		p.breaker.RecordFailure()
		lastErr = err
		slog.Warn("provider call failed, trying next", "provider", p.baseURL, "error", err)
	}

	if lastErr == nil {
		lastErr = config.ErrCircuitOpen
	}
	return nil, fmt.Errorf("%w: %s", config.ErrAllProvidersFailed, lastErr)
}

// SendTransaction broadcasts a raw signed transaction. A 400 response means
// the transaction itself is invalid, so callers should not retry.
func (c *HTTPClient) SendTransaction(ctx context.Context, rawHex string) (string, error) {
	result, err := c.withProvider(ctx, func(ctx context.Context, p *provider) (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/tx", strings.NewReader(rawHex))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "text/plain")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s", config.ErrBitcoinRPCRejected, strings.TrimSpace(string(body)))
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("broadcast HTTP %d: %s", resp.StatusCode, string(body))
		}
		return strings.TrimSpace(string(body)), nil
	})
	if err != nil {
		return "", err
	}
	txid := result.(string)
	slog.Info("transaction broadcast", "txid", txid)
	return txid, nil
}

type esploraAddressStats struct {
	ChainStats struct {
		FundedTxoSum int64 `json:"funded_txo_sum"`
		SpentTxoSum  int64 `json:"spent_txo_sum"`
	} `json:"chain_stats"`
}

// GetBalance returns the confirmed balance in satoshis for address.
func (c *HTTPClient) GetBalance(ctx context.Context, address string) (int64, error) {
	result, err := c.withProvider(ctx, func(ctx context.Context, p *provider) (any, error) {
		var stats esploraAddressStats
		if err := getJSON(ctx, c.http, p.baseURL+"/address/"+address, &stats); err != nil {
			return nil, err
		}
		return stats.ChainStats.FundedTxoSum - stats.ChainStats.SpentTxoSum, nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

type esploraUTXO struct {
	Txid   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height"`
	} `json:"status"`
	Value int64 `json:"value"`
}

// ListUnspent returns confirmed UTXOs for address, used to fund commit
// transactions for fee payment.
func (c *HTTPClient) ListUnspent(ctx context.Context, address string) ([]UTXO, error) {
	result, err := c.withProvider(ctx, func(ctx context.Context, p *provider) (any, error) {
		var raw []esploraUTXO
		if err := getJSON(ctx, c.http, p.baseURL+"/address/"+address+"/utxo", &raw); err != nil {
			return nil, err
		}
		utxos := make([]UTXO, 0, len(raw))
		for _, u := range raw {
			if !u.Status.Confirmed {
				continue
			}
			utxos = append(utxos, UTXO{
				Txid:        u.Txid,
				Vout:        u.Vout,
				Value:       u.Value,
				Confirmed:   true,
				BlockHeight: u.Status.BlockHeight,
			})
		}
		return utxos, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", config.ErrUTXOFetchFailed, err)
	}
	return result.([]UTXO), nil
}

type esploraTx struct {
	Txid   string `json:"txid"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height"`
	} `json:"status"`
	Hex string `json:"hex"`
}

// GetRawTransactionInfo fetches confirmation status for txid. Confirmations
// is computed against the provider's current tip height.
func (c *HTTPClient) GetRawTransactionInfo(ctx context.Context, txid string) (*TxInfo, error) {
	result, err := c.withProvider(ctx, func(ctx context.Context, p *provider) (any, error) {
		var tx esploraTx
		if err := getJSON(ctx, c.http, p.baseURL+"/tx/"+txid, &tx); err != nil {
			return nil, err
		}

		info := &TxInfo{Txid: tx.Txid, BlockHeight: tx.Status.BlockHeight, Hex: tx.Hex}
		if !tx.Status.Confirmed {
			return info, nil
		}

		var tipHeight int64
		if err := getJSON(ctx, c.http, p.baseURL+"/blocks/tip/height", &tipHeight); err == nil && tipHeight >= tx.Status.BlockHeight {
			info.Confirmations = uint32(tipHeight-tx.Status.BlockHeight) + 1
		} else {
			info.Confirmations = 1
		}
		return info, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", config.ErrBitcoinRPCFailed, err)
	}
	return result.(*TxInfo), nil
}

type esploraBlockHeader struct {
	ID        string `json:"id"`
	Height    uint64 `json:"height"`
	Timestamp int64  `json:"timestamp"`
}

// GetBlockHeaderInfo looks up the block at height, used by the updater to
// confirm the chain tip it is advancing against.
func (c *HTTPClient) GetBlockHeaderInfo(ctx context.Context, height uint64) (*BlockHeaderInfo, error) {
	result, err := c.withProvider(ctx, func(ctx context.Context, p *provider) (any, error) {
		var hash string
		if err := getJSON(ctx, c.http, fmt.Sprintf("%s/block-height/%d", p.baseURL, height), &hash); err != nil {
			return nil, err
		}
		var header esploraBlockHeader
		if err := getJSON(ctx, c.http, p.baseURL+"/block/"+strings.Trim(hash, `"`), &header); err != nil {
			return nil, err
		}
		return &BlockHeaderInfo{
			Height: header.Height,
			Hash:   header.ID,
			Time:   time.Unix(header.Timestamp, 0).UTC(),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", config.ErrBitcoinRPCFailed, err)
	}
	return result.(*BlockHeaderInfo), nil
}

type blockTxsResult struct {
	hash   string
	rawTxs []string
}

// GetBlockTxs fetches the raw hex of every transaction confirmed in the
// block at height, in block order, so the indexer can decode and feed them
// into the rune updater without running a full node.
func (c *HTTPClient) GetBlockTxs(ctx context.Context, height uint64) (string, []string, error) {
	result, err := c.withProvider(ctx, func(ctx context.Context, p *provider) (any, error) {
		var hash string
		if err := getJSON(ctx, c.http, fmt.Sprintf("%s/block-height/%d", p.baseURL, height), &hash); err != nil {
			return nil, err
		}
		hash = strings.Trim(hash, `"`)

		var txids []string
		if err := getJSON(ctx, c.http, p.baseURL+"/block/"+hash+"/txids", &txids); err != nil {
			return nil, err
		}

		rawTxs := make([]string, len(txids))
		for i, txid := range txids {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/tx/"+txid+"/hex", nil)
			if err != nil {
				return nil, err
			}
			resp, err := c.http.Do(req)
			if err != nil {
				return nil, err
			}
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, err
			}
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("fetch tx hex HTTP %d for %s: %s", resp.StatusCode, txid, string(body))
			}
			rawTxs[i] = strings.TrimSpace(string(body))
		}
		return blockTxsResult{hash: hash, rawTxs: rawTxs}, nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s", config.ErrBitcoinRPCFailed, err)
	}
	r := result.(blockTxsResult)
	return r.hash, r.rawTxs, nil
}

// EstimateFee fetches current fee-rate tiers, falling back to the
// configured default rates if every provider is unreachable.
func (c *HTTPClient) EstimateFee(ctx context.Context) (*FeeEstimate, error) {
	result, err := c.withProvider(ctx, func(ctx context.Context, p *provider) (any, error) {
		var est FeeEstimate
		if err := getJSON(ctx, c.http, p.baseURL+"/fee-estimates", &est); err != nil {
			return nil, err
		}
		return &est, nil
	})
	if err != nil {
		slog.Warn("fee estimation failed on all providers, using defaults", "error", err)
		return &FeeEstimate{
			FastestFee:  config.DefaultFeeRateHigh,
			HalfHourFee: config.DefaultFeeRateMedium,
			HourFee:     config.DefaultFeeRateLow,
			EconomyFee:  config.DefaultFeeRateLow,
			MinimumFee:  config.DefaultFeeRateLow,
		}, nil
	}
	return result.(*FeeEstimate), nil
}

// ProviderStatus reports one provider's live circuit-breaker state, for
// the operator health endpoint.
type ProviderStatus struct {
	BaseURL             string `json:"baseUrl"`
	CircuitState        string `json:"circuitState"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
}

// ProviderStatuses reports the current circuit-breaker state of every
// configured provider, in round-robin order.
func (c *HTTPClient) ProviderStatuses() []ProviderStatus {
	statuses := make([]ProviderStatus, len(c.providers))
	for i := range c.providers {
		p := &c.providers[i]
		statuses[i] = ProviderStatus{
			BaseURL:             p.baseURL,
			CircuitState:        p.breaker.State(),
			ConsecutiveFailures: p.breaker.ConsecutiveFailures(),
		}
	}
	return statuses
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return config.ErrProviderRateLimit
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
