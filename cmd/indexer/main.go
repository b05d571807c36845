// Command indexer runs the rune index end to end: it follows the chain
// tip one block at a time, applies each block's transactions to the
// store via internal/updater, serves the operator query/etching API over
// HTTP, and reconciles pending etching requests on a timer.
package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/Fantasim/runeidx/internal/api"
	"github.com/Fantasim/runeidx/internal/bitcoinrpc"
	"github.com/Fantasim/runeidx/internal/config"
	"github.com/Fantasim/runeidx/internal/etching"
	"github.com/Fantasim/runeidx/internal/icpfee"
	"github.com/Fantasim/runeidx/internal/logging"
	"github.com/Fantasim/runeidx/internal/runes"
	"github.com/Fantasim/runeidx/internal/signer"
	"github.com/Fantasim/runeidx/internal/store"
	"github.com/Fantasim/runeidx/internal/updater"
	"github.com/Fantasim/runeidx/internal/wallet"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("runeidx %s\n", version)
		return
	}
	if err := run(); err != nil {
		slog.Error("indexer exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logCloser.Close()

	slog.Info("starting runeidx indexer",
		"version", version,
		"network", cfg.Network,
		"port", cfg.Port,
		"dbPath", cfg.DBPath,
	)

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()
	slog.Info("store opened and migrated", "path", cfg.DBPath)

	rpc := bitcoinrpc.NewHTTPClient(&http.Client{Timeout: config.APITimeout}, providerURLs(cfg), config.ProviderRateLimitRPS)

	sg, err := buildSigner(cfg)
	if err != nil {
		return fmt.Errorf("build signer: %w", err)
	}
	if sg == nil {
		slog.Warn("no etching mnemonic configured, running in read-only mode")
	}

	ledger := icpfee.NewMemoryLedger(nil)
	lookup := etching.StoreLookup(s)
	e := etching.New(s, rpc, ledger, sg, lookup, cfg.ChainParams(), cfg.EtchingFee)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runIngestionLoop(ctx, s, rpc, cfg)
	go runReconcileLoop(ctx, e, cfg)

	router := api.NewRouter(s, e, cfg, rpc)
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("initiating graceful shutdown", "timeout", config.ShutdownTimeout)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("indexer stopped gracefully")
	return nil
}

// providerURLs reads the (possibly comma-separated) Esplora-compatible
// provider list from config. A single BitcoinRPCURL is the common case;
// the HTTP client's round-robin failover is only useful once operators
// configure more than one.
func providerURLs(cfg *config.Config) []string {
	if cfg.BitcoinRPCURL == "" {
		return nil
	}
	return []string{cfg.BitcoinRPCURL}
}

// buildSigner derives the local-dev etching signer from the configured
// mnemonic file, or returns (nil, nil) if none was configured.
func buildSigner(cfg *config.Config) (signer.Signer, error) {
	if cfg.EtchingMnemonicFile == "" {
		return nil, nil
	}
	mnemonic, err := wallet.ReadMnemonicFromFile(cfg.EtchingMnemonicFile)
	if err != nil {
		return nil, fmt.Errorf("read mnemonic file: %w", err)
	}
	sg, err := signer.NewLocalSigner(cfg.EcdsaKeyName, mnemonic, cfg.ChainParams())
	if err != nil {
		return nil, fmt.Errorf("derive etching signer: %w", err)
	}
	slog.Info("etching signer ready", "keyName", sg.KeyName(), "address", sg.Address())
	return sg, nil
}

// runIngestionLoop polls for new blocks at config.PollInterval and applies
// each one to the store in its own transaction, advancing the cursor only
// once a block's updater run and its cursor write both succeed.
func runIngestionLoop(ctx context.Context, s *store.Store, rpc bitcoinrpc.Client, cfg *config.Config) {
	ticker := time.NewTicker(config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ingestAvailableBlocks(ctx, s, rpc, cfg); err != nil {
				slog.Error("block ingestion failed", "error", err)
			}
		}
	}
}

// ingestAvailableBlocks advances the cursor by up to config.IndexBatchBlocks
// blocks, stopping early if a height isn't available yet (chain tip reached).
func ingestAvailableBlocks(ctx context.Context, s *store.Store, rpc bitcoinrpc.Client, cfg *config.Config) error {
	cursor, err := s.GetCursor()
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	network := updater.NetworkFromParams(cfg.ChainParams())
	height := runes.FirstEtchableHeight(network)
	if cursor != nil {
		height = cursor.Height + 1
	}

	for i := 0; i < config.IndexBatchBlocks; i++ {
		hash, rawTxs, err := rpc.GetBlockTxs(ctx, height)
		if err != nil {
			slog.Debug("no block available yet", "height", height, "error", err)
			return nil
		}

		txs, err := decodeBlockTxs(rawTxs)
		if err != nil {
			return fmt.Errorf("decode block %d txs: %w", height, err)
		}

		startingNumber, err := s.CountRuneEntries()
		if err != nil {
			return fmt.Errorf("count rune entries: %w", err)
		}

		dbtx, err := s.Begin()
		if err != nil {
			return fmt.Errorf("begin block transaction: %w", err)
		}

		u := updater.NewRuneUpdater(s, rpc, network, height, startingNumber)
		if err := u.IndexBlock(ctx, dbtx, txs); err != nil {
			dbtx.Rollback()
			return fmt.Errorf("index block %d: %w", height, err)
		}
		if err := s.SetCursor(dbtx, store.Cursor{Height: height, BlockHash: hash}); err != nil {
			dbtx.Rollback()
			return fmt.Errorf("set cursor for block %d: %w", height, err)
		}
		if err := dbtx.Commit(); err != nil {
			return fmt.Errorf("commit block %d: %w", height, err)
		}

		slog.Info("block indexed", "height", height, "hash", hash, "txs", len(txs))
		height++
	}
	return nil
}

func decodeBlockTxs(rawTxs []string) ([]*wire.MsgTx, error) {
	txs := make([]*wire.MsgTx, len(rawTxs))
	for i, raw := range rawTxs {
		tx, err := decodeRawTx(raw)
		if err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
		txs[i] = tx
	}
	return txs, nil
}

func decodeRawTx(hexStr string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("decode raw tx hex: %w", err)
	}
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("deserialize raw tx: %w", err)
	}
	return &tx, nil
}

// runReconcileLoop drives the etching reconciliation timer, advancing
// every pending request's commit/reveal confirmation state.
func runReconcileLoop(ctx context.Context, e *etching.EtchingState, cfg *config.Config) {
	interval, err := time.ParseDuration(cfg.ReconcileInterval)
	if err != nil {
		slog.Warn("invalid reconcile interval, using default", "configured", cfg.ReconcileInterval, "default", config.DefaultReconcileInterval)
		interval = config.DefaultReconcileInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.HandleEtchingResultTask(ctx, time.Now()); err != nil {
				slog.Error("etching reconciliation failed", "error", err)
			}
		}
	}
}
