package etching

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/Fantasim/runeidx/internal/store"
)

// reconcileGuardKey is the single key handle_etching_result_task acquires
// — there is only ever one reconciliation pass in flight at a time, never
// one per request.
const reconcileGuardKey = "handle_etching_result_task"

// HandleEtchingResultTask runs one reconciliation pass: every pending
// request is visited once, in commit-txid order, and advanced toward
// EtchingStateFinal if its processing window is open and the chain has
// caught up. Serialized by ProcessEtchingMsgGuard so overlapping timer
// ticks never interleave; a second call while one is in flight returns
// config.ErrGuardBusy immediately rather than queueing.
func (e *EtchingState) HandleEtchingResultTask(ctx context.Context, now time.Time) error {
	release, err := e.msgGuard.Acquire(reconcileGuardKey)
	if err != nil {
		return err
	}
	defer release()

	pending, err := e.store.ListPendingEtchingRequests()
	if err != nil {
		return fmt.Errorf("list pending etching requests: %w", err)
	}

	for _, req := range pending {
		if err := e.advance(ctx, req, now); err != nil {
			slog.Error("reconcile etching request failed", "commit_txid", req.CommitTxid, "state", req.State, "error", err)
		}
	}
	return nil
}

func (e *EtchingState) advance(ctx context.Context, req *store.EtchingRequest, now time.Time) error {
	switch req.State {
	case store.EtchingStateCommitSent:
		return e.advanceCommitSent(ctx, req, now)
	case store.EtchingStateRevealSent:
		return e.advanceRevealSent(req, now)
	default:
		// EtchingStateCommitPending/RevealPending are transient
		// within-call states; EtchingStateFailed/Final are terminal.
		// Nothing to do for any of them on a tick.
		return nil
	}
}

func (e *EtchingState) advanceCommitSent(ctx context.Context, req *store.EtchingRequest, now time.Time) error {
	if !checkTime(e.net, 4, req.CreatedAt, now) {
		return nil
	}

	// GetBalance reports only confirmed value (Esplora's chain_stats),
	// which already matches the reference min_confirmations=6 lookup
	// without a separate confirmation-count parameter.
	balance, err := e.rpc.GetBalance(ctx, req.TaprootAddress)
	if err != nil {
		return fmt.Errorf("query taproot balance: %w", err)
	}
	if balance <= 0 {
		return nil
	}

	raw, err := hex.DecodeString(req.RevealTxHex)
	if err != nil {
		return fmt.Errorf("decode stored reveal tx: %w", err)
	}
	var revealTx wire.MsgTx
	if err := revealTx.Deserialize(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("deserialize stored reveal tx: %w", err)
	}
	revealTxid := revealTx.TxHash().String()

	if _, err := e.rpc.SendTransaction(ctx, req.RevealTxHex); err != nil {
		return e.store.UpdateEtchingRequest(req.CommitTxid, store.EtchingStateFailed, "", err.Error())
	}
	return e.store.UpdateEtchingRequest(req.CommitTxid, store.EtchingStateRevealSent, revealTxid, "")
}

func (e *EtchingState) advanceRevealSent(req *store.EtchingRequest, now time.Time) error {
	if !checkTime(e.net, 1, req.UpdatedAt, now) {
		return nil
	}

	found, err := e.lookup(req.RevealTxid)
	if err != nil {
		return fmt.Errorf("look up etched rune for %s: %w", req.RevealTxid, err)
	}
	if !found {
		return nil
	}
	return e.store.UpdateEtchingRequest(req.CommitTxid, store.EtchingStateFinal, "", "")
}
