package etching

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/Fantasim/runeidx/internal/bitcoinrpc"
	"github.com/Fantasim/runeidx/internal/config"
	"github.com/Fantasim/runeidx/internal/icpfee"
	"github.com/Fantasim/runeidx/internal/inscription"
	"github.com/Fantasim/runeidx/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTxHex(t *testing.T, seed byte) (string, *wire.MsgTx) {
	t.Helper()
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: chainhash.Hash{seed}, Index: 0}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		t.Fatalf("serialize sample tx: %v", err)
	}
	return hex.EncodeToString(buf.Bytes()), tx
}

func TestCheckTimeMainnetBoundary(t *testing.T) {
	net := &chaincfg.MainNetParams
	commitAt := time.Time{}.Add(24 * time.Hour) // arbitrary fixed epoch

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"just before window opens", commitAt.Add(28*time.Minute - time.Second), false},
		{"window opens at 28min", commitAt.Add(28 * time.Minute), true},
		{"inside window", commitAt.Add(3 * time.Hour), true},
		{"window closes at 6h28m", commitAt.Add(6*time.Hour + 28*time.Minute), true},
		{"just after window closes", commitAt.Add(6*time.Hour + 28*time.Minute + time.Second), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := checkTime(net, 4, commitAt, c.now)
			if got != c.want {
				t.Fatalf("checkTime(%s) = %v, want %v", c.name, got, c.want)
			}
		})
	}
}

func TestHandleEtchingResultTaskAdvancesToRevealThenFinal(t *testing.T) {
	s := newTestStore(t)
	rpc := bitcoinrpc.NewFakeClient()
	rpc.Balances["bc1ptaproot"] = 0

	revealHex, revealTx := sampleTxHex(t, 0x01)
	revealTxid := revealTx.TxHash().String()

	found := false
	lookup := func(txid string) (bool, error) {
		if txid != revealTxid {
			t.Fatalf("lookup called with unexpected txid %s", txid)
		}
		return found, nil
	}

	e := New(s, rpc, icpfee.NewMemoryLedger(nil), nil, lookup, &chaincfg.MainNetParams, 0)

	req := &store.EtchingRequest{
		CommitTxid:     "commit1",
		Rune:           "UNCOMMON•GOODS",
		Principal:      "alice",
		State:          store.EtchingStateCommitPending,
		FeeE8sCharged:  config.DefaultEtchingFeeE8s,
		TaprootAddress: "bc1ptaproot",
		RevealTxHex:    revealHex,
	}
	if err := s.CreateEtchingRequest(req); err != nil {
		t.Fatalf("CreateEtchingRequest: %v", err)
	}
	if err := s.UpdateEtchingRequest("commit1", store.EtchingStateCommitSent, "", ""); err != nil {
		t.Fatalf("UpdateEtchingRequest: %v", err)
	}

	commitSentAt := mustGet(t, s, "commit1").CreatedAt

	ctx := context.Background()

	// Balance still zero: window is open but nothing to reveal yet.
	if err := e.HandleEtchingResultTask(ctx, commitSentAt.Add(30*time.Minute)); err != nil {
		t.Fatalf("HandleEtchingResultTask (no balance): %v", err)
	}
	if got := mustGet(t, s, "commit1"); got.State != store.EtchingStateCommitSent {
		t.Fatalf("state with zero balance = %s, want commit_sent", got.State)
	}
	if len(rpc.Broadcast) != 0 {
		t.Fatalf("unexpected broadcast with zero balance: %v", rpc.Broadcast)
	}

	rpc.Balances["bc1ptaproot"] = 1

	if err := e.HandleEtchingResultTask(ctx, commitSentAt.Add(31*time.Minute)); err != nil {
		t.Fatalf("HandleEtchingResultTask (reveal): %v", err)
	}
	got := mustGet(t, s, "commit1")
	if got.State != store.EtchingStateRevealSent {
		t.Fatalf("state after balance appears = %s, want reveal_sent", got.State)
	}
	if got.RevealTxid != revealTxid {
		t.Fatalf("reveal txid = %s, want %s", got.RevealTxid, revealTxid)
	}
	if len(rpc.Broadcast) != 1 || rpc.Broadcast[0] != revealHex {
		t.Fatalf("broadcast = %v, want [%s]", rpc.Broadcast, revealHex)
	}

	revealSentAt := got.UpdatedAt

	// Too early for the 1-confirmation window: get_etching must not be consulted.
	if err := e.HandleEtchingResultTask(ctx, revealSentAt.Add(2*time.Minute)); err != nil {
		t.Fatalf("HandleEtchingResultTask (too early): %v", err)
	}
	if got := mustGet(t, s, "commit1"); got.State != store.EtchingStateRevealSent {
		t.Fatalf("state before window opens = %s, want reveal_sent", got.State)
	}

	found = true
	if err := e.HandleEtchingResultTask(ctx, revealSentAt.Add(8*time.Minute)); err != nil {
		t.Fatalf("HandleEtchingResultTask (finalize): %v", err)
	}
	got = mustGet(t, s, "commit1")
	if got.State != store.EtchingStateFinal || !got.Finalized {
		t.Fatalf("state after get_etching resolves = %+v, want final", got)
	}
}

func TestRequestEtchingGuardRejectsConcurrentAnyName(t *testing.T) {
	s := newTestStore(t)
	rpc := bitcoinrpc.NewFakeClient()
	e := New(s, rpc, icpfee.NewMemoryLedger(map[string]uint64{"alice": 1_000_000}), nil, func(string) (bool, error) { return false, nil }, &chaincfg.MainNetParams, 0)

	release, err := e.reqGuard.Acquire(requestEtchingGuardKey)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	// A concurrent request for an entirely different name must still be
	// rejected: the guard is one-in-flight for the whole process, not
	// keyed per rune name.
	args := &inscription.EtchingArgs{RuneName: "ANOTHERNAME"}
	if _, err := e.RequestEtching(context.Background(), args, "alice"); !errors.Is(err, config.ErrGuardBusy) {
		t.Fatalf("err = %v, want ErrGuardBusy", err)
	}
}

func TestRequestEtchingRejectsInsufficientAllowance(t *testing.T) {
	s := newTestStore(t)
	rpc := bitcoinrpc.NewFakeClient()
	e := New(s, rpc, icpfee.NewMemoryLedger(map[string]uint64{"alice": 1}), nil, func(string) (bool, error) { return false, nil }, &chaincfg.MainNetParams, 0)

	args := &inscription.EtchingArgs{RuneName: "UNCOMMONGOODS"}
	if _, err := e.RequestEtching(context.Background(), args, "alice"); !errors.Is(err, config.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
}

func mustGet(t *testing.T, s *store.Store, commitTxid string) *store.EtchingRequest {
	t.Helper()
	req, err := s.GetEtchingRequest(commitTxid)
	if err != nil {
		t.Fatalf("GetEtchingRequest: %v", err)
	}
	if req == nil {
		t.Fatalf("GetEtchingRequest(%s) = nil", commitTxid)
	}
	return req
}
