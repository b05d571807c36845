package store

import (
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/Fantasim/runeidx/internal/runes"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCursorRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if c, err := s.GetCursor(); err != nil || c != nil {
		t.Fatalf("GetCursor on empty store = %v, %v; want nil, nil", c, err)
	}

	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.SetCursor(tx, Cursor{Height: 840000, BlockHash: "abc"}); err != nil {
		t.Fatalf("SetCursor: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	c, err := s.GetCursor()
	if err != nil {
		t.Fatalf("GetCursor: %v", err)
	}
	if c.Height != 840000 || c.BlockHash != "abc" {
		t.Fatalf("cursor = %+v, want height 840000 hash abc", c)
	}
}

func TestRuneEntryCreateAndLookup(t *testing.T) {
	s := newTestStore(t)

	r, err := runes.ParseRune("UNCOMMONGOODS")
	if err != nil {
		t.Fatalf("ParseRune: %v", err)
	}

	entry := &runes.RuneEntry{
		RuneId:       runes.RuneId{Block: 840000, Tx: 1},
		SpacedRune:   runes.SpacedRune{Rune: r},
		Divisibility: 2,
		Premine:      runes.NewLot(1000),
		Burned:       runes.ZeroLot(),
		Etching:      chainhash.Hash{0x01},
		Number:       0,
	}

	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.CreateRuneEntry(tx, entry); err != nil {
		t.Fatalf("CreateRuneEntry: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	byID, err := s.GetRuneEntry(entry.RuneId)
	if err != nil {
		t.Fatalf("GetRuneEntry: %v", err)
	}
	if byID == nil || byID.SpacedRune.Rune.String() != "UNCOMMONGOODS" {
		t.Fatalf("GetRuneEntry = %+v", byID)
	}

	byName, err := s.GetRuneEntryByName(r)
	if err != nil {
		t.Fatalf("GetRuneEntryByName: %v", err)
	}
	if byName == nil || byName.RuneId != entry.RuneId {
		t.Fatalf("GetRuneEntryByName = %+v", byName)
	}

	id, err := s.GetRuneIDByTxid(entry.Etching.String())
	if err != nil {
		t.Fatalf("GetRuneIDByTxid: %v", err)
	}
	if id == nil || *id != entry.RuneId {
		t.Fatalf("GetRuneIDByTxid = %+v", id)
	}
}

func TestOutpointBalancesLifecycle(t *testing.T) {
	s := newTestStore(t)
	op := runes.Outpoint{Txid: chainhash.Hash{0x02}, Vout: 0}
	balances := []runes.RuneBalance{
		{RuneId: runes.RuneId{Block: 1, Tx: 0}, Amount: runes.NewLot(500)},
		{RuneId: runes.RuneId{Block: 2, Tx: 0}, Amount: runes.NewLot(10)},
	}

	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.PutOutpointBalances(tx, op, balances); err != nil {
		t.Fatalf("PutOutpointBalances: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := s.GetOutpointBalances(op)
	if err != nil {
		t.Fatalf("GetOutpointBalances: %v", err)
	}
	if len(got) != 2 || got[0].RuneId.Block != 1 || got[1].RuneId.Block != 2 {
		t.Fatalf("GetOutpointBalances = %+v, want sorted by rune id", got)
	}

	tx, err = s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.DeleteOutpointBalances(tx, op); err != nil {
		t.Fatalf("DeleteOutpointBalances: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err = s.GetOutpointBalances(op)
	if err != nil {
		t.Fatalf("GetOutpointBalances after delete: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no balances after delete, got %+v", got)
	}
}

func TestReserveFeeUTXOsGreedySelection(t *testing.T) {
	s := newTestStore(t)

	if err := s.PutFeeUTXOs([]FeeUTXO{
		{Txid: "t1", Vout: 0, Value: 1000},
		{Txid: "t2", Vout: 0, Value: 5000},
		{Txid: "t3", Vout: 0, Value: 200},
	}); err != nil {
		t.Fatalf("PutFeeUTXOs: %v", err)
	}

	selected, err := s.ReserveFeeUTXOs(1100)
	if err != nil {
		t.Fatalf("ReserveFeeUTXOs: %v", err)
	}
	if len(selected) != 2 || selected[0].Txid != "t3" || selected[1].Txid != "t1" {
		t.Fatalf("selected = %+v, want [t3, t1] (smallest-first until target covered)", selected)
	}

	if _, err := s.ReserveFeeUTXOs(6000); err == nil {
		t.Fatal("expected ErrNoFeeUTXOAvailable, remaining pool is only t2 (5000)")
	}

	if err := s.ReleaseFeeUTXOs(selected); err != nil {
		t.Fatalf("ReleaseFeeUTXOs: %v", err)
	}
	if _, err := s.ReserveFeeUTXOs(4000); err != nil {
		t.Fatalf("ReserveFeeUTXOs after release: %v", err)
	}
}

func TestEtchingRequestLifecycle(t *testing.T) {
	s := newTestStore(t)

	req := &EtchingRequest{
		CommitTxid:    "commit1",
		Rune:          "UNCOMMON•GOODS",
		Principal:     "alice",
		State:         EtchingStateCommitPending,
		FeeE8sCharged: 100_000,
	}
	if err := s.CreateEtchingRequest(req); err != nil {
		t.Fatalf("CreateEtchingRequest: %v", err)
	}

	pending, err := s.ListPendingEtchingRequests()
	if err != nil {
		t.Fatalf("ListPendingEtchingRequests: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	if err := s.UpdateEtchingRequest("commit1", EtchingStateFinal, "reveal1", ""); err != nil {
		t.Fatalf("UpdateEtchingRequest: %v", err)
	}

	got, err := s.GetEtchingRequest("commit1")
	if err != nil {
		t.Fatalf("GetEtchingRequest: %v", err)
	}
	if got.State != EtchingStateFinal || got.RevealTxid != "reveal1" || !got.Finalized {
		t.Fatalf("got = %+v", got)
	}

	pending, err = s.ListPendingEtchingRequests()
	if err != nil {
		t.Fatalf("ListPendingEtchingRequests: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after finalize = %d, want 0", len(pending))
	}
}
