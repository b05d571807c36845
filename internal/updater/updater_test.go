package updater

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Fantasim/runeidx/internal/bitcoinrpc"
	"github.com/Fantasim/runeidx/internal/runes"
	"github.com/Fantasim/runeidx/internal/runestone"
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

// dummyOutputScript is a non-OP_RETURN script, so any output using it is a
// valid leftover/edict destination.
func dummyOutputScript(t *testing.T) []byte {
	t.Helper()
	script, err := txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(make([]byte, 20)).Script()
	if err != nil {
		t.Fatalf("build dummy output script: %v", err)
	}
	return script
}

func txWithOutputs(t *testing.T, prevHash chainhash.Hash, prevVout uint32, numOutputs int) *wire.MsgTx {
	t.Helper()
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: prevHash, Index: prevVout}, nil, nil))
	script := dummyOutputScript(t)
	for i := 0; i < numOutputs; i++ {
		tx.AddTxOut(wire.NewTxOut(1000, script))
	}
	return tx
}

func withRunestoneOutput(t *testing.T, tx *wire.MsgTx, rs *runestone.Runestone) *wire.MsgTx {
	t.Helper()
	script, err := rs.Encipher()
	if err != nil {
		t.Fatalf("Encipher: %v", err)
	}
	out := wire.NewTxOut(0, script)
	tx.TxOut = append([]*wire.TxOut{out}, tx.TxOut...)
	return tx
}

func seedUnallocated(t *testing.T, s *store.Store, txid chainhash.Hash, vout uint32, id runes.RuneId, amount runes.Lot) {
	t.Helper()
	dbtx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	op := runes.Outpoint{Txid: txid, Vout: vout}
	if err := s.PutOutpointBalances(dbtx, op, []runes.RuneBalance{{RuneId: id, Amount: amount}}); err != nil {
		t.Fatalf("PutOutpointBalances: %v", err)
	}
	if err := s.PutOutpointHeight(dbtx, op, 840000); err != nil {
		t.Fatalf("PutOutpointHeight: %v", err)
	}
	if err := dbtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

var testRuneID = runes.RuneId{Block: 840000, Tx: 1}

func TestEdictSpreadEvenDistributionWithRemainder(t *testing.T) {
	s := newTestStore(t)
	prevHash := chainhash.Hash{0x01}
	seedUnallocated(t, s, prevHash, 0, testRuneID, runes.NewLot(10))

	tx := txWithOutputs(t, prevHash, 0, 3)
	rs := &runestone.Runestone{
		Edicts: []runestone.Edict{{Id: testRuneID, Amount: runes.ZeroLot(), Output: uint32(len(tx.TxOut))}},
	}
	tx = withRunestoneOutput(t, tx, rs)

	u := NewRuneUpdater(s, bitcoinrpc.NewFakeClient(), runes.Mainnet, 840001, 0)
	dbtx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := u.ProcessTransaction(context.Background(), dbtx, 0, tx); err != nil {
		t.Fatalf("ProcessTransaction: %v", err)
	}
	if err := u.Update(dbtx); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := dbtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	txid := tx.TxHash()
	want := []uint64{4, 3, 3}
	for i, w := range want {
		balances, err := s.GetOutpointBalances(runes.Outpoint{Txid: txid, Vout: uint32(i + 1)})
		if err != nil {
			t.Fatalf("GetOutpointBalances(%d): %v", i, err)
		}
		if len(balances) != 1 || balances[0].Amount.String() != runes.NewLot(w).String() {
			t.Fatalf("output %d balances = %v, want %d", i, balances, w)
		}
	}
}

func TestEdictSpreadLargeRemainder(t *testing.T) {
	s := newTestStore(t)
	prevHash := chainhash.Hash{0x02}
	seedUnallocated(t, s, prevHash, 0, testRuneID, runes.NewLot(1000))

	tx := txWithOutputs(t, prevHash, 0, 3)
	rs := &runestone.Runestone{
		Edicts: []runestone.Edict{{Id: testRuneID, Amount: runes.ZeroLot(), Output: uint32(len(tx.TxOut))}},
	}
	tx = withRunestoneOutput(t, tx, rs)

	u := NewRuneUpdater(s, bitcoinrpc.NewFakeClient(), runes.Mainnet, 840001, 0)
	dbtx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := u.ProcessTransaction(context.Background(), dbtx, 0, tx); err != nil {
		t.Fatalf("ProcessTransaction: %v", err)
	}
	if err := dbtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	txid := tx.TxHash()
	want := []uint64{334, 333, 333}
	for i, w := range want {
		balances, err := s.GetOutpointBalances(runes.Outpoint{Txid: txid, Vout: uint32(i + 1)})
		if err != nil {
			t.Fatalf("GetOutpointBalances(%d): %v", i, err)
		}
		if len(balances) != 1 || balances[0].Amount.String() != runes.NewLot(w).String() {
			t.Fatalf("output %d balances = %v, want %d", i, balances, w)
		}
	}
}

func TestEdictSpecificOutputClampsToBalance(t *testing.T) {
	s := newTestStore(t)
	prevHash := chainhash.Hash{0x03}
	seedUnallocated(t, s, prevHash, 0, testRuneID, runes.NewLot(5))

	tx := txWithOutputs(t, prevHash, 0, 1)
	rs := &runestone.Runestone{
		Edicts: []runestone.Edict{{Id: testRuneID, Amount: runes.NewLot(7), Output: 1}},
	}
	tx = withRunestoneOutput(t, tx, rs)

	u := NewRuneUpdater(s, bitcoinrpc.NewFakeClient(), runes.Mainnet, 840001, 0)
	dbtx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := u.ProcessTransaction(context.Background(), dbtx, 0, tx); err != nil {
		t.Fatalf("ProcessTransaction: %v", err)
	}
	if err := dbtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	txid := tx.TxHash()
	balances, err := s.GetOutpointBalances(runes.Outpoint{Txid: txid, Vout: 1})
	if err != nil {
		t.Fatalf("GetOutpointBalances: %v", err)
	}
	if len(balances) != 1 || balances[0].Amount.String() != "5" {
		t.Fatalf("output balances = %v, want [5]", balances)
	}
}

func TestCenotaphBurnsAllUnallocatedInputs(t *testing.T) {
	s := newTestStore(t)
	prevHash := chainhash.Hash{0x04}
	seedUnallocated(t, s, prevHash, 0, testRuneID, runes.NewLot(500))

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: prevHash, Index: 0}, nil, nil))
	// A runestone OP_RETURN output whose payload is not a valid varint
	// stream decodes as a cenotaph (FlawVarint).
	badScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddOp(txscript.OP_13).
		AddData([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}).
		Script()
	if err != nil {
		t.Fatalf("build cenotaph script: %v", err)
	}
	tx.AddTxOut(wire.NewTxOut(0, badScript))
	tx.AddTxOut(wire.NewTxOut(1000, dummyOutputScript(t)))

	u := NewRuneUpdater(s, bitcoinrpc.NewFakeClient(), runes.Mainnet, 840001, 0)
	dbtx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := u.ProcessTransaction(context.Background(), dbtx, 0, tx); err != nil {
		t.Fatalf("ProcessTransaction: %v", err)
	}

	txid := tx.TxHash()
	balances, err := s.GetOutpointBalances(runes.Outpoint{Txid: txid, Vout: 1})
	if err != nil {
		t.Fatalf("GetOutpointBalances: %v", err)
	}
	if len(balances) != 0 {
		t.Fatalf("expected no allocated balances on a cenotaph, got %v", balances)
	}
	if err := dbtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if amt, ok := u.burned[testRuneID]; !ok || amt.String() != "500" {
		t.Fatalf("burned[%s] = %v, want 500", testRuneID, amt)
	}
}

func TestMintUnderCapThenCapReached(t *testing.T) {
	s := newTestStore(t)
	amount := runes.NewLot(10)
	mintCap := uint64(2)
	entry := &runes.RuneEntry{
		RuneId:     runes.RuneId{Block: 840000, Tx: 0},
		SpacedRune: runes.SpacedRune{Rune: mustParseRune(t, "AAAAAAAAAA")},
		Premine:    runes.ZeroLot(),
		Burned:     runes.ZeroLot(),
		Mints:      1,
		Terms:      &runes.Terms{Amount: &amount, Cap: &mintCap},
		Etching:    chainhash.Hash{0xaa},
	}
	dbtx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.CreateRuneEntry(dbtx, entry); err != nil {
		t.Fatalf("CreateRuneEntry: %v", err)
	}
	if err := dbtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	mintTx := func(prevByte byte) *wire.MsgTx {
		tx := wire.NewMsgTx(wire.TxVersion)
		tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: chainhash.Hash{prevByte}, Index: 0}, nil, nil))
		tx.AddTxOut(wire.NewTxOut(1000, dummyOutputScript(t)))
		id := entry.RuneId
		rs := &runestone.Runestone{Mint: &id}
		return withRunestoneOutput(t, tx, rs)
	}

	u := NewRuneUpdater(s, bitcoinrpc.NewFakeClient(), runes.Mainnet, 840001, 1)
	dbtx, err = s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	firstMint := mintTx(0x10)
	if err := u.ProcessTransaction(context.Background(), dbtx, 0, firstMint); err != nil {
		t.Fatalf("ProcessTransaction (mint 1): %v", err)
	}
	if err := dbtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := s.GetRuneEntry(entry.RuneId)
	if err != nil {
		t.Fatalf("GetRuneEntry: %v", err)
	}
	if got.Mints != 2 {
		t.Fatalf("mints after first mint = %d, want 2", got.Mints)
	}
	firstTxid := firstMint.TxHash()
	balances, err := s.GetOutpointBalances(runes.Outpoint{Txid: firstTxid, Vout: 0})
	if err != nil {
		t.Fatalf("GetOutpointBalances: %v", err)
	}
	if len(balances) != 1 || balances[0].Amount.String() != "10" {
		t.Fatalf("minted output balances = %v, want [10]", balances)
	}

	// Second mint: cap already reached, must be a silent no-op.
	u2 := NewRuneUpdater(s, bitcoinrpc.NewFakeClient(), runes.Mainnet, 840002, 1)
	dbtx, err = s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	secondMint := mintTx(0x11)
	if err := u2.ProcessTransaction(context.Background(), dbtx, 0, secondMint); err != nil {
		t.Fatalf("ProcessTransaction (mint 2): %v", err)
	}
	if err := dbtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err = s.GetRuneEntry(entry.RuneId)
	if err != nil {
		t.Fatalf("GetRuneEntry: %v", err)
	}
	if got.Mints != 2 {
		t.Fatalf("mints after capped mint attempt = %d, want unchanged 2", got.Mints)
	}
	secondTxid := secondMint.TxHash()
	balances, err = s.GetOutpointBalances(runes.Outpoint{Txid: secondTxid, Vout: 0})
	if err != nil {
		t.Fatalf("GetOutpointBalances: %v", err)
	}
	if len(balances) != 0 {
		t.Fatalf("capped mint should not allocate any balance, got %v", balances)
	}
}

func mustParseRune(t *testing.T, name string) runes.Rune {
	t.Helper()
	r, err := runes.ParseRune(name)
	if err != nil {
		t.Fatalf("ParseRune(%q): %v", name, err)
	}
	return r
}
