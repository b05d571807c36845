package runestone

import (
	"math/big"
	"testing"

	"github.com/Fantasim/runeidx/internal/runes"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

func bigOne() *big.Int { return big.NewInt(1) }

func bigUint64(n uint64) *big.Int { return new(big.Int).SetUint64(n) }

func wrapPayload(payload []byte) []byte {
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_RETURN)
	builder.AddOp(magicOpcode)
	builder.AddData(payload)
	script, err := builder.Script()
	if err != nil {
		panic(err)
	}
	return script
}

func buildTx(pkScripts ...[]byte) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	for _, s := range pkScripts {
		tx.AddTxOut(wire.NewTxOut(0, s))
	}
	return tx
}

func TestDecipherNoRunestoneReturnsNilArtifact(t *testing.T) {
	tx := buildTx([]byte{0x76, 0xa9}) // unrelated script
	art, err := Decipher(tx)
	if err != nil {
		t.Fatal(err)
	}
	if art != nil {
		t.Fatalf("expected nil artifact, got %+v", art)
	}
}

func TestEncipherDecipherRoundTripEdictsOnly(t *testing.T) {
	edicts := []Edict{
		{Id: runes.RuneId{Block: 840000, Tx: 1}, Amount: runes.NewLot(100), Output: 0},
		{Id: runes.RuneId{Block: 840001, Tx: 2}, Amount: runes.NewLot(50), Output: 1},
	}
	rs := &Runestone{Edicts: edicts}
	script, err := rs.Encipher()
	if err != nil {
		t.Fatal(err)
	}

	tx := buildTx(script, []byte{}, []byte{})
	art, err := Decipher(tx)
	if err != nil {
		t.Fatal(err)
	}
	if art == nil || art.Runestone == nil {
		t.Fatalf("expected deciphered runestone, got %+v", art)
	}
	if len(art.Runestone.Edicts) != 2 {
		t.Fatalf("got %d edicts, want 2", len(art.Runestone.Edicts))
	}
	if art.Runestone.Edicts[0].Id != edicts[0].Id || art.Runestone.Edicts[0].Amount.Cmp(edicts[0].Amount) != 0 {
		t.Errorf("edict 0 mismatch: got %+v", art.Runestone.Edicts[0])
	}
	if art.Runestone.Edicts[1].Id != edicts[1].Id || art.Runestone.Edicts[1].Amount.Cmp(edicts[1].Amount) != 0 {
		t.Errorf("edict 1 mismatch: got %+v", art.Runestone.Edicts[1])
	}
}

func TestEncipherDecipherRoundTripEtching(t *testing.T) {
	r, err := runes.ParseRune("UNCOMMONGOODS")
	if err != nil {
		t.Fatal(err)
	}
	div := uint8(2)
	premine := runes.NewLot(1000)
	amount := runes.NewLot(100)
	cap := uint64(10)
	rs := &Runestone{
		Etching: &Etching{
			Rune:         &r,
			Divisibility: &div,
			Premine:      &premine,
			Turbo:        true,
			Terms:        &runes.Terms{Amount: &amount, Cap: &cap},
		},
	}
	script, err := rs.Encipher()
	if err != nil {
		t.Fatal(err)
	}
	tx := buildTx(script, []byte{})
	art, err := Decipher(tx)
	if err != nil {
		t.Fatal(err)
	}
	if art == nil || art.Runestone == nil {
		t.Fatalf("expected runestone, got cenotaph: %+v", art)
	}
	e := art.Runestone.Etching
	if e == nil {
		t.Fatal("expected etching to decode")
	}
	if e.Rune == nil || e.Rune.String() != "UNCOMMONGOODS" {
		t.Errorf("etched rune = %v, want UNCOMMONGOODS", e.Rune)
	}
	if e.Divisibility == nil || *e.Divisibility != 2 {
		t.Errorf("divisibility = %v, want 2", e.Divisibility)
	}
	if e.Premine == nil || e.Premine.Cmp(premine) != 0 {
		t.Errorf("premine = %v, want 1000", e.Premine)
	}
	if !e.Turbo {
		t.Error("expected turbo flag to round trip")
	}
	if e.Terms == nil || e.Terms.Amount == nil || e.Terms.Amount.Cmp(amount) != 0 {
		t.Errorf("terms.amount mismatch: %+v", e.Terms)
	}
	if e.Terms == nil || e.Terms.Cap == nil || *e.Terms.Cap != 10 {
		t.Errorf("terms.cap mismatch: %+v", e.Terms)
	}
}

func TestDecipherUnrecognizedEvenTagIsCenotaph(t *testing.T) {
	var payload []byte
	payload = appendTag(payload, Tag(100), bigOne())
	script := wrapPayload(payload)
	tx := buildTx(script)
	art, err := Decipher(tx)
	if err != nil {
		t.Fatal(err)
	}
	if art == nil || art.Cenotaph == nil {
		t.Fatalf("expected cenotaph, got %+v", art)
	}
	if art.Cenotaph.Flaw != FlawUnrecognizedEvenTag {
		t.Errorf("flaw = %q, want %q", art.Cenotaph.Flaw, FlawUnrecognizedEvenTag)
	}
}

func TestDecipherTrailingEdictIntegerIsCenotaph(t *testing.T) {
	var payload []byte
	payload = EncodeUvarint(payload, bigUint64(uint64(TagBody)))
	payload = EncodeUvarint(payload, bigOne())
	payload = EncodeUvarint(payload, bigOne())
	// only 3 integers in the body: one short of a full quadruple
	script := wrapPayload(payload)
	tx := buildTx(script)
	art, err := Decipher(tx)
	if err != nil {
		t.Fatal(err)
	}
	if art == nil || art.Cenotaph == nil {
		t.Fatalf("expected cenotaph, got %+v", art)
	}
}
