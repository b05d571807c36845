package inscription

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/tyler-smith/go-bip39"

	"github.com/Fantasim/runeidx/internal/signer"
)

var net = &chaincfg.RegressionNetParams

func testMnemonic(t *testing.T) string {
	t.Helper()
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		t.Fatalf("NewEntropy: %v", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		t.Fatalf("NewMnemonic: %v", err)
	}
	return mnemonic
}

func testSigner(t *testing.T) *signer.LocalSigner {
	t.Helper()
	s, err := signer.NewLocalSigner("dev", testMnemonic(t), net)
	if err != nil {
		t.Fatalf("NewLocalSigner: %v", err)
	}
	return s
}

func TestEtchingArgsCheckNameLength(t *testing.T) {
	cases := []struct {
		name    string
		wantErr bool
	}{
		{strings.Repeat("A", 9), true},
		{strings.Repeat("A", 10), false},
		{strings.Repeat("A", 26), false},
		{strings.Repeat("A", 27), true},
	}
	for _, c := range cases {
		args := &EtchingArgs{RuneName: c.name}
		_, err := args.check()
		if (err != nil) != c.wantErr {
			t.Errorf("check(%q) err=%v, wantErr=%v", c.name, err, c.wantErr)
		}
	}
}

func TestEtchingArgsCheckTerms(t *testing.T) {
	base := "UNCOMMONGOODS"

	if _, err := (&EtchingArgs{RuneName: base, Terms: &Terms{Amount: "100", Cap: 0}}).check(); err == nil {
		t.Fatal("expected error for zero cap")
	}
	if _, err := (&EtchingArgs{RuneName: base, Terms: &Terms{Amount: "0", Cap: 10}}).check(); err == nil {
		t.Fatal("expected error for zero amount")
	}
	if _, err := (&EtchingArgs{RuneName: base, Terms: &Terms{Amount: "100", Cap: 10}}).check(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEtchingArgsCheckLogoSize(t *testing.T) {
	base := "UNCOMMONGOODS"

	ok := make([]byte, 128*1024)
	args := &EtchingArgs{RuneName: base, LogoContentType: "image/png", LogoBase64: base64.StdEncoding.EncodeToString(ok)}
	if _, err := args.check(); err != nil {
		t.Fatalf("128 KiB logo should be accepted: %v", err)
	}

	tooBig := make([]byte, 128*1024+1)
	args = &EtchingArgs{RuneName: base, LogoContentType: "image/png", LogoBase64: base64.StdEncoding.EncodeToString(tooBig)}
	if _, err := args.check(); err == nil {
		t.Fatal("128 KiB + 1 byte logo should be rejected")
	}
}

func TestEtchingArgsCheckDivisibility(t *testing.T) {
	base := "UNCOMMONGOODS"
	tooHigh := uint8(39)
	if _, err := (&EtchingArgs{RuneName: base, Divisibility: &tooHigh}).check(); err == nil {
		t.Fatal("expected error for divisibility > 38")
	}
	ok := uint8(2)
	if _, err := (&EtchingArgs{RuneName: base, Divisibility: &ok}).check(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuildTaprootProducesValidAddress(t *testing.T) {
	envelope, err := buildEnvelope("", nil, []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("buildEnvelope: %v", err)
	}
	payload, err := buildTaproot(envelope, net)
	if err != nil {
		t.Fatalf("buildTaproot: %v", err)
	}
	if payload.Address.EncodeAddress() == "" {
		t.Fatal("expected non-empty taproot address")
	}
	if len(payload.ControlBlock) == 0 {
		t.Fatal("expected non-empty control block")
	}
}

func TestEstimateRevealVBytesPositive(t *testing.T) {
	args := &EtchingArgs{
		RuneName:     "UNCOMMONGOODS",
		Divisibility: ptrU8(2),
		Premine:      "1000",
		Terms:        &Terms{Amount: "100", Cap: 10},
		Turbo:        true,
		PremineReceiver: zeroAddressForNet(net),
	}
	vb, err := EstimateRevealVBytes(args, net)
	if err != nil {
		t.Fatalf("EstimateRevealVBytes: %v", err)
	}
	if vb <= 0 {
		t.Fatalf("expected positive vbyte estimate, got %d", vb)
	}
}

func TestBuildProducesSpendableCommitReveal(t *testing.T) {
	s := testSigner(t)

	args := &EtchingArgs{
		RuneName:        "UNCOMMONGOODS",
		Divisibility:    ptrU8(2),
		Premine:         "1000",
		Terms:           &Terms{Amount: "100", Cap: 10},
		Turbo:           true,
		PremineReceiver: zeroAddressForNet(net),
	}

	utxoTxid, err := chainhash.NewHashFromStr("13a0ea6d76b710a1a9cdf2d8ce37c53feaaf985386f14ba3e65c544833c00a4")
	if err != nil {
		t.Fatalf("NewHashFromStr: %v", err)
	}
	utxos := []UTXO{{Txid: *utxoTxid, Vout: 0, Value: 100_000}}

	fees := Fees{CommitFee: 2_000, RevealFee: 3_000}

	result, err := Build(context.Background(), args, utxos, fees, s, net)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(result.CommitTx.TxIn) != 1 {
		t.Fatalf("commit tx inputs = %d, want 1", len(result.CommitTx.TxIn))
	}
	if len(result.CommitTx.TxOut) == 0 {
		t.Fatal("commit tx has no outputs")
	}
	if result.CommitTx.TxOut[0].Value != result.RevealBalance {
		t.Fatalf("commit tx reveal output = %d, want %d", result.CommitTx.TxOut[0].Value, result.RevealBalance)
	}

	if len(result.RevealTx.TxIn) != 1 {
		t.Fatalf("reveal tx inputs = %d, want 1", len(result.RevealTx.TxIn))
	}
	if result.RevealTx.TxIn[0].PreviousOutPoint.Hash != result.CommitTx.TxHash() {
		t.Fatal("reveal tx does not spend the commit tx's output")
	}
	if len(result.RevealTx.TxOut) != 2 {
		t.Fatalf("reveal tx outputs = %d, want 2", len(result.RevealTx.TxOut))
	}
	if result.RevealTx.TxOut[1].Value != 10_000 {
		t.Fatalf("reveal tx postage output = %d, want 10000", result.RevealTx.TxOut[1].Value)
	}
	if len(result.RevealTx.TxIn[0].Witness) != 3 {
		t.Fatalf("reveal tx witness stack depth = %d, want 3 (sig, script, control block)", len(result.RevealTx.TxIn[0].Witness))
	}
	if len(result.CommitTx.TxIn[0].Witness) != 2 {
		t.Fatalf("commit tx witness stack depth = %d, want 2 (sig, pubkey)", len(result.CommitTx.TxIn[0].Witness))
	}
}

func ptrU8(v uint8) *uint8 { return &v }
