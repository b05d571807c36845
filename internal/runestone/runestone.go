package runestone

import (
	"errors"
	"math/big"
	"sort"

	"github.com/Fantasim/runeidx/internal/runes"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

var (
	errTagRange  = errors.New("tag value out of range")
	errTruncated = errors.New("truncated tagged field")
)

// Flaw is a specific reason a runestone failed to parse cleanly. Any flaw
// downgrades the parse result from Runestone to Cenotaph.
type Flaw string

const (
	FlawEdictOutput         Flaw = "edict output index out of range"
	FlawEdictRuneId         Flaw = "invalid edict rune id delta"
	FlawOpcode              Flaw = "non-pushdata opcode in runestone output"
	FlawSupplyOverflow      Flaw = "etching supply overflows u128"
	FlawTrailingIntegers    Flaw = "trailing integers in edict body"
	FlawTruncatedField      Flaw = "tagged field missing its value"
	FlawUnrecognizedEvenTag Flaw = "unrecognized even tag"
	FlawVarint              Flaw = "invalid varint in runestone payload"
)

// Etching describes a rune creation embedded in a Runestone.
type Etching struct {
	Divisibility *uint8
	Premine      *runes.Lot
	Rune         *runes.Rune
	Spacers      uint32
	Symbol       *rune
	Terms        *runes.Terms
	Turbo        bool
}

// Runestone is a successfully deciphered runestone payload.
type Runestone struct {
	Edicts  []Edict
	Etching *Etching
	Mint    *runes.RuneId
	Pointer *uint32
}

// Cenotaph is a syntactically present but invalid runestone. Per protocol,
// any rune it claims to etch is still reserved (to prevent name-squatting
// around a broken etching) even though the entry it produces is unmintable.
type Cenotaph struct {
	Flaw    Flaw
	Etching *runes.Rune
	Mint    *runes.RuneId
}

// Artifact is the result of deciphering a transaction: exactly one of
// Runestone or Cenotaph is set, or neither if the transaction carries no
// runestone at all.
type Artifact struct {
	Runestone *Runestone
	Cenotaph  *Cenotaph
}

// magicOpcode is OP_13, the second byte of every runestone OP_RETURN output
// after the OP_RETURN opcode itself.
const magicOpcode = txscript.OP_13

// Decipher extracts and parses the runestone from tx, if any. A nil
// Artifact with a nil error means the transaction carries no runestone.
func Decipher(tx *wire.MsgTx) (*Artifact, error) {
	payload, found, flaw := extractPayload(tx)
	if !found {
		return nil, nil
	}
	if flaw != "" {
		return &Artifact{Cenotaph: &Cenotaph{Flaw: flaw}}, nil
	}

	integers, err := DecodeAllUvarints(payload)
	if err != nil {
		return &Artifact{Cenotaph: &Cenotaph{Flaw: FlawVarint}}, nil
	}

	fields, edictInts, err := splitFields(integers)
	if err != nil {
		return &Artifact{Cenotaph: &Cenotaph{Flaw: FlawTruncatedField}}, nil
	}

	edicts, err := decodeEdicts(edictInts)
	if err != nil {
		return &Artifact{Cenotaph: &Cenotaph{Flaw: FlawTrailingIntegers}}, nil
	}
	for _, e := range edicts {
		if int(e.Output) > len(tx.TxOut) {
			return &Artifact{Cenotaph: &Cenotaph{Flaw: FlawEdictOutput}}, nil
		}
	}

	if flaw := unrecognizedEvenTag(fields); flaw != "" {
		return &Artifact{Cenotaph: &Cenotaph{Flaw: flaw, Etching: reservedRuneNameFromFields(fields)}}, nil
	}

	flags := takeFirst(fields, TagFlags)
	if flags == nil {
		flags = new(big.Int)
	}
	isEtching := flags.Bit(FlagEtchingBit) == 1
	isTurbo := flags.Bit(FlagTurboBit) == 1
	isCenotaphFlag := flags.Bit(FlagCenotaphBit) == 1

	mint := decodeMint(fields)

	var etching *Etching
	if isEtching {
		e, flaw := decodeEtching(fields, isTurbo)
		if flaw != "" {
			return &Artifact{Cenotaph: &Cenotaph{Flaw: flaw, Etching: etchingRuneOrNil(e), Mint: mint}}, nil
		}
		etching = e
	}

	if isCenotaphFlag {
		return &Artifact{Cenotaph: &Cenotaph{Flaw: FlawUnrecognizedEvenTag, Etching: etchingRuneOrNil(etching), Mint: mint}}, nil
	}

	pointer := decodePointer(fields, len(tx.TxOut))

	return &Artifact{Runestone: &Runestone{
		Edicts:  edicts,
		Etching: etching,
		Mint:    mint,
		Pointer: pointer,
	}}, nil
}

func etchingRuneOrNil(e *Etching) *runes.Rune {
	if e == nil {
		return nil
	}
	return e.Rune
}

func reservedRuneNameFromFields(fields map[Tag][]*big.Int) *runes.Rune {
	vals, ok := fields[TagRune]
	if !ok || len(vals) == 0 {
		return nil
	}
	r, err := runes.RuneFromBigInt(vals[0])
	if err != nil {
		return nil
	}
	return &r
}

// extractPayload scans tx's outputs for the first OP_RETURN OP_13 <pushes...>
// envelope and concatenates its pushdata into a single byte slice.
func extractPayload(tx *wire.MsgTx) (payload []byte, found bool, flaw Flaw) {
	for _, out := range tx.TxOut {
		tokenizer := txscript.MakeScriptTokenizer(0, out.PkScript)
		if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_RETURN {
			continue
		}
		if !tokenizer.Next() || tokenizer.Opcode() != magicOpcode {
			continue
		}
		var buf []byte
		ok := true
		for tokenizer.Next() {
			op := tokenizer.Opcode()
			if op > txscript.OP_16 {
				ok = false
				break
			}
			buf = append(buf, tokenizer.Data()...)
		}
		if tokenizer.Err() != nil {
			return nil, true, FlawOpcode
		}
		if !ok {
			return nil, true, FlawOpcode
		}
		return buf, true, ""
	}
	return nil, false, ""
}

// splitFields separates the tagged (tag,value) prefix of the integer stream
// from the flat edict-body suffix that follows a Body tag.
func splitFields(integers []*big.Int) (map[Tag][]*big.Int, []*big.Int, error) {
	fields := make(map[Tag][]*big.Int)
	i := 0
	for i < len(integers) {
		tagInt := integers[i]
		if !tagInt.IsUint64() {
			return nil, nil, errTagRange
		}
		tag := Tag(tagInt.Uint64())
		if tag == TagBody {
			return fields, integers[i+1:], nil
		}
		if i+1 >= len(integers) {
			return nil, nil, errTruncated
		}
		fields[tag] = append(fields[tag], integers[i+1])
		i += 2
	}
	return fields, nil, nil
}

func takeFirst(fields map[Tag][]*big.Int, tag Tag) *big.Int {
	vals, ok := fields[tag]
	if !ok || len(vals) == 0 {
		return nil
	}
	return vals[0]
}

func unrecognizedEvenTag(fields map[Tag][]*big.Int) Flaw {
	known := map[Tag]bool{
		TagBody: true, TagFlags: true, TagRune: true, TagPremine: true,
		TagCap: true, TagAmount: true, TagHeightStart: true, TagHeightEnd: true,
		TagOffsetStart: true, TagOffsetEnd: true, TagMint: true, TagPointer: true,
		TagCenotaph: true, TagDivisibility: true, TagSpacers: true, TagSymbol: true,
		TagNop: true,
	}
	for tag := range fields {
		if known[tag] {
			continue
		}
		if !tag.IsOdd() {
			return FlawUnrecognizedEvenTag
		}
	}
	return ""
}

func decodeMint(fields map[Tag][]*big.Int) *runes.RuneId {
	vals, ok := fields[TagMint]
	if !ok || len(vals) < 2 {
		return nil
	}
	if !vals[0].IsUint64() || !vals[1].IsUint64() {
		return nil
	}
	return &runes.RuneId{Block: vals[0].Uint64(), Tx: uint32(vals[1].Uint64())}
}

func decodePointer(fields map[Tag][]*big.Int, numOutputs int) *uint32 {
	v := takeFirst(fields, TagPointer)
	if v == nil || !v.IsUint64() {
		return nil
	}
	p := uint32(v.Uint64())
	if int(p) >= numOutputs {
		return nil
	}
	return &p
}

func appendTag(buf []byte, tag Tag, value *big.Int) []byte {
	buf = EncodeUvarint(buf, new(big.Int).SetUint64(uint64(tag)))
	buf = EncodeUvarint(buf, value)
	return buf
}

// Encipher builds the OP_RETURN pkScript carrying r, chunked into
// script-element-sized pushes. Edicts are sorted by Id ascending before
// delta-encoding, independent of the order the caller built them in.
func (r *Runestone) Encipher() ([]byte, error) {
	var payload []byte

	if r.Etching != nil {
		var flags big.Int
		flags.SetBit(&flags, FlagEtchingBit, 1)
		if r.Etching.Turbo {
			flags.SetBit(&flags, FlagTurboBit, 1)
		}
		payload = appendTag(payload, TagFlags, &flags)

		if r.Etching.Rune != nil {
			payload = appendTag(payload, TagRune, r.Etching.Rune.BigInt())
		}
		if r.Etching.Divisibility != nil {
			payload = appendTag(payload, TagDivisibility, big.NewInt(int64(*r.Etching.Divisibility)))
		}
		if r.Etching.Spacers != 0 {
			payload = appendTag(payload, TagSpacers, new(big.Int).SetUint64(uint64(r.Etching.Spacers)))
		}
		if r.Etching.Symbol != nil {
			payload = appendTag(payload, TagSymbol, big.NewInt(int64(*r.Etching.Symbol)))
		}
		if r.Etching.Premine != nil {
			payload = appendTag(payload, TagPremine, r.Etching.Premine.BigInt())
		}
		if t := r.Etching.Terms; t != nil {
			if t.Amount != nil {
				payload = appendTag(payload, TagAmount, t.Amount.BigInt())
			}
			if t.Cap != nil {
				payload = appendTag(payload, TagCap, new(big.Int).SetUint64(*t.Cap))
			}
			if t.HeightStart != nil {
				payload = appendTag(payload, TagHeightStart, new(big.Int).SetUint64(*t.HeightStart))
			}
			if t.HeightEnd != nil {
				payload = appendTag(payload, TagHeightEnd, new(big.Int).SetUint64(*t.HeightEnd))
			}
			if t.OffsetStart != nil {
				payload = appendTag(payload, TagOffsetStart, new(big.Int).SetUint64(*t.OffsetStart))
			}
			if t.OffsetEnd != nil {
				payload = appendTag(payload, TagOffsetEnd, new(big.Int).SetUint64(*t.OffsetEnd))
			}
		}
	}

	if r.Mint != nil {
		payload = appendTag(payload, TagMint, new(big.Int).SetUint64(r.Mint.Block))
		payload = appendTag(payload, TagMint, new(big.Int).SetUint64(uint64(r.Mint.Tx)))
	}

	if r.Pointer != nil {
		payload = appendTag(payload, TagPointer, new(big.Int).SetUint64(uint64(*r.Pointer)))
	}

	if len(r.Edicts) > 0 {
		payload = EncodeUvarint(payload, new(big.Int).SetUint64(uint64(TagBody)))
		sorted := append([]Edict(nil), r.Edicts...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Id.Cmp(sorted[j].Id) < 0 })
		payload = encodeEdicts(payload, sorted)
	}

	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_RETURN)
	builder.AddOp(magicOpcode)
	for len(payload) > 0 {
		chunk := payload
		if len(chunk) > txscript.MaxScriptElementSize {
			chunk = chunk[:txscript.MaxScriptElementSize]
		}
		builder.AddData(chunk)
		payload = payload[len(chunk):]
	}
	return builder.Script()
}

func decodeEtching(fields map[Tag][]*big.Int, turbo bool) (*Etching, Flaw) {
	e := &Etching{Turbo: turbo}

	if v := takeFirst(fields, TagRune); v != nil {
		r, err := runes.RuneFromBigInt(v)
		if err != nil {
			return nil, FlawSupplyOverflow
		}
		e.Rune = &r
	}

	if v := takeFirst(fields, TagDivisibility); v != nil && v.IsUint64() {
		d := v.Uint64()
		if d > 38 {
			d = 38
		}
		dd := uint8(d)
		e.Divisibility = &dd
	}

	if v := takeFirst(fields, TagSpacers); v != nil && v.IsUint64() {
		e.Spacers = uint32(v.Uint64())
	}

	if v := takeFirst(fields, TagSymbol); v != nil && v.IsUint64() && v.Uint64() <= 0x10FFFF {
		s := rune(v.Uint64())
		e.Symbol = &s
	}

	if v := takeFirst(fields, TagPremine); v != nil {
		lot, err := runes.LotFromBigInt(v)
		if err != nil {
			return nil, FlawSupplyOverflow
		}
		e.Premine = &lot
	}

	hasTerms := false
	terms := &runes.Terms{}
	if v := takeFirst(fields, TagAmount); v != nil {
		lot, err := runes.LotFromBigInt(v)
		if err != nil {
			return nil, FlawSupplyOverflow
		}
		terms.Amount = &lot
		hasTerms = true
	}
	if v := takeFirst(fields, TagCap); v != nil && v.IsUint64() {
		c := v.Uint64()
		terms.Cap = &c
		hasTerms = true
	}
	if v := takeFirst(fields, TagHeightStart); v != nil && v.IsUint64() {
		h := v.Uint64()
		terms.HeightStart = &h
		hasTerms = true
	}
	if v := takeFirst(fields, TagHeightEnd); v != nil && v.IsUint64() {
		h := v.Uint64()
		terms.HeightEnd = &h
		hasTerms = true
	}
	if v := takeFirst(fields, TagOffsetStart); v != nil && v.IsUint64() {
		h := v.Uint64()
		terms.OffsetStart = &h
		hasTerms = true
	}
	if v := takeFirst(fields, TagOffsetEnd); v != nil && v.IsUint64() {
		h := v.Uint64()
		terms.OffsetEnd = &h
		hasTerms = true
	}
	if hasTerms {
		e.Terms = terms
	}

	if e.Premine != nil && e.Terms != nil && e.Terms.Amount != nil && e.Terms.Cap != nil {
		total := e.Terms.Amount.BigInt()
		total.Mul(total, new(big.Int).SetUint64(*e.Terms.Cap))
		total.Add(total, e.Premine.BigInt())
		if _, err := runes.LotFromBigInt(total); err != nil {
			return nil, FlawSupplyOverflow
		}
	}

	return e, ""
}
