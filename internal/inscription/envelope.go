package inscription

import "github.com/btcsuite/btcd/txscript"

// Envelope tags, per the ordinals inscription format this etching binds a
// rune commitment to. Values match the fields the reference indexer scans
// for: pointer (0), content-type (2, carrying the optional logo), rune (13,
// carrying the commitment bytes the updater's admission check looks for).
const (
	tagPointer     = 0
	tagContentType = 2
	tagRune        = 13
)

// buildEnvelope constructs the ordinals-style reveal script:
//
//	OP_FALSE OP_IF "ord" <pointer-tag> [] <content-type?> <content?> <rune-tag> <commitment> OP_ENDIF
//
// The envelope's own pointer field is always left empty — this builder
// never inscribes over an output other than the reveal transaction's
// second output, which the runestone's own pointer tag already selects.
func buildEnvelope(logoContentType string, logoContent []byte, commitment []byte) ([]byte, error) {
	b := txscript.NewScriptBuilder()
	b.AddOp(txscript.OP_FALSE)
	b.AddOp(txscript.OP_IF)
	b.AddData([]byte("ord"))

	b.AddInt64(tagPointer)
	b.AddData(nil)

	if len(logoContent) > 0 {
		b.AddInt64(tagContentType)
		b.AddData([]byte(logoContentType))

		remaining := logoContent
		for len(remaining) > 0 {
			chunk := remaining
			if len(chunk) > txscript.MaxScriptElementSize {
				chunk = chunk[:txscript.MaxScriptElementSize]
			}
			b.AddData(chunk)
			remaining = remaining[len(chunk):]
		}
	}

	b.AddInt64(tagRune)
	b.AddData(commitment)

	b.AddOp(txscript.OP_ENDIF)
	return b.Script()
}
