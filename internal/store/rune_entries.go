package store

import (
	"database/sql"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/Fantasim/runeidx/internal/runes"
)

// CreateRuneEntry inserts a brand-new rune entry and its txid/name lookups.
// RuneEntry rows are immutable except for mints/burned, enforced by only
// ever calling this once per rune_id.
func (s *Store) CreateRuneEntry(tx *sql.Tx, entry *runes.RuneEntry) error {
	var symbol *string
	if entry.Symbol != 0 {
		str := string(entry.Symbol)
		symbol = &str
	}

	var termsAmount, termsCap *string
	var heightStart, heightEnd, offsetStart, offsetEnd *uint64
	if entry.Terms != nil {
		if entry.Terms.Amount != nil {
			str := entry.Terms.Amount.N()
			termsAmount = &str
		}
		if entry.Terms.Cap != nil {
			str := fmt.Sprintf("%d", *entry.Terms.Cap)
			termsCap = &str
		}
		heightStart = entry.Terms.HeightStart
		heightEnd = entry.Terms.HeightEnd
		offsetStart = entry.Terms.OffsetStart
		offsetEnd = entry.Terms.OffsetEnd
	}

	_, err := tx.Exec(
		`INSERT INTO rune_entries (
			id_block, id_tx, rune, spacers, divisibility, symbol, premine,
			terms_amount, terms_cap, terms_height_start, terms_height_end,
			terms_offset_start, terms_offset_end, mints, burned, turbo,
			etching_txid, number
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RuneId.Block, entry.RuneId.Tx,
		entry.SpacedRune.Rune.String(), entry.SpacedRune.Spacers,
		entry.Divisibility, symbol, entry.Premine.N(),
		termsAmount, termsCap, heightStart, heightEnd, offsetStart, offsetEnd,
		entry.Mints, entry.Burned.N(), entry.Turbo,
		entry.Etching.String(), entry.Number,
	)
	if err != nil {
		return fmt.Errorf("insert rune entry %s: %w", entry.RuneId, err)
	}

	if _, err := tx.Exec(
		`INSERT INTO rune_ids_by_txid (txid, id_block, id_tx) VALUES (?, ?, ?)`,
		entry.Etching.String(), entry.RuneId.Block, entry.RuneId.Tx,
	); err != nil {
		return fmt.Errorf("insert txid lookup for %s: %w", entry.RuneId, err)
	}

	return nil
}

// UpdateRuneEntrySupply advances the mutable supply counters of an
// existing entry: the mint count and burned total.
func (s *Store) UpdateRuneEntrySupply(tx *sql.Tx, id runes.RuneId, mints uint64, burned runes.Lot) error {
	_, err := tx.Exec(
		`UPDATE rune_entries SET mints = ?, burned = ? WHERE id_block = ? AND id_tx = ?`,
		mints, burned.N(), id.Block, id.Tx,
	)
	if err != nil {
		return fmt.Errorf("update rune entry supply %s: %w", id, err)
	}
	return nil
}

func scanRuneEntry(row interface {
	Scan(dest ...any) error
}) (*runes.RuneEntry, error) {
	var (
		block, txIdx                                     uint64
		blockTx                                           uint32
		runeStr, etchingTxid                              string
		spacers, divisibility, number                     uint64
		symbol, termsAmount, termsCap                     sql.NullString
		heightStart, heightEnd, offsetStart, offsetEnd     sql.NullInt64
		mints                                             uint64
		burned                                             string
		premine                                            string
		turbo                                              bool
	)

	if err := row.Scan(
		&block, &blockTx, &runeStr, &spacers, &divisibility, &symbol, &premine,
		&termsAmount, &termsCap, &heightStart, &heightEnd, &offsetStart, &offsetEnd,
		&mints, &burned, &turbo, &etchingTxid, &number,
	); err != nil {
		return nil, err
	}

	r, err := runes.ParseRune(runeStr)
	if err != nil {
		return nil, fmt.Errorf("parse stored rune name %q: %w", runeStr, err)
	}

	premineLot, err := runes.LotFromString(premine)
	if err != nil {
		return nil, fmt.Errorf("parse stored premine %q: %w", premine, err)
	}
	burnedLot, err := runes.LotFromString(burned)
	if err != nil {
		return nil, fmt.Errorf("parse stored burned %q: %w", burned, err)
	}

	etchingHash, err := chainhash.NewHashFromStr(etchingTxid)
	if err != nil {
		return nil, fmt.Errorf("parse stored etching txid %q: %w", etchingTxid, err)
	}

	entry := &runes.RuneEntry{
		RuneId:       runes.RuneId{Block: block, Tx: blockTx},
		SpacedRune:   runes.SpacedRune{Rune: r, Spacers: uint32(spacers)},
		Divisibility: uint8(divisibility),
		Premine:      premineLot,
		Mints:        mints,
		Burned:       burnedLot,
		Turbo:        turbo,
		Etching:      *etchingHash,
		Number:       number,
	}
	if symbol.Valid && symbol.String != "" {
		entry.Symbol = []rune(symbol.String)[0]
	}

	if termsAmount.Valid || termsCap.Valid || heightStart.Valid || heightEnd.Valid || offsetStart.Valid || offsetEnd.Valid {
		terms := &runes.Terms{}
		if termsAmount.Valid {
			amt, err := runes.LotFromString(termsAmount.String)
			if err != nil {
				return nil, fmt.Errorf("parse stored terms amount %q: %w", termsAmount.String, err)
			}
			terms.Amount = &amt
		}
		if termsCap.Valid {
			var cap uint64
			if _, err := fmt.Sscanf(termsCap.String, "%d", &cap); err != nil {
				return nil, fmt.Errorf("parse stored terms cap %q: %w", termsCap.String, err)
			}
			terms.Cap = &cap
		}
		if heightStart.Valid {
			v := uint64(heightStart.Int64)
			terms.HeightStart = &v
		}
		if heightEnd.Valid {
			v := uint64(heightEnd.Int64)
			terms.HeightEnd = &v
		}
		if offsetStart.Valid {
			v := uint64(offsetStart.Int64)
			terms.OffsetStart = &v
		}
		if offsetEnd.Valid {
			v := uint64(offsetEnd.Int64)
			terms.OffsetEnd = &v
		}
		entry.Terms = terms
	}

	return entry, nil
}

const runeEntryColumns = `id_block, id_tx, rune, spacers, divisibility, symbol, premine,
	terms_amount, terms_cap, terms_height_start, terms_height_end,
	terms_offset_start, terms_offset_end, mints, burned, turbo, etching_txid, number`

// GetRuneEntry returns the entry for id, or (nil, nil) if none exists.
func (s *Store) GetRuneEntry(id runes.RuneId) (*runes.RuneEntry, error) {
	row := s.conn.QueryRow(
		`SELECT `+runeEntryColumns+` FROM rune_entries WHERE id_block = ? AND id_tx = ?`,
		id.Block, id.Tx,
	)
	return unwrapRuneEntry(scanRuneEntry(row))
}

// GetRuneEntryTx is GetRuneEntry scoped to an in-flight transaction, so the
// updater can see an entry created earlier in the same block (e.g. a mint
// of a rune etched by a preceding transaction) before it commits.
func (s *Store) GetRuneEntryTx(tx *sql.Tx, id runes.RuneId) (*runes.RuneEntry, error) {
	row := tx.QueryRow(
		`SELECT `+runeEntryColumns+` FROM rune_entries WHERE id_block = ? AND id_tx = ?`,
		id.Block, id.Tx,
	)
	return unwrapRuneEntry(scanRuneEntry(row))
}

// GetRuneEntryByName returns the entry whose bijective base-26 name is r,
// or (nil, nil) if no such rune has been etched.
func (s *Store) GetRuneEntryByName(r runes.Rune) (*runes.RuneEntry, error) {
	row := s.conn.QueryRow(`SELECT `+runeEntryColumns+` FROM rune_entries WHERE rune = ?`, r.String())
	return unwrapRuneEntry(scanRuneEntry(row))
}

// GetRuneEntryByNameTx is GetRuneEntryByName scoped to an in-flight
// transaction, for the same same-block-visibility reason as GetRuneEntryTx.
func (s *Store) GetRuneEntryByNameTx(tx *sql.Tx, r runes.Rune) (*runes.RuneEntry, error) {
	row := tx.QueryRow(`SELECT `+runeEntryColumns+` FROM rune_entries WHERE rune = ?`, r.String())
	return unwrapRuneEntry(scanRuneEntry(row))
}

func unwrapRuneEntry(entry *runes.RuneEntry, err error) (*runes.RuneEntry, error) {
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rune entry: %w", err)
	}
	return entry, nil
}

// CountRuneEntries returns the total number of etched runes recorded so
// far, the basis for the sequential Number assigned to the next one.
func (s *Store) CountRuneEntries() (uint64, error) {
	var n uint64
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM rune_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rune entries: %w", err)
	}
	return n, nil
}

// GetRuneIDByTxid returns the rune id etched by txid, or (nil, nil) if txid
// did not etch a rune.
func (s *Store) GetRuneIDByTxid(txid string) (*runes.RuneId, error) {
	var id runes.RuneId
	err := s.conn.QueryRow(`SELECT id_block, id_tx FROM rune_ids_by_txid WHERE txid = ?`, txid).Scan(&id.Block, &id.Tx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rune id by txid %s: %w", txid, err)
	}
	return &id, nil
}
