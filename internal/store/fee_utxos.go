package store

import (
	"fmt"

	"github.com/Fantasim/runeidx/internal/config"
)

// FeeUTXO is a UTXO the etching account can spend to fund commit
// transactions, tracked so two concurrent etching requests don't select
// the same input.
type FeeUTXO struct {
	Txid     string
	Vout     uint32
	Value    int64
	Reserved bool
}

// PutFeeUTXOs appends newly discovered fee UTXOs, ignoring ones already
// tracked.
func (s *Store) PutFeeUTXOs(utxos []FeeUTXO) error {
	if len(utxos) == 0 {
		return nil
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin fee UTXO insert: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO fee_utxos (txid, vout, value, reserved) VALUES (?, ?, ?, 0)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare fee UTXO insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range utxos {
		if _, err := stmt.Exec(u.Txid, u.Vout, u.Value); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert fee UTXO %s:%d: %w", u.Txid, u.Vout, err)
		}
	}

	return tx.Commit()
}

// ReserveFeeUTXOs atomically selects and reserves unreserved fee UTXOs
// totaling at least targetValue, using a simple greedy smallest-first
// selection. Returns config.ErrNoFeeUTXOAvailable if the unreserved pool
// can't cover targetValue.
func (s *Store) ReserveFeeUTXOs(targetValue int64) ([]FeeUTXO, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin fee UTXO reservation: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT txid, vout, value FROM fee_utxos WHERE reserved = 0 ORDER BY value ASC`)
	if err != nil {
		return nil, fmt.Errorf("query unreserved fee UTXOs: %w", err)
	}

	var candidates []FeeUTXO
	for rows.Next() {
		var u FeeUTXO
		if err := rows.Scan(&u.Txid, &u.Vout, &u.Value); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan fee UTXO row: %w", err)
		}
		candidates = append(candidates, u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate fee UTXO rows: %w", err)
	}
	rows.Close()

	var selected []FeeUTXO
	var total int64
	for _, u := range candidates {
		if total >= targetValue {
			break
		}
		selected = append(selected, u)
		total += u.Value
	}

	if total < targetValue {
		return nil, fmt.Errorf("%w: have %d sats, need %d", config.ErrNoFeeUTXOAvailable, total, targetValue)
	}

	stmt, err := tx.Prepare(`UPDATE fee_utxos SET reserved = 1 WHERE txid = ? AND vout = ?`)
	if err != nil {
		return nil, fmt.Errorf("prepare fee UTXO reserve: %w", err)
	}
	defer stmt.Close()

	for _, u := range selected {
		if _, err := stmt.Exec(u.Txid, u.Vout); err != nil {
			return nil, fmt.Errorf("reserve fee UTXO %s:%d: %w", u.Txid, u.Vout, err)
		}
		u.Reserved = true
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit fee UTXO reservation: %w", err)
	}

	return selected, nil
}

// ReleaseFeeUTXOs returns previously reserved UTXOs to the pool, used when
// an etching request fails before broadcasting.
func (s *Store) ReleaseFeeUTXOs(utxos []FeeUTXO) error {
	if len(utxos) == 0 {
		return nil
	}
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin fee UTXO release: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE fee_utxos SET reserved = 0 WHERE txid = ? AND vout = ?`)
	if err != nil {
		return fmt.Errorf("prepare fee UTXO release: %w", err)
	}
	defer stmt.Close()

	for _, u := range utxos {
		if _, err := stmt.Exec(u.Txid, u.Vout); err != nil {
			return fmt.Errorf("release fee UTXO %s:%d: %w", u.Txid, u.Vout, err)
		}
	}

	return tx.Commit()
}

// RemoveFeeUTXO deletes a spent fee UTXO from the pool once its
// transaction has confirmed.
func (s *Store) RemoveFeeUTXO(txid string, vout uint32) error {
	if _, err := s.conn.Exec(`DELETE FROM fee_utxos WHERE txid = ? AND vout = ?`, txid, vout); err != nil {
		return fmt.Errorf("remove fee UTXO %s:%d: %w", txid, vout, err)
	}
	return nil
}
