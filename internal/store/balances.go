package store

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/Fantasim/runeidx/internal/config"
	"github.com/Fantasim/runeidx/internal/runes"
)

// PutOutpointBalances writes the full, sorted-by-rune-id balance set for
// an output that just received runes. Callers must pass balances already
// sorted by RuneId, the consensus-relevant order OutputBalances requires.
func (s *Store) PutOutpointBalances(tx *sql.Tx, op runes.Outpoint, balances []runes.RuneBalance) error {
	if len(balances) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(
		`INSERT INTO outpoint_balances (txid, vout, id_block, id_tx, amount) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare outpoint balance insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range balances {
		if _, err := stmt.Exec(op.Txid.String(), op.Vout, b.RuneId.Block, b.RuneId.Tx, b.Amount.N()); err != nil {
			return fmt.Errorf("insert outpoint balance %s rune %s: %w", op, b.RuneId, err)
		}
	}
	return nil
}

// DeleteOutpointBalances removes an outpoint's balances, called when it is
// consumed as a transaction input so the balances re-enter the unallocated
// pool for that transaction.
func (s *Store) DeleteOutpointBalances(tx *sql.Tx, op runes.Outpoint) error {
	if _, err := tx.Exec(`DELETE FROM outpoint_balances WHERE txid = ? AND vout = ?`, op.Txid.String(), op.Vout); err != nil {
		return fmt.Errorf("delete outpoint balances %s: %w", op, err)
	}
	return nil
}

// GetOutpointBalances returns the balance set for a single outpoint, sorted
// by RuneId, or nil if the outpoint holds no runes.
func (s *Store) GetOutpointBalances(op runes.Outpoint) ([]runes.RuneBalance, error) {
	return scanOutpointBalances(s.conn.Query(
		`SELECT id_block, id_tx, amount FROM outpoint_balances WHERE txid = ? AND vout = ?`,
		op.Txid.String(), op.Vout,
	))
}

// GetOutpointBalancesTx is GetOutpointBalances scoped to an in-flight
// transaction, so the updater can see balances an earlier transaction in
// the same block already wrote but hasn't committed yet.
func (s *Store) GetOutpointBalancesTx(tx *sql.Tx, op runes.Outpoint) ([]runes.RuneBalance, error) {
	return scanOutpointBalances(tx.Query(
		`SELECT id_block, id_tx, amount FROM outpoint_balances WHERE txid = ? AND vout = ?`,
		op.Txid.String(), op.Vout,
	))
}

func scanOutpointBalances(rows *sql.Rows, queryErr error) ([]runes.RuneBalance, error) {
	if queryErr != nil {
		return nil, fmt.Errorf("query outpoint balances: %w", queryErr)
	}
	defer rows.Close()

	var balances []runes.RuneBalance
	for rows.Next() {
		var b runes.RuneBalance
		var amount string
		if err := rows.Scan(&b.RuneId.Block, &b.RuneId.Tx, &amount); err != nil {
			return nil, fmt.Errorf("scan outpoint balance row: %w", err)
		}
		lot, err := runes.LotFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse outpoint balance amount %q: %w", amount, err)
		}
		b.Amount = lot
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outpoint balance rows: %w", err)
	}

	sort.Slice(balances, func(i, j int) bool { return balances[i].RuneId.Cmp(balances[j].RuneId) < 0 })
	return balances, nil
}

// GetRuneBalancesForOutputs is the batch lookup behind the operator API's
// get_rune_balances_for_outputs: for each outpoint, either its sorted
// balance set or nil if it holds none. Enforces MaxOutpoints so a caller
// can't force an unbounded scan.
func (s *Store) GetRuneBalancesForOutputs(outpoints []runes.Outpoint) ([][]runes.RuneBalance, error) {
	if len(outpoints) > config.MaxOutpoints {
		return nil, fmt.Errorf("%w: %d outpoints exceeds maximum %d", config.ErrInvalidConfig, len(outpoints), config.MaxOutpoints)
	}

	results := make([][]runes.RuneBalance, len(outpoints))
	for i, op := range outpoints {
		balances, err := s.GetOutpointBalances(op)
		if err != nil {
			return nil, err
		}
		results[i] = balances
	}
	return results, nil
}

// PutOutpointHeight records the block height at which an outpoint was
// created, used by the updater to validate a committing input's
// confirmation depth during etching admission.
func (s *Store) PutOutpointHeight(tx *sql.Tx, op runes.Outpoint, height uint64) error {
	_, err := tx.Exec(
		`INSERT INTO outpoint_heights (txid, vout, height) VALUES (?, ?, ?)
		 ON CONFLICT(txid, vout) DO UPDATE SET height = excluded.height`,
		op.Txid.String(), op.Vout, height,
	)
	if err != nil {
		return fmt.Errorf("put outpoint height %s: %w", op, err)
	}
	return nil
}

// GetOutpointHeight returns the height an outpoint was created at, or
// (0, false) if unknown.
func (s *Store) GetOutpointHeight(op runes.Outpoint) (uint64, bool, error) {
	var height uint64
	err := s.conn.QueryRow(`SELECT height FROM outpoint_heights WHERE txid = ? AND vout = ?`, op.Txid.String(), op.Vout).Scan(&height)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get outpoint height %s: %w", op, err)
	}
	return height, true, nil
}

// GetOutpointHeightTx is GetOutpointHeight scoped to an in-flight
// transaction, for the same same-block-visibility reason as
// GetOutpointBalancesTx.
func (s *Store) GetOutpointHeightTx(tx *sql.Tx, op runes.Outpoint) (uint64, bool, error) {
	var height uint64
	err := tx.QueryRow(`SELECT height FROM outpoint_heights WHERE txid = ? AND vout = ?`, op.Txid.String(), op.Vout).Scan(&height)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get outpoint height %s: %w", op, err)
	}
	return height, true, nil
}

// DeleteOutpointHeight removes a spent outpoint's height record.
func (s *Store) DeleteOutpointHeight(tx *sql.Tx, op runes.Outpoint) error {
	if _, err := tx.Exec(`DELETE FROM outpoint_heights WHERE txid = ? AND vout = ?`, op.Txid.String(), op.Vout); err != nil {
		return fmt.Errorf("delete outpoint height %s: %w", op, err)
	}
	return nil
}
