package store

import (
	"database/sql"
	"fmt"
)

// Cursor identifies the last block the updater committed.
type Cursor struct {
	Height    uint64
	BlockHash string
}

// GetCursor returns the current index cursor, or (nil, nil) if the index
// has never processed a block.
func (s *Store) GetCursor() (*Cursor, error) {
	var c Cursor
	err := s.conn.QueryRow(`SELECT height, block_hash FROM index_cursor WHERE id = 1`).Scan(&c.Height, &c.BlockHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cursor: %w", err)
	}
	return &c, nil
}

// SetCursor records the block height and hash most recently committed by
// the updater. Must be called in the same transaction as the block's
// other mutations to stay crash-consistent.
func (s *Store) SetCursor(tx *sql.Tx, c Cursor) error {
	_, err := tx.Exec(
		`INSERT INTO index_cursor (id, height, block_hash) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET height = excluded.height, block_hash = excluded.block_hash`,
		c.Height, c.BlockHash,
	)
	if err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	return nil
}

// Begin starts a transaction the updater uses to apply one block's worth
// of mutations atomically.
func (s *Store) Begin() (*sql.Tx, error) {
	return s.conn.Begin()
}
