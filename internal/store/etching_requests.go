package store

import (
	"database/sql"
	"fmt"
	"time"
)

// EtchingRequestState is the lifecycle state of a SendEtchingRequest, as
// tracked through commit broadcast, reveal broadcast, and confirmation.
type EtchingRequestState string

const (
	EtchingStateCommitPending  EtchingRequestState = "commit_pending"
	EtchingStateCommitSent     EtchingRequestState = "commit_sent"
	EtchingStateRevealPending  EtchingRequestState = "reveal_pending"
	EtchingStateRevealSent     EtchingRequestState = "reveal_sent"
	EtchingStateFinalizing     EtchingRequestState = "finalizing"
	EtchingStateFinal          EtchingRequestState = "final"
	EtchingStateFailed         EtchingRequestState = "failed"
)

// EtchingRequest is the persistent record of one etching orchestration,
// keyed by its commit transaction id. CreatedAt doubles as commit_at and,
// once the request reaches EtchingStateRevealSent, UpdatedAt doubles as
// reveal_at — neither timestamp changes again until the next state
// transition, so check_time can read them directly off the row.
type EtchingRequest struct {
	CommitTxid    string
	RevealTxid    string // empty until the reveal transaction is broadcast
	Rune          string // spaced rune name requested
	Principal     string
	State         EtchingRequestState
	FeeE8sCharged uint64
	TaprootAddress string // commit transaction's taproot output address
	RevealTxHex    string // signed reveal transaction, ready to broadcast
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Error         string
	Finalized     bool
}

// CreateEtchingRequest inserts a new request, normally in the
// commit_pending state just before the commit transaction is broadcast.
func (s *Store) CreateEtchingRequest(r *EtchingRequest) error {
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	_, err := s.conn.Exec(
		`INSERT INTO etching_requests (commit_txid, reveal_txid, rune, principal, state, fee_e8s_charged, taproot_address, reveal_tx_hex, created_at, updated_at, error, finalized)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CommitTxid, nullIfEmpty(r.RevealTxid), r.Rune, r.Principal, string(r.State), r.FeeE8sCharged,
		r.TaprootAddress, r.RevealTxHex,
		r.CreatedAt.Format(time.RFC3339), r.UpdatedAt.Format(time.RFC3339), nullIfEmpty(r.Error), r.Finalized,
	)
	if err != nil {
		return fmt.Errorf("create etching request %s: %w", r.CommitTxid, err)
	}
	return nil
}

// UpdateEtchingRequest advances a request's state, reveal txid, and error
// message, bumping updated_at. finalized is set true only when state
// transitions to EtchingStateFinal or EtchingStateFailed.
func (s *Store) UpdateEtchingRequest(commitTxid string, state EtchingRequestState, revealTxid, errMsg string) error {
	finalized := state == EtchingStateFinal || state == EtchingStateFailed
	_, err := s.conn.Exec(
		`UPDATE etching_requests SET state = ?, reveal_txid = COALESCE(?, reveal_txid), error = ?, finalized = ?, updated_at = ? WHERE commit_txid = ?`,
		string(state), nullIfEmpty(revealTxid), nullIfEmpty(errMsg), finalized, time.Now().UTC().Format(time.RFC3339), commitTxid,
	)
	if err != nil {
		return fmt.Errorf("update etching request %s: %w", commitTxid, err)
	}
	return nil
}

// GetEtchingRequest returns the request for commitTxid, or (nil, nil) if
// unknown — the contract behind the operator API's get_etching(txid).
func (s *Store) GetEtchingRequest(commitTxid string) (*EtchingRequest, error) {
	row := s.conn.QueryRow(
		`SELECT commit_txid, reveal_txid, rune, principal, state, fee_e8s_charged, taproot_address, reveal_tx_hex, created_at, updated_at, error, finalized
		 FROM etching_requests WHERE commit_txid = ?`,
		commitTxid,
	)
	r, err := scanEtchingRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get etching request %s: %w", commitTxid, err)
	}
	return r, nil
}

// ListPendingEtchingRequests returns every request that has not yet
// reached a terminal state, ordered by commit txid so repeated reconciler
// passes over an unchanged table always visit requests in the same order.
func (s *Store) ListPendingEtchingRequests() ([]*EtchingRequest, error) {
	rows, err := s.conn.Query(
		`SELECT commit_txid, reveal_txid, rune, principal, state, fee_e8s_charged, taproot_address, reveal_tx_hex, created_at, updated_at, error, finalized
		 FROM etching_requests WHERE finalized = 0 ORDER BY commit_txid`,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending etching requests: %w", err)
	}
	defer rows.Close()

	var requests []*EtchingRequest
	for rows.Next() {
		r, err := scanEtchingRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan etching request row: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate etching request rows: %w", err)
	}
	return requests, nil
}

func scanEtchingRequest(row interface{ Scan(dest ...any) error }) (*EtchingRequest, error) {
	var (
		r                    EtchingRequest
		revealTxid, errMsg   sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&r.CommitTxid, &revealTxid, &r.Rune, &r.Principal, &r.State, &r.FeeE8sCharged,
		&r.TaprootAddress, &r.RevealTxHex,
		&createdAt, &updatedAt, &errMsg, &r.Finalized,
	); err != nil {
		return nil, err
	}

	r.RevealTxid = revealTxid.String
	r.Error = errMsg.String

	var err error
	r.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	r.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
	}

	return &r, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
