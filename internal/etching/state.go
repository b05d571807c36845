// Package etching is the etching orchestrator: it turns a validated
// etching request into a signed commit/reveal transaction pair, submits
// the commit transaction, and reconciles pending requests on a timer
// until the rune they etch appears in the index. EtchingState is its
// single-owner handle on every resource the orchestrator touches —
// the fee-UTXO pool, the ICP fee ledger, the signer, and the two
// single-flight guards request_etching and handle_etching_result_task
// each hold for their own duration.
package etching

import (
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/Fantasim/runeidx/internal/bitcoinrpc"
	"github.com/Fantasim/runeidx/internal/config"
	"github.com/Fantasim/runeidx/internal/guard"
	"github.com/Fantasim/runeidx/internal/icpfee"
	"github.com/Fantasim/runeidx/internal/signer"
	"github.com/Fantasim/runeidx/internal/store"
)

// EtchingLookup resolves a reveal txid to the rune it etched, the
// injected get_etching(reveal_txid) call the reconciler uses to decide
// when a request is truly final. It is satisfied by
// *internal/store.Store.GetRuneIDByTxid in production.
type EtchingLookup func(revealTxid string) (found bool, err error)

// EtchingState holds every resource request_etching and
// handle_etching_result_task need. Construct one per process; its guards
// are single-flight for the lifetime of the value.
type EtchingState struct {
	store  *store.Store
	rpc    bitcoinrpc.Client
	ledger icpfee.Ledger
	signer signer.Signer
	lookup EtchingLookup
	net    *chaincfg.Params

	feeRateHigh   int64 // sat/vB, used unless overridden
	etchingFeeE8s uint64

	reqGuard *guard.RequestEtchingGuard
	msgGuard *guard.ProcessEtchingMsgGuard
}

// StoreLookup adapts *store.Store.GetRuneIDByTxid into an EtchingLookup.
func StoreLookup(s *store.Store) EtchingLookup {
	return func(revealTxid string) (bool, error) {
		id, err := s.GetRuneIDByTxid(revealTxid)
		if err != nil {
			return false, err
		}
		return id != nil, nil
	}
}

// New builds an EtchingState. etchingFeeE8s of 0 falls back to
// config.DefaultEtchingFeeE8s.
func New(s *store.Store, rpc bitcoinrpc.Client, ledger icpfee.Ledger, sg signer.Signer, lookup EtchingLookup, net *chaincfg.Params, etchingFeeE8s uint64) *EtchingState {
	if etchingFeeE8s == 0 {
		etchingFeeE8s = config.DefaultEtchingFeeE8s
	}
	return &EtchingState{
		store:         s,
		rpc:           rpc,
		ledger:        ledger,
		signer:        sg,
		lookup:        lookup,
		net:           net,
		feeRateHigh:   config.DefaultFeeRateHigh,
		etchingFeeE8s: etchingFeeE8s,
		reqGuard:      guard.NewRequestEtchingGuard(),
		msgGuard:      guard.NewProcessEtchingMsgGuard(),
	}
}

// SetFeeRate overrides the sat/vB rate request_etching uses, the
// equivalent of the operator API's set_tx_fee_per_vbyte for the "high"
// tier this orchestrator always submits at.
func (e *EtchingState) SetFeeRate(satPerVByte int64) {
	e.feeRateHigh = satPerVByte
}
