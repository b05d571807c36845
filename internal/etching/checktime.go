package etching

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/Fantasim/runeidx/internal/config"
)

// networkKey maps net to the key config.NetworkBlockTime is indexed by.
func networkKey(net *chaincfg.Params) string {
	switch net.Name {
	case chaincfg.TestNet3Params.Name:
		return "testnet"
	case chaincfg.SigNetParams.Name:
		return "signet"
	case chaincfg.RegressionNetParams.Name:
		return "regtest"
	default:
		return "mainnet"
	}
}

// checkTime reports whether now falls inside the processing window a
// request opened at reqTime and needing confirmationBlocks confirmations
// is expected to land in: not before the estimated confirmation wait, and
// not more than config.ProcessingWindow past it. Too early means "keep
// waiting"; too late means "stop retrying, a human needs to look" — both
// read as false so the reconciler simply skips the request either way.
func checkTime(net *chaincfg.Params, confirmationBlocks uint32, reqTime, now time.Time) bool {
	blockTime := config.NetworkBlockTime[networkKey(net)]
	estimatedWait := time.Duration(confirmationBlocks) * blockTime
	earliest := reqTime.Add(estimatedWait)
	latest := earliest.Add(config.ProcessingWindow)
	return !now.Before(earliest) && !now.After(latest)
}
