package bitcoinrpc

import (
	"context"
	"fmt"
	"sync"
)

// FakeClient is an in-memory Client for tests. Callers seed the fields
// directly or via the helper setters before exercising code under test.
type FakeClient struct {
	mu sync.Mutex

	Balances  map[string]int64
	UTXOs     map[string][]UTXO
	TxInfos   map[string]*TxInfo
	Headers   map[uint64]*BlockHeaderInfo
	BlockTxs  map[uint64]FakeBlockTxs
	Fee       *FeeEstimate
	SendErr   error
	Broadcast []string // raw hex of every transaction sent, in order
}

// FakeBlockTxs seeds the response for one height's worth of GetBlockTxs.
type FakeBlockTxs struct {
	Hash   string
	RawTxs []string
}

// NewFakeClient returns a FakeClient with empty maps and a default fee
// estimate ready to use.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Balances: make(map[string]int64),
		UTXOs:    make(map[string][]UTXO),
		TxInfos:  make(map[string]*TxInfo),
		Headers:  make(map[uint64]*BlockHeaderInfo),
		BlockTxs: make(map[uint64]FakeBlockTxs),
		Fee:      &FeeEstimate{FastestFee: 10, HalfHourFee: 5, HourFee: 2, EconomyFee: 1, MinimumFee: 1},
	}
}

func (f *FakeClient) SendTransaction(_ context.Context, rawHex string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return "", f.SendErr
	}
	f.Broadcast = append(f.Broadcast, rawHex)
	return fmt.Sprintf("faketx%d", len(f.Broadcast)), nil
}

func (f *FakeClient) GetBalance(_ context.Context, address string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Balances[address], nil
}

func (f *FakeClient) ListUnspent(_ context.Context, address string) ([]UTXO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]UTXO(nil), f.UTXOs[address]...), nil
}

func (f *FakeClient) GetRawTransactionInfo(_ context.Context, txid string) (*TxInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.TxInfos[txid]
	if !ok {
		return nil, fmt.Errorf("fake client: unknown txid %s", txid)
	}
	return info, nil
}

func (f *FakeClient) GetBlockHeaderInfo(_ context.Context, height uint64) (*BlockHeaderInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	header, ok := f.Headers[height]
	if !ok {
		return nil, fmt.Errorf("fake client: unknown height %d", height)
	}
	return header, nil
}

func (f *FakeClient) GetBlockTxs(_ context.Context, height uint64) (string, []string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bt, ok := f.BlockTxs[height]
	if !ok {
		return "", nil, fmt.Errorf("fake client: unknown block height %d", height)
	}
	return bt.Hash, append([]string(nil), bt.RawTxs...), nil
}

func (f *FakeClient) EstimateFee(_ context.Context) (*FeeEstimate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Fee, nil
}

var _ Client = (*FakeClient)(nil)
