package addrquery

import (
	"context"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-addrindex/pkg/types"
)

type fakeTx struct {
	prevouts []types.Outpoint
	outputs  []Output
	time     int64
}

// fakeNode implements Index, Chain and Mempool over in-memory maps.
type fakeNode struct {
	mu      sync.Mutex
	reduced bool
	lookups int

	records map[types.Address][]Record
	txs     map[types.Hash]fakeTx
	coins   map[types.Outpoint]Coin
	pending map[types.Hash]int64

	// rendered overrides the height a transaction resolves at, as if it
	// moved between lookup and render.
	rendered map[types.Hash]Height
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		records:  make(map[types.Address][]Record),
		txs:      make(map[types.Hash]fakeTx),
		coins:    make(map[types.Outpoint]Coin),
		pending:  make(map[types.Hash]int64),
		rendered: make(map[types.Hash]Height),
	}
}

func (f *fakeNode) deps() Deps {
	return Deps{Index: f, Chain: f, Mempool: f}
}

func (f *fakeNode) IsReducedIndexMode() bool { return f.reduced }

func (f *fakeNode) LookupByAddress(_ context.Context, addr types.Address) ([]Record, error) {
	f.mu.Lock()
	f.lookups++
	f.mu.Unlock()
	return append([]Record(nil), f.records[addr]...), nil
}

func (f *fakeNode) ResolveSpentOutputs(_ context.Context, rec Record) (*CoinView, error) {
	t, ok := f.txs[rec.TxID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTxUnresolvable, rec.TxID)
	}
	view := NewCoinView()
	for _, op := range t.prevouts {
		if c, ok := f.coins[op]; ok {
			view.Add(op, c)
		}
	}
	return view, nil
}

func (f *fakeNode) RenderTransaction(rec Record, coins *CoinView) (*ResolvedTx, error) {
	t, ok := f.txs[rec.TxID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTxUnresolvable, rec.TxID)
	}
	rtx := &ResolvedTx{
		Hash:    rec.TxID,
		Height:  rec.Height,
		Index:   rec.Index,
		Time:    t.time,
		Outputs: t.outputs,
	}
	if h, ok := f.rendered[rec.TxID]; ok {
		rtx.Height = h
	}
	for _, op := range t.prevouts {
		in := Input{PrevOut: op}
		if c, ok := coins.Get(op); ok {
			in.Coin = &c
		}
		rtx.Inputs = append(rtx.Inputs, in)
	}
	return rtx, nil
}

func (f *fakeNode) PendingEntry(txid types.Hash) (PendingEntry, bool) {
	ts, ok := f.pending[txid]
	return PendingEntry{Time: ts}, ok
}

// addTx registers a transaction touching addrs at height/index. Outputs pay
// the given (address, value) pairs; every output is also recorded as a coin
// so later transactions can spend it.
func (f *fakeNode) addTx(id byte, height Height, index int32, blockTime int64, prevouts []types.Outpoint, outs ...Output) types.Hash {
	txid := types.Hash{id}
	f.txs[txid] = fakeTx{prevouts: prevouts, outputs: outs, time: blockTime}
	for i, o := range outs {
		f.coins[types.Outpoint{TxID: txid, Index: uint32(i)}] = Coin{Address: o.Address, Value: o.Value}
	}

	touched := map[string]struct{}{}
	for _, op := range prevouts {
		if c, ok := f.coins[op]; ok && c.Address != "" {
			touched[c.Address] = struct{}{}
		}
	}
	for _, o := range outs {
		if o.Address != "" {
			touched[o.Address] = struct{}{}
		}
	}
	for s := range touched {
		a, err := types.ParseAddress(s)
		if err != nil {
			panic(err)
		}
		f.records[a] = append(f.records[a], Record{TxID: txid, Height: height, Index: index})
	}
	return txid
}

func out(addr types.Address, value uint64) Output {
	return Output{
		Address: addr.String(),
		Value:   value,
		Script:  types.Script{Type: types.ScriptTypeP2PKH, Data: addr[:]},
	}
}

func i64(v int64) *int64 { return &v }
