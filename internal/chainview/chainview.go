// Package chainview presents the transaction index and the mempool as the
// collaborators of the address query service.
package chainview

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-addrindex/internal/addrquery"
	"github.com/Klingon-tech/klingnet-addrindex/internal/index"
	"github.com/Klingon-tech/klingnet-addrindex/internal/mempool"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/tx"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/types"
)

// View joins confirmed and pending state.
type View struct {
	ix   *index.Index
	pool *mempool.Pool
}

// New creates a view over ix and pool.
func New(ix *index.Index, pool *mempool.Pool) *View {
	return &View{ix: ix, pool: pool}
}

// Deps returns the view wired as every query collaborator.
func (v *View) Deps() addrquery.Deps {
	return addrquery.Deps{Index: v, Chain: v, Mempool: v}
}

// IsReducedIndexMode reports whether the index lacks tx or address data.
func (v *View) IsReducedIndexMode() bool {
	return v.ix.IsReducedMode()
}

// LookupByAddress returns pending records first, then confirmed records in
// chain order.
func (v *View) LookupByAddress(ctx context.Context, addr types.Address) ([]addrquery.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pending := v.pool.ByAddress(addr)
	confirmed, err := v.ix.AddressEntries(addr)
	if err != nil {
		return nil, err
	}

	recs := make([]addrquery.Record, 0, len(pending)+len(confirmed))
	for _, h := range pending {
		recs = append(recs, addrquery.Record{TxID: h, Height: addrquery.Unconfirmed, Index: -1})
	}
	for _, e := range confirmed {
		recs = append(recs, addrquery.Record{
			TxID:   e.TxID,
			Height: addrquery.Height(e.Height),
			Index:  int32(e.Position),
		})
	}
	return recs, nil
}

// located is a transaction with the position it was found at.
type located struct {
	tx     *tx.Transaction
	height addrquery.Height
	index  int32
	time   int64
}

func (v *View) locate(rec addrquery.Record) (*located, error) {
	if rec.Height == addrquery.Unconfirmed {
		if t := v.pool.Get(rec.TxID); t != nil {
			return &located{tx: t, height: addrquery.Unconfirmed, index: -1}, nil
		}
	}
	m, err := v.ix.Transaction(rec.TxID)
	if errors.Is(err, index.ErrTxNotFound) {
		return nil, fmt.Errorf("%w: %s", addrquery.ErrTxUnresolvable, rec.TxID)
	}
	if err != nil {
		return nil, err
	}
	return &located{
		tx:     m.Tx,
		height: addrquery.Height(m.Height),
		index:  int32(m.Position),
		time:   int64(m.Time),
	}, nil
}

// ResolveSpentOutputs looks up the outputs spent by the record's inputs in
// the mempool, then the index. Inputs whose output is unknown are skipped.
func (v *View) ResolveSpentOutputs(ctx context.Context, rec addrquery.Record) (*addrquery.CoinView, error) {
	loc, err := v.locate(rec)
	if err != nil {
		return nil, err
	}
	coins := addrquery.NewCoinView()
	if loc.tx.IsCoinbase() {
		return coins, nil
	}
	for _, in := range loc.tx.Inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, ok := v.pool.Output(in.PrevOut)
		if !ok {
			out, err = v.ix.Output(in.PrevOut)
			if errors.Is(err, index.ErrTxNotFound) || errors.Is(err, index.ErrOutputNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("spent output %s: %w", in.PrevOut, err)
			}
		}
		coins.Add(in.PrevOut, addrquery.Coin{Address: scriptAddress(out.Script), Value: out.Value})
	}
	return coins, nil
}

// RenderTransaction builds the resolved view of the record's transaction.
func (v *View) RenderTransaction(rec addrquery.Record, coins *addrquery.CoinView) (*addrquery.ResolvedTx, error) {
	loc, err := v.locate(rec)
	if err != nil {
		return nil, err
	}
	rtx := &addrquery.ResolvedTx{
		Hash:    rec.TxID,
		Height:  loc.height,
		Index:   loc.index,
		Time:    loc.time,
		Inputs:  make([]addrquery.Input, len(loc.tx.Inputs)),
		Outputs: make([]addrquery.Output, len(loc.tx.Outputs)),
	}
	for i, in := range loc.tx.Inputs {
		rtx.Inputs[i] = addrquery.Input{PrevOut: in.PrevOut}
		if c, ok := coins.Get(in.PrevOut); ok {
			rtx.Inputs[i].Coin = &c
		}
	}
	for i, out := range loc.tx.Outputs {
		rtx.Outputs[i] = addrquery.Output{
			Address: scriptAddress(out.Script),
			Value:   out.Value,
			Script:  out.Script,
		}
	}
	return rtx, nil
}

// PendingEntry returns the acceptance time of a pooled transaction.
func (v *View) PendingEntry(txid types.Hash) (addrquery.PendingEntry, bool) {
	e, ok := v.pool.Entry(txid)
	if !ok {
		return addrquery.PendingEntry{}, false
	}
	return addrquery.PendingEntry{Time: e.Time.Unix()}, true
}

func scriptAddress(s types.Script) string {
	if a, ok := s.Address(); ok {
		return a.String()
	}
	return ""
}
