package addrquery

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Klingon-tech/klingnet-addrindex/internal/log"
)

// materialize resolves every entry into a full transaction view. Results
// keep entry order. Any failure aborts the whole call. A transaction whose
// resolved height has left r since lookup (mined or reorged out while the
// query ran) is dropped.
func (s *Service) materialize(ctx context.Context, entries []Entry, r Range) ([]View, error) {
	views := make([]View, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			rtx, err := s.render(gctx, e.Record)
			if err != nil {
				return err
			}
			views[i] = View{Address: e.Address, Tx: rtx}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	recordsMaterialized.Add(float64(len(views)))

	kept := views[:0]
	for _, v := range views {
		if !r.Contains(v.Tx.Height) {
			log.Query.Debug().
				Str("tx", v.Tx.Hash.String()).
				Int64("height", int64(v.Tx.Height)).
				Msg("Transaction moved out of range during query")
			continue
		}
		kept = append(kept, v)
	}
	return kept, nil
}

func (s *Service) render(ctx context.Context, rec Record) (*ResolvedTx, error) {
	coins, err := s.deps.Chain.ResolveSpentOutputs(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("resolve inputs of %s: %w", rec.TxID, err)
	}
	rtx, err := s.deps.Chain.RenderTransaction(rec, coins)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", rec.TxID, err)
	}
	if rtx == nil {
		return nil, fmt.Errorf("%w: %s", ErrTxUnresolvable, rec.TxID)
	}
	if rtx.Time == 0 && s.deps.Mempool != nil {
		if pe, ok := s.deps.Mempool.PendingEntry(rtx.Hash); ok {
			rtx.Time = pe.Time
		}
	}
	return rtx, nil
}
