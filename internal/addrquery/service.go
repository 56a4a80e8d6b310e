// Package addrquery answers address activity queries (txids, deltas,
// balance, utxos and mempool deltas) over an address index.
package addrquery

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"time"

	"github.com/Klingon-tech/klingnet-addrindex/internal/log"
)

// Query method names.
const (
	MethodTxIDs   = "getaddresstxids"
	MethodDeltas  = "getaddressdeltas"
	MethodBalance = "getaddressbalance"
	MethodUtxos   = "getaddressutxos"
	MethodMempool = "getaddressmempool"
)

var usage = map[string]string{
	MethodTxIDs:   `getaddresstxids '{"addresses": [<address>,...], "start": <height>, "end": <height>}'`,
	MethodDeltas:  `getaddressdeltas '{"addresses": [<address>,...], "start": <height>, "end": <height>}'`,
	MethodBalance: `getaddressbalance '{"addresses": [<address>,...]}'`,
	MethodUtxos:   `getaddressutxos '{"addresses": [<address>,...]}'`,
	MethodMempool: `getaddressmempool '{"addresses": [<address>,...]}'`,
}

// Usage returns the call signature of method, or "" if it is unknown.
func Usage(method string) string {
	return usage[method]
}

// Options tunes a Service.
type Options struct {
	// Parallelism bounds concurrent lookups per query. Zero means GOMAXPROCS.
	Parallelism int
}

// Service runs address queries. It holds no per-query state and is safe for
// concurrent use.
type Service struct {
	deps        Deps
	parallelism int
}

// New creates a query service over deps.
func New(deps Deps, opts Options) *Service {
	initMetrics()
	p := opts.Parallelism
	if p <= 0 {
		p = runtime.GOMAXPROCS(0)
	}
	return &Service{deps: deps, parallelism: p}
}

// views runs the resolve and materialize stages shared by every method.
func (s *Service) views(ctx context.Context, method string, req Request, r Range) (_ []View, err error) {
	start := time.Now()
	defer func() {
		queryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		if err != nil {
			queryErrors.WithLabelValues(method, errorKind(err)).Inc()
		}
	}()

	if req.Help {
		return nil, &UsageError{Usage: usage[method]}
	}
	addrs, err := parseAddresses(req.Addresses)
	if err != nil {
		return nil, err
	}
	entries, err := s.resolve(ctx, addrs, r)
	if err != nil {
		return nil, err
	}
	views, err := s.materialize(ctx, entries, r)
	if err != nil {
		return nil, err
	}

	log.Query.Debug().
		Str("method", method).
		Int("addresses", len(addrs)).
		Int("records", len(views)).
		Int64("start", int64(r.Start)).
		Int64("end", int64(r.End)).
		Dur("took", time.Since(start)).
		Msg("Address query")
	return views, nil
}

// TxIDs returns the ids of transactions touching the addresses within the
// requested range. Unset start includes mempool transactions.
func (s *Service) TxIDs(ctx context.Context, req Request) ([]string, error) {
	r := Range{Start: boundOr(req.Start, Unconfirmed), End: boundOr(req.End, MaxHeight)}
	views, err := s.views(ctx, MethodTxIDs, req, r)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(views))
	for i, v := range views {
		ids[i] = v.Tx.Hash.String()
	}
	return ids, nil
}

// Deltas returns every movement of the addresses within the requested
// range, ordered by height. Unset start means 0.
func (s *Service) Deltas(ctx context.Context, req Request) ([]Delta, error) {
	r := Range{Start: boundOr(req.Start, 0), End: boundOr(req.End, MaxHeight)}
	views, err := s.views(ctx, MethodDeltas, req, r)
	if err != nil {
		return nil, err
	}
	deltas := []Delta{}
	for _, v := range views {
		for _, m := range Movements(v.Address, v.Tx) {
			deltas = append(deltas, toDelta(v, m))
		}
	}
	sort.SliceStable(deltas, func(i, j int) bool {
		return deltas[i].Height < deltas[j].Height
	})
	return deltas, nil
}

// Balance sums the confirmed movements of the addresses.
func (s *Service) Balance(ctx context.Context, req Request) (Balance, error) {
	req.Start, req.End = nil, nil
	views, err := s.views(ctx, MethodBalance, req, Range{Start: 0, End: MaxHeight})
	if err != nil {
		return Balance{}, err
	}
	var b Balance
	for _, v := range views {
		for _, m := range Movements(v.Address, v.Tx) {
			b.Balance += m.Satoshis
			if m.Satoshis > 0 {
				b.Received += m.Satoshis
			}
		}
	}
	return b, nil
}

// Utxos lists every confirmed output paying one of the addresses.
func (s *Service) Utxos(ctx context.Context, req Request) ([]Utxo, error) {
	req.Start, req.End = nil, nil
	views, err := s.views(ctx, MethodUtxos, req, Range{Start: 0, End: MaxHeight})
	if err != nil {
		return nil, err
	}
	utxos := []Utxo{}
	for _, v := range views {
		for i, o := range v.Tx.Outputs {
			if o.Address == "" || o.Address != v.Address {
				continue
			}
			utxos = append(utxos, Utxo{
				Address:     v.Address,
				TxID:        v.Tx.Hash.String(),
				OutputIndex: i,
				Script:      o.Script.Hex(),
				Satoshis:    int64(o.Value),
				Height:      int64(v.Tx.Height),
			})
		}
	}
	return utxos, nil
}

// Mempool returns the unconfirmed movements of the addresses, ordered by
// pool acceptance time.
func (s *Service) Mempool(ctx context.Context, req Request) ([]MempoolDelta, error) {
	req.Start, req.End = nil, nil
	views, err := s.views(ctx, MethodMempool, req, Range{Start: Unconfirmed, End: Unconfirmed})
	if err != nil {
		return nil, err
	}
	deltas := []MempoolDelta{}
	for _, v := range views {
		for _, m := range Movements(v.Address, v.Tx) {
			deltas = append(deltas, toMempoolDelta(v, m))
		}
	}
	sort.SliceStable(deltas, func(i, j int) bool {
		return deltas[i].Timestamp < deltas[j].Timestamp
	})
	return deltas, nil
}

func errorKind(err error) string {
	var usageErr *UsageError
	switch {
	case errors.As(err, &usageErr):
		return "usage"
	case errors.Is(err, ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrUnsupportedMode):
		return "unsupported_mode"
	case errors.Is(err, ErrTxUnresolvable):
		return "tx_unresolvable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
