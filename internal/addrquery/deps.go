package addrquery

import (
	"context"

	"github.com/Klingon-tech/klingnet-addrindex/pkg/types"
)

// Index is the address index.
type Index interface {
	// IsReducedIndexMode reports that the node runs without a full
	// transaction and address index.
	IsReducedIndexMode() bool
	// LookupByAddress returns every record touching addr, mempool included.
	LookupByAddress(ctx context.Context, addr types.Address) ([]Record, error)
}

// Chain resolves records into transactions.
type Chain interface {
	// ResolveSpentOutputs returns the outputs spent by the record's inputs.
	// Inputs whose output cannot be found are left out of the view.
	ResolveSpentOutputs(ctx context.Context, rec Record) (*CoinView, error)
	// RenderTransaction builds the resolved view of the record's transaction.
	RenderTransaction(rec Record, coins *CoinView) (*ResolvedTx, error)
}

// PendingEntry is what the pending pool knows about a transaction.
type PendingEntry struct {
	Time int64 // acceptance time, unix seconds
}

// Mempool exposes pending pool entries.
type Mempool interface {
	PendingEntry(txid types.Hash) (PendingEntry, bool)
}

// Deps are the collaborators a Service reads from.
type Deps struct {
	Index   Index
	Chain   Chain
	Mempool Mempool
}
