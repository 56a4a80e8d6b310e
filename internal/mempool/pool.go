// Package mempool holds unconfirmed transactions together with the time each
// was accepted and an index of the addresses they touch.
package mempool

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-addrindex/internal/log"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/tx"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/types"
)

// Mempool errors.
var (
	ErrAlreadyExists = errors.New("transaction already in mempool")
	ErrConflict      = errors.New("transaction conflicts with existing mempool entry")
	ErrValidation    = errors.New("transaction failed validation")
	ErrCoinbase      = errors.New("coinbase transactions are not pooled")
)

// OutputSource resolves confirmed outputs so pooled spends can be filed under
// the address they debit.
type OutputSource interface {
	Output(op types.Outpoint) (tx.Output, error)
}

// Entry is a pooled transaction and its acceptance time.
type Entry struct {
	Tx   *tx.Transaction
	Hash types.Hash
	Time time.Time

	addrs []types.Address
}

// Pool holds unconfirmed transactions.
type Pool struct {
	mu      sync.RWMutex
	txs     map[types.Hash]*Entry                     // txHash -> entry
	spends  map[types.Outpoint]types.Hash             // outpoint -> txHash (conflict index)
	byAddr  map[types.Address]map[types.Hash]struct{} // address -> txHashes
	maxSize int
	policy  *Policy
	outputs OutputSource
	now     func() time.Time
}

// New creates a mempool. outputs may be nil, in which case only spends of
// other pooled transactions are attributed to an address.
func New(outputs OutputSource, maxSize int) *Pool {
	if maxSize <= 0 {
		maxSize = 5000
	}
	return &Pool{
		txs:     make(map[types.Hash]*Entry),
		spends:  make(map[types.Outpoint]types.Hash),
		byAddr:  make(map[types.Address]map[types.Hash]struct{}),
		maxSize: maxSize,
		policy:  DefaultPolicy(),
		outputs: outputs,
		now:     time.Now,
	}
}

// SetClock replaces the acceptance clock.
func (p *Pool) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

// Add checks structure and signatures and adds a transaction to the pool.
// Rejects duplicates and double-spend conflicts. When the pool is full the
// oldest entry is evicted.
func (p *Pool) Add(transaction *tx.Transaction) error {
	if transaction.IsCoinbase() {
		return ErrCoinbase
	}
	if err := p.policy.Check(transaction); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := transaction.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	txHash := transaction.Hash()
	if _, exists := p.txs[txHash]; exists {
		return ErrAlreadyExists
	}
	for _, in := range transaction.Inputs {
		if conflictHash, exists := p.spends[in.PrevOut]; exists {
			return fmt.Errorf("%w: input %s already spent by %s", ErrConflict, in.PrevOut, conflictHash)
		}
	}

	if len(p.txs) >= p.maxSize {
		oldest := p.oldestLocked()
		p.removeLocked(oldest.Hash)
		log.Mempool.Debug().Str("tx", oldest.Hash.String()).Msg("Evicted oldest transaction")
	}

	e := &Entry{
		Tx:    transaction,
		Hash:  txHash,
		Time:  p.now(),
		addrs: p.touchedLocked(transaction),
	}
	p.txs[txHash] = e
	for _, in := range transaction.Inputs {
		p.spends[in.PrevOut] = txHash
	}
	for _, a := range e.addrs {
		set, ok := p.byAddr[a]
		if !ok {
			set = make(map[types.Hash]struct{})
			p.byAddr[a] = set
		}
		set[txHash] = struct{}{}
	}

	log.Mempool.Debug().
		Str("tx", txHash.String()).
		Int("addresses", len(e.addrs)).
		Msg("Transaction accepted")
	return nil
}

// touchedLocked returns the distinct addresses a transaction debits or
// credits. Unresolvable spends are skipped.
func (p *Pool) touchedLocked(t *tx.Transaction) []types.Address {
	seen := make(map[types.Address]struct{})
	var out []types.Address
	add := func(s types.Script) {
		if a, ok := s.Address(); ok {
			if _, dup := seen[a]; !dup {
				seen[a] = struct{}{}
				out = append(out, a)
			}
		}
	}
	for _, in := range t.Inputs {
		if prev, ok := p.outputLocked(in.PrevOut); ok {
			add(prev.Script)
		}
	}
	for _, o := range t.Outputs {
		add(o.Script)
	}
	return out
}

func (p *Pool) outputLocked(op types.Outpoint) (tx.Output, bool) {
	if e, ok := p.txs[op.TxID]; ok {
		if int(op.Index) < len(e.Tx.Outputs) {
			return e.Tx.Outputs[op.Index], true
		}
		return tx.Output{}, false
	}
	if p.outputs == nil {
		return tx.Output{}, false
	}
	out, err := p.outputs.Output(op)
	if err != nil {
		return tx.Output{}, false
	}
	return out, true
}

// Remove removes a transaction from the mempool by hash.
func (p *Pool) Remove(txHash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txHash)
}

func (p *Pool) removeLocked(txHash types.Hash) {
	e, exists := p.txs[txHash]
	if !exists {
		return
	}
	for _, in := range e.Tx.Inputs {
		if p.spends[in.PrevOut] == txHash {
			delete(p.spends, in.PrevOut)
		}
	}
	for _, a := range e.addrs {
		if set, ok := p.byAddr[a]; ok {
			delete(set, txHash)
			if len(set) == 0 {
				delete(p.byAddr, a)
			}
		}
	}
	delete(p.txs, txHash)
}

// RemoveConfirmed drops transactions that were included in a block, along
// with any pooled transaction that spends an outpoint the block spent.
func (p *Pool) RemoveConfirmed(transactions []*tx.Transaction) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	before := len(p.txs)
	for _, t := range transactions {
		p.removeLocked(t.Hash())
		if t.IsCoinbase() {
			continue
		}
		for _, in := range t.Inputs {
			if h, ok := p.spends[in.PrevOut]; ok {
				p.removeLocked(h)
			}
		}
	}
	return before - len(p.txs)
}

// Has checks if a transaction exists in the mempool.
func (p *Pool) Has(txHash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, exists := p.txs[txHash]
	return exists
}

// Get retrieves a transaction from the mempool, or nil.
func (p *Pool) Get(txHash types.Hash) *tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if e, ok := p.txs[txHash]; ok {
		return e.Tx
	}
	return nil
}

// Entry returns a copy of the pooled entry for txHash.
func (p *Pool) Entry(txHash types.Hash) (Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.txs[txHash]
	if !ok {
		return Entry{}, false
	}
	return Entry{Tx: e.Tx, Hash: e.Hash, Time: e.Time}, true
}

// Output returns an output of a pooled transaction.
func (p *Pool) Output(op types.Outpoint) (tx.Output, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if e, ok := p.txs[op.TxID]; ok && int(op.Index) < len(e.Tx.Outputs) {
		return e.Tx.Outputs[op.Index], true
	}
	return tx.Output{}, false
}

// ByAddress returns the pooled transactions touching addr, oldest first.
// Ties on acceptance time are broken by hash.
func (p *Pool) ByAddress(addr types.Address) []types.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set := p.byAddr[addr]
	entries := make([]*Entry, 0, len(set))
	for h := range set {
		entries = append(entries, p.txs[h])
	}
	sortEntries(entries)

	hashes := make([]types.Hash, len(entries))
	for i, e := range entries {
		hashes[i] = e.Hash
	}
	return hashes
}

// Count returns the number of transactions in the mempool.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// Hashes returns the hashes of all pooled transactions, oldest first.
func (p *Pool) Hashes() []types.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entries := make([]*Entry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}
	sortEntries(entries)
	hashes := make([]types.Hash, len(entries))
	for i, e := range entries {
		hashes[i] = e.Hash
	}
	return hashes
}

// oldestLocked returns the entry accepted first. Must be called with p.mu held.
func (p *Pool) oldestLocked() *Entry {
	var oldest *Entry
	for _, e := range p.txs {
		if oldest == nil || entryLess(e, oldest) {
			oldest = e
		}
	}
	return oldest
}

func sortEntries(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entryLess(entries[i], entries[j])
	})
}

func entryLess(a, b *Entry) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.Before(b.Time)
	}
	return a.Hash.String() < b.Hash.String()
}
