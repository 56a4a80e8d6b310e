// Package index maintains the transaction index and the address index that
// the address query service reads from.
package index

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-addrindex/internal/log"
	"github.com/Klingon-tech/klingnet-addrindex/internal/storage"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/block"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/tx"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/types"
)

// Index errors.
var (
	ErrTxNotFound     = errors.New("transaction not indexed")
	ErrOutputNotFound = errors.New("output not indexed")
	ErrNotConnected   = errors.New("block does not extend the index tip")
	ErrReducedMode    = errors.New("index is running in reduced mode")
)

// Key prefixes for the index namespaces.
var (
	prefixTx   = []byte("t/") // t/<txid(32)> -> TxMeta JSON
	prefixAddr = []byte("a/") // a/<addr(20)><height(8)><pos(4)><txid(32)> -> empty
	prefixMeta = []byte("m/")
	keyTip     = []byte("tip") // height(8) + hash(32)
)

const addrKeySize = types.AddressSize + 8 + 4 + types.HashSize

// Options selects which indexes are maintained.
type Options struct {
	TxIndex   bool
	AddrIndex bool
}

// TxMeta is a confirmed transaction together with its block location.
type TxMeta struct {
	Tx        *tx.Transaction `json:"tx"`
	Height    uint64          `json:"height"`
	Position  uint32          `json:"position"`
	BlockHash types.Hash      `json:"block_hash"`
	Time      uint64          `json:"time"`
}

// Entry is one row of the address index.
type Entry struct {
	TxID     types.Hash
	Height   uint64
	Position uint32
}

// Index stores confirmed transactions and an address -> tx mapping.
type Index struct {
	opts  Options
	db    storage.DB
	txs   *storage.PrefixDB
	addrs *storage.PrefixDB
	meta  *storage.PrefixDB

	mu      sync.RWMutex
	tipHash types.Hash
	tipH    uint64
	hasTip  bool
}

// New opens an index over db and loads the persisted tip.
func New(db storage.DB, opts Options) (*Index, error) {
	ix := &Index{
		opts:  opts,
		db:    db,
		txs:   storage.NewPrefixDB(db, prefixTx),
		addrs: storage.NewPrefixDB(db, prefixAddr),
		meta:  storage.NewPrefixDB(db, prefixMeta),
	}
	raw, err := ix.meta.Get(keyTip)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load tip: %w", err)
	case len(raw) != 8+types.HashSize:
		return nil, fmt.Errorf("load tip: corrupt value (%d bytes)", len(raw))
	default:
		ix.tipH = binary.BigEndian.Uint64(raw[:8])
		copy(ix.tipHash[:], raw[8:])
		ix.hasTip = true
	}
	return ix, nil
}

// IsReducedMode reports whether either index is disabled. In reduced mode
// address lookups are refused.
func (ix *Index) IsReducedMode() bool {
	return !ix.opts.TxIndex || !ix.opts.AddrIndex
}

// Options returns the index configuration.
func (ix *Index) Options() Options {
	return ix.opts
}

// Tip returns the height and hash of the last connected block.
func (ix *Index) Tip() (uint64, types.Hash, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tipH, ix.tipHash, ix.hasTip
}

// ConnectBlock indexes every transaction of blk. Each transaction is filed
// under the addresses of its outputs and of the outputs its inputs spend.
// The block must extend the current tip. The rows and the new tip are
// committed in one batch.
func (ix *Index) ConnectBlock(blk *block.Block) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	h := blk.Header.Height
	if ix.hasTip {
		if h != ix.tipH+1 || blk.Header.PrevHash != ix.tipHash {
			return fmt.Errorf("%w: height %d on tip %d", ErrNotConnected, h, ix.tipH)
		}
	}

	hash := blk.Hash()
	batch := storage.NewBatch(ix.db)
	defer batch.Cancel()

	// Outputs created earlier in this block are not yet readable from the DB.
	local := make(map[types.Hash]*tx.Transaction, len(blk.Transactions))

	for pos, t := range blk.Transactions {
		txid := t.Hash()
		if _, err := t.TotalOutputValue(); err != nil {
			return fmt.Errorf("block %d tx %s: %w", h, txid, err)
		}
		local[txid] = t

		if ix.opts.TxIndex {
			data, err := json.Marshal(&TxMeta{
				Tx:        t,
				Height:    h,
				Position:  uint32(pos),
				BlockHash: hash,
				Time:      blk.Header.Timestamp,
			})
			if err != nil {
				return fmt.Errorf("tx marshal %s: %w", txid, err)
			}
			if err := batch.Put(ix.txs.Key(txid[:]), data); err != nil {
				return fmt.Errorf("tx index put %s: %w", txid, err)
			}
		}

		if !ix.opts.AddrIndex {
			continue
		}
		addrs, err := ix.touchedAddresses(t, local)
		if err != nil {
			return fmt.Errorf("block %d tx %s: %w", h, txid, err)
		}
		for _, a := range addrs {
			if err := batch.Put(ix.addrs.Key(addrKey(a, h, uint32(pos), txid)), nil); err != nil {
				return fmt.Errorf("addr index put: %w", err)
			}
		}
	}

	if err := batch.Put(ix.meta.Key(keyTip), tipValue(h, hash)); err != nil {
		return fmt.Errorf("store tip: %w", err)
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit block %d: %w", h, err)
	}
	ix.tipH, ix.tipHash, ix.hasTip = h, hash, true

	log.Index.Debug().
		Uint64("height", h).
		Str("hash", hash.String()).
		Int("txs", len(blk.Transactions)).
		Msg("Block indexed")
	return nil
}

// DisconnectBlock removes the tip block from the index, moving the tip back
// to its parent. Like ConnectBlock it commits in one batch.
func (ix *Index) DisconnectBlock(blk *block.Block) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	hash := blk.Hash()
	if !ix.hasTip || hash != ix.tipHash {
		return fmt.Errorf("%w: %s is not the tip", ErrNotConnected, hash)
	}

	h := blk.Header.Height
	local := make(map[types.Hash]*tx.Transaction, len(blk.Transactions))
	for _, t := range blk.Transactions {
		local[t.Hash()] = t
	}

	batch := storage.NewBatch(ix.db)
	defer batch.Cancel()
	for pos, t := range blk.Transactions {
		txid := t.Hash()
		if ix.opts.AddrIndex {
			addrs, err := ix.touchedAddresses(t, local)
			if err != nil {
				return fmt.Errorf("block %d tx %s: %w", h, txid, err)
			}
			for _, a := range addrs {
				if err := batch.Delete(ix.addrs.Key(addrKey(a, h, uint32(pos), txid))); err != nil {
					return fmt.Errorf("addr index delete: %w", err)
				}
			}
		}
		if err := batch.Delete(ix.txs.Key(txid[:])); err != nil {
			return fmt.Errorf("tx index delete %s: %w", txid, err)
		}
	}

	if h == 0 {
		if err := batch.Delete(ix.meta.Key(keyTip)); err != nil {
			return fmt.Errorf("clear tip: %w", err)
		}
	} else if err := batch.Put(ix.meta.Key(keyTip), tipValue(h-1, blk.Header.PrevHash)); err != nil {
		return fmt.Errorf("store tip: %w", err)
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit disconnect %d: %w", h, err)
	}

	if h == 0 {
		ix.tipH, ix.tipHash, ix.hasTip = 0, types.Hash{}, false
	} else {
		ix.tipH, ix.tipHash = h-1, blk.Header.PrevHash
	}
	log.Index.Debug().Uint64("height", h).Str("hash", hash.String()).Msg("Block disconnected")
	return nil
}

func tipValue(height uint64, hash types.Hash) []byte {
	v := make([]byte, 8+types.HashSize)
	binary.BigEndian.PutUint64(v[:8], height)
	copy(v[8:], hash[:])
	return v
}

// touchedAddresses returns the distinct addresses a transaction credits or
// debits, in first-seen order.
func (ix *Index) touchedAddresses(t *tx.Transaction, local map[types.Hash]*tx.Transaction) ([]types.Address, error) {
	seen := make(map[types.Address]struct{})
	var out []types.Address
	add := func(s types.Script) {
		a, ok := s.Address()
		if !ok {
			return
		}
		if _, dup := seen[a]; dup {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}

	if !t.IsCoinbase() {
		for _, in := range t.Inputs {
			prev, err := ix.output(in.PrevOut, local)
			if errors.Is(err, ErrReducedMode) {
				// Without the tx index only same-block spends resolve.
				continue
			}
			if err != nil {
				return nil, err
			}
			add(prev.Script)
		}
	}
	for _, o := range t.Outputs {
		add(o.Script)
	}
	return out, nil
}

func (ix *Index) output(op types.Outpoint, local map[types.Hash]*tx.Transaction) (tx.Output, error) {
	if t, ok := local[op.TxID]; ok {
		if int(op.Index) >= len(t.Outputs) {
			return tx.Output{}, fmt.Errorf("%w: %s", ErrOutputNotFound, op)
		}
		return t.Outputs[op.Index], nil
	}
	return ix.Output(op)
}

// Transaction returns a confirmed transaction and its location.
func (ix *Index) Transaction(txid types.Hash) (*TxMeta, error) {
	if !ix.opts.TxIndex {
		return nil, ErrReducedMode
	}
	data, err := ix.txs.Get(txid[:])
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTxNotFound, txid)
	}
	if err != nil {
		return nil, fmt.Errorf("tx get %s: %w", txid, err)
	}
	var m TxMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("tx unmarshal %s: %w", txid, err)
	}
	return &m, nil
}

// HasTransaction reports whether txid is indexed.
func (ix *Index) HasTransaction(txid types.Hash) (bool, error) {
	return ix.txs.Has(txid[:])
}

// Output returns a confirmed output regardless of whether it is spent.
func (ix *Index) Output(op types.Outpoint) (tx.Output, error) {
	m, err := ix.Transaction(op.TxID)
	if err != nil {
		return tx.Output{}, err
	}
	if int(op.Index) >= len(m.Tx.Outputs) {
		return tx.Output{}, fmt.Errorf("%w: %s", ErrOutputNotFound, op)
	}
	return m.Tx.Outputs[op.Index], nil
}

// AddressEntries returns every indexed transaction that touches addr,
// ordered by height then block position.
func (ix *Index) AddressEntries(addr types.Address) ([]Entry, error) {
	if !ix.opts.AddrIndex {
		return nil, ErrReducedMode
	}
	var entries []Entry
	err := ix.addrs.ForEach(addr[:], func(key, _ []byte) error {
		if len(key) != addrKeySize {
			return fmt.Errorf("corrupt address key (%d bytes)", len(key))
		}
		rest := key[types.AddressSize:]
		var e Entry
		e.Height = binary.BigEndian.Uint64(rest[:8])
		e.Position = binary.BigEndian.Uint32(rest[8:12])
		copy(e.TxID[:], rest[12:])
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("address lookup %s: %w", addr, err)
	}
	return entries, nil
}

func addrKey(a types.Address, height uint64, pos uint32, txid types.Hash) []byte {
	k := make([]byte, 0, addrKeySize)
	k = append(k, a[:]...)
	k = binary.BigEndian.AppendUint64(k, height)
	k = binary.BigEndian.AppendUint32(k, pos)
	return append(k, txid[:]...)
}
