package index

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-addrindex/internal/storage"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/block"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/crypto"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/tx"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/types"
)

func pay(addr types.Address, value uint64) tx.Output {
	return tx.Output{Value: value, Script: types.Script{Type: types.ScriptTypeP2PKH, Data: addr[:]}}
}

func nextBlock(t *testing.T, ix *Index, txs ...*tx.Transaction) *block.Block {
	t.Helper()
	var hdr block.Header
	if h, hash, ok := ix.Tip(); ok {
		hdr.Height = h + 1
		hdr.PrevHash = hash
	}
	hdr.Version = 1
	hdr.Timestamp = 1700000000 + hdr.Height*60
	return block.NewBlock(&hdr, txs)
}

func fullIndex(t *testing.T) (*Index, storage.DB) {
	t.Helper()
	db := storage.NewMemory()
	ix, err := New(db, Options{TxIndex: true, AddrIndex: true})
	require.NoError(t, err)
	return ix, db
}

func TestConnectBlock_IndexesBothSides(t *testing.T) {
	ix, _ := fullIndex(t)
	keyA, err := crypto.GenerateKey()
	require.NoError(t, err)
	a := keyA.Address()
	b := types.Address{0xbb}

	cb := tx.NewCoinbase(0, pay(a, 100))
	require.NoError(t, ix.ConnectBlock(nextBlock(t, ix, cb)))

	spend := &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{{PrevOut: types.Outpoint{TxID: cb.Hash(), Index: 0}}},
		Outputs: []tx.Output{pay(b, 25), pay(a, 75)},
	}
	require.NoError(t, spend.Sign(keyA))
	require.NoError(t, ix.ConnectBlock(nextBlock(t, ix, tx.NewCoinbase(1, pay(b, 1)), spend)))

	entriesA, err := ix.AddressEntries(a)
	require.NoError(t, err)
	require.Len(t, entriesA, 2)
	assert.Equal(t, Entry{TxID: cb.Hash(), Height: 0, Position: 0}, entriesA[0])
	assert.Equal(t, Entry{TxID: spend.Hash(), Height: 1, Position: 1}, entriesA[1])

	entriesB, err := ix.AddressEntries(b)
	require.NoError(t, err)
	require.Len(t, entriesB, 2)
	assert.Equal(t, uint32(0), entriesB[0].Position)
	assert.Equal(t, spend.Hash(), entriesB[1].TxID)

	m, err := ix.Transaction(spend.Hash())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.Height)
	assert.Equal(t, uint32(1), m.Position)
	assert.Equal(t, uint64(1700000060), m.Time)

	out, err := ix.Output(types.Outpoint{TxID: spend.Hash(), Index: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(75), out.Value)

	_, err = ix.Output(types.Outpoint{TxID: spend.Hash(), Index: 9})
	assert.True(t, errors.Is(err, ErrOutputNotFound))
}

func TestConnectBlock_SameBlockSpend(t *testing.T) {
	ix, _ := fullIndex(t)
	a := types.Address{0xaa}
	c := types.Address{0xcc}

	cb := tx.NewCoinbase(0, pay(a, 10))
	child := &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{{PrevOut: types.Outpoint{TxID: cb.Hash()}}},
		Outputs: []tx.Output{pay(c, 10)},
	}
	require.NoError(t, ix.ConnectBlock(nextBlock(t, ix, cb, child)))

	entries, err := ix.AddressEntries(a)
	require.NoError(t, err)
	require.Len(t, entries, 2, "child debits a and must be filed under it")
}

func TestConnectBlock_RejectsGap(t *testing.T) {
	ix, _ := fullIndex(t)
	require.NoError(t, ix.ConnectBlock(nextBlock(t, ix, tx.NewCoinbase(0, pay(types.Address{1}, 1)))))

	orphan := block.NewBlock(&block.Header{Height: 5}, []*tx.Transaction{tx.NewCoinbase(5, pay(types.Address{1}, 1))})
	err := ix.ConnectBlock(orphan)
	assert.True(t, errors.Is(err, ErrNotConnected))
}

func TestTransaction_NotFound(t *testing.T) {
	ix, _ := fullIndex(t)
	_, err := ix.Transaction(types.Hash{0x42})
	assert.True(t, errors.Is(err, ErrTxNotFound))

	has, err := ix.HasTransaction(types.Hash{0x42})
	require.NoError(t, err)
	assert.False(t, has)
}

func TestDisconnectBlock(t *testing.T) {
	ix, _ := fullIndex(t)
	a := types.Address{0xaa}

	b0 := nextBlock(t, ix, tx.NewCoinbase(0, pay(a, 10)))
	require.NoError(t, ix.ConnectBlock(b0))
	cb1 := tx.NewCoinbase(1, pay(a, 20))
	b1 := nextBlock(t, ix, cb1)
	require.NoError(t, ix.ConnectBlock(b1))

	assert.Error(t, ix.DisconnectBlock(b0), "only the tip can be disconnected")
	require.NoError(t, ix.DisconnectBlock(b1))

	h, hash, ok := ix.Tip()
	require.True(t, ok)
	assert.Equal(t, uint64(0), h)
	assert.Equal(t, b0.Hash(), hash)

	entries, err := ix.AddressEntries(a)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	_, err = ix.Transaction(cb1.Hash())
	assert.True(t, errors.Is(err, ErrTxNotFound))
}

func TestNew_ReloadsTip(t *testing.T) {
	ix, db := fullIndex(t)
	blk := nextBlock(t, ix, tx.NewCoinbase(0, pay(types.Address{1}, 1)))
	require.NoError(t, ix.ConnectBlock(blk))

	reopened, err := New(db, Options{TxIndex: true, AddrIndex: true})
	require.NoError(t, err)
	h, hash, ok := reopened.Tip()
	require.True(t, ok)
	assert.Equal(t, uint64(0), h)
	assert.Equal(t, blk.Hash(), hash)
}

func TestReducedMode(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		reduced bool
	}{
		{"full", Options{TxIndex: true, AddrIndex: true}, false},
		{"no txindex", Options{AddrIndex: true}, true},
		{"no addrindex", Options{TxIndex: true}, true},
		{"none", Options{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, err := New(storage.NewMemory(), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.reduced, ix.IsReducedMode())
		})
	}

	ix, err := New(storage.NewMemory(), Options{TxIndex: true})
	require.NoError(t, err)
	_, err = ix.AddressEntries(types.Address{1})
	assert.True(t, errors.Is(err, ErrReducedMode))
}

func TestBadgerBackedIndex(t *testing.T) {
	db, err := storage.NewBadger(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	ix, err := New(db, Options{TxIndex: true, AddrIndex: true})
	require.NoError(t, err)
	a := types.Address{0xaa}
	require.NoError(t, ix.ConnectBlock(nextBlock(t, ix, tx.NewCoinbase(0, pay(a, 10)))))

	entries, err := ix.AddressEntries(a)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// faultyDB wraps a memory store, counting direct writes and failing batch
// commits on demand.
type faultyDB struct {
	*storage.MemoryDB
	puts       int
	failCommit bool
	cancelled  int
}

func (f *faultyDB) Put(key, value []byte) error {
	f.puts++
	return f.MemoryDB.Put(key, value)
}

func (f *faultyDB) NewBatch() storage.Batch {
	return &faultyBatch{db: f, inner: f.MemoryDB.NewBatch()}
}

type faultyBatch struct {
	db    *faultyDB
	inner storage.Batch
}

func (b *faultyBatch) Put(key, value []byte) error { return b.inner.Put(key, value) }
func (b *faultyBatch) Delete(key []byte) error     { return b.inner.Delete(key) }

func (b *faultyBatch) Commit() error {
	if b.db.failCommit {
		return errors.New("disk full")
	}
	return b.inner.Commit()
}

func (b *faultyBatch) Cancel() {
	b.db.cancelled++
	b.inner.Cancel()
}

func TestConnectBlock_SingleCommit(t *testing.T) {
	db := &faultyDB{MemoryDB: storage.NewMemory()}
	ix, err := New(db, Options{TxIndex: true, AddrIndex: true})
	require.NoError(t, err)

	a := types.Address{0xaa}
	require.NoError(t, ix.ConnectBlock(nextBlock(t, ix, tx.NewCoinbase(0, pay(a, 10)))))
	assert.Zero(t, db.puts, "every write goes through the block batch")

	reopened, err := New(db, Options{TxIndex: true, AddrIndex: true})
	require.NoError(t, err)
	h, _, ok := reopened.Tip()
	assert.True(t, ok)
	assert.Equal(t, uint64(0), h)
}

func TestConnectBlock_FailedCommitLeavesIndexUntouched(t *testing.T) {
	db := &faultyDB{MemoryDB: storage.NewMemory()}
	ix, err := New(db, Options{TxIndex: true, AddrIndex: true})
	require.NoError(t, err)

	a := types.Address{0xaa}
	cb := tx.NewCoinbase(0, pay(a, 10))
	db.failCommit = true
	err = ix.ConnectBlock(nextBlock(t, ix, cb))
	require.Error(t, err)
	assert.Equal(t, 1, db.cancelled, "failed batch is cancelled")

	_, _, ok := ix.Tip()
	assert.False(t, ok)
	entries, err := ix.AddressEntries(a)
	require.NoError(t, err)
	assert.Empty(t, entries)
	has, err := ix.HasTransaction(cb.Hash())
	require.NoError(t, err)
	assert.False(t, has)

	// The same block connects once the store recovers.
	db.failCommit = false
	require.NoError(t, ix.ConnectBlock(nextBlock(t, ix, cb)))
	entries, err = ix.AddressEntries(a)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDisconnectBlock_FailedCommitKeepsTip(t *testing.T) {
	db := &faultyDB{MemoryDB: storage.NewMemory()}
	ix, err := New(db, Options{TxIndex: true, AddrIndex: true})
	require.NoError(t, err)

	a := types.Address{0xaa}
	require.NoError(t, ix.ConnectBlock(nextBlock(t, ix, tx.NewCoinbase(0, pay(a, 10)))))
	blk := nextBlock(t, ix, tx.NewCoinbase(1, pay(a, 5)))
	require.NoError(t, ix.ConnectBlock(blk))

	db.failCommit = true
	require.Error(t, ix.DisconnectBlock(blk))
	h, hash, ok := ix.Tip()
	assert.True(t, ok)
	assert.Equal(t, uint64(1), h)
	assert.Equal(t, blk.Hash(), hash)
	entries, err := ix.AddressEntries(a)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestConnectBlock_RejectsOutOfRangeValue(t *testing.T) {
	ix, _ := fullIndex(t)
	cb := tx.NewCoinbase(0, pay(types.Address{0xaa}, 1<<63))
	err := ix.ConnectBlock(nextBlock(t, ix, cb))
	assert.ErrorIs(t, err, tx.ErrValueOutOfRange)
	_, _, ok := ix.Tip()
	assert.False(t, ok)
}
