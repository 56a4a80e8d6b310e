// Package block defines the block model consumed by the address index.
package block

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-addrindex/pkg/tx"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/types"
)

// Block represents a block in the chain.
type Block struct {
	Header       *Header           `json:"header"`
	Transactions []*tx.Transaction `json:"transactions"`
}

// NewBlock creates a block and fills in the header's merkle root.
func NewBlock(header *Header, txs []*tx.Transaction) *Block {
	b := &Block{Header: header, Transactions: txs}
	header.MerkleRoot = b.ComputeMerkleRoot()
	return b
}

// Hash returns the header hash.
func (b *Block) Hash() types.Hash {
	return b.Header.Hash()
}

// ComputeMerkleRoot returns the merkle root of the block's transaction IDs.
func (b *Block) ComputeMerkleRoot() types.Hash {
	ids := make([]types.Hash, len(b.Transactions))
	for i, t := range b.Transactions {
		ids[i] = t.Hash()
	}
	return ComputeMerkleRoot(ids)
}

// Validate checks that the block carries transactions, that the merkle root
// commits to them, and that every transaction is well formed.
func (b *Block) Validate() error {
	if b.Header == nil {
		return fmt.Errorf("block has no header")
	}
	if len(b.Transactions) == 0 {
		return fmt.Errorf("block %d has no transactions", b.Header.Height)
	}
	if got := b.ComputeMerkleRoot(); got != b.Header.MerkleRoot {
		return fmt.Errorf("block %d merkle root mismatch: header %s, computed %s",
			b.Header.Height, b.Header.MerkleRoot, got)
	}
	for i, t := range b.Transactions {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("block %d tx %d: %w", b.Header.Height, i, err)
		}
	}
	return nil
}
