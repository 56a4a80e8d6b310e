package block

import (
	"github.com/Klingon-tech/klingnet-addrindex/pkg/crypto"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/types"
)

// ComputeMerkleRoot calculates the merkle root of transaction hashes.
// An odd layer duplicates its last element. No hashes give the zero hash.
func ComputeMerkleRoot(txHashes []types.Hash) types.Hash {
	switch len(txHashes) {
	case 0:
		return types.Hash{}
	case 1:
		return txHashes[0]
	}

	level := append([]types.Hash(nil), txHashes...)
	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]types.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, crypto.HashConcat(level[i], level[i+1]))
		}
		level = next
	}
	return level[0]
}
