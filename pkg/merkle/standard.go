package merkle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

// NewStandardMerkleTree sorts leaves before building the tree, so any
// permutation of the same leaf set produces the same root.
func NewStandardMerkleTree(leaves []common.Hash) *StandardMerkleTree {
	sorted := types.SortHashes(leaves)
	tree := Build(sorted)

	indices := make(map[common.Hash]int, len(sorted))
	for i, leaf := range sorted {
		indices[leaf] = tree.Len() - 1 - i
	}

	return &StandardMerkleTree{
		MerkleTree: tree,
		indices:    indices,
	}
}

// HashLeaf contextualizes a raw leaf value with its field name:
// keccak256(abi.encodePacked(name, value)).
func HashLeaf(name string, value common.Hash) common.Hash {
	data := make([]byte, 0, len(name)+common.HashLength)
	data = append(data, name...)
	data = append(data, value[:]...)
	return crypto.Keccak256Hash(data)
}

// IndexOf returns the tree position of a leaf.
func (st *StandardMerkleTree) IndexOf(leaf common.Hash) (int, bool) {
	index, ok := st.indices[leaf]
	return index, ok
}

// GenerateProof creates a proof for a leaf value.
func (st *StandardMerkleTree) GenerateProof(leaf common.Hash) (*MerkleProof, error) {
	index, ok := st.indices[leaf]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLeafNotFound, leaf.Hex())
	}
	return st.MerkleTree.GenerateProof(index)
}

// GenerateMultiProof creates a multiproof for leaf values. It returns false if
// any leaf is not part of the tree.
func (st *StandardMerkleTree) GenerateMultiProof(leaves []common.Hash) (*MerkleMultiProof, bool) {
	indices := make([]int, 0, len(leaves))
	for _, leaf := range leaves {
		index, ok := st.indices[leaf]
		if !ok {
			return nil, false
		}
		indices = append(indices, index)
	}
	return st.MerkleTree.GenerateMultiProof(indices)
}
