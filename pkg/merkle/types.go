package merkle

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInvalidLeafIndex is returned when a proof is requested for a position
	// that is not a leaf of the tree.
	ErrInvalidLeafIndex = errors.New("invalid leaf index")

	// ErrLeafNotFound is returned when a standard tree does not contain a leaf.
	ErrLeafNotFound = errors.New("leaf not found")

	// ErrInvalidMultiProof marks a multiproof whose shape is inconsistent with
	// the leaves it is checked against. It is never returned for a well formed
	// proof that simply folds to the wrong root.
	ErrInvalidMultiProof = errors.New("invalid multiproof")
)

// MerkleTree is an array backed binary tree. Index 0 is the root, the leaves
// occupy the tail of the array and every internal node i is the commutative
// pair hash of nodes 2i+1 and 2i+2. A tree over n leaves has 2n-1 nodes; a
// tree over no leaves holds a single zero node.
//
// The tree is immutable once built and safe for concurrent use.
type MerkleTree struct {
	nodes []common.Hash
}

// StandardMerkleTree is a MerkleTree over sorted leaves with a leaf to
// position index, which makes the root independent of insertion order.
//
// Duplicate leaves share one index entry: the last occurrence wins.
type StandardMerkleTree struct {
	*MerkleTree
	indices map[common.Hash]int
}

// MerkleProof is the path of sibling hashes from a leaf to the root.
type MerkleProof struct {
	Path []common.Hash `json:"path"`
}

// MerkleMultiProof proves several leaves at once. Flags has one entry per
// merge step: true means the second operand comes from the set of already
// proven hashes, false means it is taken from Path.
//
// A well formed proof satisfies len(leaves) + len(Path) == len(Flags) + 1.
type MerkleMultiProof struct {
	Path  []common.Hash `json:"path"`
	Flags []bool        `json:"flags"`
}

// NamedLeaf is a raw leaf value together with its dotted/indexed field name,
// e.g. "logs[2].data.topics[0]".
type NamedLeaf struct {
	Name string
	Hash common.Hash
}
