package merkle

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

// Build creates a merkle tree over leaves in the given order.
//
// Leaves are written to the tail of the node array in reverse, so leaves[0]
// ends up in the last slot. Internal nodes are filled bottom-up in a single
// pass. Pair hashing is commutative so sibling order never affects the root.
func Build(leaves []common.Hash) *MerkleTree {
	if len(leaves) == 0 {
		return &MerkleTree{nodes: []common.Hash{{}}}
	}

	treeLen := 2*len(leaves) - 1
	nodes := make([]common.Hash, treeLen)

	for i, leaf := range leaves {
		nodes[treeLen-1-i] = leaf
	}

	for i := treeLen - len(leaves) - 1; i >= 0; i-- {
		nodes[i] = commutativeHashPair(nodes[leftChildIndex(i)], nodes[rightChildIndex(i)])
	}

	return &MerkleTree{nodes: nodes}
}

// Root returns the root hash. For an empty tree this is the zero hash.
func (mt *MerkleTree) Root() common.Hash {
	return mt.nodes[0]
}

// Hash makes a tree usable wherever a Hashable is expected.
func (mt *MerkleTree) Hash() common.Hash {
	return mt.Root()
}

// Len returns the number of nodes in the tree array.
func (mt *MerkleTree) Len() int {
	return len(mt.nodes)
}

// Node returns the hash stored at a tree position.
func (mt *MerkleTree) Node(index int) (common.Hash, error) {
	if index < 0 || index >= len(mt.nodes) {
		return common.Hash{}, fmt.Errorf("node index %d out of bounds (tree has %d nodes)", index, len(mt.nodes))
	}
	return mt.nodes[index], nil
}

// IsLeafIndex reports whether index addresses a leaf position.
func (mt *MerkleTree) IsLeafIndex(index int) bool {
	return isLeafIndex(len(mt.nodes), index)
}

// GenerateProof creates a proof for the leaf at the given tree position.
// The proof holds one sibling hash per level; levels where the node has no
// sibling contribute nothing.
func (mt *MerkleTree) GenerateProof(index int) (*MerkleProof, error) {
	treeLen := len(mt.nodes)
	if !isLeafIndex(treeLen, index) {
		return nil, fmt.Errorf("%w: %d (tree has %d nodes)", ErrInvalidLeafIndex, index, treeLen)
	}

	path := make([]common.Hash, 0)
	for current := index; current > 0; current = parentIndex(current) {
		sibling := siblingIndex(current)
		if sibling < treeLen {
			path = append(path, mt.nodes[sibling])
		}
	}

	return &MerkleProof{Path: path}, nil
}

// GenerateMultiProof creates a single proof for the leaves at the given tree
// positions. It returns false if any position is not a leaf.
//
// Positions are processed as a queue ordered highest first. Each step pops a
// position j and looks at its sibling s: if s is the next queued position it
// is consumed (flag true), otherwise tree[s] goes into the path (flag false).
// The parent of j is then queued. Processing stops at the root.
func (mt *MerkleTree) GenerateMultiProof(indices []int) (*MerkleMultiProof, bool) {
	treeLen := len(mt.nodes)
	for _, i := range indices {
		if !isLeafIndex(treeLen, i) {
			return nil, false
		}
	}

	queue := sortDescendingUnique(indices)
	path := make([]common.Hash, 0)
	flags := make([]bool, 0)

	for len(queue) > 0 {
		j := queue[0]
		queue = queue[1:]
		if j == 0 {
			break
		}

		s := siblingIndex(j)
		p := parentIndex(j)

		if len(queue) > 0 && queue[0] == s {
			flags = append(flags, true)
			queue = queue[1:]
		} else {
			flags = append(flags, false)
			path = append(path, mt.nodes[s])
		}

		queue = append(queue, p)
	}

	if len(indices) == 0 {
		path = append(path, mt.nodes[0])
	}

	return &MerkleMultiProof{Path: path, Flags: flags}, true
}

// VerifyProof folds leaf through the proof path and compares with root.
func VerifyProof(root, leaf common.Hash, proof *MerkleProof) bool {
	if proof == nil {
		return false
	}

	current := leaf
	for _, sibling := range proof.Path {
		current = commutativeHashPair(current, sibling)
	}
	return current == root
}

// VerifyMultiProof replays the multiproof reduction over a sorted copy of
// leaves. Shape mismatches are reported as ErrInvalidMultiProof; a proof that
// is well formed but reconstructs a different root yields false and no error.
//
// Leaves are sorted before replay, so this matches proofs produced by a
// StandardMerkleTree, whose leaves are laid out in sorted order.
func VerifyMultiProof(root common.Hash, leaves []common.Hash, proof *MerkleMultiProof) (bool, error) {
	if proof == nil {
		return false, fmt.Errorf("%w: nil proof", ErrInvalidMultiProof)
	}

	pathLen := len(proof.Path)
	pathFlags := 0
	for _, f := range proof.Flags {
		if !f {
			pathFlags++
		}
	}
	if pathLen < pathFlags {
		return false, fmt.Errorf("%w: too few path hashes (%d for %d path steps)", ErrInvalidMultiProof, pathLen, pathFlags)
	}
	if len(leaves)+pathLen != len(proof.Flags)+1 {
		return false, fmt.Errorf("%w: invalid total hashes (%d leaves + %d path != %d flags + 1)",
			ErrInvalidMultiProof, len(leaves), pathLen, len(proof.Flags))
	}

	queue := types.SortHashes(leaves)
	path := append([]common.Hash(nil), proof.Path...)

	for step, flag := range proof.Flags {
		if len(queue) == 0 {
			return false, fmt.Errorf("%w: proven set exhausted at step %d", ErrInvalidMultiProof, step)
		}
		a := queue[0]
		queue = queue[1:]

		var b common.Hash
		if flag {
			if len(queue) == 0 {
				return false, fmt.Errorf("%w: proven set exhausted at step %d", ErrInvalidMultiProof, step)
			}
			b = queue[0]
			queue = queue[1:]
		} else {
			b = path[0]
			path = path[1:]
		}

		queue = append(queue, commutativeHashPair(a, b))
	}

	var reconstructed common.Hash
	switch {
	case len(queue) == 1 && len(path) == 0:
		reconstructed = queue[0]
	case len(queue) == 0 && len(path) == 1:
		reconstructed = path[0]
	default:
		return false, fmt.Errorf("%w: invalid total hashes", ErrInvalidMultiProof)
	}

	return reconstructed == root, nil
}

// hashPair computes keccak256(left || right) for two 32-byte hashes.
func hashPair(left, right common.Hash) common.Hash {
	data := make([]byte, 64)
	copy(data[0:32], left[:])
	copy(data[32:64], right[:])
	return crypto.Keccak256Hash(data)
}

// commutativeHashPair hashes the smaller operand first.
func commutativeHashPair(a, b common.Hash) common.Hash {
	if types.CompareHashes(a, b) < 0 {
		return hashPair(a, b)
	}
	return hashPair(b, a)
}

func leftChildIndex(index int) int {
	return 2*index + 1
}

func rightChildIndex(index int) int {
	return 2*index + 2
}

func parentIndex(index int) int {
	return (index - 1) / 2
}

func siblingIndex(index int) int {
	if index%2 == 0 {
		return index - 1
	}
	return index + 1
}

func isLeafIndex(treeLen, index int) bool {
	return index >= 0 && index < treeLen && leftChildIndex(index) >= treeLen
}

func sortDescendingUnique(indices []int) []int {
	seen := make(map[int]struct{}, len(indices))
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}
