package merkle

import (
	"crypto/rand"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

// randomHash generates a random 32-byte hash for testing
func randomHash() common.Hash {
	var hash common.Hash
	_, _ = rand.Read(hash[:])
	return hash
}

func randomHashes(n int) []common.Hash {
	hashes := make([]common.Hash, n)
	for i := range hashes {
		hashes[i] = randomHash()
	}
	return hashes
}

func TestBuild(t *testing.T) {
	testCases := []struct {
		name      string
		numLeaves int
	}{
		{"Single leaf", 1},
		{"Two leaves", 2},
		{"Three leaves", 3},
		{"Four leaves (power of 2)", 4},
		{"Seven leaves", 7},
		{"Eight leaves (power of 2)", 8},
		{"Fifteen leaves", 15},
		{"Sixteen leaves (power of 2)", 16},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			leaves := randomHashes(tc.numLeaves)
			tree := Build(leaves)
			require.Equal(t, 2*tc.numLeaves-1, tree.Len())

			for i := 0; i < tc.numLeaves; i++ {
				index := tree.Len() - 1 - i
				node, err := tree.Node(index)
				require.NoError(t, err)
				require.Equal(t, leaves[i], node)
				require.True(t, tree.IsLeafIndex(index))

				proof, err := tree.GenerateProof(index)
				require.NoError(t, err)
				require.True(t, VerifyProof(tree.Root(), leaves[i], proof), "proof for leaf %d should be valid", i)
			}
		})
	}
}

func TestBuildSingleLeafRootIsLeaf(t *testing.T) {
	leaf := randomHash()
	tree := Build([]common.Hash{leaf})
	require.Equal(t, leaf, tree.Root())

	proof, err := tree.GenerateProof(0)
	require.NoError(t, err)
	require.Empty(t, proof.Path)
	require.True(t, VerifyProof(leaf, leaf, proof))
}

func TestBuildEmpty(t *testing.T) {
	tree := Build(nil)
	require.Equal(t, common.Hash{}, tree.Root())
	require.Equal(t, 1, tree.Len())
}

func TestBuildTwoLeaves(t *testing.T) {
	a, b := randomHash(), randomHash()
	tree := Build([]common.Hash{a, b})

	lo, hi := a, b
	if types.CompareHashes(a, b) > 0 {
		lo, hi = b, a
	}
	expected := crypto.Keccak256Hash(lo[:], hi[:])
	require.Equal(t, expected, tree.Root())
}

func TestBuildDeterministic(t *testing.T) {
	leaves := randomHashes(10)
	require.Equal(t, Build(leaves).Root(), Build(leaves).Root())
}

func TestGenerateProofInvalidIndex(t *testing.T) {
	tree := Build(randomHashes(5))

	for _, index := range []int{-1, 0, 1, 3, 9, 100} {
		_, err := tree.GenerateProof(index)
		require.Error(t, err, "index %d", index)
		require.True(t, errors.Is(err, ErrInvalidLeafIndex))
	}
}

func TestVerifyProofRejectsTampering(t *testing.T) {
	leaves := randomHashes(8)
	tree := Build(leaves)

	proof, err := tree.GenerateProof(tree.Len() - 1)
	require.NoError(t, err)

	t.Run("wrong leaf", func(t *testing.T) {
		require.False(t, VerifyProof(tree.Root(), randomHash(), proof))
	})

	t.Run("wrong root", func(t *testing.T) {
		require.False(t, VerifyProof(randomHash(), leaves[0], proof))
	})

	t.Run("modified path", func(t *testing.T) {
		tampered := &MerkleProof{Path: append([]common.Hash(nil), proof.Path...)}
		tampered.Path[0] = randomHash()
		require.False(t, VerifyProof(tree.Root(), leaves[0], tampered))
	})

	t.Run("nil proof", func(t *testing.T) {
		require.False(t, VerifyProof(tree.Root(), leaves[0], nil))
	})
}

func TestStandardMerkleTreeOrderIndependent(t *testing.T) {
	leaves := randomHashes(9)
	reversed := make([]common.Hash, len(leaves))
	for i, leaf := range leaves {
		reversed[len(leaves)-1-i] = leaf
	}

	require.Equal(t, NewStandardMerkleTree(leaves).Root(), NewStandardMerkleTree(reversed).Root())
}

func TestStandardMerkleTreeProofs(t *testing.T) {
	leaves := randomHashes(6)
	tree := NewStandardMerkleTree(leaves)

	for _, leaf := range leaves {
		proof, err := tree.GenerateProof(leaf)
		require.NoError(t, err)
		require.True(t, VerifyProof(tree.Root(), leaf, proof))
	}

	_, err := tree.GenerateProof(randomHash())
	require.ErrorIs(t, err, ErrLeafNotFound)
}

func TestStandardMerkleTreeDuplicateLeaves(t *testing.T) {
	dup := randomHash()
	leaves := []common.Hash{dup, randomHash(), dup}
	tree := NewStandardMerkleTree(leaves)

	require.Equal(t, 5, tree.Len())

	// Both copies are in the tree but only one is indexed.
	proof, err := tree.GenerateProof(dup)
	require.NoError(t, err)
	require.True(t, VerifyProof(tree.Root(), dup, proof))
}

func TestMultiProof(t *testing.T) {
	testCases := []struct {
		name     string
		total    int
		selected []int
	}{
		{"single of one", 1, []int{0}},
		{"one of many", 7, []int{3}},
		{"adjacent pair", 8, []int{0, 1}},
		{"disjoint", 9, []int{0, 4, 8}},
		{"all", 5, []int{0, 1, 2, 3, 4}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			leaves := randomHashes(tc.total)
			tree := NewStandardMerkleTree(leaves)

			selected := make([]common.Hash, len(tc.selected))
			for i, idx := range tc.selected {
				selected[i] = leaves[idx]
			}

			proof, ok := tree.GenerateMultiProof(selected)
			require.True(t, ok)
			require.Equal(t, len(selected)+len(proof.Path), len(proof.Flags)+1)

			valid, err := VerifyMultiProof(tree.Root(), selected, proof)
			require.NoError(t, err)
			require.True(t, valid)
		})
	}
}

func TestMultiProofEmptySelection(t *testing.T) {
	tree := NewStandardMerkleTree(randomHashes(4))

	proof, ok := tree.GenerateMultiProof(nil)
	require.True(t, ok)
	require.Equal(t, []common.Hash{tree.Root()}, proof.Path)
	require.Empty(t, proof.Flags)

	valid, err := VerifyMultiProof(tree.Root(), nil, proof)
	require.NoError(t, err)
	require.True(t, valid)
}

func TestMultiProofUnknownLeaf(t *testing.T) {
	leaves := randomHashes(4)
	tree := NewStandardMerkleTree(leaves)

	_, ok := tree.GenerateMultiProof([]common.Hash{leaves[0], randomHash()})
	require.False(t, ok)

	_, ok = tree.MerkleTree.GenerateMultiProof([]int{0})
	require.False(t, ok, "root position is not a leaf")
}

func TestVerifyMultiProofShapeErrors(t *testing.T) {
	leaves := randomHashes(6)
	tree := NewStandardMerkleTree(leaves)
	selected := []common.Hash{leaves[1], leaves[4]}

	proof, ok := tree.GenerateMultiProof(selected)
	require.True(t, ok)

	t.Run("extra leaf", func(t *testing.T) {
		_, err := VerifyMultiProof(tree.Root(), append(selected, randomHash()), proof)
		require.ErrorIs(t, err, ErrInvalidMultiProof)
	})

	t.Run("truncated path", func(t *testing.T) {
		bad := &MerkleMultiProof{Path: proof.Path[:len(proof.Path)-1], Flags: proof.Flags}
		_, err := VerifyMultiProof(tree.Root(), selected, bad)
		require.ErrorIs(t, err, ErrInvalidMultiProof)
	})

	t.Run("nil proof", func(t *testing.T) {
		_, err := VerifyMultiProof(tree.Root(), selected, nil)
		require.ErrorIs(t, err, ErrInvalidMultiProof)
	})

	t.Run("wrong root is not an error", func(t *testing.T) {
		valid, err := VerifyMultiProof(randomHash(), selected, proof)
		require.NoError(t, err)
		require.False(t, valid)
	})

	t.Run("substituted leaf", func(t *testing.T) {
		valid, err := VerifyMultiProof(tree.Root(), []common.Hash{leaves[1], randomHash()}, proof)
		require.NoError(t, err)
		require.False(t, valid)
	})
}

func TestNodeOutOfBounds(t *testing.T) {
	tree := Build(randomHashes(3))
	_, err := tree.Node(5)
	require.Error(t, err)
	_, err = tree.Node(-1)
	require.Error(t, err)
}

func TestHashLeaf(t *testing.T) {
	value := randomHash()
	expected := crypto.Keccak256Hash(append([]byte("status"), value[:]...))
	require.Equal(t, expected, HashLeaf("status", value))
	require.NotEqual(t, HashLeaf("status", value), HashLeaf("tx_hash", value))
}

func ExampleStandardMerkleTree_GenerateProof() {
	leaves := []common.Hash{
		common.HexToHash("0x01"),
		common.HexToHash("0x02"),
		common.HexToHash("0x03"),
	}
	tree := NewStandardMerkleTree(leaves)

	proof, _ := tree.GenerateProof(leaves[1])
	fmt.Println(VerifyProof(tree.Root(), leaves[1], proof))
	// Output: true
}
