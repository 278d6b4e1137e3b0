package merkle

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Merkleizable is implemented by values that can describe themselves as a set
// of named leaves. Nested values are flattened with dotted names and list
// elements with indexed names, so any structured type gets a stable, auditable
// merkle representation.
type Merkleizable interface {
	AppendLeaves(b *Builder)
}

// Builder accumulates named leaves.
type Builder struct {
	leaves []NamedLeaf
}

func NewBuilder() *Builder {
	return &Builder{}
}

// AddField appends a single named leaf.
func (b *Builder) AddField(name string, hash common.Hash) {
	b.leaves = append(b.leaves, NamedLeaf{Name: name, Hash: hash})
}

// AddMerkleizable appends all leaves of item with prefix joined to their names.
func (b *Builder) AddMerkleizable(prefix string, item Merkleizable) {
	for _, leaf := range Leaves(item) {
		b.leaves = append(b.leaves, NamedLeaf{Name: JoinPrefix(prefix, leaf.Name), Hash: leaf.Hash})
	}
}

// Build returns the accumulated leaves in insertion order.
func (b *Builder) Build() []NamedLeaf {
	return b.leaves
}

// AddSlice appends the leaves of every item under prefix[i].
func AddSlice[T Merkleizable](b *Builder, prefix string, items []T) {
	for i, item := range items {
		b.AddMerkleizable(IndexPrefix(prefix, i), item)
	}
}

// JoinPrefix joins two name segments with a dot, omitting empty segments.
// An indexed segment attaches directly: ("logs", "[1]") -> "logs[1]".
func JoinPrefix(prefix, sub string) string {
	switch {
	case prefix == "":
		return sub
	case sub == "":
		return prefix
	case strings.HasPrefix(sub, "["):
		return prefix + sub
	default:
		return prefix + "." + sub
	}
}

// IndexPrefix appends a list index to a name: "logs" -> "logs[2]".
func IndexPrefix(prefix string, index int) string {
	return fmt.Sprintf("%s[%d]", prefix, index)
}

// Leaves returns the named leaves of m.
func Leaves(m Merkleizable) []NamedLeaf {
	b := NewBuilder()
	m.AppendLeaves(b)
	return b.Build()
}

// ToMerkleTree hashes every named leaf with HashLeaf and builds a standard
// tree over the results. Identical raw values under different names still map
// to distinct leaves.
func ToMerkleTree(m Merkleizable) *StandardMerkleTree {
	named := Leaves(m)
	leaves := make([]common.Hash, len(named))
	for i, leaf := range named {
		leaves[i] = HashLeaf(leaf.Name, leaf.Hash)
	}
	return NewStandardMerkleTree(leaves)
}

// ContextualizeLeaves applies prefix to the leaves of item and hashes each one
// the way ToMerkleTree does.
func ContextualizeLeaves(prefix string, item Merkleizable) []common.Hash {
	named := Leaves(item)
	leaves := make([]common.Hash, len(named))
	for i, leaf := range named {
		leaves[i] = HashLeaf(JoinPrefix(prefix, leaf.Name), leaf.Hash)
	}
	return leaves
}

// GenerateItemProof proves that item, which must expand to exactly one leaf,
// is stored under prefix in m.
func GenerateItemProof(m Merkleizable, prefix string, item Merkleizable) (*MerkleProof, error) {
	leaves := ContextualizeLeaves(prefix, item)
	if len(leaves) != 1 {
		return nil, fmt.Errorf("expected exactly one leaf, got %d", len(leaves))
	}
	return ToMerkleTree(m).GenerateProof(leaves[0])
}

// GenerateItemProofs proves each leaf of item under prefix individually.
func GenerateItemProofs(m Merkleizable, prefix string, item Merkleizable) ([]*MerkleProof, error) {
	tree := ToMerkleTree(m)
	leaves := ContextualizeLeaves(prefix, item)

	proofs := make([]*MerkleProof, 0, len(leaves))
	for _, leaf := range leaves {
		proof, err := tree.GenerateProof(leaf)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, proof)
	}
	return proofs, nil
}

// GenerateItemMultiProof proves all leaves of item under prefix at once. It
// returns the contextualized leaves the proof must be verified against.
func GenerateItemMultiProof(m Merkleizable, prefix string, item Merkleizable) ([]common.Hash, *MerkleMultiProof, bool) {
	leaves := ContextualizeLeaves(prefix, item)
	proof, ok := ToMerkleTree(m).GenerateMultiProof(leaves)
	if !ok {
		return nil, nil, false
	}
	return leaves, proof, true
}

// GenerateItemsMultiProof proves the leaves of every item under prefix[i].
func GenerateItemsMultiProof[T Merkleizable](m Merkleizable, prefix string, items []T) ([]common.Hash, *MerkleMultiProof, bool) {
	leaves := make([]common.Hash, 0)
	for i, item := range items {
		leaves = append(leaves, ContextualizeLeaves(IndexPrefix(prefix, i), item)...)
	}
	proof, ok := ToMerkleTree(m).GenerateMultiProof(leaves)
	if !ok {
		return nil, nil, false
	}
	return leaves, proof, true
}

// Leaf is a single hash used as a merkleizable value.
type Leaf common.Hash

func (l Leaf) AppendLeaves(b *Builder) {
	b.AddField("", common.Hash(l))
}

// Hashes is a list of hashes merkleized as indexed leaves.
type Hashes []common.Hash

func (h Hashes) AppendLeaves(b *Builder) {
	for i, hash := range h {
		b.AddField(IndexPrefix("", i), hash)
	}
}
