package types

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/util"
)

// Hashable is implemented by every value that has a canonical 32 byte digest.
// The digest is what validators sign and what merkle trees commit to.
type Hashable interface {
	Hash() common.Hash
}

// HashBytes returns keccak256(data).
func HashBytes(data []byte) common.Hash {
	return crypto.Keccak256Hash(data)
}

// HashBool returns keccak256(abi.encode(v)).
func HashBool(v bool) common.Hash {
	return crypto.Keccak256Hash(util.EncodeBool(v))
}

// HashUint64 returns keccak256(abi.encode(v)).
func HashUint64(v uint64) common.Hash {
	return crypto.Keccak256Hash(util.EncodeUint64(v))
}

// HashBytes32 returns keccak256(abi.encode(v)).
func HashBytes32(v common.Hash) common.Hash {
	return crypto.Keccak256Hash(util.EncodeBytes32(v))
}

// HashAddress returns keccak256(abi.encode(v)).
func HashAddress(v common.Address) common.Hash {
	return crypto.Keccak256Hash(util.EncodeAddress(v))
}

// CompareHashes orders hashes as big-endian unsigned integers.
func CompareHashes(a, b common.Hash) int {
	return bytes.Compare(a[:], b[:])
}

// SortHashes returns a sorted copy of hashes. The input is not modified.
func SortHashes(hashes []common.Hash) []common.Hash {
	sorted := make([]common.Hash, len(hashes))
	copy(sorted, hashes)
	sort.Slice(sorted, func(i, j int) bool {
		return CompareHashes(sorted[i], sorted[j]) < 0
	})
	return sorted
}
