package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestHashHelpers(t *testing.T) {
	assert.Equal(t, crypto.Keccak256Hash([]byte("abc")), HashBytes([]byte("abc")))

	one := common.LeftPadBytes([]byte{1}, 32)
	assert.Equal(t, crypto.Keccak256Hash(one), HashBool(true))
	assert.Equal(t, crypto.Keccak256Hash(one), HashUint64(1))
	assert.Equal(t, crypto.Keccak256Hash(make([]byte, 32)), HashBool(false))

	h := common.HexToHash("0x1234")
	assert.Equal(t, crypto.Keccak256Hash(h.Bytes()), HashBytes32(h))

	addr := common.HexToAddress("0xabcd")
	assert.Equal(t, crypto.Keccak256Hash(common.LeftPadBytes(addr.Bytes(), 32)), HashAddress(addr))
}

func TestCompareHashes(t *testing.T) {
	low := common.HexToHash("0x01")
	high := common.HexToHash("0x0100")

	assert.Equal(t, -1, CompareHashes(low, high))
	assert.Equal(t, 1, CompareHashes(high, low))
	assert.Equal(t, 0, CompareHashes(low, low))
}

func genHash() *rapid.Generator {
	return rapid.Custom(func(t *rapid.T) common.Hash {
		return common.BytesToHash(rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "hash").([]byte))
	})
}

func TestSortHashes_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		hashes := rapid.SliceOf(genHash()).Draw(t, "hashes").([]common.Hash)
		original := append([]common.Hash(nil), hashes...)

		sorted := SortHashes(hashes)

		if len(sorted) != len(hashes) {
			t.Fatalf("length changed: %d != %d", len(sorted), len(hashes))
		}
		for i := 1; i < len(sorted); i++ {
			if CompareHashes(sorted[i-1], sorted[i]) > 0 {
				t.Fatalf("not sorted at %d", i)
			}
		}
		for i := range hashes {
			if hashes[i] != original[i] {
				t.Fatalf("input modified at %d", i)
			}
		}

		counts := make(map[common.Hash]int)
		for _, h := range hashes {
			counts[h]++
		}
		for _, h := range sorted {
			counts[h]--
		}
		for h, c := range counts {
			if c != 0 {
				t.Fatalf("hash %s count off by %d", h.Hex(), c)
			}
		}
	})
}
