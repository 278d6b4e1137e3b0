package util

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func FuzzEncodeLogRoundTrip(f *testing.F) {
	f.Add([]byte{}, []byte{}, uint8(0))
	f.Add([]byte{0x12, 0x34}, []byte("hello"), uint8(1))
	f.Add([]byte("address-seed"), []byte("こんにちは"), uint8(4))

	addressType, _ := abi.NewType("address", "", nil)
	topicsType, _ := abi.NewType("bytes32[]", "", nil)
	dataType, _ := abi.NewType("bytes", "", nil)
	args := abi.Arguments{{Type: addressType}, {Type: topicsType}, {Type: dataType}}

	f.Fuzz(func(t *testing.T, addrSeed []byte, data []byte, numTopics uint8) {
		// Keep memory bounded for fuzzing.
		if len(data) > 4096 {
			data = data[:4096]
		}
		addr := common.BytesToAddress(addrSeed)
		topics := make([]common.Hash, numTopics%5)
		for i := range topics {
			topics[i] = common.BytesToHash(append([]byte{byte(i + 1)}, addrSeed...))
		}

		out, err := args.Unpack(EncodeLog(addr, topics, data))
		require.NoError(t, err)
		require.Len(t, out, 3)

		require.Equal(t, addr, out[0].(common.Address))

		decodedTopics := out[1].([][32]byte)
		require.Len(t, decodedTopics, len(topics))
		for i := range topics {
			require.Equal(t, [32]byte(topics[i]), decodedTopics[i])
		}

		decodedData := out[2].([]byte)
		require.Equal(t, len(data), len(decodedData))
		if len(data) > 0 {
			require.Equal(t, data, decodedData)
		}
	})
}

func FuzzEncodeUint64(f *testing.F) {
	f.Add(uint64(0))
	f.Add(uint64(1))
	f.Add(^uint64(0))

	uint64Type, _ := abi.NewType("uint64", "", nil)
	args := abi.Arguments{{Type: uint64Type}}

	f.Fuzz(func(t *testing.T, v uint64) {
		encoded := EncodeUint64(v)
		require.Len(t, encoded, 32)

		out, err := args.Unpack(encoded)
		require.NoError(t, err)
		require.Equal(t, v, out[0].(uint64))
	})
}
