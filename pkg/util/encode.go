package util

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	boolType, _         = abi.NewType("bool", "", nil)
	uint64Type, _       = abi.NewType("uint64", "", nil)
	bytes32Type, _      = abi.NewType("bytes32", "", nil)
	bytes32SliceType, _ = abi.NewType("bytes32[]", "", nil)
	addressType, _      = abi.NewType("address", "", nil)
	bytesType, _        = abi.NewType("bytes", "", nil)
)

// EncodeBool returns abi.encode(bool).
func EncodeBool(v bool) []byte {
	return mustPack(abi.Arguments{{Type: boolType}}, v)
}

// EncodeUint64 returns abi.encode(uint64).
func EncodeUint64(v uint64) []byte {
	return mustPack(abi.Arguments{{Type: uint64Type}}, v)
}

// EncodeBytes32 returns abi.encode(bytes32).
func EncodeBytes32(v common.Hash) []byte {
	return mustPack(abi.Arguments{{Type: bytes32Type}}, [32]byte(v))
}

// EncodeAddress returns abi.encode(address).
func EncodeAddress(v common.Address) []byte {
	return mustPack(abi.Arguments{{Type: addressType}}, v)
}

// EncodeLog returns abi.encode(address, bytes32[], bytes), the tuple layout
// used to hash event logs.
func EncodeLog(address common.Address, topics []common.Hash, data []byte) []byte {
	raw := make([][32]byte, len(topics))
	for i, t := range topics {
		raw[i] = t
	}
	if data == nil {
		data = []byte{}
	}
	return mustPack(abi.Arguments{
		{Type: addressType},
		{Type: bytes32SliceType},
		{Type: bytesType},
	}, address, raw, data)
}

// mustPack panics on encoding failure. The argument types above are static and
// every caller passes values of the matching Go type.
func mustPack(args abi.Arguments, values ...interface{}) []byte {
	encoded, err := args.Pack(values...)
	if err != nil {
		panic(fmt.Sprintf("abi pack failed: %v", err))
	}
	return encoded
}
