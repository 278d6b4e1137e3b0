package util

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func word(tail ...byte) []byte {
	w := make([]byte, 32)
	copy(w[32-len(tail):], tail)
	return w
}

func TestEncodeStaticTypes(t *testing.T) {
	addr := common.HexToAddress("0x1234567890123456789012345678901234567890")
	hash := common.HexToHash("0xabcdef")

	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"bool false", EncodeBool(false), word()},
		{"bool true", EncodeBool(true), word(1)},
		{"uint64 zero", EncodeUint64(0), word()},
		{"uint64", EncodeUint64(258), word(1, 2)},
		{"uint64 max", EncodeUint64(^uint64(0)), word(0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)},
		{"bytes32", EncodeBytes32(hash), hash.Bytes()},
		{"address", EncodeAddress(addr), word(addr.Bytes()...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestEncodeLog_Layout(t *testing.T) {
	addr := common.HexToAddress("0x1234567890123456789012345678901234567890")
	topic := common.HexToHash("0x01")

	encoded := EncodeLog(addr, []common.Hash{topic}, []byte("abc"))
	require.Len(t, encoded, 8*32)

	// head: address, offset of topics, offset of data
	assert.Equal(t, word(addr.Bytes()...), encoded[0:32])
	assert.Equal(t, word(0x60), encoded[32:64])
	assert.Equal(t, word(0xa0), encoded[64:96])

	// topics
	assert.Equal(t, word(1), encoded[96:128])
	assert.Equal(t, topic.Bytes(), encoded[128:160])

	// data, right padded
	assert.Equal(t, word(3), encoded[160:192])
	assert.True(t, bytes.HasPrefix(encoded[192:224], []byte("abc")))
	assert.Equal(t, make([]byte, 29), encoded[195:224])
}

func TestEncodeLog_NilDataMatchesEmpty(t *testing.T) {
	addr := common.HexToAddress("0x01")
	assert.Equal(t, EncodeLog(addr, nil, []byte{}), EncodeLog(addr, nil, nil))
	assert.Equal(t, EncodeLog(addr, nil, nil), EncodeLog(addr, []common.Hash{}, nil))
}

func TestEncodeLog_DistinguishesFields(t *testing.T) {
	addr := common.HexToAddress("0x01")
	base := EncodeLog(addr, []common.Hash{common.HexToHash("0x02")}, []byte{3})

	assert.NotEqual(t, base, EncodeLog(common.HexToAddress("0x09"), []common.Hash{common.HexToHash("0x02")}, []byte{3}))
	assert.NotEqual(t, base, EncodeLog(addr, []common.Hash{common.HexToHash("0x09")}, []byte{3}))
	assert.NotEqual(t, base, EncodeLog(addr, []common.Hash{common.HexToHash("0x02")}, []byte{9}))
	assert.NotEqual(t, base, EncodeLog(addr, nil, []byte{3}))
}

func BenchmarkEncodeLog(b *testing.B) {
	addr := common.HexToAddress("0x1234567890123456789012345678901234567890")
	topics := []common.Hash{common.HexToHash("0x01"), common.HexToHash("0x02"), common.HexToHash("0x03")}
	data := bytes.Repeat([]byte{0xab}, 256)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = EncodeLog(addr, topics, data)
	}
}
