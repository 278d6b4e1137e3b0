package persistence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/certified"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/persistence"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/testutil"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

func newTestRecord(numLogs int) *persistence.CertifiedReceiptRecord {
	receipt := testutil.CreateTestReceipt(testutil.CreateTestLogs(numLogs))
	return &persistence.CertifiedReceiptRecord{
		TxHash:  receipt.TxHash,
		Receipt: receipt,
		Certified: certified.CertifiedReceipt{
			ReceiptRoot:                 receipt.Hash(),
			AggregateSignature:          []byte{0xaa, 0xbb},
			SortedAttestationTimestamps: []uint64{1, 2, 3},
		},
		ConfirmationTime: types.FromSeconds(1_700_000_000),
		VerifiedAt:       1_700_000_005,
	}
}

func TestMarshalUnmarshalCommittee_RoundTrip(t *testing.T) {
	signers := testutil.CreateTestSigners(t, 4)
	original := testutil.CreateTestCommittee(t, signers, 3)

	data, err := persistence.MarshalCommittee(original)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restored, err := persistence.UnmarshalCommittee(data)
	require.NoError(t, err)
	assert.True(t, original.Equal(restored))
	assert.Equal(t, 3, restored.QuorumSize())
}

func TestMarshalCommittee_NilInput(t *testing.T) {
	_, err := persistence.MarshalCommittee(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil Committee")
}

func TestUnmarshalCommittee_InvalidQuorum(t *testing.T) {
	data := []byte(`{"validators":["0x0000000000000000000000000000000000000001"],"quorum_size":2}`)

	_, err := persistence.UnmarshalCommittee(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestUnmarshalCommittee_EmptyData(t *testing.T) {
	_, err := persistence.UnmarshalCommittee(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty data")
}

func TestMarshalUnmarshalCertifiedReceiptRecord_RoundTrip(t *testing.T) {
	original := newTestRecord(3)

	data, err := persistence.MarshalCertifiedReceiptRecord(original)
	require.NoError(t, err)

	restored, err := persistence.UnmarshalCertifiedReceiptRecord(data)
	require.NoError(t, err)
	assert.Equal(t, original, restored)

	// The restored receipt still hashes to the certified root.
	assert.Equal(t, original.Certified.ReceiptRoot, restored.Receipt.Hash())
}

func TestMarshalCertifiedReceiptRecord_InvalidInput(t *testing.T) {
	_, err := persistence.MarshalCertifiedReceiptRecord(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil CertifiedReceiptRecord")

	_, err = persistence.MarshalCertifiedReceiptRecord(&persistence.CertifiedReceiptRecord{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without receipt")
}

func TestUnmarshalCertifiedReceiptRecord_InvalidJSON(t *testing.T) {
	_, err := persistence.UnmarshalCertifiedReceiptRecord([]byte(`{"txHash": 12}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")

	_, err = persistence.UnmarshalCertifiedReceiptRecord([]byte(`{"verifiedAt": 12}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no receipt")
}

func TestCopyCertifiedReceiptRecord_IsDeep(t *testing.T) {
	original := newTestRecord(2)

	cp, err := persistence.CopyCertifiedReceiptRecord(original)
	require.NoError(t, err)

	cp.Receipt.Logs[0].Data[0] ^= 0xff
	cp.Certified.AggregateSignature[0] = 0x00
	assert.NotEqual(t, original.Receipt.Logs[0].Data, cp.Receipt.Logs[0].Data)
	assert.Equal(t, byte(0xaa), original.Certified.AggregateSignature[0])
}

func TestSortCertifiedReceipts(t *testing.T) {
	a, b, c := newTestRecord(1), newTestRecord(2), newTestRecord(3)
	a.ConfirmationTime = 30
	b.ConfirmationTime = 10
	c.ConfirmationTime = 10

	records := []*persistence.CertifiedReceiptRecord{a, b, c}
	persistence.SortCertifiedReceipts(records)

	require.Equal(t, a, records[2])
	first, second := b, c
	if types.CompareHashes(c.TxHash, b.TxHash) < 0 {
		first, second = c, b
	}
	assert.Equal(t, first, records[0])
	assert.Equal(t, second, records[1])
}
