package certified

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/crypto"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/testutil"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

func TestSplitSignatures(t *testing.T) {
	signers := testutil.CreateTestSigners(t, 3)
	digest := types.HashBytes([]byte("digest"))

	sigs := make([]crypto.Signature, len(signers))
	for i, s := range signers {
		sig, err := s.SignHash(digest)
		require.NoError(t, err)
		sigs[i] = sig
	}

	aggregate := AggregateSignatures(sigs)
	require.Len(t, aggregate, 3*crypto.SignatureLength)

	split, err := SplitSignatures(aggregate)
	require.NoError(t, err)
	require.Equal(t, sigs, split)

	_, err = SplitSignatures(aggregate[:100])
	require.ErrorIs(t, err, ErrMalformedSignature)

	empty, err := SplitSignatures(nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestCertifiedLogRoundTrip(t *testing.T) {
	signers := testutil.CreateTestSigners(t, 4)
	cfg := Config{Committee: testutil.CreateTestCommittee(t, signers, 3)}
	receipt := testutil.CreateTestReceipt(testutil.CreateTestLogs(3))
	vl := testutil.CreateVerifiableLog(t, signers, receipt, 1, types.FromSeconds(50))

	cl, err := FromVerifiableLog(vl)
	require.NoError(t, err)
	require.Equal(t, uint64(1), cl.LogIndex)
	require.Equal(t, []uint64{50, 51, 52, 53}, cl.Certificate.CertifiedReceipt.SortedAttestationTimestamps)

	ok, err := VerifyCertifiedLog(cfg, *cl)
	require.NoError(t, err)
	require.True(t, ok)

	t.Run("survives JSON", func(t *testing.T) {
		data, err := json.Marshal(cl)
		require.NoError(t, err)

		var decoded CertifiedLog
		require.NoError(t, json.Unmarshal(data, &decoded))
		ok, err := VerifyCertifiedLog(cfg, decoded)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("wrong log index", func(t *testing.T) {
		forged := *cl
		forged.LogIndex = 2
		ok, err := VerifyCertifiedLog(cfg, forged)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("forged log", func(t *testing.T) {
		forged := *cl
		forged.Log.Data = []byte("forged")
		ok, err := VerifyCertifiedLog(cfg, forged)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("other committee", func(t *testing.T) {
		others := testutil.CreateTestSigners(t, 4)
		otherCfg := Config{Committee: testutil.CreateTestCommittee(t, others, 3)}
		ok, err := VerifyCertifiedLog(otherCfg, *cl)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("truncated signature", func(t *testing.T) {
		forged := *cl
		forged.Certificate.CertifiedReceipt.AggregateSignature = cl.Certificate.CertifiedReceipt.AggregateSignature[:64]
		_, err := VerifyCertifiedLog(cfg, forged)
		require.ErrorIs(t, err, ErrMalformedSignature)
	})
}

func TestVerifyCertificateProof(t *testing.T) {
	signers := testutil.CreateTestSigners(t, 3)
	cfg := Config{Committee: testutil.CreateTestCommittee(t, signers, 2)}
	receipt := testutil.CreateTestReceipt(testutil.CreateTestLogs(2))
	vl := testutil.CreateVerifiableLog(t, signers, receipt, 0, types.FromSeconds(1))

	cl, err := FromVerifiableLog(vl)
	require.NoError(t, err)

	cert := cl.Certificate
	ok, err := VerifyCertificate(cfg, cert)
	require.NoError(t, err)
	require.True(t, ok)

	cert.Leaf = common.Hash{1}
	ok, err = VerifyCertificate(cfg, cert)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMultiCertificate(t *testing.T) {
	signers := testutil.CreateTestSigners(t, 4)
	cfg := Config{Committee: testutil.CreateTestCommittee(t, signers, 3)}
	receipt := testutil.CreateTestReceipt(testutil.CreateTestLogs(3))
	vl := testutil.CreateVerifiableLog(t, signers, receipt, 2, types.FromSeconds(1))

	mc, err := MultiCertificateFromVerifiableLog(vl)
	require.NoError(t, err)

	ok, err := VerifyMultiCertificate(cfg, *mc)
	require.NoError(t, err)
	require.True(t, ok)

	t.Run("sub quorum", func(t *testing.T) {
		forged := *mc
		forged.CertifiedReceipt.AggregateSignature = mc.CertifiedReceipt.AggregateSignature[:2*crypto.SignatureLength]
		ok, err := VerifyMultiCertificate(cfg, forged)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("malformed proof", func(t *testing.T) {
		forged := *mc
		forged.Leaves = mc.Leaves[:len(mc.Leaves)-1]
		_, err := VerifyMultiCertificate(cfg, forged)
		require.Error(t, err)
	})
}

func TestVerifyWithoutCommittee(t *testing.T) {
	_, err := VerifyCertifiedReceipt(Config{}, CertifiedReceipt{})
	require.Error(t, err)
}
