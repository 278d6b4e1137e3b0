package testutil

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/committee"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/crypto"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/ledger"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

// CreateTestSigners creates n validator signers with fresh random keys
func CreateTestSigners(t testing.TB, n int) []*crypto.Signer {
	signers := make([]*crypto.Signer, n)
	for i := 0; i < n; i++ {
		s, err := crypto.GenerateSigner()
		if err != nil {
			t.Fatalf("Failed to generate signer: %v", err)
		}
		signers[i] = s
	}
	return signers
}

// CreateTestCommittee creates a committee over the signers' addresses
func CreateTestCommittee(t testing.TB, signers []*crypto.Signer, quorum int) *committee.Committee {
	addrs := make([]common.Address, len(signers))
	for i, s := range signers {
		addrs[i] = s.Address()
	}
	c, err := committee.NewCommittee(addrs, quorum)
	if err != nil {
		t.Fatalf("Failed to create committee: %v", err)
	}
	return c
}

// CreateTestLogs creates n logs emitted by the same contract, each with two
// topics and distinct data
func CreateTestLogs(n int) []ledger.Log {
	contract := common.HexToAddress("0x217f5658c6ecc27d439922263ad9bb8e992e0373")
	logs := make([]ledger.Log, n)
	for i := 0; i < n; i++ {
		logs[i] = ledger.Log{
			Address: contract,
			Topics: []common.Hash{
				types.HashBytes([]byte("Transfer(address,address,uint256)")),
				common.BytesToHash([]byte{byte(i + 1)}),
			},
			Data: hexutil.Bytes(fmt.Sprintf("log-%d", i)),
		}
	}
	return logs
}

// CreateTestReceipt creates a successful receipt over logs
func CreateTestReceipt(logs []ledger.Log) *ledger.Receipt {
	txHash := types.HashBytes([]byte(fmt.Sprintf("tx-%d", len(logs))))
	return ledger.NewReceipt(true, 21_000+uint64(len(logs))*375, logs, txHash, nil)
}

// AttestReceipt has every signer attest to the receipt. Attestation i is
// timestamped at base + i seconds.
func AttestReceipt(t testing.TB, signers []*crypto.Signer, receipt *ledger.Receipt, base types.Timestamp) []committee.TimestampedHeadlessAttestation {
	digest := receipt.Hash()
	atts := make([]committee.TimestampedHeadlessAttestation, len(signers))
	for i, s := range signers {
		sig, err := s.SignHash(digest)
		if err != nil {
			t.Fatalf("Failed to sign receipt: %v", err)
		}
		atts[i] = committee.TimestampedHeadlessAttestation{
			Timestamp: base + types.FromSeconds(uint64(i)),
			PublicKey: s.Address(),
			Signature: sig,
		}
	}
	return atts
}

// CreateVerifiableLog wraps the log at logIndex of receipt together with
// attestations from signers
func CreateVerifiableLog(t testing.TB, signers []*crypto.Signer, receipt *ledger.Receipt, logIndex int, base types.Timestamp) *ledger.VerifiableLog {
	if logIndex >= len(receipt.Logs) {
		t.Fatalf("Log index %d out of range for receipt with %d logs", logIndex, len(receipt.Logs))
	}
	index := hexutil.Uint64(logIndex)
	l := receipt.Logs[logIndex]

	return &ledger.VerifiableLog{
		RPCLog: ledger.RPCLog{
			Address:  l.Address,
			Topics:   l.Topics,
			Data:     l.Data,
			TxHash:   receipt.TxHash,
			LogIndex: &index,
		},
		Metadata: ledger.LogMetadata{
			Attestations: AttestReceipt(t, signers, receipt, base),
			Receipt:      *receipt,
		},
	}
}
