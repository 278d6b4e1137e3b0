package testutil

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/committee"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/crypto"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/ledger"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/logger"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

// TestNetwork simulates a validator committee behind a mock node. Receipts
// published through it are attested by every validator.
type TestNetwork struct {
	Signers   []*crypto.Signer
	Committee *committee.Committee
	Transport *MockTransport
	Quorum    int

	t        testing.TB
	logger   *zap.Logger
	baseTime types.Timestamp
	txCount  int
}

// NewTestNetwork creates a network of numValidators with the given quorum.
func NewTestNetwork(t testing.TB, numValidators, quorum int) *TestNetwork {
	networkLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	signers := CreateTestSigners(t, numValidators)
	c := CreateTestCommittee(t, signers, quorum)

	return &TestNetwork{
		Signers:   signers,
		Committee: c,
		Transport: NewMockTransport(c, networkLogger),
		Quorum:    quorum,
		t:         t,
		logger:    networkLogger,
		baseTime:  types.FromSeconds(1_700_000_000),
	}
}

func (n *TestNetwork) Logger() *zap.Logger {
	return n.logger
}

// PublishReceipt creates a receipt over logs and returns one verifiable log
// per log index, attested by the given signers.
func (n *TestNetwork) PublishReceipt(logs []ledger.Log, signers []*crypto.Signer) (*ledger.Receipt, []*ledger.VerifiableLog) {
	n.txCount++
	txHash := types.HashBytes(append([]byte("network-tx-"), byte(n.txCount)))
	receipt := ledger.NewReceipt(true, 21_000+uint64(len(logs))*375, logs, txHash, nil)

	base := n.baseTime
	n.baseTime += types.FromSeconds(60)

	vls := make([]*ledger.VerifiableLog, len(logs))
	for i := range logs {
		vls[i] = CreateVerifiableLog(n.t, signers, receipt, i, base)
	}
	return receipt, vls
}

// ReceiptResponse wraps a receipt the way a node returns it, attested by the
// given signers.
func (n *TestNetwork) ReceiptResponse(receipt *ledger.Receipt, signers []*crypto.Signer) *ledger.ReceiptResponse {
	rpcLogs := make([]ledger.RPCLog, len(receipt.Logs))
	for i, l := range receipt.Logs {
		index := hexutil.Uint64(i)
		rpcLogs[i] = ledger.RPCLog{
			Address:  l.Address,
			Topics:   l.Topics,
			Data:     l.Data,
			TxHash:   receipt.TxHash,
			LogIndex: &index,
		}
	}

	status := hexutil.Uint64(0)
	if receipt.Status {
		status = 1
	}

	return &ledger.ReceiptResponse{
		TxHash:          receipt.TxHash,
		Status:          status,
		GasUsed:         hexutil.Uint64(receipt.ActualGasUsed),
		ContractAddress: receipt.ContractAddress,
		Logs:            rpcLogs,
		Metadata: ledger.ReceiptMetadata{
			Attestations: AttestReceipt(n.t, signers, receipt, n.baseTime),
		},
	}
}

// QuorumSigners returns exactly enough validators for a quorum.
func (n *TestNetwork) QuorumSigners() []*crypto.Signer {
	return n.Signers[:n.Quorum]
}

// MinoritySigners returns one validator short of a quorum.
func (n *TestNetwork) MinoritySigners() []*crypto.Signer {
	return n.Signers[:n.Quorum-1]
}
