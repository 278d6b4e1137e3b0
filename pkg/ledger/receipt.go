package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/merkle"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

var (
	// ErrLogIndexOutOfRange is returned when a log index does not name a log
	// of the receipt.
	ErrLogIndexOutOfRange = errors.New("log index out of range")

	// ErrLeafMissing is returned when a leaf expected in the receipt tree is
	// not there, which means the receipt is internally inconsistent.
	ErrLeafMissing = errors.New("leaf missing from receipt tree")
)

// Receipt is the outcome of one transaction as certified by the committee.
// It is created once at execution time and never changes afterwards.
//
// The receipt digest is the root of a standard merkle tree over its named
// fields, which lets any field be proven against a certified receipt.
type Receipt struct {
	Status          bool            `json:"status"`
	ActualGasUsed   uint64          `json:"actual_gas_used"`
	Logs            []Log           `json:"logs"`
	LogsRoot        common.Hash     `json:"logs_root"`
	TxHash          common.Hash     `json:"tx_hash"`
	ContractAddress *common.Address `json:"contract_address,omitempty"`
}

// NewReceipt builds a receipt and derives its logs root.
func NewReceipt(status bool, gasUsed uint64, logs []Log, txHash common.Hash, contract *common.Address) *Receipt {
	return &Receipt{
		Status:          status,
		ActualGasUsed:   gasUsed,
		Logs:            logs,
		LogsRoot:        ComputeLogsRoot(logs),
		TxHash:          txHash,
		ContractAddress: contract,
	}
}

func (r *Receipt) AppendLeaves(b *merkle.Builder) {
	b.AddField("status", types.HashBool(r.Status))
	b.AddField("actual_gas_used", types.HashUint64(r.ActualGasUsed))
	merkle.AddSlice(b, "logs", r.Logs)
	merkle.AddSlice(b, "log_hashes", r.logHashLeaves())
	b.AddField("logs_root", types.HashBytes32(r.LogsRoot))
	b.AddField("tx_hash", types.HashBytes32(r.TxHash))
}

// Hash returns the root of the receipt tree.
func (r *Receipt) Hash() common.Hash {
	return merkle.ToMerkleTree(r).Root()
}

// LogHashes returns the hash of every log in order.
func (r *Receipt) LogHashes() []common.Hash {
	return Logs(r.Logs).Hashes()
}

// HasValidLogsRoot reports whether LogsRoot matches the logs.
func (r *Receipt) HasValidLogsRoot() bool {
	return r.LogsRoot == ComputeLogsRoot(r.Logs)
}

func (r *Receipt) logHashLeaves() []merkle.Leaf {
	hashes := r.LogHashes()
	leaves := make([]merkle.Leaf, len(hashes))
	for i, h := range hashes {
		leaves[i] = merkle.Leaf(h)
	}
	return leaves
}

func (r *Receipt) checkLogIndex(logIndex int) error {
	if logIndex < 0 || logIndex >= len(r.Logs) {
		return fmt.Errorf("%w: %d (receipt has %d logs)", ErrLogIndexOutOfRange, logIndex, len(r.Logs))
	}
	return nil
}

// LogHashLeaf returns the tree leaf committing to the hash of log logIndex.
func (r *Receipt) LogHashLeaf(logIndex int) (common.Hash, error) {
	if err := r.checkLogIndex(logIndex); err != nil {
		return common.Hash{}, err
	}
	return merkle.HashLeaf(merkle.IndexPrefix("log_hashes", logIndex), r.Logs[logIndex].Hash()), nil
}

// GenerateProofForLogHash proves the hash of the log at logIndex.
func (r *Receipt) GenerateProofForLogHash(logIndex int) (*merkle.MerkleProof, error) {
	if err := r.checkLogIndex(logIndex); err != nil {
		return nil, err
	}
	return merkle.GenerateItemProof(r, merkle.IndexPrefix("log_hashes", logIndex), merkle.Leaf(r.Logs[logIndex].Hash()))
}

// GenerateProofsForLogHashes proves the hash of each log at the given indices.
func (r *Receipt) GenerateProofsForLogHashes(logIndices []int) ([]*merkle.MerkleProof, error) {
	proofs := make([]*merkle.MerkleProof, 0, len(logIndices))
	for _, i := range logIndices {
		proof, err := r.GenerateProofForLogHash(i)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, proof)
	}
	return proofs, nil
}

// GenerateMultiProofForLogHashes proves the hashes of all logs at once.
func (r *Receipt) GenerateMultiProofForLogHashes() ([]common.Hash, *merkle.MerkleMultiProof, error) {
	leaves, proof, ok := merkle.GenerateItemsMultiProof(r, "log_hashes", r.logHashLeaves())
	if !ok {
		return nil, nil, fmt.Errorf("%w: log_hashes", ErrLeafMissing)
	}
	return leaves, proof, nil
}

// GenerateMultiProofForLog proves every field of the log at logIndex.
func (r *Receipt) GenerateMultiProofForLog(logIndex int) ([]common.Hash, *merkle.MerkleMultiProof, error) {
	if err := r.checkLogIndex(logIndex); err != nil {
		return nil, nil, err
	}
	prefix := merkle.IndexPrefix("logs", logIndex)
	leaves, proof, ok := merkle.GenerateItemMultiProof(r, prefix, r.Logs[logIndex])
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrLeafMissing, prefix)
	}
	return leaves, proof, nil
}

// GenerateMultiProofForLogs proves every field of every log.
func (r *Receipt) GenerateMultiProofForLogs() ([]common.Hash, *merkle.MerkleMultiProof, error) {
	leaves, proof, ok := merkle.GenerateItemsMultiProof(r, "logs", r.Logs)
	if !ok {
		return nil, nil, fmt.Errorf("%w: logs", ErrLeafMissing)
	}
	return leaves, proof, nil
}
