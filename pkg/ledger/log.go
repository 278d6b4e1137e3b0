package ledger

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/merkle"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/util"
)

// Log is an event emitted during transaction execution.
type Log struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
}

// Hash returns keccak256(abi.encode(address, topics, data)).
func (l Log) Hash() common.Hash {
	return crypto.Keccak256Hash(util.EncodeLog(l.Address, l.Topics, l.Data))
}

// AppendLeaves exposes the address, every topic and the data hash:
// "address", "data.topics[i]", "data.data".
func (l Log) AppendLeaves(b *merkle.Builder) {
	b.AddField("address", types.HashAddress(l.Address))
	b.AddMerkleizable("data", logData{topics: l.Topics, data: l.Data})
}

// Equal compares all fields.
func (l Log) Equal(other Log) bool {
	if l.Address != other.Address || len(l.Topics) != len(other.Topics) || !bytes.Equal(l.Data, other.Data) {
		return false
	}
	for i := range l.Topics {
		if l.Topics[i] != other.Topics[i] {
			return false
		}
	}
	return true
}

type logData struct {
	topics []common.Hash
	data   []byte
}

func (d logData) AppendLeaves(b *merkle.Builder) {
	merkle.AddSlice(b, "topics", topicLeaves(d.topics))
	b.AddField("data", types.HashBytes(d.data))
}

func topicLeaves(topics []common.Hash) []merkle.Leaf {
	leaves := make([]merkle.Leaf, len(topics))
	for i, t := range topics {
		leaves[i] = merkle.Leaf(t)
	}
	return leaves
}

// Logs merkleizes a list of logs under indexed names ("[i].address", ...).
type Logs []Log

func (ls Logs) AppendLeaves(b *merkle.Builder) {
	merkle.AddSlice(b, "", []Log(ls))
}

// Hashes returns the hash of every log in order.
func (ls Logs) Hashes() []common.Hash {
	hashes := make([]common.Hash, len(ls))
	for i, l := range ls {
		hashes[i] = l.Hash()
	}
	return hashes
}

// ComputeLogsRoot returns the root a receipt commits to for its logs.
func ComputeLogsRoot(logs []Log) common.Hash {
	return merkle.ToMerkleTree(Logs(logs)).Root()
}
