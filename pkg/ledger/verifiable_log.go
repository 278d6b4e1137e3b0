package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/committee"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/crypto"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/merkle"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

var (
	// ErrMissingLogIndex is returned when the node did not say where in the
	// receipt a log sits, so no inclusion proof can be produced.
	ErrMissingLogIndex = errors.New("log index missing")

	// ErrNoAttestations is returned by ConfirmationTime for a log without
	// attestations.
	ErrNoAttestations = errors.New("no attestations")
)

// RPCLog is a log as returned by eth_getLogs.
type RPCLog struct {
	Address          common.Address  `json:"address"`
	Topics           []common.Hash   `json:"topics"`
	Data             hexutil.Bytes   `json:"data"`
	BlockNumber      *hexutil.Uint64 `json:"blockNumber,omitempty"`
	BlockHash        *common.Hash    `json:"blockHash,omitempty"`
	TxHash           common.Hash     `json:"transactionHash"`
	TransactionIndex *hexutil.Uint64 `json:"transactionIndex,omitempty"`
	LogIndex         *hexutil.Uint64 `json:"logIndex,omitempty"`
	Removed          bool            `json:"removed"`
}

// Log returns the event fields.
func (l RPCLog) Log() Log {
	return Log{Address: l.Address, Topics: l.Topics, Data: l.Data}
}

// LogMetadata carries what a client needs to verify a log without trusting
// the node that served it.
type LogMetadata struct {
	Attestations []committee.TimestampedHeadlessAttestation `json:"attestations"`
	Receipt      Receipt                                    `json:"receipt"`
}

// VerifiableLog is an event log bundled with the receipt that contains it and
// the committee attestations over that receipt.
type VerifiableLog struct {
	RPCLog
	Metadata LogMetadata `json:"pod_metadata"`
}

// Index returns the position of the log in its receipt. The index comes from
// the node and is not covered by the attestations.
func (vl *VerifiableLog) Index() (int, error) {
	if vl.LogIndex == nil {
		return 0, ErrMissingLogIndex
	}
	if uint64(*vl.LogIndex) > math.MaxInt {
		return 0, fmt.Errorf("%w: %d", ErrLogIndexOutOfRange, uint64(*vl.LogIndex))
	}
	return int(*vl.LogIndex), nil
}

// Signatures returns the attestation signatures over the receipt.
func (vl *VerifiableLog) Signatures() []crypto.Signature {
	sigs := make([]crypto.Signature, len(vl.Metadata.Attestations))
	for i, att := range vl.Metadata.Attestations {
		sigs[i] = att.Signature
	}
	return sigs
}

// Certificate pairs the receipt with the attestation signatures.
func (vl *VerifiableLog) Certificate() committee.Certificate[*Receipt] {
	return committee.Certificate[*Receipt]{
		Signatures: vl.Signatures(),
		Certified:  &vl.Metadata.Receipt,
	}
}

// ReceiptRoot is the digest the attestations sign.
func (vl *VerifiableLog) ReceiptRoot() common.Hash {
	return vl.Metadata.Receipt.Hash()
}

// Verify checks that a quorum of c attested to the bundled receipt. A quorum
// shortfall is reported as false with no error.
func (vl *VerifiableLog) Verify(c *committee.Committee) (bool, error) {
	err := c.VerifyCertificate(vl.Certificate())
	if err == nil {
		return true, nil
	}
	if committee.IsInsufficientSignatures(err) {
		return false, nil
	}
	return false, err
}

// MatchesReceipt reports whether the log fields equal the receipt log at the
// claimed index. Verify alone only covers the receipt.
func (vl *VerifiableLog) MatchesReceipt() bool {
	i, err := vl.Index()
	if err != nil || i < 0 || i >= len(vl.Metadata.Receipt.Logs) {
		return false
	}
	return vl.Metadata.Receipt.Logs[i].Equal(vl.Log())
}

// GenerateProof proves that the hash of this log is part of the receipt.
func (vl *VerifiableLog) GenerateProof() (*merkle.MerkleProof, error) {
	i, err := vl.Index()
	if err != nil {
		return nil, err
	}
	return vl.Metadata.Receipt.GenerateProofForLogHash(i)
}

// GenerateMultiProof proves every field of this log against the receipt. The
// returned leaves are what the proof is verified against.
func (vl *VerifiableLog) GenerateMultiProof() ([]common.Hash, *merkle.MerkleMultiProof, error) {
	i, err := vl.Index()
	if err != nil {
		return nil, nil, err
	}
	return vl.Metadata.Receipt.GenerateMultiProofForLog(i)
}

// ConfirmationTime is the median attestation timestamp, the practical
// finality time of the log.
func (vl *VerifiableLog) ConfirmationTime() (types.Timestamp, error) {
	return confirmationTime(vl.Metadata.Attestations)
}

func confirmationTime(atts []committee.TimestampedHeadlessAttestation) (types.Timestamp, error) {
	n := len(atts)
	if n == 0 {
		return 0, fmt.Errorf("%w: cannot compute confirmation time", ErrNoAttestations)
	}

	times := make([]types.Timestamp, n)
	for i, att := range atts {
		times[i] = att.Timestamp
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times[n/2], nil
}
