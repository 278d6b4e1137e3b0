package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/committee"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/crypto"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

// ReceiptMetadata holds the attestations the node attaches to a receipt.
type ReceiptMetadata struct {
	Attestations []committee.TimestampedHeadlessAttestation `json:"attestations"`
}

// ReceiptResponse is a transaction receipt as returned by
// eth_getTransactionReceipt and the receipt subscription.
type ReceiptResponse struct {
	TxHash          common.Hash     `json:"transactionHash"`
	Status          hexutil.Uint64  `json:"status"`
	GasUsed         hexutil.Uint64  `json:"gasUsed"`
	From            common.Address  `json:"from"`
	To              *common.Address `json:"to,omitempty"`
	ContractAddress *common.Address `json:"contractAddress,omitempty"`
	Logs            []RPCLog        `json:"logs"`
	Metadata        ReceiptMetadata `json:"pod_metadata"`
}

// Receipt reconstructs the certified receipt from the RPC fields. The logs
// root is recomputed locally rather than taken from the node.
func (rr *ReceiptResponse) Receipt() *Receipt {
	logs := make([]Log, len(rr.Logs))
	for i, l := range rr.Logs {
		logs[i] = l.Log()
	}
	return NewReceipt(rr.Status == 1, uint64(rr.GasUsed), logs, rr.TxHash, rr.ContractAddress)
}

func (rr *ReceiptResponse) Signatures() []crypto.Signature {
	sigs := make([]crypto.Signature, len(rr.Metadata.Attestations))
	for i, att := range rr.Metadata.Attestations {
		sigs[i] = att.Signature
	}
	return sigs
}

// Verify checks that a quorum of c attested to the reconstructed receipt. A
// quorum shortfall is reported as false with no error.
func (rr *ReceiptResponse) Verify(c *committee.Committee) (bool, error) {
	err := c.VerifyAggregateAttestation(rr.Receipt().Hash(), rr.Signatures())
	if err == nil {
		return true, nil
	}
	if committee.IsInsufficientSignatures(err) {
		return false, nil
	}
	return false, err
}

// ConfirmationTime is the median attestation timestamp of the receipt.
func (rr *ReceiptResponse) ConfirmationTime() (types.Timestamp, error) {
	return confirmationTime(rr.Metadata.Attestations)
}
