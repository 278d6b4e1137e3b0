package persistence

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/certified"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/ledger"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

// CertifiedReceiptRecord is a receipt the client verified against the
// committee, together with the compact certificate a third party can check.
type CertifiedReceiptRecord struct {
	TxHash common.Hash `json:"txHash"`

	// Receipt is the full receipt whose hash is Certified.ReceiptRoot.
	Receipt *ledger.Receipt `json:"receipt"`

	Certified certified.CertifiedReceipt `json:"certified"`

	// ConfirmationTime is the median attestation timestamp.
	ConfirmationTime types.Timestamp `json:"confirmationTime"`

	// VerifiedAt is the unix time in seconds when the client accepted it.
	VerifiedAt int64 `json:"verifiedAt"`
}

// SortCertifiedReceipts orders records by confirmation time, then tx hash.
func SortCertifiedReceipts(records []*CertifiedReceiptRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].ConfirmationTime != records[j].ConfirmationTime {
			return records[i].ConfirmationTime < records[j].ConfirmationTime
		}
		return bytes.Compare(records[i].TxHash[:], records[j].TxHash[:]) < 0
	})
}
