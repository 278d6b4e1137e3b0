package persistence

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/committee"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

// ErrClosed is returned by every operation on a closed persistence layer.
var ErrClosed = errors.New("persistence layer is closed")

// IVerifierPersistence defines the interface for the verifier trust store.
// It caches verification results so a restarted client does not re-fetch and
// re-verify what it already accepted. It is not a history of the ledger.
//
// Implementations must be thread-safe and support concurrent access.
type IVerifierPersistence interface {
	// Committee

	// SaveCommittee replaces the cached committee.
	SaveCommittee(c *committee.Committee) error

	// LoadCommittee returns the cached committee.
	// Returns (nil, nil) if no committee has been saved.
	LoadCommittee() (*committee.Committee, error)

	// Certified receipts

	// SaveCertifiedReceipt stores a verified receipt keyed by its tx hash.
	// Saving the same tx hash again overwrites the previous record.
	SaveCertifiedReceipt(record *CertifiedReceiptRecord) error

	// LoadCertifiedReceipt retrieves a record by tx hash.
	// Returns (nil, nil) if not found.
	LoadCertifiedReceipt(txHash common.Hash) (*CertifiedReceiptRecord, error)

	// ListCertifiedReceipts returns all records ordered by confirmation time,
	// ties broken by tx hash.
	ListCertifiedReceipts() ([]*CertifiedReceiptRecord, error)

	// DeleteCertifiedReceipt removes a record. Deleting a missing record is
	// not an error.
	DeleteCertifiedReceipt(txHash common.Hash) error

	// Past perfect time
	//
	// Watermarks are kept per scope, the ID of the committee that reported
	// them, so a store reused against another network starts from zero.

	// SetPastPerfectWatermark records that the network identified by scope
	// has reached past perfection at ts. The watermark never moves backwards:
	// a value lower than the stored one is ignored.
	SetPastPerfectWatermark(scope common.Hash, ts types.Timestamp) error

	// GetPastPerfectWatermark returns the watermark stored for scope, 0 if
	// none.
	GetPastPerfectWatermark(scope common.Hash) (types.Timestamp, error)

	// Lifecycle

	// Close releases resources. Idempotent.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	HealthCheck() error
}
