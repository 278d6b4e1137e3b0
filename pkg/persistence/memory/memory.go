package memory

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/committee"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/persistence"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

// MemoryPersistence is an in-memory implementation of IVerifierPersistence.
// This implementation is intended for TESTING ONLY.
//
// All data is stored in memory and will be lost when the process exits.
// Values are copied on the way in and out so callers cannot mutate stored state.
type MemoryPersistence struct {
	mu sync.RWMutex

	committee *committee.Committee

	// txHash -> record
	receipts map[common.Hash]*persistence.CertifiedReceiptRecord

	// committee ID -> past perfect watermark
	watermarks map[common.Hash]types.Timestamp

	closed bool
}

// NewMemoryPersistence creates a new in-memory persistence layer.
// Prints a loud warning since this should only be used for testing.
func NewMemoryPersistence() *MemoryPersistence {
	fmt.Println("⚠️  WARNING: Using in-memory persistence - verified receipts will be re-fetched after restart")
	fmt.Println("⚠️  This should ONLY be used for testing. Set QV_PERSISTENCE_TYPE=badger for production")

	return &MemoryPersistence{
		receipts:   make(map[common.Hash]*persistence.CertifiedReceiptRecord),
		watermarks: make(map[common.Hash]types.Timestamp),
	}
}

// SaveCommittee replaces the cached committee.
func (m *MemoryPersistence) SaveCommittee(c *committee.Committee) error {
	if c == nil {
		return fmt.Errorf("cannot save nil Committee")
	}

	cp, err := copyCommittee(c)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.committee = cp
	return nil
}

// LoadCommittee returns the cached committee, or nil if none was saved.
func (m *MemoryPersistence) LoadCommittee() (*committee.Committee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	if m.committee == nil {
		return nil, nil
	}
	return copyCommittee(m.committee)
}

// SaveCertifiedReceipt stores a record keyed by its tx hash.
func (m *MemoryPersistence) SaveCertifiedReceipt(record *persistence.CertifiedReceiptRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil CertifiedReceiptRecord")
	}

	cp, err := persistence.CopyCertifiedReceiptRecord(record)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.receipts[record.TxHash] = cp
	return nil
}

// LoadCertifiedReceipt retrieves a record by tx hash.
func (m *MemoryPersistence) LoadCertifiedReceipt(txHash common.Hash) (*persistence.CertifiedReceiptRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	record, exists := m.receipts[txHash]
	if !exists {
		return nil, nil // Not found is not an error
	}
	return persistence.CopyCertifiedReceiptRecord(record)
}

// ListCertifiedReceipts returns all records ordered by confirmation time.
func (m *MemoryPersistence) ListCertifiedReceipts() ([]*persistence.CertifiedReceiptRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	result := make([]*persistence.CertifiedReceiptRecord, 0, len(m.receipts))
	for _, record := range m.receipts {
		cp, err := persistence.CopyCertifiedReceiptRecord(record)
		if err != nil {
			return nil, err
		}
		result = append(result, cp)
	}
	persistence.SortCertifiedReceipts(result)

	return result, nil
}

// DeleteCertifiedReceipt removes a record.
func (m *MemoryPersistence) DeleteCertifiedReceipt(txHash common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	delete(m.receipts, txHash)
	return nil
}

// SetPastPerfectWatermark raises the watermark of scope to ts.
func (m *MemoryPersistence) SetPastPerfectWatermark(scope common.Hash, ts types.Timestamp) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	if ts > m.watermarks[scope] {
		m.watermarks[scope] = ts
	}
	return nil
}

func (m *MemoryPersistence) GetPastPerfectWatermark(scope common.Hash) (types.Timestamp, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, persistence.ErrClosed
	}

	return m.watermarks[scope], nil
}

// Close marks the persistence layer as closed.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil // Already closed, idempotent
	}

	m.closed = true
	m.receipts = nil
	m.committee = nil
	return nil
}

// HealthCheck always succeeds unless closed.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}

	return nil
}

func copyCommittee(c *committee.Committee) (*committee.Committee, error) {
	cp, err := committee.NewCommittee(c.Validators(), c.QuorumSize())
	if err != nil {
		return nil, fmt.Errorf("failed to copy Committee: %w", err)
	}
	return cp, nil
}
