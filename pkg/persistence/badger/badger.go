package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/committee"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/persistence"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

// Key prefixes for namespacing
const (
	keyCommittee         = "committee:current"
	keyPrefixReceipt     = "receipt:"
	keyPrefixWatermark   = "watermark:pastperfect:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerPersistence is a disk-backed trust store using Badger.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerPersistence opens (or creates) a Badger database at dataPath with
// SyncWrites enabled, and starts a background value log GC.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// get copies the value at key, returning nil if the key does not exist.
func (b *BadgerPersistence) get(key []byte) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

func receiptKey(txHash common.Hash) []byte {
	return []byte(keyPrefixReceipt + txHash.Hex())
}

func watermarkKey(scope common.Hash) []byte {
	return []byte(keyPrefixWatermark + scope.Hex())
}

// SaveCommittee replaces the cached committee
func (b *BadgerPersistence) SaveCommittee(c *committee.Committee) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalCommittee(c)
	if err != nil {
		return err
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyCommittee), data)
	})
}

// LoadCommittee returns the cached committee, or nil if none was saved
func (b *BadgerPersistence) LoadCommittee() (*committee.Committee, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	data, err := b.get([]byte(keyCommittee))
	if err != nil {
		return nil, fmt.Errorf("failed to load Committee: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalCommittee(data)
}

// SaveCertifiedReceipt persists a record keyed by tx hash
func (b *BadgerPersistence) SaveCertifiedReceipt(record *persistence.CertifiedReceiptRecord) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalCertifiedReceiptRecord(record)
	if err != nil {
		return err
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(receiptKey(record.TxHash), data)
	})
}

// LoadCertifiedReceipt retrieves a record by tx hash
func (b *BadgerPersistence) LoadCertifiedReceipt(txHash common.Hash) (*persistence.CertifiedReceiptRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	data, err := b.get(receiptKey(txHash))
	if err != nil {
		return nil, fmt.Errorf("failed to load CertifiedReceiptRecord: %w", err)
	}
	if data == nil {
		return nil, nil // Not found
	}
	return persistence.UnmarshalCertifiedReceiptRecord(data)
}

// ListCertifiedReceipts returns all records ordered by confirmation time.
// Records that fail to decode are logged and skipped.
func (b *BadgerPersistence) ListCertifiedReceipts() ([]*persistence.CertifiedReceiptRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	records := make([]*persistence.CertifiedReceiptRecord, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixReceipt)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			data, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			record, err := persistence.UnmarshalCertifiedReceiptRecord(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal CertifiedReceiptRecord, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list CertifiedReceiptRecords: %w", err)
	}

	persistence.SortCertifiedReceipts(records)
	return records, nil
}

// DeleteCertifiedReceipt removes a record
func (b *BadgerPersistence) DeleteCertifiedReceipt(txHash common.Hash) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(receiptKey(txHash))
	})
}

// SetPastPerfectWatermark raises the watermark of scope to ts. The read and
// the write share one transaction, so concurrent callers cannot lower it.
func (b *BadgerPersistence) SetPastPerfectWatermark(scope common.Hash, ts types.Timestamp) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	key := watermarkKey(scope)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, ts.Micros())

	for {
		err := b.db.Update(func(txn *badgerdb.Txn) error {
			item, err := txn.Get(key)
			if err != nil && err != badgerdb.ErrKeyNotFound {
				return err
			}
			if err == nil {
				current, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				if len(current) == 8 && binary.BigEndian.Uint64(current) >= ts.Micros() {
					return nil
				}
			}
			return txn.Set(key, buf)
		})
		if err == badgerdb.ErrConflict {
			continue
		}
		return err
	}
}

// GetPastPerfectWatermark returns the watermark of scope, 0 if none
func (b *BadgerPersistence) GetPastPerfectWatermark(scope common.Hash) (types.Timestamp, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, persistence.ErrClosed
	}

	data, err := b.get(watermarkKey(scope))
	if err != nil {
		return 0, fmt.Errorf("failed to read past perfect watermark: %w", err)
	}
	if data == nil {
		return 0, nil
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("invalid past perfect watermark data: expected 8 bytes, got %d", len(data))
	}
	return types.FromMicros(binary.BigEndian.Uint64(data)), nil
}

// Close stops GC and closes the database
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil // Already closed, idempotent
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
