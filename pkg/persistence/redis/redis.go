package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/committee"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/persistence"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

// Key prefixes for namespacing in Redis
const (
	keyCommittee         = "qv:committee:current"
	keyPrefixReceipt     = "qv:receipt:"
	keyPrefixWatermark   = "qv:watermark:pastperfect:"
	keySchemaVersion     = "qv:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Redis has no prefix iteration, so listing goes through an index set.
	keySetReceipts = "qv:receipts:index"
)

// raiseWatermark sets KEYS[1] to ARGV[1] only if that moves it forward.
var raiseWatermark = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local proposed = tonumber(ARGV[1])
if proposed > current then
	redis.call('SET', KEYS[1], ARGV[1])
	return 1
end
return 0
`)

// RedisPersistence is a trust store shared between verifier instances.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "tenant-a:" gives
	// "tenant-a:qv:receipt:0x...".
	KeyPrefix string
}

// NewRedisPersistence connects to Redis and validates the schema version.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized",
		"address", cfg.Address,
		"db", cfg.DB,
		"key_prefix", cfg.KeyPrefix,
	)

	return rp, nil
}

func (r *RedisPersistence) prefixKey(key string) string {
	return r.keyPrefix + key
}

func (r *RedisPersistence) receiptKey(txHash string) string {
	return r.prefixKey(keyPrefixReceipt + txHash)
}

func (r *RedisPersistence) watermarkKey(scope common.Hash) string {
	return r.prefixKey(keyPrefixWatermark + scope.Hex())
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}
	return nil
}

// SaveCommittee replaces the cached committee
func (r *RedisPersistence) SaveCommittee(c *committee.Committee) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalCommittee(c)
	if err != nil {
		return err
	}

	if err := r.client.Set(context.Background(), r.prefixKey(keyCommittee), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save Committee: %w", err)
	}
	return nil
}

// LoadCommittee returns the cached committee, or nil if none was saved
func (r *RedisPersistence) LoadCommittee() (*committee.Committee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.client.Get(context.Background(), r.prefixKey(keyCommittee)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load Committee: %w", err)
	}
	return persistence.UnmarshalCommittee(data)
}

// SaveCertifiedReceipt stores the record and indexes its tx hash in one pipeline
func (r *RedisPersistence) SaveCertifiedReceipt(record *persistence.CertifiedReceiptRecord) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalCertifiedReceiptRecord(record)
	if err != nil {
		return err
	}

	ctx := context.Background()
	txHash := record.TxHash.Hex()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.receiptKey(txHash), data, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetReceipts), txHash)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save CertifiedReceiptRecord: %w", err)
	}
	return nil
}

// LoadCertifiedReceipt retrieves a record by tx hash
func (r *RedisPersistence) LoadCertifiedReceipt(txHash common.Hash) (*persistence.CertifiedReceiptRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.client.Get(context.Background(), r.receiptKey(txHash.Hex())).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load CertifiedReceiptRecord: %w", err)
	}
	return persistence.UnmarshalCertifiedReceiptRecord(data)
}

// ListCertifiedReceipts returns all indexed records ordered by confirmation
// time. Index entries whose record is gone are removed.
func (r *RedisPersistence) ListCertifiedReceipts() ([]*persistence.CertifiedReceiptRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx := context.Background()
	indexKey := r.prefixKey(keySetReceipts)

	hashes, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list CertifiedReceiptRecord hashes: %w", err)
	}

	records := make([]*persistence.CertifiedReceiptRecord, 0, len(hashes))
	if len(hashes) == 0 {
		return records, nil
	}

	keys := make([]string, len(hashes))
	for i, h := range hashes {
		keys[i] = r.receiptKey(h)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch CertifiedReceiptRecords: %w", err)
	}

	for i, val := range values {
		if val == nil {
			r.client.SRem(ctx, indexKey, hashes[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for CertifiedReceiptRecord", "key", keys[i])
			continue
		}

		record, err := persistence.UnmarshalCertifiedReceiptRecord([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal CertifiedReceiptRecord, skipping",
				"key", keys[i], "error", err)
			continue
		}
		records = append(records, record)
	}

	persistence.SortCertifiedReceipts(records)
	return records, nil
}

// DeleteCertifiedReceipt removes a record and its index entry
func (r *RedisPersistence) DeleteCertifiedReceipt(txHash common.Hash) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx := context.Background()
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.receiptKey(txHash.Hex()))
	pipe.SRem(ctx, r.prefixKey(keySetReceipts), txHash.Hex())

	_, err := pipe.Exec(ctx)
	return err
}

// SetPastPerfectWatermark raises the watermark of scope to ts atomically on
// the server.
func (r *RedisPersistence) SetPastPerfectWatermark(scope common.Hash, ts types.Timestamp) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	err := raiseWatermark.Run(context.Background(), r.client, []string{r.watermarkKey(scope)}, ts.String()).Err()
	if err != nil {
		return fmt.Errorf("failed to set past perfect watermark: %w", err)
	}
	return nil
}

// GetPastPerfectWatermark returns the watermark of scope, 0 if none
func (r *RedisPersistence) GetPastPerfectWatermark(scope common.Hash) (types.Timestamp, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, persistence.ErrClosed
	}

	val, err := r.client.Get(context.Background(), r.watermarkKey(scope)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get past perfect watermark: %w", err)
	}

	micros, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid past perfect watermark %q: %w", val, err)
	}
	return types.FromMicros(micros), nil
}

// Close closes the Redis client
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil // Already closed, idempotent
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

// HealthCheck pings Redis and checks the schema marker
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	return nil
}
