package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/config"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/persistence"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/persistence/badger"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/persistence/memory"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/persistence/redis"
)

// newStore opens the trust store backend named by cfg
func newStore(cfg *config.PersistenceConfig, logger *zap.Logger) (persistence.IVerifierPersistence, error) {
	switch cfg.Type {
	case config.PersistenceTypeMemory:
		return memory.NewMemoryPersistence(), nil
	case config.PersistenceTypeBadger:
		return badger.NewBadgerPersistence(cfg.DataPath, logger)
	case config.PersistenceTypeRedis:
		return redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.Type)
	}
}
