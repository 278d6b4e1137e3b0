package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/config"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/persistence/badger"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/persistence/memory"
)

func TestNewStore(t *testing.T) {
	logger := zap.NewNop()

	t.Run("Memory", func(t *testing.T) {
		store, err := newStore(&config.PersistenceConfig{Type: config.PersistenceTypeMemory}, logger)
		require.NoError(t, err)
		defer func() { _ = store.Close() }()
		assert.IsType(t, &memory.MemoryPersistence{}, store)
	})

	t.Run("Badger", func(t *testing.T) {
		store, err := newStore(&config.PersistenceConfig{
			Type:     config.PersistenceTypeBadger,
			DataPath: t.TempDir(),
		}, logger)
		require.NoError(t, err)
		defer func() { _ = store.Close() }()
		assert.IsType(t, &badger.BadgerPersistence{}, store)
		require.NoError(t, store.HealthCheck())
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := newStore(&config.PersistenceConfig{Type: "postgres"}, logger)
		require.Error(t, err)
	})
}
