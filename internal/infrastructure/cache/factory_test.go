package cache

import (
	"testing"
	"time"

	"github.com/erp/manufacturing/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Port 1 is never a Redis listener, so the dial fails fast.
func unreachableRedisConfig() config.RedisConfig {
	return config.RedisConfig{Host: "127.0.0.1", Port: 1}
}

func TestIdempotencyStoreFactory_FallsBackToInMemory(t *testing.T) {
	factory := NewIdempotencyStoreFactory(unreachableRedisConfig(), WithLogger(zap.NewNop()))

	store, err := factory.CreateStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	assert.IsType(t, &InMemoryIdempotencyStore{}, store)
}

func TestIdempotencyStoreFactory_FallbackDisabled(t *testing.T) {
	factory := NewIdempotencyStoreFactory(unreachableRedisConfig(),
		WithLogger(zap.NewNop()),
		WithInMemoryFallback(false),
	)

	store, err := factory.CreateStore()
	require.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "Redis required")
}

func TestIdempotencyStoreFactory_CreateInMemoryStore(t *testing.T) {
	factory := NewIdempotencyStoreFactory(config.RedisConfig{})

	store := factory.CreateInMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	ok, err := store.MarkProcessed(t.Context(), "event:MP-2026-001:started", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
