package security

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"crosschain_bridge/pkg/data"
)

func TestRegistrySeed(t *testing.T) {
	registry := NewValidatorRegistry(zaptest.NewLogger(t))
	registry.Seed(21)

	assert.Equal(t, 21, registry.Size())
	assert.Equal(t, 21, registry.ActiveCount())
	assert.Equal(t, 100.0, registry.AverageReputation())

	v, exists := registry.Get("validator-1")
	require.True(t, exists)
	assert.Equal(t, "Validator 1", v.DisplayName)
	assert.True(t, v.Active)
	assert.NotEmpty(t, v.PublicKey)

	// Seeding again must not reset existing validators
	registry.AdjustReputation("validator-1", -40, 0)
	registry.Seed(21)
	v, _ = registry.Get("validator-1")
	assert.Equal(t, 60.0, v.Reputation)
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	registry := NewValidatorRegistry(zaptest.NewLogger(t))
	registry.Seed(1)

	v, exists := registry.Get("validator-1")
	require.True(t, exists)
	v.Reputation = 1.0

	fresh, _ := registry.Get("validator-1")
	assert.Equal(t, 100.0, fresh.Reputation)
}

func TestAdjustReputation(t *testing.T) {
	t.Run("ClampsToBounds", func(t *testing.T) {
		registry := NewValidatorRegistry(zaptest.NewLogger(t))
		registry.Seed(1)

		rep, _ := registry.AdjustReputation("validator-1", -150, 0)
		assert.Equal(t, 0.0, rep)

		rep, _ = registry.AdjustReputation("validator-1", 250, 0)
		assert.Equal(t, 100.0, rep)
	})

	t.Run("DeactivatesBelowFloor", func(t *testing.T) {
		registry := NewValidatorRegistry(zaptest.NewLogger(t))
		registry.Seed(1)

		rep, deactivated := registry.AdjustReputation("validator-1", -50, 30)
		assert.Equal(t, 50.0, rep)
		assert.False(t, deactivated)

		rep, deactivated = registry.AdjustReputation("validator-1", -50, 30)
		assert.Equal(t, 0.0, rep)
		assert.True(t, deactivated)

		v, _ := registry.Get("validator-1")
		assert.False(t, v.Active)
		assert.Equal(t, 0, registry.ActiveCount())
	})

	t.Run("ZeroFloorNeverDeactivates", func(t *testing.T) {
		registry := NewValidatorRegistry(zaptest.NewLogger(t))
		registry.Seed(1)

		_, deactivated := registry.AdjustReputation("validator-1", -100, 0)
		assert.False(t, deactivated)

		v, _ := registry.Get("validator-1")
		assert.True(t, v.Active)
	})

	t.Run("UnknownValidatorIsNoop", func(t *testing.T) {
		registry := NewValidatorRegistry(zaptest.NewLogger(t))
		rep, deactivated := registry.AdjustReputation("ghost", -50, 30)
		assert.Equal(t, 0.0, rep)
		assert.False(t, deactivated)
	})
}

func TestAdjustReputationConcurrent(t *testing.T) {
	registry := NewValidatorRegistry(zaptest.NewLogger(t))
	registry.Seed(1)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.AdjustReputation("validator-1", -1, 0)
		}()
	}
	wg.Wait()

	v, _ := registry.Get("validator-1")
	assert.Equal(t, 80.0, v.Reputation)
}

func TestDecayInactive(t *testing.T) {
	registry := NewValidatorRegistry(zaptest.NewLogger(t))
	registry.Seed(3)

	now := time.Now().UTC()
	registry.MarkSigned("validator-1", now)

	decayed := registry.DecayInactive(now.Add(-time.Hour), 1.0)
	assert.Equal(t, 2, decayed)

	v1, _ := registry.Get("validator-1")
	v2, _ := registry.Get("validator-2")
	assert.Equal(t, 100.0, v1.Reputation)
	assert.Equal(t, 99.0, v2.Reputation)
}

func TestRegistryRepositorySync(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	repo := data.NewMemoryRepository()

	registry := NewValidatorRegistry(logger)
	registry.Seed(3)
	registry.AdjustReputation("validator-2", -25, 0)

	require.NoError(t, registry.SyncTo(ctx, repo))

	restored := NewValidatorRegistry(logger)
	require.NoError(t, restored.LoadFrom(ctx, repo))

	assert.Equal(t, 3, restored.Size())
	v, exists := restored.Get("validator-2")
	require.True(t, exists)
	assert.Equal(t, 75.0, v.Reputation)

	// A second sync updates in place rather than duplicating
	registry.AdjustReputation("validator-2", -5, 0)
	require.NoError(t, registry.SyncTo(ctx, repo))

	validators, err := repo.ListValidators(ctx, data.ValidatorFilter{})
	require.NoError(t, err)
	assert.Len(t, validators, 3)
}
