package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newSlashingFixture(t *testing.T) (*SlashingEngine, *ValidatorRegistry, *SecurityMetrics) {
	registry := NewValidatorRegistry(zaptest.NewLogger(t))
	registry.Seed(5)
	metrics := NewSecurityMetrics()
	engine := NewSlashingEngine(registry, metrics, 50, 5, 30, zaptest.NewLogger(t))
	return engine, registry, metrics
}

func TestSlash(t *testing.T) {
	engine, registry, metrics := newSlashingFixture(t)

	engine.Slash("validator-1")

	v, _ := registry.Get("validator-1")
	assert.Equal(t, 50.0, v.Reputation)
	assert.True(t, v.Active)
	assert.Equal(t, int64(1), metrics.SlashingEvents())

	// Second slash clamps at zero and deactivates below the floor
	engine.Slash("validator-1")

	v, _ = registry.Get("validator-1")
	assert.Equal(t, 0.0, v.Reputation)
	assert.False(t, v.Active)
	assert.Equal(t, int64(2), metrics.SlashingEvents())
}

func TestSlashAll(t *testing.T) {
	engine, registry, metrics := newSlashingFixture(t)

	engine.SlashAll([]string{"validator-2", "validator-3"})

	for _, id := range []string{"validator-2", "validator-3"} {
		v, exists := registry.Get(id)
		require.True(t, exists)
		assert.Equal(t, 50.0, v.Reputation)
	}
	v, _ := registry.Get("validator-1")
	assert.Equal(t, 100.0, v.Reputation)
	assert.Equal(t, int64(2), metrics.SlashingEvents())
}

func TestSlashUnknownValidator(t *testing.T) {
	engine, _, metrics := newSlashingFixture(t)

	engine.Slash("ghost")
	assert.Equal(t, int64(0), metrics.SlashingEvents())
}

func TestPenalizeInvalidChallenge(t *testing.T) {
	engine, registry, metrics := newSlashingFixture(t)

	engine.PenalizeInvalidChallenge("validator-1")

	v, _ := registry.Get("validator-1")
	assert.Equal(t, 95.0, v.Reputation)
	assert.True(t, v.Active)

	// Challenger penalties are not slashing events
	assert.Equal(t, int64(0), metrics.SlashingEvents())

	// Repeated penalties drive reputation below the floor without ever
	// deactivating on this path
	for i := 0; i < 15; i++ {
		engine.PenalizeInvalidChallenge("validator-1")
	}

	v, _ = registry.Get("validator-1")
	assert.Equal(t, 20.0, v.Reputation)
	assert.True(t, v.Active)
}
