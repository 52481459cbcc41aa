package data

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupTestDB(t *testing.T) *PostgresRepository {
	// Get connection string from environment variable
	connStr := os.Getenv("TEST_DATABASE_URL")
	if connStr == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	logger := zaptest.NewLogger(t)
	repo, err := NewPostgresRepository(context.Background(), connStr, logger)
	require.NoError(t, err)

	require.NoError(t, NewSchemaManager(repo.pool).InitializeSchema(context.Background()))
	clearTestData(t, repo)

	return repo
}

func clearTestData(t *testing.T, repo *PostgresRepository) {
	ctx := context.Background()
	queries := []string{
		"DELETE FROM validators",
		"DELETE FROM security_proofs",
		"DELETE FROM challenges",
	}

	for _, query := range queries {
		_, err := repo.pool.Exec(ctx, query)
		require.NoError(t, err)
	}
}

func TestValidatorOperations(t *testing.T) {
	repo := setupTestDB(t)
	defer repo.Close()

	ctx := context.Background()

	t.Run("SaveAndGet", func(t *testing.T) {
		v := NewValidator("validator-1", "Validator 1")
		require.NoError(t, repo.SaveValidator(ctx, v))

		retrieved, err := repo.GetValidator(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, v.ID, retrieved.ID)
		assert.Equal(t, v.PublicKey, retrieved.PublicKey)
		assert.Equal(t, v.Reputation, retrieved.Reputation)

		// Duplicate insert
		assert.ErrorIs(t, repo.SaveValidator(ctx, v), ErrDuplicate)
	})

	t.Run("Update", func(t *testing.T) {
		v := NewValidator("validator-2", "Validator 2")
		require.NoError(t, repo.SaveValidator(ctx, v))

		v.Reputation = 45.0
		v.Active = false
		require.NoError(t, repo.UpdateValidator(ctx, v))

		updated, err := repo.GetValidator(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, 45.0, updated.Reputation)
		assert.False(t, updated.Active)
	})

	t.Run("ListActive", func(t *testing.T) {
		active := true
		validators, err := repo.ListValidators(ctx, ValidatorFilter{Active: &active})
		require.NoError(t, err)
		for _, v := range validators {
			assert.True(t, v.Active)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetValidator(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestProofOperations(t *testing.T) {
	repo := setupTestDB(t)
	defer repo.Close()

	ctx := context.Background()

	proof := &SecurityProof{
		TransactionID: "tx-1",
		ProofHash:     "deadbeef",
		GeneratedAt:   time.Now().UTC(),
		Payload:       []byte("payload"),
	}
	require.NoError(t, repo.SaveProof(ctx, proof))

	retrieved, err := repo.GetProof(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, proof.ProofHash, retrieved.ProofHash)
	assert.Equal(t, proof.Payload, retrieved.Payload)

	assert.ErrorIs(t, repo.SaveProof(ctx, proof), ErrDuplicate)

	_, err = repo.GetProof(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChallengeOperations(t *testing.T) {
	repo := setupTestDB(t)
	defer repo.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	challenge := &ChallengeInfo{
		TransactionID: "tx-1",
		Amount:        150000,
		StartTime:     now,
		ExpiryTime:    now.Add(24 * time.Hour),
		Status:        ChallengeActive,
	}
	require.NoError(t, repo.SaveChallenge(ctx, challenge))

	retrieved, err := repo.GetChallenge(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, ChallengeActive, retrieved.Status)
	assert.Equal(t, 150000.0, retrieved.Amount)

	require.NoError(t, repo.UpdateChallengeStatus(ctx, "tx-1", ChallengeFraudProven))
	updated, err := repo.GetChallenge(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, ChallengeFraudProven, updated.Status)

	challenges, err := repo.ListChallenges(ctx, ChallengeFilter{Status: ChallengeFraudProven})
	require.NoError(t, err)
	assert.Len(t, challenges, 1)
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	v := NewValidator("validator-1", "Validator 1")
	require.NoError(t, repo.SaveValidator(ctx, v))
	assert.ErrorIs(t, repo.SaveValidator(ctx, v), ErrDuplicate)

	retrieved, err := repo.GetValidator(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.PublicKey, retrieved.PublicKey)

	// Returned copies must not alias internal state
	retrieved.Reputation = 10
	again, err := repo.GetValidator(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, InitialReputation, again.Reputation)

	v.Reputation = 25
	v.Active = false
	require.NoError(t, repo.UpdateValidator(ctx, v))
	updated, err := repo.GetValidator(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 25.0, updated.Reputation)
	assert.False(t, updated.Active)

	now := time.Now().UTC()
	require.NoError(t, repo.SaveChallenge(ctx, &ChallengeInfo{
		TransactionID: "tx-1",
		Amount:        200000,
		StartTime:     now,
		ExpiryTime:    now.Add(time.Hour),
		Status:        ChallengeActive,
	}))
	require.NoError(t, repo.UpdateChallengeStatus(ctx, "tx-1", ChallengePassed))

	challenge, err := repo.GetChallenge(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, ChallengePassed, challenge.Status)
}
