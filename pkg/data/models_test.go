package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidator(t *testing.T) {
	v := NewValidator("validator-1", "Validator 1")

	assert.Equal(t, "validator-1", v.ID)
	assert.Equal(t, InitialReputation, v.Reputation)
	assert.True(t, v.Active)
	assert.Contains(t, v.PublicKey, "0x")
	assert.NoError(t, v.Validate())
}

func TestValidatorValidate(t *testing.T) {
	v := NewValidator("validator-1", "Validator 1")

	v.Reputation = 120
	assert.Error(t, v.Validate())

	v.Reputation = -1
	assert.Error(t, v.Validate())

	v.Reputation = 50
	v.ID = ""
	assert.Error(t, v.Validate())
}

func TestTransferRequestValidate(t *testing.T) {
	valid := func() *TransferRequest {
		return &TransferRequest{
			TransactionID: "tx-1",
			SourceChain:   "ethereum",
			TargetChain:   "polygon",
			SourceAddress: "0xabc",
			TargetAddress: "0xdef",
			Amount:        50.0,
		}
	}

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("EmptyTransactionID", func(t *testing.T) {
		r := valid()
		r.TransactionID = ""
		assert.ErrorIs(t, r.Validate(), ErrInvalidID)
	})

	t.Run("MissingChain", func(t *testing.T) {
		r := valid()
		r.TargetChain = ""
		assert.ErrorIs(t, r.Validate(), ErrInvalidChain)
	})

	t.Run("SameChain", func(t *testing.T) {
		r := valid()
		r.TargetChain = r.SourceChain
		assert.ErrorIs(t, r.Validate(), ErrSameChain)
	})

	t.Run("EmptyAddresses", func(t *testing.T) {
		r := valid()
		r.SourceAddress = ""
		assert.ErrorIs(t, r.Validate(), ErrInvalidAddress)

		r = valid()
		r.TargetAddress = ""
		assert.ErrorIs(t, r.Validate(), ErrInvalidAddress)
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		r := valid()
		r.Amount = 0
		assert.ErrorIs(t, r.Validate(), ErrInvalidAmount)

		r.Amount = -10
		assert.ErrorIs(t, r.Validate(), ErrInvalidAmount)
	})
}

func TestChallengeStatusIsTerminal(t *testing.T) {
	assert.False(t, ChallengeActive.IsTerminal())
	assert.True(t, ChallengePassed.IsTerminal())
	assert.True(t, ChallengeFraudProven.IsTerminal())
}

func TestResultConstructors(t *testing.T) {
	success := ValidationSuccess(14, "abc123", true, 24)
	require.True(t, success.Valid)
	assert.Equal(t, 14, success.SignatureCount)
	assert.Equal(t, "abc123", success.ProofHash)
	assert.True(t, success.RequiresChallengePeriod)
	assert.Equal(t, 24, success.ChallengePeriodHours)

	failed := ValidationFailed("Insufficient validator signatures: 10/14")
	assert.False(t, failed.Valid)
	assert.Contains(t, failed.Message, "10/14")

	accepted := ChallengeAccepted("Fraud proven", []string{"v3", "v7"})
	assert.True(t, accepted.Accepted)
	assert.Equal(t, []string{"v3", "v7"}, accepted.MaliciousValidators)

	rejected := ChallengeRejected("Challenge period expired")
	assert.False(t, rejected.Accepted)
	assert.Empty(t, rejected.MaliciousValidators)
}
