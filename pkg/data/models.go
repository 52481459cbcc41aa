package data

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Error variables for consistent error handling
var (
	ErrInvalidID      = errors.New("invalid transaction ID")
	ErrInvalidChain   = errors.New("invalid chain identifiers")
	ErrSameChain      = errors.New("source and target chains cannot be the same")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidAmount  = errors.New("invalid transfer amount")
)

// Reputation bounds shared across the security subsystem
const (
	MinReputation     = 0.0
	MaxReputation     = 100.0
	InitialReputation = 100.0
)

// ChallengeStatus represents the lifecycle state of a challenge period
type ChallengeStatus string

const (
	ChallengeActive      ChallengeStatus = "ACTIVE"
	ChallengePassed      ChallengeStatus = "PASSED"
	ChallengeFraudProven ChallengeStatus = "FRAUD_PROVEN"
)

// IsTerminal reports whether the status can no longer change
func (s ChallengeStatus) IsTerminal() bool {
	return s == ChallengePassed || s == ChallengeFraudProven
}

// Validator represents a member of the bridge validator set
type Validator struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	PublicKey   string    `json:"public_key"`
	Reputation  float64   `json:"reputation"`
	Active      bool      `json:"active"`
	JoinedAt    time.Time `json:"joined_at"`
}

// NewValidator creates an active validator with full initial reputation
func NewValidator(id, displayName string) *Validator {
	return &Validator{
		ID:          id,
		DisplayName: displayName,
		PublicKey:   "0x" + strings.ReplaceAll(uuid.New().String(), "-", ""),
		Reputation:  InitialReputation,
		Active:      true,
		JoinedAt:    time.Now().UTC(),
	}
}

// Validate checks if the validator record is well formed
func (v *Validator) Validate() error {
	if v.ID == "" {
		return errors.New("validator ID cannot be empty")
	}
	if v.PublicKey == "" {
		return errors.New("validator public key cannot be empty")
	}
	if v.Reputation < MinReputation || v.Reputation > MaxReputation {
		return fmt.Errorf("reputation %.2f outside [%.0f, %.0f]",
			v.Reputation, MinReputation, MaxReputation)
	}
	return nil
}

// ValidatorSignature is a single validator's signature over a security proof.
// Ephemeral: it lives for one validation attempt.
type ValidatorSignature struct {
	ValidatorID string    `json:"validator_id"`
	Signature   string    `json:"signature"`
	Timestamp   time.Time `json:"timestamp"`
}

// SecurityProof is the deterministic hash commitment over a transfer's
// identifying fields. Immutable once generated; keyed by transaction id.
type SecurityProof struct {
	TransactionID string    `json:"transaction_id"`
	ProofHash     string    `json:"proof_hash"`
	GeneratedAt   time.Time `json:"generated_at"`
	Payload       []byte    `json:"payload,omitempty"`
}

// ChallengeInfo tracks the dispute window of a large transfer
type ChallengeInfo struct {
	TransactionID string          `json:"transaction_id"`
	Amount        float64         `json:"amount"`
	StartTime     time.Time       `json:"start_time"`
	ExpiryTime    time.Time       `json:"expiry_time"`
	Status        ChallengeStatus `json:"status"`
}

// TransferRequest carries the fields of a proposed cross-chain transfer
type TransferRequest struct {
	TransactionID string  `json:"transaction_id"`
	SourceChain   string  `json:"source_chain"`
	TargetChain   string  `json:"target_chain"`
	SourceAddress string  `json:"source_address"`
	TargetAddress string  `json:"target_address"`
	Amount        float64 `json:"amount"`
	Payload       []byte  `json:"payload,omitempty"`
}

// Validate performs the basic field checks that gate every validation attempt
func (r *TransferRequest) Validate() error {
	if r.TransactionID == "" {
		return ErrInvalidID
	}
	if r.SourceChain == "" || r.TargetChain == "" {
		return ErrInvalidChain
	}
	if r.SourceChain == r.TargetChain {
		return ErrSameChain
	}
	if r.SourceAddress == "" {
		return fmt.Errorf("%w: source address empty", ErrInvalidAddress)
	}
	if r.TargetAddress == "" {
		return fmt.Errorf("%w: target address empty", ErrInvalidAddress)
	}
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidationResult is the transient outcome of validateTransaction.
// Domain rejections are carried here as values, never as errors.
type ValidationResult struct {
	Valid                   bool   `json:"valid"`
	Message                 string `json:"message"`
	SignatureCount          int    `json:"signature_count"`
	ProofHash               string `json:"proof_hash,omitempty"`
	RequiresChallengePeriod bool   `json:"requires_challenge_period"`
	ChallengePeriodHours    int    `json:"challenge_period_hours"`
}

// ValidationSuccess builds a passing result
func ValidationSuccess(signatureCount int, proofHash string, requiresChallenge bool, challengeHours int) *ValidationResult {
	return &ValidationResult{
		Valid:                   true,
		Message:                 "Validation successful",
		SignatureCount:          signatureCount,
		ProofHash:               proofHash,
		RequiresChallengePeriod: requiresChallenge,
		ChallengePeriodHours:    challengeHours,
	}
}

// ValidationFailed builds a rejection carrying an operator-readable message
func ValidationFailed(message string) *ValidationResult {
	return &ValidationResult{Valid: false, Message: message}
}

// ChallengeResult is the transient outcome of submitChallenge
type ChallengeResult struct {
	Accepted            bool     `json:"accepted"`
	Message             string   `json:"message"`
	MaliciousValidators []string `json:"malicious_validators,omitempty"`
}

// ChallengeAccepted builds a successful challenge outcome
func ChallengeAccepted(message string, maliciousValidators []string) *ChallengeResult {
	return &ChallengeResult{
		Accepted:            true,
		Message:             message,
		MaliciousValidators: maliciousValidators,
	}
}

// ChallengeRejected builds a rejected challenge outcome
func ChallengeRejected(message string) *ChallengeResult {
	return &ChallengeResult{Accepted: false, Message: message}
}

// ValidatorNetworkStats is the read-only stats snapshot exposed to the
// rest of the platform
type ValidatorNetworkStats struct {
	TotalValidators    int     `json:"total_validators"`
	ActiveValidators   int     `json:"active_validators"`
	RequiredSignatures int     `json:"required_signatures"`
	TotalValidations   int64   `json:"total_validations"`
	FraudDetections    int64   `json:"fraud_detections"`
	ChallengesRaised   int64   `json:"challenges_raised"`
	SlashingEvents     int64   `json:"slashing_events"`
	AverageReputation  float64 `json:"average_reputation"`
}
