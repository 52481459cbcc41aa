package security

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"crosschain_bridge/pkg/config"
	"crosschain_bridge/pkg/data"
)

// BridgeSecurityManager orchestrates multi-signature validation, fraud
// detection, challenge periods, and slashing for one bridge instance. All
// state hangs off the manager, so independent instances (one per
// chain-pair) can coexist in a process.
type BridgeSecurityManager struct {
	cfg *config.Config

	registry  *ValidatorRegistry
	proofGen  *ProofGenerator
	collector *QuorumCollector
	fraud     *FraudDetector
	challenge *ChallengeManager
	slashing  *SlashingEngine
	evidence  EvidenceVerifier
	metrics   *SecurityMetrics
	repo      data.Repository
	logger    *zap.Logger

	proofs     map[string]*data.SecurityProof
	signatures map[string][]*data.ValidatorSignature
	mu         sync.RWMutex
}

// NewBridgeSecurityManager wires the security subsystem together. The
// repository may be nil, in which case nothing is persisted. A nil evidence
// verifier defaults to rejecting all evidence.
func NewBridgeSecurityManager(cfg *config.Config, registry *ValidatorRegistry, network ValidatorNetworkClient, evidence EvidenceVerifier, repo data.Repository, clk clock.Clock, logger *zap.Logger) *BridgeSecurityManager {
	if evidence == nil {
		evidence = NewRejectAllEvidenceVerifier()
	}
	if clk == nil {
		clk = clock.New()
	}

	metrics := NewSecurityMetrics()
	verifier := NewSignatureVerifier()

	return &BridgeSecurityManager{
		cfg:      cfg,
		registry: registry,
		proofGen: NewProofGenerator(),
		collector: NewQuorumCollector(registry, network, verifier,
			cfg.Bridge.RequiredSignatures, cfg.P2P.SignatureTimeout, logger),
		fraud:     NewFraudDetector(registry, cfg.Security.MinSignerReputation, logger),
		challenge: NewChallengeManager(clk, logger),
		slashing: NewSlashingEngine(registry, metrics,
			cfg.Security.SlashPenalty, cfg.Security.ChallengerPenalty,
			cfg.Security.ReputationFloor, logger),
		evidence:   evidence,
		metrics:    metrics,
		repo:       repo,
		logger:     logger,
		proofs:     make(map[string]*data.SecurityProof),
		signatures: make(map[string][]*data.ValidatorSignature),
	}
}

// Start loads persisted validators and open challenge windows, if a
// repository is configured
func (m *BridgeSecurityManager) Start(ctx context.Context) error {
	if m.repo == nil {
		if m.registry.Size() == 0 {
			m.registry.Seed(m.cfg.Bridge.TotalValidators)
		}
		return nil
	}

	if err := m.registry.LoadFrom(ctx, m.repo); err != nil {
		return fmt.Errorf("loading validators: %w", err)
	}
	if m.registry.Size() == 0 {
		m.registry.Seed(m.cfg.Bridge.TotalValidators)
		if err := m.registry.SyncTo(ctx, m.repo); err != nil {
			return fmt.Errorf("persisting seeded validators: %w", err)
		}
	}

	challenges, err := m.repo.ListChallenges(ctx, data.ChallengeFilter{Status: data.ChallengeActive})
	if err != nil {
		return fmt.Errorf("loading challenges: %w", err)
	}
	for _, challenge := range challenges {
		m.challenge.Restore(challenge)
	}

	m.logger.Info("Bridge security manager started",
		zap.Int("validators", m.registry.Size()),
		zap.Int("activeChallenges", len(challenges)))
	return nil
}

// ValidateTransaction runs a transfer through the full validation pipeline:
// basic field checks, proof generation, quorum collection, fraud detection,
// and, for large transfers, challenge-period creation. Domain rejections
// come back as a failed result; the error return carries infrastructure
// failures only.
func (m *BridgeSecurityManager) ValidateTransaction(ctx context.Context, req *data.TransferRequest) (*data.ValidationResult, error) {
	m.metrics.IncrementValidations()

	// Step 1: basic validation, nothing else touched on failure
	if err := req.Validate(); err != nil {
		return data.ValidationFailed(capitalize(err.Error())), nil
	}

	// Step 2: generate and store the security proof
	proof := m.proofGen.Generate(req)
	if err := m.storeProof(ctx, proof); err != nil {
		return nil, err
	}

	// Step 3: collect validator signatures
	signatures, err := m.collector.Collect(ctx, proof)
	if err != nil {
		return nil, fmt.Errorf("collecting signatures for %s: %w", req.TransactionID, err)
	}

	m.mu.Lock()
	m.signatures[req.TransactionID] = signatures
	m.mu.Unlock()

	// Step 4: verify minimum signatures
	required := m.collector.RequiredSignatures()
	if len(signatures) < required {
		return data.ValidationFailed(fmt.Sprintf(
			"Insufficient validator signatures: %d/%d", len(signatures), required)), nil
	}

	// Step 5: fraud detection
	report := m.fraud.Inspect(signatures)
	if report.Fraudulent {
		m.metrics.IncrementFraudDetections()
		return data.ValidationFailed("Fraud detected: " + report.Reason), nil
	}

	// Step 6: challenge period for large transfers
	requiresChallenge := req.Amount > m.cfg.Bridge.LargeTransferThreshold
	challengeHours := 0
	if requiresChallenge {
		challengeHours = m.cfg.Bridge.ChallengePeriodHours
		challenge := m.challenge.Open(req.TransactionID, req.Amount,
			time.Duration(challengeHours)*time.Hour)
		if err := m.storeChallenge(ctx, challenge); err != nil {
			return nil, err
		}
	}

	m.logger.Info("Transaction validated",
		zap.String("transactionID", req.TransactionID),
		zap.Int("signatures", len(signatures)),
		zap.Int("required", required),
		zap.Bool("challengePeriod", requiresChallenge))

	return data.ValidationSuccess(len(signatures), proof.ProofHash, requiresChallenge, challengeHours), nil
}

// SubmitChallenge processes fraud evidence submitted against a transaction
// inside its challenge window. Accepted evidence slashes the implicated
// validators and cancels the transfer; insufficient evidence penalizes the
// challenger.
func (m *BridgeSecurityManager) SubmitChallenge(ctx context.Context, transactionID, challengerID, reason string, evidence []byte) (*data.ChallengeResult, error) {
	m.metrics.IncrementChallengesRaised()

	// Challenger must be a live member of the validator set
	challenger, exists := m.registry.Get(challengerID)
	if !exists || !challenger.Active {
		return data.ChallengeRejected("Invalid or inactive challenger"), nil
	}

	challenge, exists := m.challenge.Get(transactionID)
	if !exists || challenge.Status != data.ChallengeActive {
		return data.ChallengeRejected("No active challenge period for this transaction"), nil
	}

	if m.challenge.IsExpired(transactionID) {
		return data.ChallengeRejected("Challenge period expired"), nil
	}

	proof, err := m.lookupProof(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if proof == nil {
		return data.ChallengeRejected("Security proof not found"), nil
	}

	valid, implicated := m.evidence.VerifyEvidence(proof, evidence)
	if !valid {
		m.slashing.PenalizeInvalidChallenge(challengerID)

		m.logger.Info("Rejected challenge",
			zap.String("transactionID", transactionID),
			zap.String("challengerID", challengerID),
			zap.String("reason", reason))

		return data.ChallengeRejected("Evidence insufficient. Challenger penalized."), nil
	}

	// Fraud proven: slash the implicated validators and cancel the transfer
	m.slashing.SlashAll(implicated)
	m.challenge.MarkFraudProven(transactionID)
	if m.repo != nil {
		if err := m.repo.UpdateChallengeStatus(ctx, transactionID, data.ChallengeFraudProven); err != nil && err != data.ErrNotFound {
			return nil, fmt.Errorf("persisting challenge status: %w", err)
		}
	}

	m.logger.Warn("Fraud proven",
		zap.String("transactionID", transactionID),
		zap.String("challengerID", challengerID),
		zap.Int("slashedValidators", len(implicated)))

	return data.ChallengeAccepted(
		"Fraud proven. Transaction cancelled. Validators slashed.", implicated), nil
}

// HasPassedChallengePeriod reports whether funds may be released for the
// transaction. Transfers that never required a challenge window pass
// immediately.
func (m *BridgeSecurityManager) HasPassedChallengePeriod(transactionID string) bool {
	return m.challenge.IsPassed(transactionID)
}

// GetValidatorStats returns a snapshot of validator network statistics
func (m *BridgeSecurityManager) GetValidatorStats() *data.ValidatorNetworkStats {
	return &data.ValidatorNetworkStats{
		TotalValidators:    m.cfg.Bridge.TotalValidators,
		ActiveValidators:   m.registry.ActiveCount(),
		RequiredSignatures: m.cfg.Bridge.RequiredSignatures,
		TotalValidations:   m.metrics.TotalValidations(),
		FraudDetections:    m.metrics.FraudDetections(),
		ChallengesRaised:   m.metrics.ChallengesRaised(),
		SlashingEvents:     m.metrics.SlashingEvents(),
		AverageReputation:  m.registry.AverageReputation(),
	}
}

// Registry exposes the validator registry for maintenance jobs
func (m *BridgeSecurityManager) Registry() *ValidatorRegistry {
	return m.registry
}

// GetProof returns the stored security proof for a transaction, if any
func (m *BridgeSecurityManager) GetProof(transactionID string) (*data.SecurityProof, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	proof, exists := m.proofs[transactionID]
	return proof, exists
}

// Private helpers

func (m *BridgeSecurityManager) storeProof(ctx context.Context, proof *data.SecurityProof) error {
	m.mu.Lock()
	m.proofs[proof.TransactionID] = proof
	m.mu.Unlock()

	if m.repo != nil {
		if err := m.repo.SaveProof(ctx, proof); err != nil && err != data.ErrDuplicate {
			return fmt.Errorf("persisting proof for %s: %w", proof.TransactionID, err)
		}
	}
	return nil
}

func (m *BridgeSecurityManager) storeChallenge(ctx context.Context, challenge *data.ChallengeInfo) error {
	if m.repo == nil {
		return nil
	}
	if err := m.repo.SaveChallenge(ctx, challenge); err != nil && err != data.ErrDuplicate {
		return fmt.Errorf("persisting challenge for %s: %w", challenge.TransactionID, err)
	}
	return nil
}

func (m *BridgeSecurityManager) lookupProof(ctx context.Context, transactionID string) (*data.SecurityProof, error) {
	if proof, exists := m.GetProof(transactionID); exists {
		return proof, nil
	}

	if m.repo == nil {
		return nil, nil
	}

	proof, err := m.repo.GetProof(ctx, transactionID)
	if err == data.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading proof for %s: %w", transactionID, err)
	}
	return proof, nil
}

// capitalize uppercases the first byte of an ASCII message so result
// messages read as sentences
func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
