package security

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"crosschain_bridge/pkg/data"
)

// ChallengeManager opens, tracks, and resolves the time-boxed dispute
// windows of large transfers. Expiry is discovered lazily on read; there is
// no background timer. Funds release is gated on an explicit status check,
// so a pull-based transition is sufficient.
type ChallengeManager struct {
	challenges map[string]*data.ChallengeInfo
	clock      clock.Clock
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewChallengeManager creates a ChallengeManager using the given clock
func NewChallengeManager(clk clock.Clock, logger *zap.Logger) *ChallengeManager {
	return &ChallengeManager{
		challenges: make(map[string]*data.ChallengeInfo),
		clock:      clk,
		logger:     logger,
	}
}

// Open creates an ACTIVE challenge window for the transaction
func (m *ChallengeManager) Open(transactionID string, amount float64, duration time.Duration) *data.ChallengeInfo {
	now := m.clock.Now().UTC()
	challenge := &data.ChallengeInfo{
		TransactionID: transactionID,
		Amount:        amount,
		StartTime:     now,
		ExpiryTime:    now.Add(duration),
		Status:        data.ChallengeActive,
	}

	m.mu.Lock()
	m.challenges[transactionID] = challenge
	m.mu.Unlock()

	m.logger.Info("Created challenge period",
		zap.String("transactionID", transactionID),
		zap.Float64("amount", amount),
		zap.Duration("duration", duration))

	return challenge
}

// Get returns a copy of the challenge record, if one exists
func (m *ChallengeManager) Get(transactionID string) (*data.ChallengeInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	challenge, exists := m.challenges[transactionID]
	if !exists {
		return nil, false
	}
	cp := *challenge
	return &cp, true
}

// Restore re-registers a previously persisted challenge record
func (m *ChallengeManager) Restore(challenge *data.ChallengeInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *challenge
	m.challenges[challenge.TransactionID] = &cp
}

// IsPassed reports whether the transaction has cleared its challenge
// period. A transaction with no challenge record is treated as passed:
// challenge periods are opt-in for large transfers only. A FRAUD_PROVEN
// challenge never passes. On the first observation past the expiry time the
// record lazily transitions ACTIVE to PASSED.
func (m *ChallengeManager) IsPassed(transactionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	challenge, exists := m.challenges[transactionID]
	if !exists {
		return true
	}

	if challenge.Status == data.ChallengeFraudProven {
		return false
	}

	passed := !m.clock.Now().Before(challenge.ExpiryTime)
	if passed && challenge.Status == data.ChallengeActive {
		challenge.Status = data.ChallengePassed
		m.logger.Info("Transaction passed challenge period",
			zap.String("transactionID", transactionID))
	}

	return passed
}

// IsExpired reports whether the challenge window has lapsed without
// transitioning the record
func (m *ChallengeManager) IsExpired(transactionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	challenge, exists := m.challenges[transactionID]
	if !exists {
		return true
	}
	return m.clock.Now().After(challenge.ExpiryTime)
}

// MarkFraudProven transitions the challenge to its FRAUD_PROVEN terminal
// state. Terminal statuses never revert; marking an already terminal
// challenge is a no-op returning false.
func (m *ChallengeManager) MarkFraudProven(transactionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	challenge, exists := m.challenges[transactionID]
	if !exists || challenge.Status.IsTerminal() {
		return false
	}

	challenge.Status = data.ChallengeFraudProven
	return true
}

// ActiveCount returns the number of non-terminal challenge windows
func (m *ChallengeManager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, challenge := range m.challenges {
		if challenge.Status == data.ChallengeActive {
			count++
		}
	}
	return count
}
