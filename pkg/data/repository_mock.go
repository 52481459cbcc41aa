package data

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory Repository used in tests and when no
// database is configured
type MemoryRepository struct {
	validators map[string]*Validator
	proofs     map[string]*SecurityProof
	challenges map[string]*ChallengeInfo
	mu         sync.RWMutex
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		validators: make(map[string]*Validator),
		proofs:     make(map[string]*SecurityProof),
		challenges: make(map[string]*ChallengeInfo),
	}
}

func (m *MemoryRepository) SaveValidator(ctx context.Context, validator *Validator) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.validators[validator.ID]; exists {
		return ErrDuplicate
	}
	cp := *validator
	m.validators[validator.ID] = &cp
	return nil
}

func (m *MemoryRepository) GetValidator(ctx context.Context, id string) (*Validator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	validator, exists := m.validators[id]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *validator
	return &cp, nil
}

func (m *MemoryRepository) ListValidators(ctx context.Context, filter ValidatorFilter) ([]*Validator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var validators []*Validator
	for _, v := range m.validators {
		if filter.MinReputation != nil && v.Reputation < *filter.MinReputation {
			continue
		}
		if filter.MaxReputation != nil && v.Reputation > *filter.MaxReputation {
			continue
		}
		if filter.Active != nil && v.Active != *filter.Active {
			continue
		}
		cp := *v
		validators = append(validators, &cp)
	}
	return validators, nil
}

func (m *MemoryRepository) UpdateValidator(ctx context.Context, validator *Validator) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.validators[validator.ID]
	if !exists {
		return ErrNotFound
	}
	existing.Reputation = validator.Reputation
	existing.Active = validator.Active
	return nil
}

func (m *MemoryRepository) SaveProof(ctx context.Context, proof *SecurityProof) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.proofs[proof.TransactionID]; exists {
		return ErrDuplicate
	}
	cp := *proof
	m.proofs[proof.TransactionID] = &cp
	return nil
}

func (m *MemoryRepository) GetProof(ctx context.Context, transactionID string) (*SecurityProof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	proof, exists := m.proofs[transactionID]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *proof
	return &cp, nil
}

func (m *MemoryRepository) SaveChallenge(ctx context.Context, challenge *ChallengeInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.challenges[challenge.TransactionID]; exists {
		return ErrDuplicate
	}
	cp := *challenge
	m.challenges[challenge.TransactionID] = &cp
	return nil
}

func (m *MemoryRepository) GetChallenge(ctx context.Context, transactionID string) (*ChallengeInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	challenge, exists := m.challenges[transactionID]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *challenge
	return &cp, nil
}

func (m *MemoryRepository) UpdateChallengeStatus(ctx context.Context, transactionID string, status ChallengeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	challenge, exists := m.challenges[transactionID]
	if !exists {
		return ErrNotFound
	}
	challenge.Status = status
	return nil
}

func (m *MemoryRepository) ListChallenges(ctx context.Context, filter ChallengeFilter) ([]*ChallengeInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var challenges []*ChallengeInfo
	for _, c := range m.challenges {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.FromTime != nil && c.StartTime.Before(*filter.FromTime) {
			continue
		}
		if filter.ToTime != nil && c.StartTime.After(*filter.ToTime) {
			continue
		}
		if filter.MinAmount != nil && c.Amount < *filter.MinAmount {
			continue
		}
		cp := *c
		challenges = append(challenges, &cp)
	}
	return challenges, nil
}
