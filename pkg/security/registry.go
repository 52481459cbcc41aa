package security

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"crosschain_bridge/pkg/data"
)

// ValidatorRegistry holds the validator set and reputation scores.
// Reputation updates are synchronized per validator so concurrent slashing
// of unrelated validators never contends on a single lock.
type ValidatorRegistry struct {
	entries map[string]*validatorEntry
	logger  *zap.Logger
	mu      sync.RWMutex
}

type validatorEntry struct {
	validator  data.Validator
	lastSigned time.Time
	mu         sync.Mutex
}

// NewValidatorRegistry creates an empty registry
func NewValidatorRegistry(logger *zap.Logger) *ValidatorRegistry {
	return &ValidatorRegistry{
		entries: make(map[string]*validatorEntry),
		logger:  logger,
	}
}

// Seed populates the registry with n freshly onboarded validators
func (r *ValidatorRegistry) Seed(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("validator-%d", i)
		if _, exists := r.entries[id]; exists {
			continue
		}
		v := data.NewValidator(id, fmt.Sprintf("Validator %d", i))
		r.entries[id] = &validatorEntry{validator: *v}
	}

	r.logger.Info("Initialized bridge validators", zap.Int("count", n))
}

// Register adds a validator to the registry, replacing any previous record
// with the same id
func (r *ValidatorRegistry) Register(v *data.Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[v.ID] = &validatorEntry{validator: *v}
}

// Get returns a copy of the validator, if present
func (r *ValidatorRegistry) Get(id string) (*data.Validator, bool) {
	r.mu.RLock()
	entry, exists := r.entries[id]
	r.mu.RUnlock()
	if !exists {
		return nil, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	cp := entry.validator
	return &cp, true
}

// AllActive returns copies of every active validator
func (r *ValidatorRegistry) AllActive() []*data.Validator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]*data.Validator, 0, len(r.entries))
	for _, entry := range r.entries {
		entry.mu.Lock()
		if entry.validator.Active {
			cp := entry.validator
			active = append(active, &cp)
		}
		entry.mu.Unlock()
	}
	return active
}

// AdjustReputation applies a delta to a validator's reputation, clamped to
// [0, 100], and deactivates the validator when the result falls below floor.
// A missing validator is a logged no-op, not an error.
// Returns the new reputation and whether the validator was deactivated.
func (r *ValidatorRegistry) AdjustReputation(id string, delta, floor float64) (float64, bool) {
	r.mu.RLock()
	entry, exists := r.entries[id]
	r.mu.RUnlock()
	if !exists {
		r.logger.Warn("Reputation adjustment for unknown validator", zap.String("validatorID", id))
		return 0, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	newReputation := math.Max(data.MinReputation,
		math.Min(data.MaxReputation, entry.validator.Reputation+delta))
	entry.validator.Reputation = newReputation

	deactivated := false
	if floor > 0 && newReputation < floor && entry.validator.Active {
		entry.validator.Active = false
		deactivated = true
	}

	return newReputation, deactivated
}

// MarkSigned records signing activity for inactivity tracking
func (r *ValidatorRegistry) MarkSigned(id string, at time.Time) {
	r.mu.RLock()
	entry, exists := r.entries[id]
	r.mu.RUnlock()
	if !exists {
		return
	}

	entry.mu.Lock()
	entry.lastSigned = at
	entry.mu.Unlock()
}

// DecayInactive applies a small reputation penalty to validators that have
// not signed since the cutoff. The decay never deactivates a validator on
// its own. Returns the number of validators decayed.
func (r *ValidatorRegistry) DecayInactive(cutoff time.Time, penalty float64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decayed := 0
	for _, entry := range r.entries {
		entry.mu.Lock()
		if entry.validator.Active && entry.lastSigned.Before(cutoff) {
			entry.validator.Reputation = math.Max(data.MinReputation,
				entry.validator.Reputation-penalty)
			decayed++
		}
		entry.mu.Unlock()
	}

	if decayed > 0 {
		r.logger.Debug("Applied inactivity decay", zap.Int("validators", decayed))
	}
	return decayed
}

// Size returns the total number of registered validators
func (r *ValidatorRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ActiveCount returns the number of active validators
func (r *ValidatorRegistry) ActiveCount() int {
	return len(r.AllActive())
}

// AverageReputation returns the mean reputation across all validators,
// active or not
func (r *ValidatorRegistry) AverageReputation() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 {
		return 0
	}

	total := 0.0
	for _, entry := range r.entries {
		entry.mu.Lock()
		total += entry.validator.Reputation
		entry.mu.Unlock()
	}
	return total / float64(len(r.entries))
}

// Snapshot returns copies of all validators
func (r *ValidatorRegistry) Snapshot() []*data.Validator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	validators := make([]*data.Validator, 0, len(r.entries))
	for _, entry := range r.entries {
		entry.mu.Lock()
		cp := entry.validator
		entry.mu.Unlock()
		validators = append(validators, &cp)
	}
	return validators
}

// LoadFrom replaces the registry contents with validators from the repository
func (r *ValidatorRegistry) LoadFrom(ctx context.Context, repo data.Repository) error {
	validators, err := repo.ListValidators(ctx, data.ValidatorFilter{})
	if err != nil {
		return fmt.Errorf("listing validators: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]*validatorEntry, len(validators))
	for _, v := range validators {
		r.entries[v.ID] = &validatorEntry{validator: *v}
	}

	r.logger.Info("Loaded validators from repository", zap.Int("count", len(validators)))
	return nil
}

// SyncTo writes the current validator set to the repository, inserting new
// records and updating existing ones
func (r *ValidatorRegistry) SyncTo(ctx context.Context, repo data.Repository) error {
	for _, v := range r.Snapshot() {
		err := repo.UpdateValidator(ctx, v)
		if err == data.ErrNotFound {
			err = repo.SaveValidator(ctx, v)
		}
		if err != nil {
			return fmt.Errorf("syncing validator %s: %w", v.ID, err)
		}
	}
	return nil
}
