package security

import (
	"go.uber.org/zap"
)

// SlashingEngine mutates validator reputation in response to proven fraud
// or invalid challenges. It is the only component that adjusts reputation.
type SlashingEngine struct {
	registry          *ValidatorRegistry
	metrics           *SecurityMetrics
	slashPenalty      float64
	challengerPenalty float64
	reputationFloor   float64
	logger            *zap.Logger
}

// NewSlashingEngine creates a SlashingEngine
func NewSlashingEngine(registry *ValidatorRegistry, metrics *SecurityMetrics, slashPenalty, challengerPenalty, reputationFloor float64, logger *zap.Logger) *SlashingEngine {
	return &SlashingEngine{
		registry:          registry,
		metrics:           metrics,
		slashPenalty:      slashPenalty,
		challengerPenalty: challengerPenalty,
		reputationFloor:   reputationFloor,
		logger:            logger,
	}
}

// Slash applies the full fraud penalty to a validator, deactivating it when
// reputation drops below the floor. Unknown validators are logged no-ops.
func (e *SlashingEngine) Slash(validatorID string) {
	if _, exists := e.registry.Get(validatorID); !exists {
		e.logger.Warn("Slash requested for unknown validator",
			zap.String("validatorID", validatorID))
		return
	}

	newReputation, deactivated := e.registry.AdjustReputation(
		validatorID, -e.slashPenalty, e.reputationFloor)

	e.metrics.IncrementSlashingEvents()

	e.logger.Warn("Slashed validator for malicious behavior",
		zap.String("validatorID", validatorID),
		zap.Float64("newReputation", newReputation),
		zap.Bool("deactivated", deactivated))
}

// SlashAll slashes every validator in the list
func (e *SlashingEngine) SlashAll(validatorIDs []string) {
	for _, id := range validatorIDs {
		e.Slash(id)
	}
}

// PenalizeInvalidChallenge applies the small challenger penalty. This path
// never deactivates on its own: the floor check is skipped.
func (e *SlashingEngine) PenalizeInvalidChallenge(challengerID string) {
	if _, exists := e.registry.Get(challengerID); !exists {
		e.logger.Warn("Penalty requested for unknown challenger",
			zap.String("validatorID", challengerID))
		return
	}

	newReputation, _ := e.registry.AdjustReputation(challengerID, -e.challengerPenalty, 0)

	e.logger.Info("Penalized validator for invalid challenge",
		zap.String("validatorID", challengerID),
		zap.Float64("newReputation", newReputation))
}
