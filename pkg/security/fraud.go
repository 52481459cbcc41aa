package security

import (
	"fmt"

	"go.uber.org/zap"

	"crosschain_bridge/pkg/data"
)

// FraudReport is the outcome of inspecting a signature set
type FraudReport struct {
	Fraudulent           bool
	Reason               string
	ImplicatedValidators []string
}

func cleanReport() *FraudReport {
	return &FraudReport{Reason: "No fraud detected"}
}

func fraudulentReport(reason string, implicated []string) *FraudReport {
	return &FraudReport{
		Fraudulent:           true,
		Reason:               reason,
		ImplicatedValidators: implicated,
	}
}

// FraudDetector inspects a collected signature set for anomalies. The checks
// are cheap, synchronous, and run in a fixed order, short-circuiting on the
// first hit.
type FraudDetector struct {
	registry      *ValidatorRegistry
	minReputation float64
	logger        *zap.Logger
}

// NewFraudDetector creates a FraudDetector. Signers below minReputation are
// treated as fraudulent.
func NewFraudDetector(registry *ValidatorRegistry, minReputation float64, logger *zap.Logger) *FraudDetector {
	return &FraudDetector{
		registry:      registry,
		minReputation: minReputation,
		logger:        logger,
	}
}

// Inspect checks the signature set: duplicate signers first, then
// unknown/inactive signers, then low-reputation signers.
//
// A duplicate-signer hit names no specific validator. Identifying every id
// that signed more than once would be stronger; kept this way to match the
// established consensus behavior on both sides of the bridge.
func (d *FraudDetector) Inspect(signatures []*data.ValidatorSignature) *FraudReport {
	seen := make(map[string]struct{}, len(signatures))
	for _, sig := range signatures {
		if _, dup := seen[sig.ValidatorID]; dup {
			d.logger.Warn("Duplicate validator signatures detected",
				zap.String("validatorID", sig.ValidatorID))
			return fraudulentReport("Duplicate validator signatures detected", nil)
		}
		seen[sig.ValidatorID] = struct{}{}
	}

	for _, sig := range signatures {
		validator, exists := d.registry.Get(sig.ValidatorID)
		if !exists || !validator.Active {
			return fraudulentReport(
				fmt.Sprintf("Invalid validator signature: %s", sig.ValidatorID),
				[]string{sig.ValidatorID},
			)
		}

		if validator.Reputation < d.minReputation {
			return fraudulentReport(
				fmt.Sprintf("Low reputation validator: %s", sig.ValidatorID),
				[]string{sig.ValidatorID},
			)
		}
	}

	return cleanReport()
}
