package security

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"crosschain_bridge/pkg/data"
)

// QuorumCollector gathers validator signatures for a transaction and tracks
// whether the minimum-signature threshold is met. Signatures are sourced
// from the current active set only.
type QuorumCollector struct {
	registry           *ValidatorRegistry
	network            ValidatorNetworkClient
	verifier           *SignatureVerifier
	requiredSignatures int
	timeout            time.Duration
	logger             *zap.Logger
}

// NewQuorumCollector creates a QuorumCollector
func NewQuorumCollector(registry *ValidatorRegistry, network ValidatorNetworkClient, verifier *SignatureVerifier, requiredSignatures int, timeout time.Duration, logger *zap.Logger) *QuorumCollector {
	return &QuorumCollector{
		registry:           registry,
		network:            network,
		verifier:           verifier,
		requiredSignatures: requiredSignatures,
		timeout:            timeout,
		logger:             logger,
	}
}

// RequiredSignatures returns the configured quorum size
func (c *QuorumCollector) RequiredSignatures() int {
	return c.requiredSignatures
}

// Collect requests signatures over the proof from all active validators and
// returns every structurally valid response. Duplicate responses from the
// same validator are kept, not dropped: flagging them is the fraud
// detector's job. The caller decides whether the returned set meets quorum.
func (c *QuorumCollector) Collect(ctx context.Context, proof *data.SecurityProof) ([]*data.ValidatorSignature, error) {
	active := c.registry.AllActive()
	if len(active) < c.requiredSignatures {
		c.logger.Warn("Active validator pool below quorum",
			zap.Int("active", len(active)),
			zap.Int("required", c.requiredSignatures))
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	responses, err := c.network.RequestSignatures(reqCtx, proof, active)
	if err != nil {
		return nil, fmt.Errorf("requesting signatures: %w", err)
	}

	signatures := make([]*data.ValidatorSignature, 0, len(responses))
	for _, sig := range responses {
		if !c.verifier.Verify(proof.ProofHash, sig.Signature, SchemeED25519) {
			c.logger.Warn("Discarding malformed signature",
				zap.String("transactionID", proof.TransactionID),
				zap.String("validatorID", sig.ValidatorID))
			continue
		}
		signatures = append(signatures, sig)
		c.registry.MarkSigned(sig.ValidatorID, sig.Timestamp)
	}

	c.logger.Debug("Collected validator signatures",
		zap.String("transactionID", proof.TransactionID),
		zap.Int("signatures", len(signatures)),
		zap.Int("required", c.requiredSignatures))

	return signatures, nil
}
