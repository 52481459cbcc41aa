package security

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"crosschain_bridge/pkg/data"
)

// ValidatorNetworkClient requests signatures over a security proof from the
// validator network. Implementations return whatever subset of validators
// responded before the context deadline.
type ValidatorNetworkClient interface {
	RequestSignatures(ctx context.Context, proof *data.SecurityProof, validators []*data.Validator) ([]*data.ValidatorSignature, error)
}

// SimulatedNetwork answers signature requests in-process with real Ed25519
// signatures over the proof hash. It is a stand-in for the networked client:
// the random sampling below mimics partial network responses and is not a
// production protocol.
type SimulatedNetwork struct {
	keys      map[string]ed25519.PrivateKey
	responses int
	logger    *zap.Logger
	rng       *rand.Rand
	mu        sync.Mutex
}

var _ ValidatorNetworkClient = (*SimulatedNetwork)(nil)

// NewSimulatedNetwork creates a simulated network answering with at most
// maxResponses signatures per request
func NewSimulatedNetwork(maxResponses int, logger *zap.Logger) *SimulatedNetwork {
	return &SimulatedNetwork{
		keys:      make(map[string]ed25519.PrivateKey),
		responses: maxResponses,
		logger:    logger,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RequestSignatures shuffles the validator set and signs the proof hash on
// behalf of a sample of validators
func (n *SimulatedNetwork) RequestSignatures(ctx context.Context, proof *data.SecurityProof, validators []*data.Validator) ([]*data.ValidatorSignature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	shuffled := make([]*data.Validator, len(validators))
	copy(shuffled, validators)
	n.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	count := n.responses
	if count > len(shuffled) {
		count = len(shuffled)
	}

	signatures := make([]*data.ValidatorSignature, 0, count)
	for _, v := range shuffled[:count] {
		sig, err := n.signFor(v.ID, proof.ProofHash)
		if err != nil {
			return nil, err
		}
		signatures = append(signatures, &data.ValidatorSignature{
			ValidatorID: v.ID,
			Signature:   sig,
			Timestamp:   time.Now().UTC(),
		})
	}

	n.logger.Debug("Simulated signature round",
		zap.String("transactionID", proof.TransactionID),
		zap.Int("responses", len(signatures)))

	return signatures, nil
}

// signFor signs with the validator's simulated key, generating one on first use
func (n *SimulatedNetwork) signFor(validatorID, proofHash string) (string, error) {
	key, exists := n.keys[validatorID]
	if !exists {
		var err error
		_, key, err = ed25519.GenerateKey(nil)
		if err != nil {
			return "", fmt.Errorf("generating key for %s: %w", validatorID, err)
		}
		n.keys[validatorID] = key
	}

	return hex.EncodeToString(ed25519.Sign(key, []byte(proofHash))), nil
}
