package security

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"crosschain_bridge/pkg/data"
)

// ProofGenerator derives the deterministic hash commitment for a transfer.
// Two calls with identical inputs yield an identical hash; challengers rely
// on this to independently re-verify a stored proof.
type ProofGenerator struct{}

// NewProofGenerator creates a ProofGenerator
func NewProofGenerator() *ProofGenerator {
	return &ProofGenerator{}
}

// Generate builds the security proof for a transfer. The preimage is the
// transaction id, both chain identifiers, the decimal amount representation,
// and the raw payload, in that order.
func (g *ProofGenerator) Generate(req *data.TransferRequest) *data.SecurityProof {
	digest := sha256.New()
	digest.Write([]byte(req.TransactionID))
	digest.Write([]byte(req.SourceChain))
	digest.Write([]byte(req.TargetChain))
	digest.Write([]byte(strconv.FormatFloat(req.Amount, 'f', -1, 64)))
	if len(req.Payload) > 0 {
		digest.Write(req.Payload)
	}

	return &data.SecurityProof{
		TransactionID: req.TransactionID,
		ProofHash:     hex.EncodeToString(digest.Sum(nil)),
		GeneratedAt:   time.Now().UTC(),
		Payload:       req.Payload,
	}
}
