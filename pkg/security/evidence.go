package security

import (
	"crosschain_bridge/pkg/data"
)

// EvidenceVerifier decides whether submitted fraud evidence proves
// misbehavior against a stored security proof, and which validators it
// implicates. The concrete fraud-proof algorithm is domain-specific and
// injected; this package defines only the contract.
type EvidenceVerifier interface {
	VerifyEvidence(proof *data.SecurityProof, evidence []byte) (valid bool, implicated []string)
}

// RejectAllEvidenceVerifier refuses every piece of evidence. It is the safe
// default until a real fraud-proof verifier is wired in: no validator is
// ever slashed on unverified claims.
type RejectAllEvidenceVerifier struct{}

var _ EvidenceVerifier = (*RejectAllEvidenceVerifier)(nil)

// NewRejectAllEvidenceVerifier creates the default verifier
func NewRejectAllEvidenceVerifier() *RejectAllEvidenceVerifier {
	return &RejectAllEvidenceVerifier{}
}

// VerifyEvidence always reports the evidence as insufficient
func (v *RejectAllEvidenceVerifier) VerifyEvidence(proof *data.SecurityProof, evidence []byte) (bool, []string) {
	return false, nil
}

// EvidenceVerifierFunc adapts a function to the EvidenceVerifier interface
type EvidenceVerifierFunc func(proof *data.SecurityProof, evidence []byte) (bool, []string)

// VerifyEvidence calls the wrapped function
func (f EvidenceVerifierFunc) VerifyEvidence(proof *data.SecurityProof, evidence []byte) (bool, []string) {
	return f(proof, evidence)
}
