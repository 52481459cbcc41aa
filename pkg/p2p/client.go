package p2p

import (
	"context"
	"time"

	"go.uber.org/zap"

	"crosschain_bridge/pkg/data"
	"crosschain_bridge/pkg/security"
)

// NetworkClient collects validator signatures over gossipsub. It publishes
// a signature request on the signatures topic and gathers responses until
// every polled validator answered or the context expires. Responses are
// authenticated with session tokens issued from the shared network secret.
type NetworkClient struct {
	requests    TopicPublisher
	responses   MessageSource
	crypto      *security.CryptoManager
	nodeID      string
	tokenExpiry time.Duration
	logger      *zap.Logger
}

var _ security.ValidatorNetworkClient = (*NetworkClient)(nil)

// NewNetworkClient creates a client over the host's signature topic
func NewNetworkClient(host *Host, crypto *security.CryptoManager, nodeID string, tokenExpiry time.Duration, logger *zap.Logger) (*NetworkClient, error) {
	requests, err := host.TopicPublisher(SignatureTopic)
	if err != nil {
		return nil, err
	}
	responses, err := host.MessageSource(SignatureTopic)
	if err != nil {
		return nil, err
	}

	return &NetworkClient{
		requests:    requests,
		responses:   responses,
		crypto:      crypto,
		nodeID:      nodeID,
		tokenExpiry: tokenExpiry,
		logger:      logger,
	}, nil
}

// newNetworkClientOver wires a client directly over a publisher and source,
// bypassing a live host
func newNetworkClientOver(requests TopicPublisher, responses MessageSource, crypto *security.CryptoManager, nodeID string, tokenExpiry time.Duration, logger *zap.Logger) *NetworkClient {
	return &NetworkClient{
		requests:    requests,
		responses:   responses,
		crypto:      crypto,
		nodeID:      nodeID,
		tokenExpiry: tokenExpiry,
		logger:      logger,
	}
}

// RequestSignatures broadcasts a signature request for the proof and
// collects responses until the context deadline or until every validator in
// the polled set answered. Responses from senders outside the set, for other
// transactions, or with invalid session tokens are skipped; duplicates from
// the same validator are passed through for the fraud detector to judge.
func (c *NetworkClient) RequestSignatures(ctx context.Context, proof *data.SecurityProof, validators []*data.Validator) ([]*data.ValidatorSignature, error) {
	deadline := time.Now().UTC().Add(c.tokenExpiry)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	msg, err := NewMessage(SignatureRequestMessage, &SignatureRequest{
		TransactionID: proof.TransactionID,
		ProofHash:     proof.ProofHash,
		Deadline:      deadline,
	})
	if err != nil {
		return nil, err
	}

	msg.SenderID = c.nodeID
	msg.SessionToken, err = c.crypto.GenerateSessionToken(c.nodeID, c.tokenExpiry)
	if err != nil {
		return nil, err
	}

	encoded, err := msg.Marshal()
	if err != nil {
		return nil, err
	}
	if err := c.requests.Publish(ctx, encoded); err != nil {
		return nil, err
	}

	polled := make(map[string]struct{}, len(validators))
	for _, v := range validators {
		polled[v.ID] = struct{}{}
	}

	var signatures []*data.ValidatorSignature
	answered := make(map[string]struct{}, len(validators))

	for len(answered) < len(polled) {
		raw, err := c.responses.Next(ctx)
		if err != nil {
			// The deadline bounds the collection round; whatever arrived
			// by then is the outcome
			break
		}

		response := c.decodeResponse(raw, proof.TransactionID, polled)
		if response == nil {
			continue
		}

		signatures = append(signatures, &data.ValidatorSignature{
			ValidatorID: response.ValidatorID,
			Signature:   response.Signature,
			Timestamp:   response.SignedAt,
		})
		answered[response.ValidatorID] = struct{}{}
	}

	c.logger.Debug("Signature collection round complete",
		zap.String("transactionID", proof.TransactionID),
		zap.Int("polled", len(polled)),
		zap.Int("signatures", len(signatures)))

	return signatures, nil
}

// decodeResponse filters one raw topic message down to a usable signature
// response, or nil
func (c *NetworkClient) decodeResponse(raw []byte, transactionID string, polled map[string]struct{}) *SignatureResponse {
	var msg Message
	if err := msg.Unmarshal(raw); err != nil {
		c.logger.Debug("Dropping unparseable message", zap.Error(err))
		return nil
	}
	if msg.Type != SignatureResponseMessage {
		return nil
	}

	if _, err := c.crypto.ValidateSessionToken(msg.SessionToken); err != nil {
		c.logger.Warn("Dropping response with invalid session token",
			zap.String("senderID", msg.SenderID), zap.Error(err))
		return nil
	}

	response := &SignatureResponse{}
	if err := msg.DecodePayload(response); err != nil {
		c.logger.Warn("Dropping malformed signature response", zap.Error(err))
		return nil
	}

	if response.TransactionID != transactionID {
		return nil
	}
	if _, ok := polled[response.ValidatorID]; !ok {
		c.logger.Warn("Dropping response from unpolled validator",
			zap.String("validatorID", response.ValidatorID))
		return nil
	}

	return response
}
