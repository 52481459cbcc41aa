package p2p

import (
	"context"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"crosschain_bridge/pkg/security"
)

// SignatureResponder is the signing side of the validator network: it
// watches the signatures topic and answers requests with this node's
// Ed25519 signature over the proof hash
type SignatureResponder struct {
	requests    MessageSource
	responses   TopicPublisher
	crypto      *security.CryptoManager
	validatorID string
	tokenExpiry time.Duration
	logger      *zap.Logger
}

// NewSignatureResponder creates a responder over the host's signature topic
func NewSignatureResponder(host *Host, crypto *security.CryptoManager, validatorID string, tokenExpiry time.Duration, logger *zap.Logger) (*SignatureResponder, error) {
	requests, err := host.MessageSource(SignatureTopic)
	if err != nil {
		return nil, err
	}
	responses, err := host.TopicPublisher(SignatureTopic)
	if err != nil {
		return nil, err
	}

	return &SignatureResponder{
		requests:    requests,
		responses:   responses,
		crypto:      crypto,
		validatorID: validatorID,
		tokenExpiry: tokenExpiry,
		logger:      logger,
	}, nil
}

// newSignatureResponderOver wires a responder directly over a source and
// publisher, bypassing a live host
func newSignatureResponderOver(requests MessageSource, responses TopicPublisher, crypto *security.CryptoManager, validatorID string, tokenExpiry time.Duration, logger *zap.Logger) *SignatureResponder {
	return &SignatureResponder{
		requests:    requests,
		responses:   responses,
		crypto:      crypto,
		validatorID: validatorID,
		tokenExpiry: tokenExpiry,
		logger:      logger,
	}
}

// Run answers signature requests until the context is cancelled
func (r *SignatureResponder) Run(ctx context.Context) error {
	r.logger.Info("Signature responder running", zap.String("validatorID", r.validatorID))

	for {
		raw, err := r.requests.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if err := r.handle(ctx, raw); err != nil {
			r.logger.Warn("Handling signature request", zap.Error(err))
		}
	}
}

func (r *SignatureResponder) handle(ctx context.Context, raw []byte) error {
	var msg Message
	if err := msg.Unmarshal(raw); err != nil {
		return err
	}
	if msg.Type != SignatureRequestMessage {
		return nil
	}

	if _, err := r.crypto.ValidateSessionToken(msg.SessionToken); err != nil {
		r.logger.Warn("Ignoring request with invalid session token",
			zap.String("senderID", msg.SenderID), zap.Error(err))
		return nil
	}

	request := &SignatureRequest{}
	if err := msg.DecodePayload(request); err != nil {
		return err
	}
	if !request.Deadline.IsZero() && time.Now().After(request.Deadline) {
		r.logger.Debug("Ignoring expired signature request",
			zap.String("transactionID", request.TransactionID))
		return nil
	}

	signature, err := r.crypto.Sign([]byte(request.ProofHash))
	if err != nil {
		return err
	}

	response, err := NewMessage(SignatureResponseMessage, &SignatureResponse{
		TransactionID: request.TransactionID,
		ValidatorID:   r.validatorID,
		Signature:     hex.EncodeToString(signature),
		SignedAt:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	response.SenderID = r.validatorID
	response.SessionToken, err = r.crypto.GenerateSessionToken(r.validatorID, r.tokenExpiry)
	if err != nil {
		return err
	}

	encoded, err := response.Marshal()
	if err != nil {
		return err
	}
	return r.responses.Publish(ctx, encoded)
}
