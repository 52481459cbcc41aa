package p2p

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType represents the type of message
type MessageType string

const (
	SignatureRequestMessage  MessageType = "SignatureRequest"
	SignatureResponseMessage MessageType = "SignatureResponse"
	ChallengeNoticeMessage   MessageType = "ChallengeNotice"
)

const messageVersion = "1.0.0"

// Message is the envelope carried on every validator network topic. The
// session token authenticates the sender against the shared network secret;
// payload decoding is deferred until the type is known.
type Message struct {
	Type         MessageType     `json:"type"`
	Version      string          `json:"version"`
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	SenderID     string          `json:"sender_id"`
	SessionToken string          `json:"session_token,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// NewMessage creates a message wrapping the given payload
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", msgType, err)
	}

	return &Message{
		Type:      msgType,
		Version:   messageVersion,
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Payload:   encoded,
	}, nil
}

// Marshal serializes the message
func (m *Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal deserializes the message
func (m *Message) Unmarshal(data []byte) error {
	return json.Unmarshal(data, m)
}

// DecodePayload decodes the payload into the given type
func (m *Message) DecodePayload(v interface{}) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", m.Type, err)
	}
	return nil
}

// SignatureRequest asks the validator network to sign a security proof
type SignatureRequest struct {
	TransactionID string    `json:"transaction_id"`
	ProofHash     string    `json:"proof_hash"`
	Deadline      time.Time `json:"deadline"`
}

// SignatureResponse carries one validator's signature over a proof hash
type SignatureResponse struct {
	TransactionID string    `json:"transaction_id"`
	ValidatorID   string    `json:"validator_id"`
	Signature     string    `json:"signature"`
	SignedAt      time.Time `json:"signed_at"`
}

// ChallengeNotice announces an opened or resolved challenge window so
// validator nodes can mirror the dispute state
type ChallengeNotice struct {
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	ExpiryTime    time.Time `json:"expiry_time"`
}
