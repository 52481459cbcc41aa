package p2p

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"
	"testing"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"crosschain_bridge/pkg/data"
	"crosschain_bridge/pkg/security"
)

// topicStub captures published messages and optionally forwards them to a
// channel, standing in for a gossipsub topic
type topicStub struct {
	messages [][]byte
	sink     chan []byte
	mu       sync.Mutex
}

func (t *topicStub) Publish(ctx context.Context, msg []byte, opts ...pubsub.PubOpt) error {
	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.mu.Unlock()
	if t.sink != nil {
		select {
		case t.sink <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (t *topicStub) Messages() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.messages
}

// channelSource feeds raw messages from a channel
type channelSource struct {
	ch chan []byte
}

func (s *channelSource) Next(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-s.ch:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newCryptoManager(t *testing.T, secret string) *security.CryptoManager {
	t.Helper()
	keyPair, err := security.GenerateKeyPair()
	require.NoError(t, err)
	return security.NewCryptoManager(keyPair, []byte(secret))
}

func proofFixture() *data.SecurityProof {
	return &data.SecurityProof{
		TransactionID: "tx-1001",
		ProofHash:     strings.Repeat("ab", 32),
		GeneratedAt:   time.Now().UTC(),
	}
}

func validatorSet(ids ...string) []*data.Validator {
	validators := make([]*data.Validator, 0, len(ids))
	for _, id := range ids {
		validators = append(validators, data.NewValidator(id, id))
	}
	return validators
}

func signedResponse(t *testing.T, cm *security.CryptoManager, transactionID, validatorID string) []byte {
	t.Helper()
	msg, err := NewMessage(SignatureResponseMessage, &SignatureResponse{
		TransactionID: transactionID,
		ValidatorID:   validatorID,
		Signature:     strings.Repeat("cd", 64),
		SignedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)

	msg.SenderID = validatorID
	msg.SessionToken, err = cm.GenerateSessionToken(validatorID, time.Minute)
	require.NoError(t, err)

	encoded, err := msg.Marshal()
	require.NoError(t, err)
	return encoded
}

func TestNetworkClientCollectsSignatures(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cm := newCryptoManager(t, "shared-secret")

	responses := make(chan []byte, 8)
	responses <- signedResponse(t, cm, "tx-1001", "validator-1")
	responses <- signedResponse(t, cm, "tx-1001", "validator-2")

	requests := &topicStub{}
	client := newNetworkClientOver(requests, &channelSource{ch: responses}, cm, "bridge-node", time.Minute, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	signatures, err := client.RequestSignatures(ctx, proofFixture(), validatorSet("validator-1", "validator-2"))
	require.NoError(t, err)

	require.Len(t, signatures, 2)
	assert.Equal(t, "validator-1", signatures[0].ValidatorID)
	assert.Equal(t, "validator-2", signatures[1].ValidatorID)

	// The outbound request must carry a valid session token
	require.Len(t, requests.Messages(), 1)
	var request Message
	require.NoError(t, request.Unmarshal(requests.Messages()[0]))
	assert.Equal(t, SignatureRequestMessage, request.Type)

	nodeID, err := cm.ValidateSessionToken(request.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, "bridge-node", nodeID)
}

func TestNetworkClientFiltersResponses(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cm := newCryptoManager(t, "shared-secret")
	other := newCryptoManager(t, "other-secret")

	responses := make(chan []byte, 8)
	responses <- signedResponse(t, other, "tx-1001", "validator-1") // wrong secret
	responses <- signedResponse(t, cm, "tx-9999", "validator-1")    // wrong transaction
	responses <- signedResponse(t, cm, "tx-1001", "validator-9")    // not polled
	responses <- []byte("not json")
	responses <- signedResponse(t, cm, "tx-1001", "validator-2")

	client := newNetworkClientOver(&topicStub{}, &channelSource{ch: responses}, cm, "bridge-node", time.Minute, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	signatures, err := client.RequestSignatures(ctx, proofFixture(), validatorSet("validator-1", "validator-2"))
	require.NoError(t, err)

	// Only validator-2's answer survives; validator-1 never answered with a
	// usable response before the deadline
	require.Len(t, signatures, 1)
	assert.Equal(t, "validator-2", signatures[0].ValidatorID)
}

func TestNetworkClientDeadlineBoundsCollection(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cm := newCryptoManager(t, "shared-secret")

	client := newNetworkClientOver(&topicStub{}, &channelSource{ch: make(chan []byte)}, cm, "bridge-node", time.Minute, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	signatures, err := client.RequestSignatures(ctx, proofFixture(), validatorSet("validator-1"))
	require.NoError(t, err)
	assert.Empty(t, signatures)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSignatureResponder(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cm := newCryptoManager(t, "shared-secret")

	requests := make(chan []byte, 4)
	published := &topicStub{}
	responder := newSignatureResponderOver(&channelSource{ch: requests}, published, cm, "validator-7", time.Minute, logger)

	proof := proofFixture()
	requestMsg, err := NewMessage(SignatureRequestMessage, &SignatureRequest{
		TransactionID: proof.TransactionID,
		ProofHash:     proof.ProofHash,
		Deadline:      time.Now().Add(time.Minute),
	})
	require.NoError(t, err)
	requestMsg.SessionToken, err = cm.GenerateSessionToken("bridge-node", time.Minute)
	require.NoError(t, err)

	raw, err := requestMsg.Marshal()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, responder.handle(ctx, raw))

	require.Len(t, published.Messages(), 1)

	var response Message
	require.NoError(t, response.Unmarshal(published.Messages()[0]))
	assert.Equal(t, SignatureResponseMessage, response.Type)

	payload := &SignatureResponse{}
	require.NoError(t, response.DecodePayload(payload))
	assert.Equal(t, proof.TransactionID, payload.TransactionID)
	assert.Equal(t, "validator-7", payload.ValidatorID)
	assert.Len(t, payload.Signature, 128)

	// The signature is a real Ed25519 signature over the proof hash
	sigBytes, err := hex.DecodeString(payload.Signature)
	require.NoError(t, err)
	assert.True(t, cm.Verify([]byte(proof.ProofHash), sigBytes, mustPublicKey(t, cm)))
}

func TestSignatureResponderIgnoresBadRequests(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cm := newCryptoManager(t, "shared-secret")
	other := newCryptoManager(t, "other-secret")

	published := &topicStub{}
	responder := newSignatureResponderOver(&channelSource{ch: make(chan []byte)}, published, cm, "validator-7", time.Minute, logger)

	ctx := context.Background()

	t.Run("InvalidToken", func(t *testing.T) {
		msg, err := NewMessage(SignatureRequestMessage, &SignatureRequest{
			TransactionID: "tx-1001",
			ProofHash:     strings.Repeat("ab", 32),
			Deadline:      time.Now().Add(time.Minute),
		})
		require.NoError(t, err)
		msg.SessionToken, err = other.GenerateSessionToken("impostor", time.Minute)
		require.NoError(t, err)

		raw, err := msg.Marshal()
		require.NoError(t, err)
		require.NoError(t, responder.handle(ctx, raw))
		assert.Empty(t, published.Messages())
	})

	t.Run("ExpiredDeadline", func(t *testing.T) {
		msg, err := NewMessage(SignatureRequestMessage, &SignatureRequest{
			TransactionID: "tx-1001",
			ProofHash:     strings.Repeat("ab", 32),
			Deadline:      time.Now().Add(-time.Minute),
		})
		require.NoError(t, err)
		msg.SessionToken, err = cm.GenerateSessionToken("bridge-node", time.Minute)
		require.NoError(t, err)

		raw, err := msg.Marshal()
		require.NoError(t, err)
		require.NoError(t, responder.handle(ctx, raw))
		assert.Empty(t, published.Messages())
	})
}

func TestClientResponderRoundTrip(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cm := newCryptoManager(t, "shared-secret")

	requestPipe := make(chan []byte, 4)
	responsePipe := make(chan []byte, 4)

	responder := newSignatureResponderOver(
		&channelSource{ch: requestPipe}, &topicStub{sink: responsePipe},
		cm, "validator-1", time.Minute, logger)
	client := newNetworkClientOver(
		&topicStub{sink: requestPipe}, &channelSource{ch: responsePipe},
		cm, "bridge-node", time.Minute, logger)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go responder.Run(runCtx)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	signatures, err := client.RequestSignatures(ctx, proofFixture(), validatorSet("validator-1"))
	require.NoError(t, err)

	require.Len(t, signatures, 1)
	assert.Equal(t, "validator-1", signatures[0].ValidatorID)
	assert.Len(t, signatures[0].Signature, 128)
}

func mustPublicKey(t *testing.T, cm *security.CryptoManager) []byte {
	t.Helper()
	publicKey, err := hex.DecodeString(cm.PublicKeyHex())
	require.NoError(t, err)
	return publicKey
}
