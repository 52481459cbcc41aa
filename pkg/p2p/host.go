package p2p

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"crosschain_bridge/pkg/config"
)

const (
	// ProtocolID identifies the bridge validator network
	ProtocolID = "/bridge/security/1.0.0"

	// Topic names
	SignatureTopic = "signatures"
	ChallengeTopic = "challenges"

	connectionTimeout = 30 * time.Second
)

// Host manages the validator network transport: a libp2p host plus the
// gossipsub topics the bridge security layer communicates over
type Host struct {
	cfg    *config.P2PConfig
	host   host.Host
	pubsub *pubsub.PubSub
	topics map[string]*pubsub.Topic
	subs   []*pubsub.Subscription
	disc   *Discovery
	logger *zap.Logger

	metrics Metrics
	mu      sync.RWMutex
}

// Metrics tracks validator network activity
type Metrics struct {
	MessagesPublished atomic.Int64
	MessagesReceived  atomic.Int64
}

// NewHost creates a libp2p host, joins the configured topics, and dials the
// bootstrap peers
func NewHost(ctx context.Context, cfg *config.P2PConfig, logger *zap.Logger) (*Host, error) {
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating host key: %w", err)
	}

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", cfg.Port)),
		libp2p.EnableNATService(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("creating pubsub: %w", err)
	}

	bridgeHost := &Host{
		cfg:    cfg,
		host:   h,
		pubsub: ps,
		topics: make(map[string]*pubsub.Topic),
		logger: logger,
	}

	topics := cfg.Topics
	if len(topics) == 0 {
		topics = []string{SignatureTopic, ChallengeTopic}
	}
	for _, name := range topics {
		if err := bridgeHost.joinTopic(name); err != nil {
			h.Close()
			return nil, err
		}
	}

	if err := bridgeHost.connectBootstrapPeers(ctx); err != nil {
		logger.Warn("Bootstrap connection incomplete", zap.Error(err))
	}

	if cfg.EnableMDNS || cfg.EnableDHT {
		disc, err := NewDiscovery(ctx, h, cfg.EnableMDNS, cfg.EnableDHT, logger)
		if err != nil {
			h.Close()
			return nil, err
		}
		if err := disc.Start(); err != nil {
			h.Close()
			return nil, err
		}
		bridgeHost.disc = disc
	}

	logger.Info("Validator network host started",
		zap.String("peerID", h.ID().String()),
		zap.Int("port", cfg.Port),
		zap.Strings("topics", topics))

	return bridgeHost, nil
}

// ID returns the host's peer id
func (h *Host) ID() peer.ID {
	return h.host.ID()
}

// Addrs returns the host's listen addresses
func (h *Host) Addrs() []multiaddr.Multiaddr {
	return h.host.Addrs()
}

// ConnectedPeers returns the number of connected peers
func (h *Host) ConnectedPeers() int {
	return len(h.host.Network().Peers())
}

// Publish sends a message on the named topic
func (h *Host) Publish(ctx context.Context, topicName string, msg *Message) error {
	h.mu.RLock()
	topic, exists := h.topics[topicName]
	h.mu.RUnlock()
	if !exists {
		return fmt.Errorf("topic %s not joined", topicName)
	}

	msg.SenderID = h.host.ID().String()
	encoded, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	if err := topic.Publish(ctx, encoded); err != nil {
		return fmt.Errorf("publishing to %s: %w", topicName, err)
	}

	h.metrics.MessagesPublished.Add(1)
	return nil
}

// TopicPublisher returns the raw publisher for the named topic
func (h *Host) TopicPublisher(topicName string) (TopicPublisher, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	topic, exists := h.topics[topicName]
	if !exists {
		return nil, fmt.Errorf("topic %s not joined", topicName)
	}
	return topic, nil
}

// MessageSource returns a reader over the named topic, skipping the host's
// own messages. Each call opens its own subscription, so concurrent
// consumers on the same topic each see every message
func (h *Host) MessageSource(topicName string) (MessageSource, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topic, exists := h.topics[topicName]
	if !exists {
		return nil, fmt.Errorf("topic %s not joined", topicName)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("subscribing to topic %s: %w", topicName, err)
	}
	h.subs = append(h.subs, sub)
	return &subscriptionSource{sub: sub, self: h.host.ID(), metrics: &h.metrics}, nil
}

// Discovery returns the peer discovery service, if enabled
func (h *Host) Discovery() *Discovery {
	return h.disc
}

// Close shuts down discovery, topics, subscriptions, and the underlying host
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.disc != nil {
		if err := h.disc.Stop(); err != nil {
			h.logger.Warn("Stopping discovery", zap.Error(err))
		}
	}

	for _, sub := range h.subs {
		sub.Cancel()
	}
	for name, topic := range h.topics {
		if err := topic.Close(); err != nil {
			h.logger.Warn("Closing topic", zap.String("topic", name), zap.Error(err))
		}
	}
	return h.host.Close()
}

// Private methods

func (h *Host) joinTopic(name string) error {
	topic, err := h.pubsub.Join(name)
	if err != nil {
		return fmt.Errorf("joining topic %s: %w", name, err)
	}

	h.mu.Lock()
	h.topics[name] = topic
	h.mu.Unlock()
	return nil
}

func (h *Host) connectBootstrapPeers(ctx context.Context) error {
	var lastErr error
	for _, addr := range h.cfg.BootstrapPeers {
		maddr, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			h.logger.Warn("Invalid bootstrap address", zap.String("addr", addr), zap.Error(err))
			lastErr = err
			continue
		}

		info, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			h.logger.Warn("Invalid bootstrap peer info", zap.String("addr", addr), zap.Error(err))
			lastErr = err
			continue
		}

		connectCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
		err = h.host.Connect(connectCtx, *info)
		cancel()
		if err != nil {
			h.logger.Warn("Bootstrap peer unreachable", zap.String("addr", addr), zap.Error(err))
			lastErr = err
			continue
		}

		h.logger.Info("Connected to bootstrap peer", zap.String("peerID", info.ID.String()))
	}
	return lastErr
}

// subscriptionSource adapts a pubsub subscription to MessageSource
type subscriptionSource struct {
	sub     *pubsub.Subscription
	self    peer.ID
	metrics *Metrics
}

func (s *subscriptionSource) Next(ctx context.Context) ([]byte, error) {
	for {
		msg, err := s.sub.Next(ctx)
		if err != nil {
			return nil, err
		}
		if msg.ReceivedFrom == s.self {
			continue
		}
		s.metrics.MessagesReceived.Add(1)
		return msg.Data, nil
	}
}
