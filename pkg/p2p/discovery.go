package p2p

import (
	"context"
	"fmt"
	"time"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	routingdiscovery "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	"go.uber.org/zap"
)

const (
	serviceTag         = "_bridge-validators._udp"
	discoveryNamespace = "bridge-validators"

	dhtLookupTimeout = 30 * time.Second
)

// Discovery finds other bridge validator nodes, on the local network via
// mDNS and across the wider network via the Kademlia DHT
type Discovery struct {
	host   host.Host
	dht    *dht.IpfsDHT
	mdns   mdns.Service
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDiscovery creates a discovery service for the host. Either mechanism
// may be disabled.
func NewDiscovery(ctx context.Context, h host.Host, enableMDNS, enableDHT bool, logger *zap.Logger) (*Discovery, error) {
	ctx, cancel := context.WithCancel(ctx)
	d := &Discovery{
		host:   h,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if enableMDNS {
		d.mdns = mdns.NewMdnsService(h, serviceTag, d)
	}

	if enableDHT {
		kadDHT, err := dht.New(ctx, h, dht.Mode(dht.ModeServer))
		if err != nil {
			cancel()
			return nil, fmt.Errorf("creating DHT: %w", err)
		}
		d.dht = kadDHT
	}

	return d, nil
}

// Start begins peer discovery
func (d *Discovery) Start() error {
	if d.mdns != nil {
		if err := d.mdns.Start(); err != nil {
			return fmt.Errorf("starting mDNS: %w", err)
		}
		d.logger.Info("mDNS discovery started", zap.String("serviceTag", serviceTag))
	}

	if d.dht != nil {
		if err := d.dht.Bootstrap(d.ctx); err != nil {
			return fmt.Errorf("bootstrapping DHT: %w", err)
		}
		routingdiscovery.NewRoutingDiscovery(d.dht).Advertise(d.ctx, discoveryNamespace)
		d.logger.Info("DHT discovery started", zap.String("namespace", discoveryNamespace))
	}

	return nil
}

// Stop halts peer discovery
func (d *Discovery) Stop() error {
	d.cancel()

	if d.mdns != nil {
		if err := d.mdns.Close(); err != nil {
			return fmt.Errorf("closing mDNS: %w", err)
		}
	}
	if d.dht != nil {
		if err := d.dht.Close(); err != nil {
			return fmt.Errorf("closing DHT: %w", err)
		}
	}
	return nil
}

// FindPeers looks up validator nodes advertised in the DHT
func (d *Discovery) FindPeers(ctx context.Context) ([]peer.AddrInfo, error) {
	if d.dht == nil {
		return nil, fmt.Errorf("DHT discovery not enabled")
	}

	lookupCtx, cancel := context.WithTimeout(ctx, dhtLookupTimeout)
	defer cancel()

	peerCh, err := routingdiscovery.NewRoutingDiscovery(d.dht).FindPeers(lookupCtx, discoveryNamespace)
	if err != nil {
		return nil, fmt.Errorf("finding peers: %w", err)
	}

	var found []peer.AddrInfo
	for info := range peerCh {
		if info.ID == d.host.ID() || len(info.Addrs) == 0 {
			continue
		}
		found = append(found, info)
	}
	return found, nil
}

// HandlePeerFound connects to a peer discovered over mDNS
func (d *Discovery) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == d.host.ID() {
		return
	}

	connectCtx, cancel := context.WithTimeout(d.ctx, connectionTimeout)
	defer cancel()

	if err := d.host.Connect(connectCtx, info); err != nil {
		d.logger.Debug("Connecting to discovered peer",
			zap.String("peerID", info.ID.String()),
			zap.Error(err))
		return
	}

	d.logger.Info("Connected to discovered validator peer",
		zap.String("peerID", info.ID.String()))
}
