package p2p

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/multiformats/go-multiaddr"

	"github.com/agenc-io/agenc-registry/pkg/chain"
	"github.com/agenc-io/agenc-registry/pkg/config"
)

const (
	ProtocolID         = "/agenc/registry/1.0.0"
	DiscoveryNamespace = "agenc-registry"
	EventsTopic        = "agenc-registry-events"
	ConnectionTimeout  = 10 * time.Second
)

// Message is the gossip envelope for committed registry events.
type Message struct {
	Event chain.Event `json:"event"`
	Node  string      `json:"node"`
	From  peer.ID     `json:"from"`
}

// EventHandler receives registry events gossiped by remote nodes.
type EventHandler func(msg Message)

// Network gossips committed chain events between registry nodes so every
// node's browsing API converges on the same view.
type Network struct {
	cfg          *config.Config
	host         host.Host
	dht          *dht.IpfsDHT
	pubsub       *pubsub.PubSub
	topic        *pubsub.Topic
	subscription *pubsub.Subscription
	handler      EventHandler
	peers        map[peer.ID]peer.AddrInfo
	mu           sync.RWMutex
}

func NewNetwork(cfg *config.Config) (*Network, error) {
	return &Network{
		cfg:   cfg,
		peers: make(map[peer.ID]peer.AddrInfo),
	}, nil
}

// SetEventHandler registers the callback for remote events. Must be called
// before Start.
func (n *Network) SetEventHandler(handler EventHandler) {
	n.handler = handler
}

func (n *Network) Start(ctx context.Context) error {
	h, err := n.createHost()
	if err != nil {
		return fmt.Errorf("failed to create host: %w", err)
	}
	n.host = h

	if err := n.initDHT(ctx); err != nil {
		return fmt.Errorf("failed to initialize DHT: %w", err)
	}

	if err := n.initPubSub(ctx); err != nil {
		return fmt.Errorf("failed to initialize PubSub: %w", err)
	}

	if err := n.initMDNS(); err != nil {
		return fmt.Errorf("failed to initialize mDNS: %w", err)
	}

	if err := n.connectToBootstrapPeers(ctx); err != nil {
		return fmt.Errorf("failed to connect to bootstrap peers: %w", err)
	}

	go n.handleMessages(ctx)

	return nil
}

func (n *Network) createHost() (host.Host, error) {
	addr, err := multiaddr.NewMultiaddr(fmt.Sprintf("/ip4/%s/tcp/%d", n.cfg.ListenAddress, n.cfg.Port))
	if err != nil {
		return nil, err
	}

	opts := []libp2p.Option{
		libp2p.ListenAddrs(addr),
		libp2p.EnableNATService(),
	}

	return libp2p.New(opts...)
}

func (n *Network) initDHT(ctx context.Context) error {
	var err error
	n.dht, err = dht.New(ctx, n.host,
		dht.Mode(dht.ModeServer),
		dht.ProtocolPrefix(protocol.ID(ProtocolID)),
	)
	if err != nil {
		return err
	}

	return n.dht.Bootstrap(ctx)
}

func (n *Network) initPubSub(ctx context.Context) error {
	var err error
	n.pubsub, err = pubsub.NewGossipSub(ctx, n.host)
	if err != nil {
		return err
	}

	n.topic, err = n.pubsub.Join(EventsTopic)
	if err != nil {
		return err
	}

	n.subscription, err = n.topic.Subscribe()
	return err
}

func (n *Network) initMDNS() error {
	service := mdns.NewMdnsService(n.host, DiscoveryNamespace, n)
	return service.Start()
}

// HandlePeerFound implements the mdns.Notifee interface.
func (n *Network) HandlePeerFound(pi peer.AddrInfo) {
	n.connectToPeer(context.Background(), pi)
}

func (n *Network) connectToBootstrapPeers(ctx context.Context) error {
	for _, addr := range n.cfg.BootstrapPeers {
		maddr, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			continue
		}

		peerInfo, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			continue
		}

		if err := n.connectToPeer(ctx, *peerInfo); err != nil {
			continue
		}
	}
	return nil
}

func (n *Network) connectToPeer(ctx context.Context, peerInfo peer.AddrInfo) error {
	ctx, cancel := context.WithTimeout(ctx, ConnectionTimeout)
	defer cancel()

	if err := n.host.Connect(ctx, peerInfo); err != nil {
		return err
	}

	n.mu.Lock()
	n.peers[peerInfo.ID] = peerInfo
	n.mu.Unlock()

	return nil
}

func (n *Network) handleMessages(ctx context.Context) {
	for {
		msg, err := n.subscription.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		// Skip messages from ourselves
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}

		go n.processMessage(msg)
	}
}

func (n *Network) processMessage(msg *pubsub.Message) {
	var envelope Message
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		return
	}
	envelope.From = msg.ReceivedFrom

	if n.handler != nil {
		n.handler(envelope)
	}
}

// BroadcastEvent publishes a committed event to every connected node.
func (n *Network) BroadcastEvent(ctx context.Context, ev chain.Event) error {
	envelope := Message{
		Event: ev,
		Node:  n.cfg.NodeName,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return n.topic.Publish(ctx, data)
}

func (n *Network) GetPeers() []peer.ID {
	n.mu.RLock()
	defer n.mu.RUnlock()

	peers := make([]peer.ID, 0, len(n.peers))
	for id := range n.peers {
		peers = append(peers, id)
	}
	return peers
}

func (n *Network) GetHost() host.Host {
	return n.host
}

// ConnectToPeer exports the peer connection functionality.
func (n *Network) ConnectToPeer(ctx context.Context, peerInfo peer.AddrInfo) error {
	return n.connectToPeer(ctx, peerInfo)
}

func (n *Network) Stop() error {
	if n.subscription != nil {
		n.subscription.Cancel()
	}

	if n.topic != nil {
		n.topic.Close()
	}

	if n.dht != nil {
		if err := n.dht.Close(); err != nil {
			return err
		}
	}

	if n.host != nil {
		return n.host.Close()
	}

	return nil
}
