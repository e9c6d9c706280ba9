package core

// Gossip transport (external collaborator, spec §6): the Gossip interface
// is what the node binary (cmd/modalityd) depends on; libp2pGossip is
// the concrete adapter wired to it. Grounded directly on the teacher's
// NewNode/Broadcast/Subscribe (core/network.go), generalized from a single
// hardcoded topic set to the named gossip topics below. Only publish/subscribe
// gossip is implemented; there are no request/response endpoints.

import (
	"context"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/sirupsen/logrus"
)

// Gossip topics, spec §6.
const (
	TopicBlockDraft   = "/consensus/block_draft"
	TopicBlockCert    = "/consensus/block_cert"
	TopicMiningBlock  = "/mining/block"
	TopicContractCommit = "/contract/commit"
)

// Gossip is the transport surface the rest of the system depends on,
// kept as an interface so consensus/contract logic never imports libp2p
// directly — the adapter is swappable (and mockable in tests) the way the
// teacher's Node type is used behind a thin call surface elsewhere.
type Gossip interface {
	Publish(topic string, data []byte) error
	Subscribe(topic string) (<-chan []byte, error)
	Peers() []string
	Close() error
}

// libp2pGossip implements Gossip atop go-libp2p and go-libp2p-pubsub.
type libp2pGossip struct {
	host   host.Host
	pubsub *pubsub.PubSub
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	topics map[string]*pubsub.Topic

	log *logrus.Entry
}

// NewLibp2pGossip bootstraps a libp2p host with gossipsub and mDNS peer
// discovery, mirroring the teacher's NewNode.
func NewLibp2pGossip(listenAddr string, bootstrapPeers []string, discoveryTag string, log *logrus.Logger) (Gossip, error) {
	ctx, cancel := context.WithCancel(context.Background())

	h, err := libp2p.New(libp2p.ListenAddrStrings(listenAddr))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("create pubsub: %w", err)
	}

	if log == nil {
		log = logrus.New()
	}
	g := &libp2pGossip{
		host:   h,
		pubsub: ps,
		ctx:    ctx,
		cancel: cancel,
		topics: make(map[string]*pubsub.Topic),
		log:    log.WithField("component", "gossip"),
	}

	if err := g.dialSeeds(bootstrapPeers); err != nil {
		g.log.Warnf("dial seeds: %v", err)
	}

	mdns.NewMdnsService(h, discoveryTag, mdnsNotifee{g})

	return g, nil
}

func (g *libp2pGossip) dialSeeds(seeds []string) error {
	var firstErr error
	for _, addr := range seeds {
		pi, err := peer.AddrInfoFromString(addr)
		if err != nil {
			g.log.Warnf("invalid bootstrap addr %s: %v", addr, err)
			continue
		}
		if err := g.host.Connect(g.ctx, *pi); err != nil {
			g.log.Warnf("connect to %s: %v", addr, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		g.log.Infof("bootstrapped to %s", addr)
	}
	return firstErr
}

// mdnsNotifee adapts libp2pGossip to mdns.Notifee without exporting the
// dependency on the host's connect logic beyond this file.
type mdnsNotifee struct{ g *libp2pGossip }

func (n mdnsNotifee) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == n.g.host.ID() {
		return
	}
	if err := n.g.host.Connect(n.g.ctx, info); err != nil {
		n.g.log.Warnf("connect to discovered peer %s: %v", info.ID, err)
		return
	}
	n.g.log.Infof("connected to peer %s via mdns", info.ID)
}

func (g *libp2pGossip) joinTopic(topic string) (*pubsub.Topic, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.topics[topic]; ok {
		return t, nil
	}
	t, err := g.pubsub.Join(topic)
	if err != nil {
		return nil, err
	}
	g.topics[topic] = t
	return t, nil
}

// Publish broadcasts data on topic.
func (g *libp2pGossip) Publish(topic string, data []byte) error {
	t, err := g.joinTopic(topic)
	if err != nil {
		return &TransportError{Kind: TransportProtocolMismatch, Message: err.Error()}
	}
	if err := t.Publish(g.ctx, data); err != nil {
		return &TransportError{Kind: TransportPeerUnreachable, Message: err.Error()}
	}
	return nil
}

// Subscribe returns a channel of raw message payloads received on topic.
func (g *libp2pGossip) Subscribe(topic string) (<-chan []byte, error) {
	t, err := g.joinTopic(topic)
	if err != nil {
		return nil, &TransportError{Kind: TransportProtocolMismatch, Message: err.Error()}
	}
	sub, err := t.Subscribe()
	if err != nil {
		return nil, &TransportError{Kind: TransportProtocolMismatch, Message: err.Error()}
	}
	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for {
			msg, err := sub.Next(g.ctx)
			if err != nil {
				return
			}
			if msg.ReceivedFrom == g.host.ID() {
				continue
			}
			select {
			case out <- msg.Data:
			case <-g.ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Peers returns the currently connected peer IDs.
func (g *libp2pGossip) Peers() []string {
	peers := g.host.Network().Peers()
	out := make([]string, len(peers))
	for i, p := range peers {
		out[i] = p.String()
	}
	return out
}

// Close tears down the host and cancels the background subscription loops.
func (g *libp2pGossip) Close() error {
	g.cancel()
	return g.host.Close()
}
