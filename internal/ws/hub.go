// Package ws is the relay: a protocol-blind frame forwarder. Peers claim
// an address for their session (the host claims the room code) and send
// frames addressed by that name; the relay never inspects payloads, so
// the room protocol can evolve without touching it.
package ws

import (
	"context"
	"sync"

	"monarcade/internal/logger"
	"monarcade/internal/transport"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectedPeers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connected_peers",
		Help: "Number of peers currently holding a relay address.",
	})
	forwardedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_forwarded_frames_total",
		Help: "Frames forwarded between peers, by kind.",
	}, []string{"kind"})
	undeliverableFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_undeliverable_frames_total",
		Help: "Frames addressed to a peer the relay does not know.",
	})
)

type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	registry AddressRegistry
}

func NewHub(registry AddressRegistry) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		registry: registry,
	}
}

// Register claims the client's address. The claim goes through the
// registry first so room codes stay unique across relay instances.
func (h *Hub) Register(ctx context.Context, c *Client) error {
	if err := h.registry.Claim(ctx, c.Addr); err != nil {
		return err
	}

	h.mu.Lock()
	if _, ok := h.clients[c.Addr]; ok {
		h.mu.Unlock()
		_ = h.registry.Release(ctx, c.Addr)
		return ErrAddressTaken
	}
	h.clients[c.Addr] = c
	h.mu.Unlock()

	connectedPeers.Inc()
	logger.Debug("peer registered", "addr", c.Addr)
	return nil
}

// Unregister drops the client and tells everyone it talked to that it is
// gone, so hosts notice departed followers and followers notice a dead
// host without timeouts of their own.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c.Addr] != c {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.Addr)
	peers := c.correspondentList()
	var notify []*Client
	for _, addr := range peers {
		if other, ok := h.clients[addr]; ok {
			notify = append(notify, other)
		}
	}
	h.mu.Unlock()

	_ = h.registry.Release(context.Background(), c.Addr)
	connectedPeers.Dec()

	for _, other := range notify {
		other.dropCorrespondent(c.Addr)
		other.enqueue(transport.Frame{Kind: transport.KindClose, From: c.Addr})
	}
	logger.Debug("peer unregistered", "addr", c.Addr, "correspondents", len(peers))
}

// Route forwards one frame from a client to its addressee. The From field
// is always overwritten with the sender's claimed address; peers cannot
// impersonate each other through the relay.
func (h *Hub) Route(from *Client, f transport.Frame) {
	switch f.Kind {
	case transport.KindConnect, transport.KindAccept, transport.KindData, transport.KindClose:
	default:
		logger.Warn("unroutable frame kind dropped", "addr", from.Addr, "kind", f.Kind)
		return
	}
	if f.To == "" || f.To == from.Addr {
		logger.Warn("misaddressed frame dropped", "addr", from.Addr, "to", f.To)
		return
	}

	h.mu.RLock()
	target, ok := h.clients[f.To]
	h.mu.RUnlock()

	if !ok {
		undeliverableFrames.Inc()
		from.enqueue(transport.Frame{
			Kind:   transport.KindError,
			Reason: transport.ReasonPeerNotFound,
			Peer:   f.To,
		})
		return
	}

	from.addCorrespondent(f.To)
	target.addCorrespondent(from.Addr)

	f.From = from.Addr
	target.enqueue(f)
	forwardedFrames.WithLabelValues(f.Kind).Inc()
}
