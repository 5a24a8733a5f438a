package notifications

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/gofiber/websocket/v2"

	"reviewdeck/internal/middleware"
)

const (
	// Max connections per operator
	maxConnsPerOperator = 4
	// Max total connections
	maxTotalConns = 1000
)

// StatsChannel is the Redis channel the stats relay publishes snapshots to.
const StatsChannel = "stats:feed"

// Hub is a websocket hub broadcasting stats snapshots to every connected
// operator. It retains the most recent snapshot so a freshly connected
// client sees data immediately instead of waiting for the next publish.
type Hub struct {
	mu         sync.RWMutex
	conns      map[*Client]struct{}
	perOp      map[string]int
	totalConns int
	last       []byte
	shutdown   chan struct{}
	done       chan struct{}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "stats hub" }

// NewHub creates a new Hub instance for the stats feed.
func NewHub() *Hub {
	return &Hub{
		conns:    make(map[*Client]struct{}),
		perOp:    make(map[string]int),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Register a connection for a given operator. Returns the Client or an
// error if limits are exceeded. The last retained snapshot, if any, is
// queued on the new client right away.
func (h *Hub) Register(operator string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()

	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, errors.New("server connection limit reached")
	}
	if h.perOp[operator] >= maxConnsPerOperator {
		h.mu.Unlock()
		return nil, errors.New("operator connection limit reached")
	}

	client := NewClient(h, conn, operator)
	h.conns[client] = struct{}{}
	h.perOp[operator]++
	h.totalConns++
	last := h.last
	h.mu.Unlock()

	middleware.StatsClients.Inc()
	if last != nil {
		client.TrySend(last)
	}
	return client, nil
}

// UnregisterClient removes a client from the hub.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if _, ok := h.conns[client]; ok {
		delete(h.conns, client)
		h.totalConns--
		removed = true
		if h.perOp[client.Operator]--; h.perOp[client.Operator] <= 0 {
			delete(h.perOp, client.Operator)
		}
	}
	h.mu.Unlock()

	if removed {
		middleware.StatsClients.Dec()
	}
}

// BroadcastAll sends a snapshot to every connected client and retains it
// for clients that connect later.
func (h *Hub) BroadcastAll(message string) {
	data := []byte(message)
	h.mu.Lock()
	h.last = data
	clients := make([]*Client, 0, len(h.conns))
	for c := range h.conns {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.TrySend(data)
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// StartWiring connects the hub to the Redis stats channel: every snapshot
// the relay publishes is fanned out to the connected clients.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartStatsSubscriber(ctx, func(channel, payload string) {
		if channel != StatsChannel {
			log.Printf("invalid stats channel: %s", channel)
			return
		}
		h.BroadcastAll(payload)
	})
}

// Shutdown gracefully closes all websocket connections.
func (h *Hub) Shutdown(_ context.Context) error {
	close(h.shutdown)

	h.mu.Lock()
	for client := range h.conns {
		if client.Conn == nil {
			continue
		}
		if err := client.Conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
			log.Printf("failed to write close message for %s: %v", client.Operator, err)
		}
		if err := client.Conn.Close(); err != nil {
			log.Printf("failed to close websocket for %s: %v", client.Operator, err)
		}
	}
	h.conns = make(map[*Client]struct{})
	h.perOp = make(map[string]int)
	h.totalConns = 0
	h.mu.Unlock()

	close(h.done)
	return nil
}
