package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/Kerastion/trioflow/orchestrator"
)

const writeTimeout = 5 * time.Second

// Hub fans step views out to WebSocket clients. It implements
// orchestrator.Observer; OnStep runs on the session loop goroutine and must
// never block, so each client gets a bounded queue that drops its oldest
// entry when the client falls behind.
type Hub struct {
	logger *zap.Logger
	buffer int

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

// NewHub creates a hub whose clients buffer up to buffer views each.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:  logger.With(zap.String("component", "ws_hub")),
		buffer:  buffer,
		clients: make(map[*hubClient]struct{}),
	}
}

// OnStep serializes the view and queues it on every connected client.
func (h *Hub) OnStep(view orchestrator.StepView) {
	payload, err := json.Marshal(view)
	if err != nil {
		h.logger.Warn("failed to marshal step view", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.push(payload) {
			h.logger.Debug("slow client dropped oldest view")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams queued views until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	client := newHubClient(h.buffer)
	h.register(client)
	defer h.unregister(client)

	// CloseRead handles control frames and cancels the context when the
	// peer goes away; this endpoint never expects inbound data.
	ctx := conn.CloseRead(r.Context())

	if err := h.writeLoop(ctx, conn, client); err != nil {
		h.logger.Debug("client write loop ended", zap.Error(err))
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) writeLoop(ctx context.Context, conn *websocket.Conn, client *hubClient) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-client.notify:
		}
		for {
			payload, ok := client.pop()
			if !ok {
				break
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func (h *Hub) register(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// hubClient is one subscriber's pending-view ring.
type hubClient struct {
	mu     sync.Mutex
	queue  [][]byte
	cap    int
	notify chan struct{}
}

func newHubClient(capacity int) *hubClient {
	return &hubClient{
		cap:    capacity,
		notify: make(chan struct{}, 1),
	}
}

// push enqueues a payload, evicting the oldest entry at capacity. It reports
// whether an eviction happened.
func (c *hubClient) push(payload []byte) bool {
	c.mu.Lock()
	dropped := false
	if len(c.queue) >= c.cap {
		c.queue = c.queue[1:]
		dropped = true
	}
	c.queue = append(c.queue, payload)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return dropped
}

func (c *hubClient) pop() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	payload := c.queue[0]
	c.queue = c.queue[1:]
	return payload, true
}
