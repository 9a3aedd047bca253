package web

import (
	"sync"

	"github.com/codefionn/evalkit/internal/logger"
)

// Hub fans result changes out to websocket subscribers. A subscriber with a
// session filter only receives messages for that session.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	events chan *WebMessage
	join   chan *Client
	leave  chan *Client
	done   chan struct{}
	once   sync.Once

	log *logger.Logger
}

// NewHub creates a hub. Call Run to start delivering.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		events:  make(chan *WebMessage, 256),
		join:    make(chan *Client),
		leave:   make(chan *Client),
		done:    make(chan struct{}),
		log:     logger.Global().WithPrefix("hub"),
	}
}

// Run delivers events until Stop is called. On stop every subscriber's
// queue is closed, which makes its write pump send a close frame.
func (h *Hub) Run() {
	h.log.Debug("started")
	for {
		select {
		case c := <-h.join:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.log.Debug("client %s joined (session %q)", c.ID, c.session)

		case c := <-h.leave:
			h.mu.Lock()
			h.drop(c)
			h.mu.Unlock()
			h.log.Debug("client %s left", c.ID)

		case msg := <-h.events:
			h.deliver(msg)

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			h.log.Debug("stopped")
			return
		}
	}
}

// deliver queues msg for every interested subscriber. A subscriber whose
// queue is full is disconnected rather than blocking the others.
func (h *Hub) deliver(msg *WebMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.wants(msg) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.log.Warn("client %s too slow, disconnecting", c.ID)
			h.drop(c)
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Stop ends Run. It is safe to call more than once.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// Register adds a subscriber.
func (h *Hub) Register(c *Client) {
	select {
	case h.join <- c:
	case <-h.done:
	}
}

// Unregister removes a subscriber and closes its queue.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.leave <- c:
	case <-h.done:
	}
}

// Broadcast queues msg for delivery. It never blocks; when the queue is
// full the message is dropped.
func (h *Hub) Broadcast(msg *WebMessage) {
	select {
	case h.events <- msg:
	default:
		h.log.Warn("event queue full, dropping %s for %s/%s", msg.Type, msg.Session, msg.TaskID)
	}
}

// ClientCount returns the number of subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
