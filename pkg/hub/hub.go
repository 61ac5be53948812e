// Package hub fans dashboard updates out to websocket clients through a
// single goroutine that owns the client set.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-rover/internal/log"
)

// frame is one queued write. opcode is websocket.TextMessage for status and
// event JSON, websocket.BinaryMessage for camera JPEGs.
type frame struct {
	opcode int
	data   []byte
}

// Hub owns a set of websocket clients. Only Run touches the set; everything
// else talks to it over channels.
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan frame
	register   chan *Client
	unregister chan *Client

	// mu lets ClientCount read the set while Run mutates it
	mu sync.RWMutex

	running atomic.Bool
	done    chan struct{}
	dropped atomic.Uint64
}

// New creates a hub; call Run to start it.
func New(name string, logger *slog.Logger) *Hub {
	return &Hub{
		name:       name,
		logger:     log.Component(logger, "hub."+name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan frame, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns when ctx is cancelled, closing
// every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.mu.Unlock()
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client connected", "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", "clients", count)

		case f := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- f:
				default:
					// buffer full: drop the client
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// publish queues f for all clients. It never blocks; when the queue is
// full the frame is dropped.
func (h *Hub) publish(f frame) {
	select {
	case h.broadcast <- f:
	default:
		h.dropped.Add(1)
		h.logger.Debug("broadcast queue full, dropping frame")
	}
}

// BroadcastText sends pre-encoded JSON or text to every client.
func (h *Hub) BroadcastText(data []byte) {
	h.publish(frame{opcode: websocket.TextMessage, data: data})
}

// BroadcastJSON marshals v and broadcasts it as a text frame.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.BroadcastText(data)
	return nil
}

// BroadcastBinary sends a binary frame, a camera JPEG, to every client.
func (h *Hub) BroadcastBinary(data []byte) {
	h.publish(frame{opcode: websocket.BinaryMessage, data: data})
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many broadcasts were discarded on a full queue.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// join registers a client unless the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters a client unless the hub has stopped.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
