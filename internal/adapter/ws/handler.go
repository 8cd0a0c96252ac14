// Package ws implements the WebSocket adapter streaming task and agent
// events to live observers.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// conn wraps a single WebSocket connection and its outbound queue.
type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
	send   chan []byte
	agent  string // only events of this agent when set
}

// Hub manages all active WebSocket connections and broadcasts messages.
// Each connection has its own writer; a client that falls behind by more
// than sendBuffer messages is disconnected instead of slowing the sender.
type Hub struct {
	mu    sync.RWMutex
	conns map[*conn]struct{}
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[*conn]struct{}),
	}
}

// HandleWS upgrades the request to a WebSocket. The optional "agent" query
// parameter restricts the feed to one agent's events.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.ErrorContext(r.Context(), "websocket accept failed", "error", err)
		return
	}

	// The request context ends when the handler returns; the connection
	// outlives it.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &conn{
		ws:     ws,
		cancel: cancel,
		send:   make(chan []byte, sendBuffer),
		agent:  r.URL.Query().Get("agent"),
	}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	slog.InfoContext(ctx, "websocket connected", "remote", r.RemoteAddr, "filter", c.agent)

	go h.writeLoop(ctx, c)

	// Read loop (to detect disconnects and consume pings)
	go func() {
		defer h.remove(c)
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) writeLoop(ctx context.Context, c *conn) {
	defer func() {
		_ = c.ws.Close(websocket.StatusNormalClosure, "")
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.ws.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				slog.Debug("websocket write failed", "error", err)
				h.remove(c)
				return
			}
		}
	}
}

// Broadcast queues a message for every connected client.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	h.broadcast(ctx, "", msg)
}

func (h *Hub) broadcast(ctx context.Context, agent string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.ErrorContext(ctx, "websocket marshal failed", "error", err)
		return
	}

	var slow []*conn
	h.mu.RLock()
	for c := range h.conns {
		if c.agent != "" && agent != "" && c.agent != agent {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.WarnContext(ctx, "websocket client too slow, disconnecting")
		h.remove(c)
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info("websocket disconnected")
	}
}
