package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketHub streams emitted opportunities to connected dashboard
// clients. It doubles as an opportunity sink: the scorer publishes into the
// broadcast channel and the hub fans out.
type WebSocketHub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocket.Conn]*wsClient

	broadcast  chan *types.MEVOpportunity
	register   chan *wsClient
	unregister chan *wsClient
	shutdown   chan struct{}
	stopOnce   sync.Once
}

type wsClient struct {
	conn *websocket.Conn
	send chan *types.MEVOpportunity
}

// NewWebSocketHub creates a hub ready to Start.
func NewWebSocketHub(log *zap.Logger) *WebSocketHub {
	return &WebSocketHub{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan *types.MEVOpportunity, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		shutdown:   make(chan struct{}),
	}
}

// Start launches the fan-out loop.
func (h *WebSocketHub) Start(ctx context.Context) error {
	go h.run(ctx)
	return nil
}

// Stop closes every client connection.
func (h *WebSocketHub) Stop(context.Context) error {
	h.stopOnce.Do(func() { close(h.shutdown) })
	h.mu.Lock()
	for conn, client := range h.clients {
		close(client.send)
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]*wsClient)
	h.mu.Unlock()
	return nil
}

// Name implements interfaces.OpportunitySink.
func (h *WebSocketHub) Name() string { return "websocket" }

// Publish implements interfaces.OpportunitySink. A full broadcast buffer
// drops the push; connected clients can re-read from the REST surface.
func (h *WebSocketHub) Publish(_ context.Context, opp *types.MEVOpportunity) error {
	select {
	case h.broadcast <- opp:
		return nil
	default:
		return fmt.Errorf("websocket broadcast buffer full")
	}
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the connection and registers the client.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &wsClient{conn: conn, send: make(chan *types.MEVOpportunity, 64)}
	h.register <- client
	go h.writePump(client)
	go h.readPump(client)
}

func (h *WebSocketHub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.shutdown:
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.conn]; ok {
				delete(h.clients, client.conn)
				close(client.send)
				client.conn.Close()
			}
			h.mu.Unlock()
		case opp := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.send <- opp:
				default:
					// Slow consumer, skip this push for it.
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *WebSocketHub) writePump(client *wsClient) {
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case opp, ok := <-client.send:
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteJSON(opp); err != nil {
				h.unregister <- client
				return
			}
		case <-ping.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister <- client
				return
			}
		}
	}
}

func (h *WebSocketHub) readPump(client *wsClient) {
	defer func() {
		h.unregister <- client
	}()
	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
