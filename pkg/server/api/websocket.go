package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tripgrid/faresearch/pkg/logging"
	"github.com/tripgrid/faresearch/pkg/server/rates"
)

// WebSocketServer streams fresh exchange-rate fetches to connected clients,
// typically an admin dashboard watching the pairs a search mix depends on.
type WebSocketServer struct {
	addr     string
	logger   *logging.Logger
	upgrader websocket.Upgrader

	// Client management
	mu      sync.RWMutex
	clients map[*WebSocketClient]bool

	// Rate updates channel; plugged into rates.Converter.Subscribe.
	updates chan rates.Update

	// Server control
	ctx    context.Context
	cancel context.CancelFunc
}

// WebSocketClient represents a connected WebSocket client.
type WebSocketClient struct {
	conn            *websocket.Conn
	send            chan []byte
	server          *WebSocketServer
	subscribedAll   bool
	subscribedPairs map[string]bool
	mu              sync.RWMutex
}

// WebSocketMessage represents a client message.
type WebSocketMessage struct {
	Type  string   `json:"type"`  // "subscribe", "unsubscribe", "ping"
	Pairs []string `json:"pairs"` // currency pairs, e.g. "EUR/USD"
}

// RateUpdateMessage is sent to clients on every fresh rate fetch.
type RateUpdateMessage struct {
	Type      string `json:"type"`      // "rate_update"
	Timestamp string `json:"timestamp"` // ISO 8601 timestamp
	Pair      string `json:"pair"`
	Rate      string `json:"rate"`
	Provider  string `json:"provider"`
}

// NewWebSocketServer creates a new WebSocket server.
func NewWebSocketServer(addr string, logger *logging.Logger) *WebSocketServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketServer{
		addr:   addr,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				// Allow all origins (configure CORS as needed)
				return true
			},
		},
		clients: make(map[*WebSocketClient]bool),
		updates: make(chan rates.Update, 100),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// RateUpdates exposes the channel to plug into rates.Converter.Subscribe.
func (s *WebSocketServer) RateUpdates() chan<- rates.Update {
	return s.updates
}

// Start starts the WebSocket server.
func (s *WebSocketServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	server := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go s.broadcastUpdates()

	s.logger.Info("Starting WebSocket server", "addr", s.addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("WebSocket server error", "error", err)
		}
	}()

	<-s.ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Stop stops the WebSocket server.
func (s *WebSocketServer) Stop() {
	s.cancel()
}

// handleWebSocket handles new WebSocket connections.
func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := &WebSocketClient{
		conn:            conn,
		send:            make(chan []byte, 256),
		server:          s,
		subscribedAll:   true, // Subscribe to all by default
		subscribedPairs: make(map[string]bool),
	}

	s.registerClient(client)

	go client.writePump()
	go client.readPump()

	s.logger.Info("New WebSocket client connected", "remote", conn.RemoteAddr())
}

func (s *WebSocketServer) registerClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *WebSocketServer) unregisterClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
}

// broadcastUpdates forwards rate updates to subscribed clients.
func (s *WebSocketServer) broadcastUpdates() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case update := <-s.updates:
			s.broadcast(update)
		}
	}
}

func (s *WebSocketServer) broadcast(update rates.Update) {
	message := RateUpdateMessage{
		Type:      "rate_update",
		Timestamp: update.Timestamp.Format(time.RFC3339),
		Pair:      update.Pair(),
		Rate:      update.Rate.String(),
		Provider:  update.Provider,
	}

	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("Failed to marshal rate update", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients {
		if client.shouldReceive(update.Pair()) {
			select {
			case client.send <- data:
			default:
				s.logger.Warn("Client send buffer full, skipping update")
			}
		}
	}
}

// writePump sends messages to the WebSocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.server.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads messages from the WebSocket connection.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.server.unregisterClient(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// handleMessage processes client messages.
func (c *WebSocketClient) handleMessage(data []byte) {
	var msg WebSocketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.server.logger.Warn("Invalid client message", "error", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subscribe(msg.Pairs)
	case "unsubscribe":
		c.unsubscribe(msg.Pairs)
	case "ping":
		c.sendPong()
	default:
		c.server.logger.Warn("Unknown message type", "type", msg.Type)
	}
}

// subscribe subscribes to specific currency pairs.
func (c *WebSocketClient) subscribe(pairs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(pairs) == 0 || (len(pairs) == 1 && pairs[0] == "*") {
		c.subscribedAll = true
		c.subscribedPairs = make(map[string]bool)
	} else {
		c.subscribedAll = false
		for _, pair := range pairs {
			c.subscribedPairs[pair] = true
		}
	}

	c.server.logger.Debug("Client subscribed", "pairs", pairs)
}

// unsubscribe unsubscribes from specific currency pairs.
func (c *WebSocketClient) unsubscribe(pairs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(pairs) == 0 || (len(pairs) == 1 && pairs[0] == "*") {
		c.subscribedAll = false
		c.subscribedPairs = make(map[string]bool)
	} else {
		for _, pair := range pairs {
			delete(c.subscribedPairs, pair)
		}
	}

	c.server.logger.Debug("Client unsubscribed", "pairs", pairs)
}

// shouldReceive checks if the client subscribed to this pair.
func (c *WebSocketClient) shouldReceive(pair string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.subscribedAll {
		return true
	}
	return c.subscribedPairs[pair]
}

// sendPong sends a pong response.
func (c *WebSocketClient) sendPong() {
	pong := map[string]string{"type": "pong"}
	data, _ := json.Marshal(pong)
	select {
	case c.send <- data:
	default:
	}
}
