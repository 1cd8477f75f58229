package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avbelov/squadduel/internal/events"
)

// ClientHandler receives connection lifecycle callbacks and inbound frames.
type ClientHandler interface {
	HandleConnect(c *Connection)
	HandleMessage(c *Connection, data []byte)
	HandleDisconnect(c *Connection)
}

// ConnectionManager owns every WebSocket connection of this gateway instance
// and fans delivered events out to them.
type ConnectionManager struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  ClientHandler

	deliverCh chan events.Envelope
}

// Connection represents a WebSocket connection to a client.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	// Set by the service once the client authenticates.
	Nickname   string
	TelegramID int64
	Authed     bool

	ConnectedAt time.Time
	LastPing    time.Time

	closeOnce sync.Once
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		conns: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:    config,
		deliverCh: make(chan events.Envelope, 1000),
	}
}

// SetHandler wires the inbound message handler. Must be called before the
// first upgrade.
func (cm *ConnectionManager) SetHandler(h ClientHandler) {
	cm.handler = h
}

// Start begins fanning delivered events out to clients.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case env := <-cm.deliverCh:
			cm.handleDeliver(env)
		}
	}
}

// Connected reports whether a connection is still attached. This is the
// engine's presence check.
func (cm *ConnectionManager) Connected(connID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, ok := cm.conns[connID]
	return ok
}

// Deliver queues an event envelope for fan-out to its recipients.
func (cm *ConnectionManager) Deliver(env events.Envelope) {
	select {
	case cm.deliverCh <- env:
	default:
		log.Warn().Str("event_type", string(env.Type)).Msg("deliver channel full, dropping event")
	}
}

// clientFrame is the shape every server-to-client message takes on the wire.
type clientFrame struct {
	Type      string          `json:"type"`
	MatchID   string          `json:"match_id,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitzero"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// handleDeliver sends one envelope to its recipients; an envelope with no
// recipient list goes to every authenticated connection.
func (cm *ConnectionManager) handleDeliver(env events.Envelope) {
	frame := clientFrame{
		Type:      string(env.Type),
		Timestamp: env.Timestamp,
		Payload:   env.Payload,
	}
	if env.MatchID != events.LobbySubject {
		frame.MatchID = env.MatchID
	}
	data, err := json.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Msg("marshal event frame")
		return
	}

	cm.mu.RLock()
	var targets []*Connection
	if len(env.Recipients) > 0 {
		for _, id := range env.Recipients {
			if c, ok := cm.conns[id]; ok {
				targets = append(targets, c)
			}
		}
	} else {
		for _, c := range cm.conns {
			if c.Authed {
				targets = append(targets, c)
			}
		}
	}
	cm.mu.RUnlock()

	for _, c := range targets {
		c.trySend(data)
	}

	log.Debug().
		Str("event_type", string(env.Type)).
		Int("connections", len(targets)).
		Msg("event delivered")
}

// SendTo marshals a direct message for one connection, bypassing the event
// bus. Used for auth handshakes and operation acks.
func (cm *ConnectionManager) SendTo(connID string, msgType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("msg_type", msgType).Msg("marshal direct message")
		return
	}
	frame, err := json.Marshal(clientFrame{Type: msgType, Timestamp: time.Now().UTC(), Payload: data})
	if err != nil {
		log.Error().Err(err).Msg("marshal direct frame")
		return
	}

	cm.mu.RLock()
	c, ok := cm.conns[connID]
	cm.mu.RUnlock()
	if ok {
		c.trySend(frame)
	}
}

// Close tears down one connection by ID.
func (cm *ConnectionManager) Close(connID string) {
	cm.mu.RLock()
	c, ok := cm.conns[connID]
	cm.mu.RUnlock()
	if ok {
		c.Conn.Close()
	}
}

// trySend queues data without blocking; a full buffer means the client is
// dead or hopelessly behind, so the connection is dropped.
func (c *Connection) trySend(data []byte) {
	select {
	case c.Send <- data:
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("nickname", c.Nickname).
			Msg("connection send buffer full, closing connection")
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket connection and
// starts its pumps.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	cm.handler.HandleConnect(connection)

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote", r.RemoteAddr).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.conns[conn.ID] = conn

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.conns)).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	_, exists := cm.conns[conn.ID]
	if exists {
		delete(cm.conns, conn.ID)
	}
	cm.mu.Unlock()

	if !exists {
		return
	}

	conn.closeOnce.Do(func() {
		close(conn.Send)
		cm.handler.HandleDisconnect(conn)
	})

	log.Info().
		Str("connection_id", conn.ID).
		Str("nickname", conn.Nickname).
		Msg("connection unregistered")
}

// ConnectionCount returns the number of attached clients.
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.conns)
}

// writePump handles sending messages to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump handles reading messages from the WebSocket connection.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.Manager.handler.HandleMessage(c, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
