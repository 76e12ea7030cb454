package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/choicetrial/go/internal/dom"
	"github.com/mcdev12/choicetrial/go/internal/session"
	"github.com/rs/zerolog/log"
)

// DisplayID is the id of the container each session renders into.
const DisplayID = "choicetrial-display"

// SessionFactory creates the session a new participant connection runs.
type SessionFactory func(participant string, container *dom.Container) (*session.Session, error)

// ConnectionManager manages participant WebSocket connections, one session
// per connection.
type ConnectionManager struct {
	connections map[uuid.UUID]*Connection
	mu          sync.RWMutex

	upgrader   websocket.Upgrader
	config     ConnectionConfig
	newSession SessionFactory
}

// Connection represents a participant's WebSocket connection
type Connection struct {
	ID          string
	Participant string
	Conn        *websocket.Conn
	Session     *session.Session
	Container   *dom.Container
	Send        chan []byte
	Manager     *ConnectionManager

	// dirty is signalled on every container mutation; the write pump
	// coalesces bursts into a single render.
	dirty     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, newSession SessionFactory) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[uuid.UUID]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:     config,
		newSession: newSession,
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and starts a
// session for the participant.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, participant string) error {
	container := dom.NewContainer(DisplayID)
	sess, err := cm.newSession(participant, container)
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return fmt.Errorf("failed to create session: %w", err)
	}

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Participant: participant,
		Conn:        conn,
		Session:     sess,
		Container:   container,
		Send:        make(chan []byte, 16),
		Manager:     cm,
		dirty:       make(chan struct{}, 1),
		closed:      make(chan struct{}),
		ConnectedAt: time.Now(),
	}
	container.OnMutate(connection.markDirty)

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("participant", participant).
		Str("session_id", sess.ID().String()).
		Msg("WebSocket connection established")

	_, total := sess.Progress()
	connection.sendEvent(EventTypeSessionStarted, SessionStartedPayload{
		Participant: participant,
		Experiment:  sess.Experiment(),
		TrialCount:  total,
	})
	if err := sess.Start(); err != nil {
		connection.sendEvent(EventTypeSessionFailed, SessionFailedPayload{Error: err.Error()})
		return nil
	}
	go connection.watchSession()
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn.Session.ID()] = conn

	log.Debug().
		Str("connection_id", conn.ID).
		Str("session_id", conn.Session.ID().String()).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection and aborts its session if it
// is still running.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	_, exists := cm.connections[conn.Session.ID()]
	delete(cm.connections, conn.Session.ID())
	cm.mu.Unlock()

	if !exists {
		return
	}
	conn.close()
	conn.Session.Abort()

	log.Info().
		Str("connection_id", conn.ID).
		Str("participant", conn.Participant).
		Str("session_id", conn.Session.ID().String()).
		Msg("connection unregistered")
}

// Session returns the running session with the given id.
func (cm *ConnectionManager) Session(id uuid.UUID) (*session.Session, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	conn, ok := cm.connections[id]
	if !ok {
		return nil, false
	}
	return conn.Session, true
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	sessions := make(map[string]int, len(cm.connections))
	for id, conn := range cm.connections {
		index, _ := conn.Session.Progress()
		sessions[id.String()] = index
	}
	return map[string]interface{}{
		"total_connections": len(cm.connections),
		"session_progress":  sessions,
	}
}

// CloseAll aborts every session and closes its connection.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		cm.unregisterConnection(conn)
	}
}

func (c *Connection) markDirty() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// sendEvent queues an event for the write pump. Events for a closed or
// stalled connection are dropped.
func (c *Connection) sendEvent(eventType EventType, payload interface{}) {
	event, err := newEvent(c.Session.ID(), eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to build event")
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal event")
		return
	}

	select {
	case <-c.closed:
	case c.Send <- data:
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("event_type", string(eventType)).
			Msg("connection send buffer full, dropping event")
	}
}

// watchSession reports the end of the session to the participant.
func (c *Connection) watchSession() {
	select {
	case <-c.closed:
		return
	case <-c.Session.Done():
	}

	if err := c.Session.Err(); err != nil {
		c.sendEvent(EventTypeSessionFailed, SessionFailedPayload{Error: err.Error()})
		return
	}
	c.sendEvent(EventTypeSessionCompleted, SessionCompletedPayload{Records: c.Session.Records()})
}

func (c *Connection) renderMessage() ([]byte, error) {
	index, total := c.Session.Progress()
	payload := RenderPayload{
		HTML:       c.Container.HTML(),
		TrialIndex: index,
		TrialCount: total,
	}
	if cfg, ok := c.Session.Trial(index); ok && cfg.StimulusDuration != nil {
		ms := cfg.StimulusDuration.Milliseconds()
		payload.StimulusDurationMS = &ms
	}
	event, err := newEvent(c.Session.ID(), EventTypeRender, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(event)
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	write := func(message []byte) bool {
		c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Error().
				Err(err).
				Str("connection_id", c.ID).
				Msg("failed to write message to WebSocket")
			return false
		}
		return true
	}

	for {
		select {
		case <-c.closed:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-c.dirty:
			message, err := c.renderMessage()
			if err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to build render event")
				continue
			}
			if !write(message) {
				return
			}

		case message := <-c.Send:
			if !write(message) {
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
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
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
			return
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage processes messages received from the participant page
func (c *Connection) handleClientMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("ignoring malformed client message")
		return
	}

	switch msg.Type {
	case ClientMessageClick:
		var accepted bool
		if msg.RTMs != nil {
			accepted = c.Session.ClickAfter(msg.Choice, time.Duration(*msg.RTMs*float64(time.Millisecond)))
		} else {
			accepted = c.Session.Click(msg.Choice)
		}
		ev := log.Debug().
			Str("connection_id", c.ID).
			Int("choice", msg.Choice).
			Bool("accepted", accepted)
		if msg.RTMs != nil {
			ev = ev.Float64("client_rt_ms", *msg.RTMs)
		}
		ev.Msg("participant click")
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("type", string(msg.Type)).
			Msg("unknown client message type")
	}
}
