// Package gateway carries the candidate's websocket: inbound frames become
// session events and session notices are pushed back out.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/mockdrive/go/internal/assessment/orchestrator"
	"github.com/mcdev12/mockdrive/go/internal/metrics"
	"github.com/rs/zerolog/log"
)

var ErrSessionUnavailable = errors.New("failed to open session")

// Sessions is the slice of the session manager the gateway needs.
type Sessions interface {
	// Open makes sure the session loop runs and returns its current view.
	Open(ctx context.Context, sessionID uuid.UUID) (orchestrator.Snapshot, error)
	Post(sessionID uuid.UUID, ev orchestrator.Event) error
}

// ManagerSessions adapts an orchestrator.Manager to Sessions.
type ManagerSessions struct {
	Manager *orchestrator.Manager
}

func (s ManagerSessions) Open(ctx context.Context, sessionID uuid.UUID) (orchestrator.Snapshot, error) {
	sess, err := s.Manager.Attach(ctx, sessionID)
	if err != nil {
		return orchestrator.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

func (s ManagerSessions) Post(sessionID uuid.UUID, ev orchestrator.Event) error {
	return s.Manager.Post(sessionID, ev)
}

// ConnectionManager tracks candidate connections per session and implements
// orchestrator.Notifier.
type ConnectionManager struct {
	sessionConnections map[uuid.UUID]map[*Connection]bool
	mu                 sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	sessions Sessions

	broadcastCh chan broadcastMessage
}

// Connection is one candidate websocket.
type Connection struct {
	ID        string
	SessionID uuid.UUID
	Conn      *websocket.Conn
	Send      chan []byte
	Manager   *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds websocket tuning.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

type broadcastMessage struct {
	SessionID uuid.UUID
	Notice    orchestrator.Notice
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  64 * 1024, // code answers can be large
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewConnectionManager(sessions Sessions, config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		sessionConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		sessions:    sessions,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// Start fans queued notices out to connections until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// Notify queues n for every connection of the session. It never blocks the
// session loop; notices are dropped when the queue is full.
func (cm *ConnectionManager) Notify(sessionID uuid.UUID, n orchestrator.Notice) {
	select {
	case cm.broadcastCh <- broadcastMessage{SessionID: sessionID, Notice: n}:
	default:
		metrics.NoticesDroppedTotal.Inc()
		log.Warn().
			Str("session_id", sessionID.String()).
			Str("notice", string(n.Type)).
			Msg("broadcast channel full, dropping notice")
	}
}

// UpgradeConnection upgrades r and attaches the connection to sessionID.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) error {
	snapshot, err := cm.sessions.Open(r.Context(), sessionID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
	cm.registerConnection(connection)

	// The session may have announced its state before anyone was listening.
	connection.enqueue(snapshotMessage{Type: "snapshot", Snapshot: snapshot})

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("session_id", sessionID.String()).
		Msg("websocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.sessionConnections[conn.SessionID] == nil {
		cm.sessionConnections[conn.SessionID] = make(map[*Connection]bool)
	}
	cm.sessionConnections[conn.SessionID][conn] = true
	metrics.GatewayConnections.Inc()

	log.Debug().
		Str("connection_id", conn.ID).
		Str("session_id", conn.SessionID.String()).
		Int("total_connections", len(cm.sessionConnections[conn.SessionID])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, ok := cm.sessionConnections[conn.SessionID]
	if !ok {
		return
	}
	if _, ok := connections[conn]; !ok {
		return
	}
	delete(connections, conn)
	close(conn.Send)
	metrics.GatewayConnections.Dec()
	if len(connections) == 0 {
		delete(cm.sessionConnections, conn.SessionID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("session_id", conn.SessionID.String()).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) handleBroadcast(message broadcastMessage) {
	data, err := json.Marshal(message.Notice)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal notice")
		return
	}

	// Sends happen under the read lock so Send cannot be closed underneath them.
	var slow []*Connection
	cm.mu.RLock()
	for conn := range cm.sessionConnections[message.SessionID] {
		select {
		case conn.Send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		metrics.NoticesDroppedTotal.Inc()
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.sessionConnections {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		cm.unregisterConnection(conn)
	}
}

// ConnectionStats summarizes open connections.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveSessions   int            `json:"active_sessions"`
	Sessions         map[string]int `json:"sessions"`
}

func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{Sessions: make(map[string]int, len(cm.sessionConnections))}
	for sessionID, connections := range cm.sessionConnections {
		stats.TotalConnections += len(connections)
		stats.Sessions[sessionID.String()] = len(connections)
	}
	stats.ActiveSessions = len(cm.sessionConnections)
	return stats
}

// enqueue sends v to this connection only, dropping it if the connection is gone or slow.
func (c *Connection) enqueue(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message")
		return
	}
	c.Manager.mu.RLock()
	defer c.Manager.mu.RUnlock()
	if !c.Manager.sessionConnections[c.SessionID][c] {
		return
	}
	select {
	case c.Send <- data:
	default:
		metrics.NoticesDroppedTotal.Inc()
	}
}

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
					Msg("failed to write message to websocket")
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
					Msg("unexpected websocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage turns a frame into a session event. Bad frames are
// answered with an error notice and never reach the session.
func (c *Connection) handleClientMessage(message []byte) {
	ev, err := DecodeClientMessage(message)
	if err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", c.ID).
			Msg("rejected client message")
		c.enqueue(orchestrator.Notice{Type: orchestrator.NoticeError, SessionID: c.SessionID, Message: err.Error()})
		return
	}
	if err := c.Manager.sessions.Post(c.SessionID, ev); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Str("event", string(ev.Type)).
			Msg("failed to post client event")
		c.enqueue(orchestrator.Notice{Type: orchestrator.NoticeError, SessionID: c.SessionID, Message: err.Error()})
	}
}
