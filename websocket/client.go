package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"lifeline/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Buffer size for client send channel
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks are handled by the CORS layer in front.
		return true
	},
}

// Upgrade performs the WebSocket handshake for a handler.
func Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return upgrader.Upgrade(w, r, nil)
}

// Role constants for connected subjects.
const (
	RoleUser      = "user"
	RoleAmbulance = "ambulance"
)

type Client struct {
	conn *websocket.Conn

	// Subject identity from the auth middleware: a user id or ambulance id.
	subjectID string
	role      string

	connectionID string
	connectedAt  time.Time
	lastActivity time.Time

	// Buffered channel of outbound messages
	send chan models.WSMessage

	hub *Hub

	isActive bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(conn *websocket.Conn, hub *Hub, subjectID, role string) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		conn:         conn,
		hub:          hub,
		subjectID:    subjectID,
		role:         role,
		send:         make(chan models.WSMessage, sendBufferSize),
		connectionID: uuid.NewString(),
		connectedAt:  time.Now(),
		lastActivity: time.Now(),
		isActive:     true,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SendMessage queues a message without blocking; a full buffer means the
// client misses the event (delivery is best-effort).
func (c *Client) SendMessage(message models.WSMessage) {
	select {
	case c.send <- message:
	default:
		logrus.Warnf("Send buffer full for %s, dropping %s", c.subjectID, message.Type)
	}
}

func (c *Client) ReadPump() {
	defer c.cleanup()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.lastActivity = time.Now()
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			_, messageData, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Warnf("WebSocket read error for %s: %v", c.subjectID, err)
				}
				return
			}

			c.lastActivity = time.Now()
			c.handleInbound(messageData)
		}
	}
}

func (c *Client) handleInbound(data []byte) {
	var message models.WSMessage
	if err := json.Unmarshal(data, &message); err != nil {
		c.SendMessage(models.WSMessage{
			Type:      models.WSTypeError,
			Data:      "malformed message",
			Timestamp: time.Now(),
		})
		return
	}

	switch message.Type {
	case models.WSTypeLocationReport:
		c.handleLocationReport(message)
	case "ping":
		c.SendMessage(models.WSMessage{
			Type:      models.WSTypePong,
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	default:
		logrus.Debugf("Ignoring unknown WS message type %q from %s", message.Type, c.subjectID)
	}
}

func (c *Client) handleLocationReport(message models.WSMessage) {
	if c.role != RoleAmbulance || c.hub.dispatch == nil {
		return
	}

	raw, err := json.Marshal(message.Data)
	if err != nil {
		return
	}
	var report models.WSLocationReport
	if err := json.Unmarshal(raw, &report); err != nil || len(report.Location) != 2 {
		c.SendMessage(models.WSMessage{
			Type:      models.WSTypeError,
			Data:      "location must be [longitude, latitude]",
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
		return
	}

	if err := c.hub.dispatch.ReportLocation(c.ctx, c.subjectID, report.Location[0], report.Location[1]); err != nil {
		c.SendMessage(models.WSMessage{
			Type:      models.WSTypeError,
			Data:      err.Error(),
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.cleanup()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logrus.Warnf("WebSocket write error for %s: %v", c.subjectID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) cleanup() {
	if !c.isActive {
		return
	}
	c.isActive = false

	c.cancel()
	c.hub.unregister <- c
	c.conn.Close()
}
