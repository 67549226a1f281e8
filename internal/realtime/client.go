// internal/realtime/client.go
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	rtypes "prospect-service/internal/domain/realtime"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// ClientAuth holds the authenticated identity behind a connection.
type ClientAuth struct {
	UserID    int64
	SessionID string
	Role      string
	StaffID   *int64
	Email     string
	Device    string
}

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	userID    int64
	sessionID string
	role      string
	staffID   *int64
	device    string
	email     string

	subscriptions map[rtypes.ChannelType]bool
	subMutex      sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(hub *Hub, conn *websocket.Conn, auth *ClientAuth) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		userID:        auth.UserID,
		sessionID:     auth.SessionID,
		role:          auth.Role,
		staffID:       auth.StaffID,
		device:        auth.Device,
		email:         auth.Email,
		subscriptions: make(map[rtypes.ChannelType]bool),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (c *Client) UserID() int64     { return c.userID }
func (c *Client) SessionID() string { return c.sessionID }

// IsSubscribed checks if the client listens on a channel.
func (c *Client) IsSubscribed(channel rtypes.ChannelType) bool {
	c.subMutex.RLock()
	defer c.subMutex.RUnlock()
	return c.subscriptions[channel]
}

func (c *Client) subscribe(channel rtypes.ChannelType) {
	c.subMutex.Lock()
	defer c.subMutex.Unlock()
	c.subscriptions[channel] = true
}

func (c *Client) unsubscribe(channel rtypes.ChannelType) {
	c.subMutex.Lock()
	defer c.subMutex.Unlock()
	delete(c.subscriptions, channel)
}

// ReadPump handles incoming frames until the connection drops.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.hub.logger.Warn("websocket read failed",
						zap.Int64("user_id", c.userID), zap.Error(err))
				}
				return
			}

			c.handleMessage(message)
		}
	}
}

// WritePump drains the send queue and keeps the connection alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	msg, err := rtypes.ParseMessage(data)
	if err != nil {
		c.SendError("invalid_message", "failed to parse message", err.Error())
		return
	}

	switch msg.Type {
	case rtypes.EventTypePing:
		c.SendMessage(rtypes.NewMessage(rtypes.EventTypePong, nil))

	case rtypes.EventTypeSubscribe:
		var req rtypes.SubscribeRequest
		if err := mapToStruct(msg.Data, &req); err != nil {
			c.SendError("invalid_subscribe", "invalid subscribe request", err.Error())
			return
		}
		for _, channel := range req.Channels {
			c.subscribe(channel)
			if channel == rtypes.ChannelAttention {
				c.sendAttentionSnapshot()
			}
		}
		c.SendMessage(rtypes.NewMessage(rtypes.EventTypeSubscribe, map[string]interface{}{
			"channels": req.Channels,
			"status":   "subscribed",
		}))

	case rtypes.EventTypeUnsubscribe:
		var req rtypes.UnsubscribeRequest
		if err := mapToStruct(msg.Data, &req); err != nil {
			c.SendError("invalid_unsubscribe", "invalid unsubscribe request", err.Error())
			return
		}
		for _, channel := range req.Channels {
			c.unsubscribe(channel)
		}
		c.SendMessage(rtypes.NewMessage(rtypes.EventTypeUnsubscribe, map[string]interface{}{
			"channels": req.Channels,
			"status":   "unsubscribed",
		}))
	}
}

// sendAttentionSnapshot registers this client's user as an attention
// viewer and delivers the initial ordered list.
func (c *Client) sendAttentionSnapshot() {
	entries, err := c.hub.subscribeAttention(c.ctx, c)
	if err != nil {
		c.hub.logger.Warn("failed to build attention snapshot",
			zap.Int64("user_id", c.userID), zap.Error(err))
		c.SendError("snapshot_failed", "failed to build attention list", err.Error())
		return
	}
	c.SendMessage(rtypes.NewMessage(rtypes.EventTypeAttentionSnapshot, &rtypes.AttentionEvent{
		Type: rtypes.EventTypeAttentionSnapshot,
		List: entries,
	}))
}

// SendMessage queues a frame for delivery; a full queue drops the
// connection rather than blocking the hub.
func (c *Client) SendMessage(msg *rtypes.WSMessage) {
	data, err := msg.ToJSON()
	if err != nil {
		c.hub.logger.Error("failed to marshal websocket message", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	case <-c.ctx.Done():
	default:
		// Slow consumer. Drop the connection without blocking the
		// hub's delivery loop.
		c.cancel()
		go func() { c.hub.unregister <- c }()
	}
}

// SendError sends an error frame.
func (c *Client) SendError(code, message, details string) {
	c.SendMessage(rtypes.NewMessage(rtypes.EventTypeError, rtypes.ErrorData{
		Code:    code,
		Message: message,
		Details: details,
	}))
}

// Close ends the client's pumps.
func (c *Client) Close() {
	c.cancel()
}

func mapToStruct(data interface{}, target interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, target)
}
