// internal/realtime/hub.go
package realtime

import (
	"context"
	"sync"

	rtypes "prospect-service/internal/domain/realtime"
	"prospect-service/internal/pkg/jwt"
	"prospect-service/internal/pkg/session"

	"go.uber.org/zap"
)

// AttentionRegistry is the attention service surface the hub drives:
// viewer lifecycle follows the attention-channel subscription.
type AttentionRegistry interface {
	RegisterViewer(ctx context.Context, userID int64) ([]rtypes.AttentionEntry, error)
	UnregisterViewer(userID int64)
}

type BroadcastMessage struct {
	// UserIDs scopes delivery; nil broadcasts to every client.
	UserIDs []int64
	Channel rtypes.ChannelType
	Message *rtypes.WSMessage
}

// Hub fans realtime events out to connected dashboard clients, keyed
// by user id. One user may hold several connections (tabs, devices).
type Hub struct {
	clients map[int64]map[*Client]bool
	mu      sync.RWMutex

	Register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	jwtVerifier    *jwt.Verifier
	sessionManager *session.Manager
	attention      AttentionRegistry
	logger         *zap.Logger
}

func NewHub(jwtVerifier *jwt.Verifier, sessionManager *session.Manager, logger *zap.Logger) *Hub {
	return &Hub{
		clients:        make(map[int64]map[*Client]bool),
		Register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *BroadcastMessage, 256),
		jwtVerifier:    jwtVerifier,
		sessionManager: sessionManager,
		logger:         logger,
	}
}

// SetAttention wires the attention service after construction; the
// service and the hub reference each other.
func (h *Hub) SetAttention(attention AttentionRegistry) {
	h.attention = attention
}

// AuthenticateClient validates the token and the live session before a
// websocket upgrade is accepted.
func (h *Hub) AuthenticateClient(ctx context.Context, token string) (*ClientAuth, error) {
	claims, err := h.jwtVerifier.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}

	blacklisted, err := h.sessionManager.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, ErrTokenBlacklisted
	}

	sessionData, err := h.sessionManager.GetSession(ctx, claims.UserID, claims.ID)
	if err != nil {
		return nil, ErrSessionExpired
	}

	return &ClientAuth{
		UserID:    claims.UserID,
		SessionID: claims.ID,
		Role:      claims.Role,
		StaffID:   claims.StaffID,
		Email:     sessionData.Email,
		Device:    claims.Device,
	}, nil
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true
	total := h.totalClients()
	h.mu.Unlock()

	h.logger.Info("websocket client connected",
		zap.Int64("user_id", client.userID),
		zap.String("session_id", client.sessionID),
		zap.Int("total", total),
	)

	client.SendMessage(rtypes.NewMessage(rtypes.EventTypeConnected, map[string]interface{}{
		"user_id":    client.userID,
		"session_id": client.sessionID,
		"role":       client.role,
		"device":     client.device,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	lastForUser := false
	if clients, ok := h.clients[client.userID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()
			if len(clients) == 0 {
				delete(h.clients, client.userID)
				lastForUser = true
			}
		}
	}
	total := h.totalClients()
	h.mu.Unlock()

	// The attention service only tracks users with a live connection.
	if lastForUser && h.attention != nil {
		h.attention.UnregisterViewer(client.userID)
	}

	h.logger.Info("websocket client disconnected",
		zap.Int64("user_id", client.userID),
		zap.String("session_id", client.sessionID),
		zap.Int("total", total),
	)
}

// subscribeAttention starts attention tracking for the client's user
// and returns the initial ordered list.
func (h *Hub) subscribeAttention(ctx context.Context, client *Client) ([]rtypes.AttentionEntry, error) {
	if h.attention == nil {
		return nil, nil
	}
	return h.attention.RegisterViewer(ctx, client.userID)
}

func (h *Hub) deliver(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.UserIDs == nil {
		for _, clients := range h.clients {
			for client := range clients {
				if client.IsSubscribed(msg.Channel) {
					client.SendMessage(msg.Message)
				}
			}
		}
		return
	}

	for _, userID := range msg.UserIDs {
		if clients, ok := h.clients[userID]; ok {
			for client := range clients {
				if client.IsSubscribed(msg.Channel) {
					client.SendMessage(msg.Message)
				}
			}
		}
	}
}

// AttentionChanged pushes an incremental attention-list event to the
// viewer's clients. Implements the attention service's notifier.
func (h *Hub) AttentionChanged(userID int64, event *rtypes.AttentionEvent) {
	h.broadcast <- &BroadcastMessage{
		UserIDs: []int64{userID},
		Channel: rtypes.ChannelAttention,
		Message: rtypes.NewMessage(event.Type, event),
	}
}

// BroadcastSystemAlert sends an operator alert to every connected
// client on the system channel.
func (h *Hub) BroadcastSystemAlert(alert *rtypes.SystemAlertData) {
	h.broadcast <- &BroadcastMessage{
		UserIDs: nil,
		Channel: rtypes.ChannelSystem,
		Message: rtypes.NewMessage(rtypes.EventTypeSystemAlert, alert),
	}
}

// IsUserConnected reports whether a user has any active connection.
func (h *Hub) IsUserConnected(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

// callers hold h.mu
func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[int64]map[*Client]bool)
}
