package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/logger"
	"botdeck/backend/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsSendBuffer = 256
)

// Client represents a connected user over WebSocket
type Client struct {
	Hub    *WSHub
	Conn   *websocket.Conn
	UserID string
	Send   chan []byte
}

// WSHub tracks WebSocket clients per user and fans events out to them
type WSHub struct {
	mu        sync.RWMutex
	userConns map[string]map[*Client]struct{}

	redis    *redis.Client
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewWSHub creates a hub. redisClient may be nil, in which case only events
// published through the hub itself are delivered.
func NewWSHub(redisClient *redis.Client, allowedOrigins []string) *WSHub {
	h := &WSHub{
		userConns: make(map[string]map[*Client]struct{}),
		redis:     redisClient,
		log:       logger.GetLogger().WithComponent("ws"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func (h *WSHub) register(c *Client) {
	h.mu.Lock()
	conns, ok := h.userConns[c.UserID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.userConns[c.UserID] = conns
	}
	conns[c] = struct{}{}
	h.mu.Unlock()
	h.log.Infof("WS Client registered: UserID=%s", c.UserID)
}

func (h *WSHub) unregister(c *Client) {
	h.mu.Lock()
	if conns, ok := h.userConns[c.UserID]; ok {
		if _, ok := conns[c]; ok {
			delete(conns, c)
			close(c.Send)
		}
		if len(conns) == 0 {
			delete(h.userConns, c.UserID)
		}
	}
	h.mu.Unlock()
	h.log.Infof("WS Client unregistered: UserID=%s", c.UserID)
}

// ClientCount returns the number of live connections for userID
func (h *WSHub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConns[userID])
}

// Broadcast sends raw data to all connected clients
func (h *WSHub) Broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conns := range h.userConns {
		for c := range conns {
			c.enqueue(data)
		}
	}
}

// SendToUser sends raw data to all active connections of userID
func (h *WSHub) SendToUser(userID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.userConns[userID] {
		c.enqueue(data)
	}
}

// PublishJSON delivers value locally, routing by channel name
func (h *WSHub) PublishJSON(ctx context.Context, channel string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	h.route(channel, data)
	return nil
}

func (h *WSHub) route(channel string, data []byte) {
	if channel == redis.BroadcastChannel() {
		h.Broadcast(data)
		return
	}
	if userID, ok := redis.UserIDFromChannel(channel); ok {
		h.SendToUser(userID, data)
	}
}

// StartPubSubListener bridges Redis Pub/Sub events to local WebSocket clients until ctx is done
func (h *WSHub) StartPubSubListener(ctx context.Context) {
	if h.redis == nil {
		return
	}

	pubsub := h.redis.PSubscribe(ctx, redis.UserChannelPattern())
	defer pubsub.Close()
	if err := pubsub.Subscribe(ctx, redis.BroadcastChannel()); err != nil {
		h.log.Error("Failed to subscribe to broadcast channel", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.route(msg.Channel, []byte(msg.Payload))
		}
	}
}

// enqueue drops the message when the client's buffer is full. Caller holds the hub read lock.
func (c *Client) enqueue(data []byte) {
	select {
	case c.Send <- data:
	default:
		c.Hub.log.Warnf("WS send buffer full, dropping message for UserID=%s", c.UserID)
	}
}

// ReadPump answers application pings and keeps the read deadline alive
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warnf("WS error: %v", err)
			}
			break
		}

		var in model.WSMessage
		if json.Unmarshal(data, &in) == nil && in.Type == "ping" {
			if pong, err := json.Marshal(model.WSMessage{Type: model.MessageTypePong}); err == nil {
				c.Hub.mu.RLock()
				c.enqueue(pong)
				c.Hub.mu.RUnlock()
			}
		}
	}
}

// WritePump handles outgoing messages to the client
func (c *Client) WritePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				// Hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Coalesce queued messages into the current frame
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS handles WebSocket upgrade requests
func (h *WSHub) ServeWS(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		util.SendError(c, util.ErrUnauthorized("User not authenticated"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnf("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		Hub:    h,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, wsSendBuffer),
	}

	h.register(client)

	go client.WritePump()
	go client.ReadPump()
}
