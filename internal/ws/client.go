package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nlagree/cryptochat/internal/auth"
	"github.com/nlagree/cryptochat/internal/metrics"
	"github.com/nlagree/cryptochat/internal/store"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// clientEvent is the inbound frame: join-conversation, leave-conversation or
// send-message, with an event-specific payload.
type clientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type conversationPayload struct {
	ConversationID int `json:"conversationId"`
}

type sendMessagePayload struct {
	ConversationID     int    `json:"conversationId"`
	ReceiverID         int    `json:"receiverId"`
	EncryptedContent   string `json:"encryptedContent"`
	EncryptedContentCU string `json:"encryptedContentCU"`
}

type serverEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Client is one authenticated connection. Its inbound events are processed in
// arrival order by readPump; other connections run concurrently.
type Client struct {
	id     uuid.UUID
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID int
	logger *zap.Logger
}

// ServeWs authenticates the handshake and admits the connection. The
// credential check happens exactly once, before the upgrade: a rejected
// caller never reaches the hub and can never join a room.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	userID, err := auth.ValidateToken(handshakeToken(r))
	if err != nil {
		metrics.HandshakesRejected.Inc()
		metrics.AuthFailures.WithLabelValues("token").Inc()
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		id:     uuid.New(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
		logger: hub.logger.With(zap.Int("user_id", userID)),
	}
	hub.register <- client

	go client.writePump()
	go client.readPump()
}

// handshakeToken extracts the credential from the handshake metadata: the
// token query parameter or a bearer Authorization header.
func handshakeToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected close", zap.Error(err))
			}
			return
		}

		var event clientEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			c.sendError("malformed event")
			continue
		}
		c.handleEvent(event)
	}
}

func (c *Client) handleEvent(event clientEvent) {
	switch event.Event {
	case "join-conversation":
		var payload conversationPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			c.sendError("malformed join-conversation payload")
			return
		}
		c.joinConversation(payload.ConversationID)

	case "leave-conversation":
		var payload conversationPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			c.sendError("malformed leave-conversation payload")
			return
		}
		c.hub.leave <- roomRequest{client: c, room: conversationRoom(payload.ConversationID)}

	case "send-message":
		var payload sendMessagePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			c.sendError("malformed send-message payload")
			return
		}
		c.sendMessage(payload)

	default:
		c.sendError("unknown event: " + event.Event)
	}
}

// joinConversation re-verifies participancy against the store before adding
// the connection to the room. Trusting the client-supplied id here would let
// any authenticated user observe another pair's broadcasts.
func (c *Client) joinConversation(conversationID int) {
	isParticipant, err := c.hub.store.IsParticipant(conversationID, c.userID)
	if err != nil {
		c.logger.Error("participancy check failed", zap.Error(err))
		c.sendError("failed to join conversation")
		return
	}
	if !isParticipant {
		c.sendError("not a participant of this conversation")
		return
	}
	c.hub.join <- roomRequest{client: c, room: conversationRoom(conversationID)}
}

// sendMessage persists first, broadcasts second. A disconnect after commit
// still broadcasts; a failure before commit produces no message and the
// error goes to this connection only.
func (c *Client) sendMessage(payload sendMessagePayload) {
	message, err := c.hub.store.CreateMessage(c.userID, payload.ReceiverID, payload.ConversationID,
		payload.EncryptedContent, payload.EncryptedContentCU)
	if err != nil {
		if errors.Is(err, store.ErrUnauthorizedAccess) {
			c.sendError("unauthorized conversation access")
		} else {
			c.logger.Error("failed to persist message", zap.Error(err))
			c.sendError("failed to send message")
		}
		return
	}
	metrics.MessagesPersisted.Inc()
	c.hub.Broadcast(message)
}

// sendError emits an error event to this connection only; internal failures
// are never broadcast to other room members.
func (c *Client) sendError(message string) {
	payload, err := json.Marshal(serverEvent{Event: "error", Data: errorPayload{Message: message}})
	if err != nil {
		return
	}
	c.hub.direct <- directMessage{client: c, payload: payload}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
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
