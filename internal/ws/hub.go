package ws

import (
	"encoding/json"
	"fmt"

	"github.com/nlagree/cryptochat/internal/metrics"
	"github.com/nlagree/cryptochat/internal/models"
	"github.com/nlagree/cryptochat/internal/store"
	"go.uber.org/zap"
)

func conversationRoom(conversationID int) string {
	return fmt.Sprintf("conversation-%d", conversationID)
}

func userRoom(userID int) string {
	return fmt.Sprintf("user-%d", userID)
}

type roomRequest struct {
	client *Client
	room   string
}

// directMessage targets a single connection, never a room.
type directMessage struct {
	client  *Client
	payload []byte
}

// Hub owns all live connections and their room memberships. Rooms are a
// reverse index from room id to the clients joined to it; all mutation goes
// through the Run loop so no locks are needed.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Room id -> members.
	rooms map[string]map[*Client]bool

	// Persisted messages to fan out.
	broadcast chan *models.Message

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	join   chan roomRequest
	leave  chan roomRequest
	direct chan directMessage

	store  store.Store
	logger *zap.Logger
}

func NewHub(store store.Store, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan *models.Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan roomRequest),
		leave:      make(chan roomRequest),
		direct:     make(chan directMessage),
		store:      store,
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			// Every connection implicitly joins its user room so the owner
			// receives notifications without joining a conversation first.
			h.addToRoom(client, userRoom(client.userID))
			metrics.ConnectionsActive.Inc()
			h.logger.Info("client connected",
				zap.String("connection_id", client.id.String()),
				zap.Int("user_id", client.userID))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.removeClient(client)
			}

		case req := <-h.join:
			if _, ok := h.clients[req.client]; ok {
				h.addToRoom(req.client, req.room)
			}

		case req := <-h.leave:
			h.removeFromRoom(req.client, req.room)

		case dm := <-h.direct:
			if _, ok := h.clients[dm.client]; !ok {
				continue
			}
			select {
			case dm.client.send <- dm.payload:
			default:
				metrics.BroadcastsDropped.Inc()
				h.removeClient(dm.client)
			}

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// Broadcast fans a freshly persisted message out to the conversation room and
// the receiver's user room. Callers must only invoke this after the store
// write committed: a client must never see a message over the live channel
// that is not yet retrievable from the store.
func (h *Hub) Broadcast(message *models.Message) {
	h.broadcast <- message
}

func (h *Hub) addToRoom(client *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[client] = true
}

// removeFromRoom is idempotent: leaving a room the client never joined is a
// no-op.
func (h *Hub) removeFromRoom(client *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) removeClient(client *Client) {
	delete(h.clients, client)
	for room, members := range h.rooms {
		if members[client] {
			h.removeFromRoom(client, room)
		}
	}
	close(client.send)
	metrics.ConnectionsActive.Dec()
	h.logger.Info("client disconnected",
		zap.String("connection_id", client.id.String()),
		zap.Int("user_id", client.userID))
}

func (h *Hub) fanOut(message *models.Message) {
	payload, err := json.Marshal(serverEvent{Event: "new-message", Data: message})
	if err != nil {
		h.logger.Error("failed to encode broadcast", zap.Error(err))
		return
	}

	// A recipient viewing the conversation sits in both rooms; deliver once.
	targets := make(map[*Client]string)
	for client := range h.rooms[conversationRoom(message.ConversationID)] {
		targets[client] = "conversation"
	}
	for client := range h.rooms[userRoom(message.ReceiverID)] {
		if _, ok := targets[client]; !ok {
			targets[client] = "user"
		}
	}

	for client, kind := range targets {
		select {
		case client.send <- payload:
			metrics.BroadcastsDelivered.WithLabelValues(kind).Inc()
		default:
			// Slow or dead socket: drop it. The client recovers missed
			// messages by re-fetching history on reconnect.
			metrics.BroadcastsDropped.Inc()
			h.removeClient(client)
		}
	}
}
