package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/nlagree/cryptochat/internal/metrics"
	"github.com/nlagree/cryptochat/internal/middleware"
	"github.com/nlagree/cryptochat/internal/store"
	"github.com/nlagree/cryptochat/internal/ws"
	"go.uber.org/zap"
)

type MessageHandler struct {
	Store  store.Store
	Hub    *ws.Hub
	Logger *zap.Logger
}

type createMessageRequest struct {
	ConversationID     int    `json:"conversationId"`
	ReceiverID         int    `json:"receiverId"`
	EncryptedContent   string `json:"encryptedContent"`
	EncryptedContentCU string `json:"encryptedContentCU"`
}

// CreateMessage persists both ciphertexts and then broadcasts the stored
// record. The broadcast never precedes the commit.
func (h *MessageHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConversationID == 0 || req.ReceiverID == 0 || req.EncryptedContent == "" || req.EncryptedContentCU == "" {
		writeError(w, http.StatusBadRequest, "conversationId, receiverId and both ciphertexts are required")
		return
	}

	message, err := h.Store.CreateMessage(userID, req.ReceiverID, req.ConversationID,
		req.EncryptedContent, req.EncryptedContentCU)
	if err != nil {
		if errors.Is(err, store.ErrUnauthorizedAccess) {
			writeError(w, http.StatusForbidden, "unauthorized conversation access")
			return
		}
		h.Logger.Error("message creation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}
	metrics.MessagesPersisted.Inc()
	h.Hub.Broadcast(message)

	writeJSON(w, http.StatusCreated, map[string]interface{}{"data": message})
}

// ListMessages returns the conversation history, oldest first, to
// participants only.
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	conversationID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	messages, err := h.Store.ListMessages(conversationID, userID)
	if err != nil {
		if errors.Is(err, store.ErrUnauthorizedAccess) {
			writeError(w, http.StatusForbidden, "unauthorized conversation access")
			return
		}
		h.Logger.Error("message listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}
