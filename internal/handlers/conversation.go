package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nlagree/cryptochat/internal/metrics"
	"github.com/nlagree/cryptochat/internal/middleware"
	"github.com/nlagree/cryptochat/internal/store"
	"go.uber.org/zap"
)

type ConversationHandler struct {
	Store    store.Store
	PageSize int
	Logger   *zap.Logger
}

type createConversationRequest struct {
	RecipientUsername string `json:"recipientUsername"`
}

// CreateConversation starts the single conversation between the caller and
// the named recipient. A second attempt for the same pair, from either side,
// gets a conflict pointing at the existing conversation.
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RecipientUsername == "" {
		writeError(w, http.StatusBadRequest, "recipient username is required")
		return
	}

	recipient, err := h.Store.GetUserByUsername(req.RecipientUsername)
	if err != nil {
		writeError(w, http.StatusNotFound, "recipient not found")
		return
	}

	conv, err := h.Store.CreateConversation(userID, recipient.ID)
	if err != nil {
		if errors.Is(err, store.ErrConversationExists) {
			writeError(w, http.StatusConflict, "conversation already exists")
			return
		}
		h.Logger.Error("conversation creation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	metrics.ConversationsCreated.Inc()

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"conversation": map[string]interface{}{
			"id":                 conv.ID,
			"recipientId":        recipient.ID,
			"recipientUsername":  recipient.Username,
			"recipientPublicKey": recipient.PublicKey,
		},
	})
}

// ListConversations returns the caller's conversations with a paginated
// message slice each. Page numbering starts at 1.
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = n
	}

	summaries, err := h.Store.ListConversations(userID, page, h.PageSize)
	if err != nil {
		h.Logger.Error("conversation listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": summaries})
}
