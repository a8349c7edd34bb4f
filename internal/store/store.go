package store

import (
	"errors"

	"github.com/nlagree/cryptochat/internal/models"
)

var (
	// ErrConversationExists signals that the unordered participant pair
	// already has a conversation. Callers should look it up instead of
	// retrying creation.
	ErrConversationExists = errors.New("conversation already exists")

	// ErrUnauthorizedAccess is returned when a caller touches a conversation
	// whose participant set does not include them.
	ErrUnauthorizedAccess = errors.New("unauthorized conversation access")

	// ErrNotFound is returned for missing users, conversations or messages.
	ErrNotFound = errors.New("not found")
)

type Store interface {
	// User operations
	CreateUser(user *models.User) error
	GetUserByUsername(username string) (*models.User, error)
	GetUserByID(id int) (*models.User, error)
	ListUsers(excludeID int) ([]models.User, error)
	SetTwoFactor(userID int, secret string, enabled bool) error

	// Conversation operations
	CreateConversation(userA, userB int) (*models.Conversation, error)
	GetConversation(id int) (*models.Conversation, error)
	ListConversations(userID, page, pageSize int) ([]models.ConversationSummary, error)
	IsParticipant(conversationID, userID int) (bool, error)

	// Message operations
	CreateMessage(senderID, receiverID, conversationID int, encryptedContent, encryptedContentCU string) (*models.Message, error)
	ListMessages(conversationID, callerID int) ([]models.Message, error)
	CountMessages(conversationID int) (int, error)
}
