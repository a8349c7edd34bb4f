package models

import "time"

type User struct {
	ID               int    `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	Password         string `json:"-"`
	PublicKey        string `json:"publicKey"`
	PrivateKey       string `json:"-"`
	TwoFactorSecret  string `json:"-"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
}

// Conversation links exactly two users. ParticipantA always holds the smaller
// user id so the unordered pair has a single canonical row.
type Conversation struct {
	ID           int       `json:"id"`
	ParticipantA int       `json:"participantA"`
	ParticipantB int       `json:"participantB"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID int) int {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// Has reports whether userID belongs to the conversation's participant set.
func (c *Conversation) Has(userID int) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// Message carries two ciphertexts: EncryptedContent is readable only by the
// receiver (asymmetric), EncryptedContentCU only by the sender (symmetric
// self-copy). The server stores both and decrypts neither.
type Message struct {
	ID                 int       `json:"id"`
	SenderID           int       `json:"senderId"`
	ReceiverID         int       `json:"receiverId"`
	ConversationID     int       `json:"conversationId"`
	EncryptedContent   string    `json:"encryptedContent"`
	EncryptedContentCU string    `json:"encryptedContentCU"`
	CreatedAt          time.Time `json:"createdAt"`
}

// ConversationSummary is the per-conversation view returned by the listing
// endpoint: the other participant's public identity plus a chronological page
// of messages.
type ConversationSummary struct {
	ID                 int       `json:"id"`
	RecipientID        int       `json:"recipientId"`
	RecipientUsername  string    `json:"recipientUsername"`
	RecipientPublicKey string    `json:"recipientPublicKey"`
	Messages           []Message `json:"messages"`
	TotalMessages      int       `json:"totalMessages"`
	HasMore            bool      `json:"hasMore"`
}
