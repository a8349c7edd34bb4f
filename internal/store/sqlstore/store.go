package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"           // Postgres driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/nlagree/cryptochat/internal/models"
	"github.com/nlagree/cryptochat/internal/store"
)

type SQLStore struct {
	db         *sql.DB
	driverName string
}

func New(driverName, dataSourceName string) (*SQLStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if driverName == "sqlite3" {
		// sqlite serializes writers anyway; a single connection avoids
		// SQLITE_BUSY under concurrent transactions.
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLStore{db: db, driverName: driverName}
	if err := s.createTables(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) createTables() error {
	// Simplified for brevity, ideally use migrations
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		public_key TEXT NOT NULL DEFAULT '',
		private_key TEXT NOT NULL DEFAULT '',
		two_factor_secret TEXT NOT NULL DEFAULT '',
		two_factor_enabled BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_a INTEGER NOT NULL REFERENCES users(id),
		user_b INTEGER NOT NULL REFERENCES users(id),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_a, user_b)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id INTEGER NOT NULL REFERENCES conversations(id),
		sender_id INTEGER NOT NULL REFERENCES users(id),
		receiver_id INTEGER NOT NULL REFERENCES users(id),
		encrypted_content TEXT NOT NULL,
		encrypted_content_cu TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	if s.driverName == "postgres" {
		// Adjust for Postgres syntax
		query = strings.ReplaceAll(query, "INTEGER PRIMARY KEY AUTOINCREMENT", "SERIAL PRIMARY KEY")
		query = strings.ReplaceAll(query, "DATETIME", "TIMESTAMP")
	}

	_, err := s.db.Exec(query)
	return err
}

// Helper to handle placeholders
func (s *SQLStore) rebind(query string) string {
	if s.driverName == "postgres" {
		// Replace ? with $1, $2, etc.
		n := strings.Count(query, "?")
		for i := 1; i <= n; i++ {
			query = strings.Replace(query, "?", fmt.Sprintf("$%d", i), 1)
		}
	}
	return query
}

// isUniqueViolation matches the constraint error of both supported drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

func (s *SQLStore) CreateUser(user *models.User) error {
	query := s.rebind(`INSERT INTO users (username, email, password, public_key, private_key, two_factor_secret, two_factor_enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := s.db.QueryRow(query, user.Username, user.Email, user.Password, user.PublicKey,
		user.PrivateKey, user.TwoFactorSecret, user.TwoFactorEnabled).Scan(&user.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("user already exists: %w", err)
	}
	return err
}

const userColumns = "id, username, email, password, public_key, private_key, two_factor_secret, two_factor_enabled"

func (s *SQLStore) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password,
		&user.PublicKey, &user.PrivateKey, &user.TwoFactorSecret, &user.TwoFactorEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLStore) GetUserByUsername(username string) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE username = ?")
	return s.scanUser(s.db.QueryRow(query, username))
}

func (s *SQLStore) GetUserByID(id int) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE id = ?")
	return s.scanUser(s.db.QueryRow(query, id))
}

func (s *SQLStore) ListUsers(excludeID int) ([]models.User, error) {
	query := s.rebind("SELECT id, username, public_key FROM users WHERE id != ? ORDER BY username")
	rows, err := s.db.Query(query, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.PublicKey); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *SQLStore) SetTwoFactor(userID int, secret string, enabled bool) error {
	query := s.rebind("UPDATE users SET two_factor_secret = ?, two_factor_enabled = ? WHERE id = ?")
	result, err := s.db.Exec(query, secret, enabled, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// normalizePair orders an unordered user pair into its canonical form.
func normalizePair(userA, userB int) (int, int) {
	if userA > userB {
		return userB, userA
	}
	return userA, userB
}

// CreateConversation inserts the single conversation for an unordered user
// pair. The existence check and insert run in one transaction, and the
// UNIQUE(user_a, user_b) constraint on the normalized pair backstops the
// race where two concurrent calls both pass the check: the losing side
// surfaces store.ErrConversationExists, not a generic failure.
func (s *SQLStore) CreateConversation(userA, userB int) (*models.Conversation, error) {
	if userA == userB {
		return nil, fmt.Errorf("conversation requires two distinct users")
	}
	a, b := normalizePair(userA, userB)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var count int
	query := s.rebind("SELECT COUNT(1) FROM conversations WHERE user_a = ? AND user_b = ?")
	if err := tx.QueryRow(query, a, b).Scan(&count); err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, store.ErrConversationExists
	}

	now := time.Now().UTC()
	conv := &models.Conversation{ParticipantA: a, ParticipantB: b, CreatedAt: now, UpdatedAt: now}
	query = s.rebind("INSERT INTO conversations (user_a, user_b, created_at, updated_at) VALUES (?, ?, ?, ?) RETURNING id")
	if err := tx.QueryRow(query, a, b, now, now).Scan(&conv.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConversationExists
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConversationExists
		}
		return nil, err
	}
	return conv, nil
}

func (s *SQLStore) GetConversation(id int) (*models.Conversation, error) {
	var conv models.Conversation
	query := s.rebind("SELECT id, user_a, user_b, created_at, updated_at FROM conversations WHERE id = ?")
	err := s.db.QueryRow(query, id).Scan(&conv.ID, &conv.ParticipantA, &conv.ParticipantB, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *SQLStore) IsParticipant(conversationID, userID int) (bool, error) {
	var exists bool
	query := s.rebind("SELECT EXISTS(SELECT 1 FROM conversations WHERE id = ? AND (user_a = ? OR user_b = ?))")
	err := s.db.QueryRow(query, conversationID, userID, userID).Scan(&exists)
	return exists, err
}

// ListConversations returns every conversation of userID, annotated with the
// other participant's public identity and the page-th slice of its history.
// The slice is fetched newest-first then re-ordered chronologically.
func (s *SQLStore) ListConversations(userID, page, pageSize int) ([]models.ConversationSummary, error) {
	if page < 1 {
		page = 1
	}

	query := s.rebind(`
		SELECT c.id, u.id, u.username, u.public_key
		FROM conversations c
		JOIN users u ON u.id = CASE WHEN c.user_a = ? THEN c.user_b ELSE c.user_a END
		WHERE c.user_a = ? OR c.user_b = ?
		ORDER BY c.updated_at DESC
	`)
	rows, err := s.db.Query(query, userID, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.ConversationSummary
	for rows.Next() {
		var sum models.ConversationSummary
		if err := rows.Scan(&sum.ID, &sum.RecipientID, &sum.RecipientUsername, &sum.RecipientPublicKey); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range summaries {
		total, err := s.CountMessages(summaries[i].ID)
		if err != nil {
			return nil, err
		}
		messages, err := s.messagePage(summaries[i].ID, page, pageSize)
		if err != nil {
			return nil, err
		}
		summaries[i].TotalMessages = total
		summaries[i].Messages = messages
		summaries[i].HasMore = total > page*pageSize
	}
	return summaries, nil
}

const messageColumns = "id, sender_id, receiver_id, conversation_id, encrypted_content, encrypted_content_cu, created_at"

// messagePage selects the page-th newest slice and hands it back in
// chronological order.
func (s *SQLStore) messagePage(conversationID, page, pageSize int) ([]models.Message, error) {
	query := s.rebind(`
		SELECT ` + messageColumns + ` FROM (
			SELECT ` + messageColumns + `
			FROM messages WHERE conversation_id = ?
			ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?
		) page
		ORDER BY created_at ASC, id ASC
	`)
	rows, err := s.db.Query(query, conversationID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.ConversationID,
			&m.EncryptedContent, &m.EncryptedContentCU, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// CreateMessage persists a message after verifying that the conversation's
// participant set is exactly {sender, receiver}. Both ciphertexts are stored
// unmodified; the store never attempts to decrypt.
func (s *SQLStore) CreateMessage(senderID, receiverID, conversationID int, encryptedContent, encryptedContentCU string) (*models.Message, error) {
	if encryptedContent == "" || encryptedContentCU == "" {
		return nil, fmt.Errorf("both ciphertexts are required")
	}

	conv, err := s.GetConversation(conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrUnauthorizedAccess
		}
		return nil, err
	}
	a, b := normalizePair(senderID, receiverID)
	if a != conv.ParticipantA || b != conv.ParticipantB {
		return nil, store.ErrUnauthorizedAccess
	}

	msg := &models.Message{
		SenderID:           senderID,
		ReceiverID:         receiverID,
		ConversationID:     conversationID,
		EncryptedContent:   encryptedContent,
		EncryptedContentCU: encryptedContentCU,
		CreatedAt:          time.Now().UTC(),
	}
	query := s.rebind(`INSERT INTO messages (conversation_id, sender_id, receiver_id, encrypted_content, encrypted_content_cu, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	if err := s.db.QueryRow(query, conversationID, senderID, receiverID,
		encryptedContent, encryptedContentCU, msg.CreatedAt).Scan(&msg.ID); err != nil {
		return nil, err
	}

	query = s.rebind("UPDATE conversations SET updated_at = ? WHERE id = ?")
	if _, err := s.db.Exec(query, msg.CreatedAt, conversationID); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns the full history of a conversation in chronological
// order, but only to one of its participants.
func (s *SQLStore) ListMessages(conversationID, callerID int) ([]models.Message, error) {
	isParticipant, err := s.IsParticipant(conversationID, callerID)
	if err != nil {
		return nil, err
	}
	if !isParticipant {
		return nil, store.ErrUnauthorizedAccess
	}

	query := s.rebind("SELECT " + messageColumns + " FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC")
	rows, err := s.db.Query(query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *SQLStore) CountMessages(conversationID int) (int, error) {
	var count int
	query := s.rebind("SELECT COUNT(1) FROM messages WHERE conversation_id = ?")
	err := s.db.QueryRow(query, conversationID).Scan(&count)
	return count, err
}
