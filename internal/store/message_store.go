package store

import (
	"context"
	"time"

	"flightbooking/internal/models"
)

type MessageStore struct {
	db DB
}

type ConversationMessage struct {
	models.Message
	SenderName   string  `db:"sender_name"`
	SenderType   string  `db:"sender_type"`
	ReceiverName string  `db:"receiver_name"`
	ReceiverType string  `db:"receiver_type"`
	FlightCode   *string `db:"flight_code"`
	FlightName   *string `db:"flight_name"`
}

type ConversationSummary struct {
	OtherUserID     string    `db:"other_user_id"`
	OtherUserName   string    `db:"other_user_name"`
	OtherUserType   string    `db:"other_user_type"`
	OtherUserEmail  string    `db:"other_user_email"`
	OtherUserImage  *string   `db:"other_user_image"`
	LastMessage     string    `db:"last_message"`
	LastMessageTime time.Time `db:"last_message_time"`
	UnreadCount     int       `db:"unread_count"`
}

func NewMessageStore(db DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Create(ctx context.Context, message models.Message) (time.Time, error) {
	var sentAt time.Time
	err := s.db.GetContext(ctx, &sentAt, `
		INSERT INTO messages (id, sender_id, receiver_id, flight_id, message, message_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING sent_at
	`, message.ID, message.SenderID, message.ReceiverID, message.FlightID, message.Message, message.MessageType)
	return sentAt, err
}

func (s *MessageStore) Conversation(ctx context.Context, userID, otherUserID string) ([]ConversationMessage, error) {
	var rows []ConversationMessage
	err := s.db.SelectContext(ctx, &rows, `
		SELECT m.id, m.sender_id, m.receiver_id, m.flight_id, m.message, m.message_type, m.is_read, m.sent_at,
		       sender.name AS sender_name, sender.user_type AS sender_type,
		       receiver.name AS receiver_name, receiver.user_type AS receiver_type,
		       f.flight_code, f.flight_name
		FROM messages m
		JOIN users sender ON sender.id = m.sender_id
		JOIN users receiver ON receiver.id = m.receiver_id
		LEFT JOIN flights f ON f.id = m.flight_id
		WHERE (m.sender_id = $1 AND m.receiver_id = $2)
		   OR (m.sender_id = $2 AND m.receiver_id = $1)
		ORDER BY m.sent_at ASC
	`, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *MessageStore) MarkRead(ctx context.Context, receiverID, senderID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET is_read = TRUE
		WHERE receiver_id = $1 AND sender_id = $2 AND is_read = FALSE
	`, receiverID, senderID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MessageStore) Conversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	var rows []ConversationSummary
	err := s.db.SelectContext(ctx, &rows, `
		WITH thread AS (
			SELECT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS other_id,
			       receiver_id, message, is_read, sent_at
			FROM messages
			WHERE sender_id = $1 OR receiver_id = $1
		)
		SELECT t.other_id AS other_user_id,
		       u.name AS other_user_name,
		       u.user_type AS other_user_type,
		       u.email AS other_user_email,
		       COALESCE(c.logo_path, p.photo_path) AS other_user_image,
		       (ARRAY_AGG(t.message ORDER BY t.sent_at DESC))[1] AS last_message,
		       MAX(t.sent_at) AS last_message_time,
		       COUNT(*) FILTER (WHERE t.receiver_id = $1 AND NOT t.is_read) AS unread_count
		FROM thread t
		JOIN users u ON u.id = t.other_id
		LEFT JOIN companies c ON c.user_id = u.id
		LEFT JOIN passengers p ON p.user_id = u.id
		GROUP BY t.other_id, u.name, u.user_type, u.email, c.logo_path, p.photo_path
		ORDER BY last_message_time DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *MessageStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND is_read = FALSE
	`, userID)
	return count, err
}
