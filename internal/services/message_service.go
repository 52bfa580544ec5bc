package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"flightbooking/internal/models"
	"flightbooking/internal/store"
	"flightbooking/internal/websocket"

	"github.com/google/uuid"
)

type MessageStore interface {
	Create(ctx context.Context, message models.Message) (time.Time, error)
	Conversation(ctx context.Context, userID, otherUserID string) ([]store.ConversationMessage, error)
	MarkRead(ctx context.Context, receiverID, senderID string) (int64, error)
	Conversations(ctx context.Context, userID string) ([]store.ConversationSummary, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type MessageService struct {
	messages MessageStore
	users    UserStore
	flights  FlightStore
	effects  SideEffects
}

func NewMessageService(messages MessageStore, users UserStore, flights FlightStore, effects SideEffects) *MessageService {
	return &MessageService{messages: messages, users: users, flights: flights, effects: effects}
}

type SendMessageInput struct {
	SenderID    string
	SenderType  string
	ReceiverID  string
	FlightID    *string
	Message     string
	MessageType string
}

// Send delivers a message between a company and a passenger and pushes it
// to the receiver's open connections.
func (s *MessageService) Send(ctx context.Context, in SendMessageInput) (models.Message, error) {
	if in.ReceiverID == in.SenderID {
		return models.Message{}, ErrSelfMessage
	}
	receiver, err := s.users.GetByID(ctx, in.ReceiverID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Message{}, ErrReceiverNotFound
		}
		return models.Message{}, err
	}
	if receiver.UserType == in.SenderType {
		return models.Message{}, ErrMessagePair
	}
	if in.FlightID != nil {
		if _, err := s.flights.GetByID(ctx, *in.FlightID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.Message{}, ErrFlightNotFound
			}
			return models.Message{}, err
		}
	}
	messageType := in.MessageType
	if messageType == "" {
		messageType = models.MessageTypeGeneral
	}
	msg := models.Message{
		ID:          uuid.NewString(),
		SenderID:    in.SenderID,
		ReceiverID:  in.ReceiverID,
		FlightID:    in.FlightID,
		Message:     strings.TrimSpace(in.Message),
		MessageType: messageType,
	}
	sentAt, err := s.messages.Create(ctx, msg)
	if err != nil {
		return models.Message{}, err
	}
	msg.SentAt = sentAt

	senderName := ""
	if sender, err := s.users.GetByID(ctx, in.SenderID); err == nil {
		senderName = sender.Name
	}
	s.effects.notify(in.ReceiverID, websocket.EventMessage, websocket.MessageNotice{
		MessageID:   msg.ID,
		SenderID:    msg.SenderID,
		SenderName:  senderName,
		Message:     msg.Message,
		MessageType: msg.MessageType,
	})
	return msg, nil
}

// Conversation returns the thread oldest first and marks the caller's
// received messages as read.
func (s *MessageService) Conversation(ctx context.Context, userID, otherUserID string) ([]store.ConversationMessage, error) {
	if _, err := s.users.GetByID(ctx, otherUserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	thread, err := s.messages.Conversation(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.messages.MarkRead(ctx, userID, otherUserID); err != nil {
		return nil, err
	}
	return thread, nil
}

type ConversationList struct {
	Conversations []store.ConversationSummary
	TotalUnread   int
}

func (s *MessageService) Conversations(ctx context.Context, userID string) (ConversationList, error) {
	conversations, err := s.messages.Conversations(ctx, userID)
	if err != nil {
		return ConversationList{}, err
	}
	unread, err := s.messages.UnreadCount(ctx, userID)
	if err != nil {
		return ConversationList{}, err
	}
	return ConversationList{Conversations: conversations, TotalUnread: unread}, nil
}
