package handlers

import (
	"net/http"

	"flightbooking/internal/services"
	"flightbooking/internal/validator"

	"github.com/google/uuid"
)

type sendMessageRequest struct {
	ReceiverID  string  `json:"receiver_id" validate:"required,uuid"`
	FlightID    *string `json:"flight_id" validate:"omitempty,uuid"`
	Message     string  `json:"message" validate:"required,min=1,max=2000"`
	MessageType string  `json:"message_type" validate:"omitempty,oneof=flight_inquiry booking general"`
}

func (req *sendMessageRequest) normalize() {
	trimPtr(&req.ReceiverID)
	trimPtr(req.FlightID)
	if req.FlightID != nil && *req.FlightID == "" {
		req.FlightID = nil
	}
	trimPtr(&req.Message)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !h.decode(w, r, &req) {
		return
	}
	message, err := h.messages.Send(r.Context(), services.SendMessageInput{
		SenderID:    user.ID,
		SenderType:  user.Type,
		ReceiverID:  req.ReceiverID,
		FlightID:    req.FlightID,
		Message:     req.Message,
		MessageType: req.MessageType,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, "Message sent successfully", newMessageView(message))
}

// ListMessages returns one conversation when with_user_id is set and the
// conversation list otherwise.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	if otherID := trimmed(r.URL.Query().Get("with_user_id")); otherID != "" {
		if uuid.Validate(otherID) != nil {
			respondValidation(w, validator.FieldErrors{"with_user_id": {"with user id must be a valid UUID"}})
			return
		}
		messages, err := h.messages.Conversation(r.Context(), user.ID, otherID)
		if err != nil {
			h.respondServiceError(w, r, err)
			return
		}
		respondSuccess(w, http.StatusOK, "Conversation retrieved", newConversationViews(messages))
		return
	}
	list, err := h.messages.Conversations(r.Context(), user.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Conversations retrieved", map[string]any{
		"conversations": newConversationSummaryViews(list.Conversations),
		"total_unread":  list.TotalUnread,
	})
}
