package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"flightbooking/internal/db"
	"flightbooking/internal/itinerary"
	"flightbooking/internal/middleware"
	"flightbooking/internal/services"
	"flightbooking/internal/validator"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondSuccess(w http.ResponseWriter, status int, message string, data any) {
	respondJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{Success: false, Message: message})
}

func respondValidation(w http.ResponseWriter, fields validator.FieldErrors) {
	respondJSON(w, http.StatusBadRequest, envelope{
		Message: "Validation failed",
		Data:    map[string]any{"errors": fields},
	})
}

var errorStatuses = []struct {
	err    error
	status int
}{
	{services.ErrUserNotFound, http.StatusNotFound},
	{services.ErrFlightNotFound, http.StatusNotFound},
	{services.ErrBookingNotFound, http.StatusNotFound},
	{services.ErrReceiverNotFound, http.StatusNotFound},
	{services.ErrInvalidCredentials, http.StatusUnauthorized},
	{services.ErrNotFlightOwner, http.StatusForbidden},
	{services.ErrNotBookingOwner, http.StatusForbidden},
	{services.ErrAccountInactive, http.StatusForbidden},
	{services.ErrTopUpNotAllowed, http.StatusForbidden},
	{services.ErrAlreadyBooked, http.StatusConflict},
	{services.ErrAlreadyCancelled, http.StatusConflict},
	{services.ErrAlreadyCompleted, http.StatusConflict},
	{services.ErrBookingCancelled, http.StatusConflict},
	{services.ErrInvalidAmount, http.StatusBadRequest},
	{services.ErrInsufficientFunds, http.StatusBadRequest},
	{services.ErrFlightNotAvailable, http.StatusBadRequest},
	{services.ErrNoSeatsAvailable, http.StatusBadRequest},
	{services.ErrFlightNotEditable, http.StatusBadRequest},
	{services.ErrCapacityBelowBooked, http.StatusBadRequest},
	{services.ErrSameCity, http.StatusBadRequest},
	{services.ErrSelfMessage, http.StatusBadRequest},
	{services.ErrMessagePair, http.StatusBadRequest},
}

// respondServiceError maps a service error to a status. Anything unknown is
// logged and reported as a generic 500.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		respondValidation(w, validationErr.Fields)
		return
	}
	var itineraryErr *itinerary.Error
	if errors.As(err, &itineraryErr) {
		var data any
		if itineraryErr.Index >= 0 {
			data = map[string]any{"stop_index": itineraryErr.Index}
		}
		respondJSON(w, http.StatusBadRequest, envelope{Message: itineraryErr.Reason, Data: data})
		return
	}
	for _, entry := range errorStatuses {
		if errors.Is(err, entry.err) {
			respondError(w, entry.status, sentence(entry.err.Error()))
			return
		}
	}
	if db.IsUniqueViolation(err) {
		respondError(w, http.StatusConflict, "Resource already exists")
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())
	h.log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("user_id", userID),
		zap.Error(err),
	)
	respondError(w, http.StatusInternalServerError, "Internal server error")
}

// normalizer is implemented by requests whose text fields are trimmed before
// their length rules are checked.
type normalizer interface {
	normalize()
}

// decode reads a JSON body into dst and validates its tags. It writes the
// error response itself and reports whether the caller may continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return false
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	if fields := h.validate.Struct(dst); fields != nil {
		respondValidation(w, fields)
		return false
	}
	return true
}

// pathID returns the {id} route parameter. Anything that is not a UUID cannot
// name a row, so it is answered with notFound before reaching the store.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, notFound error) (string, bool) {
	id := chi.URLParam(r, "id")
	if uuid.Validate(id) != nil {
		h.respondServiceError(w, r, notFound)
		return "", false
	}
	return id, true
}

type currentUser struct {
	ID   string
	Type string
}

func userFromRequest(w http.ResponseWriter, r *http.Request) (currentUser, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return currentUser{}, false
	}
	userType, _ := middleware.UserTypeFromContext(r.Context())
	return currentUser{ID: userID, Type: userType}, true
}

func sentence(message string) string {
	if message == "" {
		return message
	}
	first, size := utf8.DecodeRuneInString(message)
	return string(unicode.ToUpper(first)) + message[size:]
}

func trimmed(value string) string {
	return strings.TrimSpace(value)
}

func trimPtr(value *string) {
	if value != nil {
		*value = strings.TrimSpace(*value)
	}
}
