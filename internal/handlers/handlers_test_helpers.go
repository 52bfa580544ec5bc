package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"flightbooking/internal/auth"
	"flightbooking/internal/config"
	"flightbooking/internal/models"
	"flightbooking/internal/services"
	"flightbooking/internal/store"
	"flightbooking/internal/websocket"

	"go.uber.org/zap"
)

type stubAccountService struct {
	registerFn      func(ctx context.Context, in services.RegisterInput) (models.Profile, error)
	loginFn         func(ctx context.Context, email, password string) (models.Profile, error)
	logoutFn        func(ctx context.Context, userID string) error
	profileFn       func(ctx context.Context, userID string) (models.Profile, error)
	updateProfileFn func(ctx context.Context, in services.UpdateProfileInput) (models.Profile, error)
	transactionsFn  func(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error)
}

func (s stubAccountService) Register(ctx context.Context, in services.RegisterInput) (models.Profile, error) {
	if s.registerFn == nil {
		return models.Profile{}, nil
	}
	return s.registerFn(ctx, in)
}

func (s stubAccountService) Login(ctx context.Context, email, password string) (models.Profile, error) {
	if s.loginFn == nil {
		return models.Profile{}, services.ErrInvalidCredentials
	}
	return s.loginFn(ctx, email, password)
}

func (s stubAccountService) Logout(ctx context.Context, userID string) error {
	if s.logoutFn == nil {
		return nil
	}
	return s.logoutFn(ctx, userID)
}

func (s stubAccountService) Profile(ctx context.Context, userID string) (models.Profile, error) {
	if s.profileFn == nil {
		return models.Profile{User: models.User{ID: userID}}, nil
	}
	return s.profileFn(ctx, userID)
}

func (s stubAccountService) UpdateProfile(ctx context.Context, in services.UpdateProfileInput) (models.Profile, error) {
	if s.updateProfileFn == nil {
		return models.Profile{User: models.User{ID: in.UserID, UserType: in.UserType}}, nil
	}
	return s.updateProfileFn(ctx, in)
}

func (s stubAccountService) Transactions(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	if s.transactionsFn == nil {
		return nil, nil
	}
	return s.transactionsFn(ctx, userID, limit, offset)
}

type stubFlightService struct {
	addFlightFn         func(ctx context.Context, in services.FlightInput) (services.FlightWithStops, error)
	updateFlightFn      func(ctx context.Context, in services.UpdateFlightInput) (services.FlightWithStops, error)
	completeFlightFn    func(ctx context.Context, companyID, flightID string) (models.Flight, error)
	listCompanyFn       func(ctx context.Context, companyID string) ([]services.CompanyFlight, error)
	detailsFn           func(ctx context.Context, companyID, flightID string) (services.FlightDetails, error)
	searchFn            func(ctx context.Context, passengerID string, q store.SearchQuery) ([]services.SearchResult, error)
	flightInfoFn        func(ctx context.Context, passengerID, flightID string) (services.FlightInfo, error)
	passengerBookingsFn func(ctx context.Context, passengerID string) ([]services.PassengerTrip, error)
}

func (s stubFlightService) AddFlight(ctx context.Context, in services.FlightInput) (services.FlightWithStops, error) {
	if s.addFlightFn == nil {
		return services.FlightWithStops{}, nil
	}
	return s.addFlightFn(ctx, in)
}

func (s stubFlightService) UpdateFlight(ctx context.Context, in services.UpdateFlightInput) (services.FlightWithStops, error) {
	if s.updateFlightFn == nil {
		return services.FlightWithStops{}, nil
	}
	return s.updateFlightFn(ctx, in)
}

func (s stubFlightService) CompleteFlight(ctx context.Context, companyID, flightID string) (models.Flight, error) {
	if s.completeFlightFn == nil {
		return models.Flight{ID: flightID, Status: models.FlightStatusCompleted}, nil
	}
	return s.completeFlightFn(ctx, companyID, flightID)
}

func (s stubFlightService) ListCompanyFlights(ctx context.Context, companyID string) ([]services.CompanyFlight, error) {
	if s.listCompanyFn == nil {
		return nil, nil
	}
	return s.listCompanyFn(ctx, companyID)
}

func (s stubFlightService) FlightDetails(ctx context.Context, companyID, flightID string) (services.FlightDetails, error) {
	if s.detailsFn == nil {
		return services.FlightDetails{}, nil
	}
	return s.detailsFn(ctx, companyID, flightID)
}

func (s stubFlightService) SearchFlights(ctx context.Context, passengerID string, q store.SearchQuery) ([]services.SearchResult, error) {
	if s.searchFn == nil {
		return nil, nil
	}
	return s.searchFn(ctx, passengerID, q)
}

func (s stubFlightService) FlightInfo(ctx context.Context, passengerID, flightID string) (services.FlightInfo, error) {
	if s.flightInfoFn == nil {
		return services.FlightInfo{}, nil
	}
	return s.flightInfoFn(ctx, passengerID, flightID)
}

func (s stubFlightService) PassengerBookings(ctx context.Context, passengerID string) ([]services.PassengerTrip, error) {
	if s.passengerBookingsFn == nil {
		return nil, nil
	}
	return s.passengerBookingsFn(ctx, passengerID)
}

type stubBookingService struct {
	bookFn          func(ctx context.Context, req services.BookRequest) (services.BookingResult, error)
	cancelBookingFn func(ctx context.Context, req services.CancelBookingRequest) (services.CancelBookingResult, error)
	cancelFlightFn  func(ctx context.Context, companyID, flightID string) (services.CancelFlightResult, error)
}

func (s stubBookingService) Book(ctx context.Context, req services.BookRequest) (services.BookingResult, error) {
	if s.bookFn == nil {
		return services.BookingResult{}, nil
	}
	return s.bookFn(ctx, req)
}

func (s stubBookingService) CancelBooking(ctx context.Context, req services.CancelBookingRequest) (services.CancelBookingResult, error) {
	if s.cancelBookingFn == nil {
		return services.CancelBookingResult{}, nil
	}
	return s.cancelBookingFn(ctx, req)
}

func (s stubBookingService) CancelFlight(ctx context.Context, companyID, flightID string) (services.CancelFlightResult, error) {
	if s.cancelFlightFn == nil {
		return services.CancelFlightResult{FlightID: flightID}, nil
	}
	return s.cancelFlightFn(ctx, companyID, flightID)
}

type stubMessageService struct {
	sendFn          func(ctx context.Context, in services.SendMessageInput) (models.Message, error)
	conversationFn  func(ctx context.Context, userID, otherUserID string) ([]store.ConversationMessage, error)
	conversationsFn func(ctx context.Context, userID string) (services.ConversationList, error)
}

func (s stubMessageService) Send(ctx context.Context, in services.SendMessageInput) (models.Message, error) {
	if s.sendFn == nil {
		return models.Message{}, nil
	}
	return s.sendFn(ctx, in)
}

func (s stubMessageService) Conversation(ctx context.Context, userID, otherUserID string) ([]store.ConversationMessage, error) {
	if s.conversationFn == nil {
		return nil, nil
	}
	return s.conversationFn(ctx, userID, otherUserID)
}

func (s stubMessageService) Conversations(ctx context.Context, userID string) (services.ConversationList, error) {
	if s.conversationsFn == nil {
		return services.ConversationList{}, nil
	}
	return s.conversationsFn(ctx, userID)
}

type testServices struct {
	accounts stubAccountService
	flights  stubFlightService
	bookings stubBookingService
	messages stubMessageService
}

const (
	testFlightID  = "7b0e2a4c-5d61-4f3a-9e8b-1c2d3e4f5a60"
	testBookingID = "0c9d8e7f-6a5b-4c3d-8e2f-1a0b9c8d7e6f"
	testCompanyID = "5a4b3c2d-1e0f-4a9b-8c7d-6e5f4a3b2c1d"
)

func newTestHandler(svc testServices) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	return New(cfg, zap.NewNop(), svc.accounts, svc.flights, svc.bookings, svc.messages, websocket.NewHub())
}

// serve sends a request through the full router. An empty userID sends it
// unauthenticated.
func serve(t *testing.T, h *Handler, method, path, body, userID, userType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := auth.GenerateToken("secret", userID, userType, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid response body %q: %v", rr.Body.String(), err)
	}
	return env
}

func stringPtr(value string) *string {
	return &value
}
