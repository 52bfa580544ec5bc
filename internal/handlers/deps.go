package handlers

import (
	"context"

	"flightbooking/internal/models"
	"flightbooking/internal/services"
	"flightbooking/internal/store"
)

type AccountService interface {
	Register(ctx context.Context, in services.RegisterInput) (models.Profile, error)
	Login(ctx context.Context, email, password string) (models.Profile, error)
	Logout(ctx context.Context, userID string) error
	Profile(ctx context.Context, userID string) (models.Profile, error)
	UpdateProfile(ctx context.Context, in services.UpdateProfileInput) (models.Profile, error)
	Transactions(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error)
}

type FlightService interface {
	AddFlight(ctx context.Context, in services.FlightInput) (services.FlightWithStops, error)
	UpdateFlight(ctx context.Context, in services.UpdateFlightInput) (services.FlightWithStops, error)
	CompleteFlight(ctx context.Context, companyID, flightID string) (models.Flight, error)
	ListCompanyFlights(ctx context.Context, companyID string) ([]services.CompanyFlight, error)
	FlightDetails(ctx context.Context, companyID, flightID string) (services.FlightDetails, error)
	SearchFlights(ctx context.Context, passengerID string, q store.SearchQuery) ([]services.SearchResult, error)
	FlightInfo(ctx context.Context, passengerID, flightID string) (services.FlightInfo, error)
	PassengerBookings(ctx context.Context, passengerID string) ([]services.PassengerTrip, error)
}

type BookingService interface {
	Book(ctx context.Context, req services.BookRequest) (services.BookingResult, error)
	CancelBooking(ctx context.Context, req services.CancelBookingRequest) (services.CancelBookingResult, error)
	CancelFlight(ctx context.Context, companyID, flightID string) (services.CancelFlightResult, error)
}

type MessageService interface {
	Send(ctx context.Context, in services.SendMessageInput) (models.Message, error)
	Conversation(ctx context.Context, userID, otherUserID string) ([]store.ConversationMessage, error)
	Conversations(ctx context.Context, userID string) (services.ConversationList, error)
}
