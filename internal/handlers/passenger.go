package handlers

import (
	"net/http"

	"flightbooking/internal/money"
	"flightbooking/internal/services"
	"flightbooking/internal/store"
)

type searchResultView struct {
	flightView
	AlreadyBooked bool    `json:"already_booked"`
	BookingStatus *string `json:"booking_status"`
}

func (h *Handler) SearchFlights(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	results, err := h.flights.SearchFlights(r.Context(), user.ID, store.SearchQuery{
		From: query.Get("from"),
		To:   query.Get("to"),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	views := make([]searchResultView, 0, len(results))
	for _, result := range results {
		views = append(views, searchResultView{
			flightView:    newListingView(result.FlightWithStops),
			AlreadyBooked: result.BookingStatus != nil,
			BookingStatus: result.BookingStatus,
		})
	}
	respondSuccess(w, http.StatusOK, "Flights retrieved", views)
}

type bookFlightRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=account cash"`
}

func (h *Handler) BookFlight(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, services.ErrFlightNotFound)
	if !ok {
		return
	}
	var req bookFlightRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.bookings.Book(r.Context(), services.BookRequest{
		PassengerID:   user.ID,
		FlightID:      id,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	data := map[string]any{
		"booking":     newBookingView(result.Booking),
		"flight_code": result.FlightCode,
	}
	if result.Balance != nil {
		data["new_balance"] = money.FormatMinor(*result.Balance)
	}
	respondSuccess(w, http.StatusCreated, "Flight booked successfully", data)
}

func (h *Handler) ListPassengerBookings(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	trips, err := h.flights.PassengerBookings(r.Context(), user.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	views := make([]tripView, 0, len(trips))
	for _, trip := range trips {
		views = append(views, newTripView(trip))
	}
	respondSuccess(w, http.StatusOK, "Bookings retrieved", views)
}

func (h *Handler) PassengerFlightInfo(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, services.ErrFlightNotFound)
	if !ok {
		return
	}
	info, err := h.flights.FlightInfo(r.Context(), user.ID, id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	var booking *bookingView
	if info.Booking != nil {
		view := newBookingView(*info.Booking)
		booking = &view
	}
	respondSuccess(w, http.StatusOK, "Flight retrieved", map[string]any{
		"flight": newListingView(info.FlightWithStops),
		"company": companyContactView{
			ID:       info.Company.ID,
			Name:     info.Company.Name,
			Email:    info.Company.Email,
			Tel:      info.Company.Tel,
			Address:  info.Company.Address,
			Location: info.Company.Location,
			Bio:      info.Company.Bio,
		},
		"booking": booking,
	})
}

// CancelBooking serves both the passenger and the company route; the
// service checks ownership against the caller's type.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, services.ErrBookingNotFound)
	if !ok {
		return
	}
	result, err := h.bookings.CancelBooking(r.Context(), services.CancelBookingRequest{
		ActorID:   user.ID,
		ActorType: user.Type,
		BookingID: id,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Booking cancelled successfully", map[string]any{
		"booking":  newBookingView(result.Booking),
		"refunded": money.FormatMinor(result.Refunded),
	})
}
