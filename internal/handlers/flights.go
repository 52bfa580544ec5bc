package handlers

import (
	"encoding/json"
	"net/http"

	"flightbooking/internal/itinerary"
	"flightbooking/internal/money"
	"flightbooking/internal/services"
)

type flightRequest struct {
	FlightName    string              `json:"flight_name" validate:"required,min=3,max=255"`
	FlightCode    string              `json:"flight_code" validate:"required,min=3,max=50"`
	MaxPassengers int                 `json:"max_passengers" validate:"required,gt=0"`
	Fees          json.Number         `json:"fees" validate:"required,amount"`
	Itinerary     []itinerary.RawStop `json:"itinerary"`
}

func (req *flightRequest) normalize() {
	trimPtr(&req.FlightName)
	trimPtr(&req.FlightCode)
}

// flightInput converts a decoded request; ok is false once a response
// has been written.
func (h *Handler) flightInput(w http.ResponseWriter, companyID string, req flightRequest) (services.FlightInput, bool) {
	fees, err := parseAmountMinor(req.Fees)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Fees must be a positive amount")
		return services.FlightInput{}, false
	}
	return services.FlightInput{
		CompanyID:     companyID,
		FlightName:    req.FlightName,
		FlightCode:    req.FlightCode,
		MaxPassengers: req.MaxPassengers,
		Fees:          fees,
		Itinerary:     req.Itinerary,
	}, true
}

func (h *Handler) AddFlight(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	var req flightRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Itinerary == nil {
		req.Itinerary = []itinerary.RawStop{}
	}
	input, ok := h.flightInput(w, user.ID, req)
	if !ok {
		return
	}
	flight, err := h.flights.AddFlight(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, "Flight added successfully", newListingView(flight))
}

func (h *Handler) UpdateFlight(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, services.ErrFlightNotFound)
	if !ok {
		return
	}
	var req flightRequest
	if !h.decode(w, r, &req) {
		return
	}
	input, ok := h.flightInput(w, user.ID, req)
	if !ok {
		return
	}
	flight, err := h.flights.UpdateFlight(r.Context(), services.UpdateFlightInput{
		FlightID:    id,
		FlightInput: input,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Flight updated successfully", newListingView(flight))
}

type companyFlightView struct {
	flightView
	Bookings []bookingView `json:"bookings"`
}

func (h *Handler) ListCompanyFlights(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	flights, err := h.flights.ListCompanyFlights(r.Context(), user.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	views := make([]companyFlightView, 0, len(flights))
	for _, f := range flights {
		views = append(views, companyFlightView{
			flightView: newFlightView(f.Flight, "", f.Stops),
			Bookings:   newFlightBookingViews(f.Bookings),
		})
	}
	respondSuccess(w, http.StatusOK, "Flights retrieved", views)
}

type flightStatsView struct {
	TotalBookings  int    `json:"total_bookings"`
	Confirmed      int    `json:"confirmed_bookings"`
	Cancelled      int    `json:"cancelled_bookings"`
	Pending        int    `json:"pending_bookings"`
	AvailableSeats int    `json:"available_seats"`
	Revenue        string `json:"total_revenue"`
}

func (h *Handler) CompanyFlightDetails(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, services.ErrFlightNotFound)
	if !ok {
		return
	}
	details, err := h.flights.FlightDetails(r.Context(), user.ID, id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	stats := details.Stats
	respondSuccess(w, http.StatusOK, "Flight details retrieved", map[string]any{
		"flight":   newListingView(details.FlightWithStops),
		"bookings": newFlightBookingViews(details.Bookings),
		"statistics": flightStatsView{
			TotalBookings:  stats.TotalBookings,
			Confirmed:      stats.Confirmed,
			Cancelled:      stats.Cancelled,
			Pending:        stats.Pending,
			AvailableSeats: stats.AvailableSeats,
			Revenue:        money.FormatMinor(stats.Revenue),
		},
	})
}

func (h *Handler) CancelFlight(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, services.ErrFlightNotFound)
	if !ok {
		return
	}
	result, err := h.bookings.CancelFlight(r.Context(), user.ID, id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Flight cancelled successfully", map[string]any{
		"flight_id":          result.FlightID,
		"cancelled_bookings": result.CancelledBookings,
		"refunded_bookings":  result.RefundedBookings,
		"refund_total":       money.FormatMinor(result.RefundTotal),
	})
}

func (h *Handler) CompleteFlight(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, services.ErrFlightNotFound)
	if !ok {
		return
	}
	flight, err := h.flights.CompleteFlight(r.Context(), user.ID, id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Flight marked as completed", map[string]any{
		"flight_id": flight.ID,
		"status":    flight.Status,
	})
}
