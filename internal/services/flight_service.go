package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"flightbooking/internal/db"
	"flightbooking/internal/events"
	"flightbooking/internal/itinerary"
	"flightbooking/internal/models"
	"flightbooking/internal/money"
	"flightbooking/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type FlightService struct {
	txRunner db.TxRunner
	flights  FlightStore
	bookings BookingStore
	users    UserStore
	audit    AuditStore
	effects  SideEffects
}

func NewFlightService(txRunner db.TxRunner, flights FlightStore, bookings BookingStore, users UserStore, audit AuditStore, effects SideEffects) *FlightService {
	return &FlightService{
		txRunner: txRunner,
		flights:  flights,
		bookings: bookings,
		users:    users,
		audit:    audit,
		effects:  effects,
	}
}

type FlightInput struct {
	CompanyID     string
	FlightName    string
	FlightCode    string
	MaxPassengers int
	Fees          int64
	Itinerary     []itinerary.RawStop
}

type FlightWithStops struct {
	Flight store.FlightWithCompany
	Stops  []models.ItineraryStop
}

func (s *FlightService) AddFlight(ctx context.Context, in FlightInput) (FlightWithStops, error) {
	stops, err := itinerary.Build(in.Itinerary)
	if err != nil {
		return FlightWithStops{}, err
	}
	code := normalizeCode(in.FlightCode)
	if err := s.ensureCodeFree(ctx, code, ""); err != nil {
		return FlightWithStops{}, err
	}

	flight := models.Flight{
		ID:            uuid.NewString(),
		CompanyID:     in.CompanyID,
		FlightName:    strings.TrimSpace(in.FlightName),
		FlightCode:    code,
		MaxPassengers: in.MaxPassengers,
		Fees:          in.Fees,
		Status:        models.FlightStatusPending,
	}
	rows := itinerary.Rows(flight.ID, stops)
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.flights.Create(ctx, tx, flight); err != nil {
			if db.IsUniqueViolation(err) {
				return fieldError("flight_code", "flight code already exists")
			}
			return err
		}
		if err := s.flights.InsertStops(ctx, tx, rows); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"flight_code": flight.FlightCode,
			"route":       itinerary.Route(rows),
		})
		return s.audit.Log(ctx, tx, in.CompanyID, "create_flight", "flight", flight.ID, string(data))
	})
	if err != nil {
		return FlightWithStops{}, err
	}

	s.effects.publish(ctx, events.Event{
		Type:      events.FlightCreated,
		FlightID:  flight.ID,
		CompanyID: flight.CompanyID,
		Amount:    money.FormatMinor(flight.Fees),
	})
	s.effects.invalidateSearch(ctx)
	return s.loadWithStops(ctx, flight.ID)
}

type UpdateFlightInput struct {
	FlightID string
	FlightInput
}

// UpdateFlight rewrites a pending flight. A nil Itinerary keeps the stored
// stops; otherwise they are replaced.
func (s *FlightService) UpdateFlight(ctx context.Context, in UpdateFlightInput) (FlightWithStops, error) {
	var rows []models.ItineraryStop
	if in.Itinerary != nil {
		stops, err := itinerary.Build(in.Itinerary)
		if err != nil {
			return FlightWithStops{}, err
		}
		rows = itinerary.Rows(in.FlightID, stops)
	}
	code := normalizeCode(in.FlightCode)
	if err := s.ensureCodeFree(ctx, code, in.FlightID); err != nil {
		return FlightWithStops{}, err
	}

	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		flight, err := s.flights.GetForUpdate(ctx, tx, in.FlightID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrFlightNotFound
			}
			return err
		}
		if flight.CompanyID != in.CompanyID {
			return ErrNotFlightOwner
		}
		if flight.Status != models.FlightStatusPending {
			return ErrFlightNotEditable
		}
		if in.MaxPassengers < flight.RegisteredPassengers {
			return ErrCapacityBelowBooked
		}
		flight.FlightName = strings.TrimSpace(in.FlightName)
		flight.FlightCode = code
		flight.MaxPassengers = in.MaxPassengers
		flight.Fees = in.Fees
		if err := s.flights.Update(ctx, tx, flight); err != nil {
			if db.IsUniqueViolation(err) {
				return fieldError("flight_code", "flight code already exists")
			}
			return err
		}
		if rows != nil {
			if err := s.flights.DeleteStops(ctx, tx, flight.ID); err != nil {
				return err
			}
			if err := s.flights.InsertStops(ctx, tx, rows); err != nil {
				return err
			}
		}
		data, _ := json.Marshal(map[string]any{
			"flight_code":      flight.FlightCode,
			"itinerary_change": rows != nil,
		})
		return s.audit.Log(ctx, tx, in.CompanyID, "update_flight", "flight", flight.ID, string(data))
	})
	if err != nil {
		return FlightWithStops{}, err
	}
	s.effects.invalidateSearch(ctx)
	return s.loadWithStops(ctx, in.FlightID)
}

func (s *FlightService) CompleteFlight(ctx context.Context, companyID, flightID string) (models.Flight, error) {
	var flight models.Flight
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		flight, err = s.flights.GetForUpdate(ctx, tx, flightID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrFlightNotFound
			}
			return err
		}
		if flight.CompanyID != companyID {
			return ErrNotFlightOwner
		}
		switch flight.Status {
		case models.FlightStatusCancelled:
			return ErrAlreadyCancelled
		case models.FlightStatusCompleted:
			return ErrAlreadyCompleted
		}
		if err := s.flights.MarkCompleted(ctx, tx, flight.ID); err != nil {
			return err
		}
		flight.Status = models.FlightStatusCompleted
		return s.audit.Log(ctx, tx, companyID, "complete_flight", "flight", flight.ID, "{}")
	})
	if err != nil {
		return models.Flight{}, err
	}
	s.effects.publish(ctx, events.Event{
		Type:      events.FlightCompleted,
		FlightID:  flight.ID,
		CompanyID: companyID,
	})
	s.effects.invalidateSearch(ctx)
	return flight, nil
}

type CompanyFlight struct {
	Flight   models.Flight
	Stops    []models.ItineraryStop
	Bookings []store.FlightBooking
}

func (s *FlightService) ListCompanyFlights(ctx context.Context, companyID string) ([]CompanyFlight, error) {
	flights, err := s.flights.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(flights))
	for _, f := range flights {
		ids = append(ids, f.ID)
	}
	stops, err := s.flights.StopsByFlight(ctx, ids)
	if err != nil {
		return nil, err
	}
	bookings, err := s.bookings.ListByFlights(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]CompanyFlight, 0, len(flights))
	for _, f := range flights {
		out = append(out, CompanyFlight{Flight: f, Stops: stops[f.ID], Bookings: bookings[f.ID]})
	}
	return out, nil
}

type FlightStats struct {
	TotalBookings  int
	Confirmed      int
	Cancelled      int
	Pending        int
	AvailableSeats int
	Revenue        int64
}

type FlightDetails struct {
	FlightWithStops
	Bookings []store.FlightBooking
	Stats    FlightStats
}

func (s *FlightService) FlightDetails(ctx context.Context, companyID, flightID string) (FlightDetails, error) {
	flight, err := s.loadWithStops(ctx, flightID)
	if err != nil {
		return FlightDetails{}, err
	}
	if flight.Flight.CompanyID != companyID {
		return FlightDetails{}, ErrNotFlightOwner
	}
	grouped, err := s.bookings.ListByFlights(ctx, []string{flightID})
	if err != nil {
		return FlightDetails{}, err
	}
	bookings := grouped[flightID]
	return FlightDetails{
		FlightWithStops: flight,
		Bookings:        bookings,
		Stats:           computeStats(flight.Flight.Flight, bookings),
	}, nil
}

func computeStats(flight models.Flight, bookings []store.FlightBooking) FlightStats {
	stats := FlightStats{
		TotalBookings:  len(bookings),
		AvailableSeats: flight.SeatsLeft(),
	}
	for _, b := range bookings {
		switch b.BookingStatus {
		case models.BookingStatusConfirmed:
			stats.Confirmed++
			stats.Revenue += b.AmountPaid
		case models.BookingStatusCancelled:
			stats.Cancelled++
		case models.BookingStatusPending:
			stats.Pending++
		}
	}
	return stats
}

type SearchResult struct {
	FlightWithStops
	// BookingStatus is the caller's booking on the flight, if any.
	BookingStatus *string
}

func (s *FlightService) SearchFlights(ctx context.Context, passengerID string, q store.SearchQuery) ([]SearchResult, error) {
	q.From = strings.TrimSpace(q.From)
	q.To = strings.TrimSpace(q.To)
	if q.From != "" && strings.EqualFold(q.From, q.To) {
		return nil, ErrSameCity
	}
	listings, err := s.searchListings(ctx, q)
	if err != nil {
		return nil, err
	}
	statuses, err := s.bookings.StatusesForPassenger(ctx, passengerID)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(listings))
	for _, l := range listings {
		result := SearchResult{FlightWithStops: l}
		if status, ok := statuses[l.Flight.ID]; ok {
			result.BookingStatus = &status
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *FlightService) searchListings(ctx context.Context, q store.SearchQuery) ([]FlightWithStops, error) {
	cached, gen, cacheable := s.cachedSearch(ctx, q)
	if cached != nil {
		return cached, nil
	}
	flights, err := s.flights.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(flights))
	for _, f := range flights {
		ids = append(ids, f.ID)
	}
	stops, err := s.flights.StopsByFlight(ctx, ids)
	if err != nil {
		return nil, err
	}
	listings := make([]FlightWithStops, 0, len(flights))
	for _, f := range flights {
		listings = append(listings, FlightWithStops{Flight: f, Stops: stops[f.ID]})
	}
	if cacheable {
		s.storeSearch(ctx, gen, q, listings)
	}
	return listings, nil
}

// cachedSearch reports the generation observed before the database read;
// cacheable is false when no generation could be read.
func (s *FlightService) cachedSearch(ctx context.Context, q store.SearchQuery) (listings []FlightWithStops, gen int64, cacheable bool) {
	if s.effects.cache == nil {
		return nil, 0, false
	}
	payload, gen, err := s.effects.cache.GetSearch(ctx, q.From, q.To)
	if err != nil {
		s.effects.log.Warn("search cache read failed", zap.Error(err))
		return nil, 0, false
	}
	if payload == nil {
		return nil, gen, true
	}
	if err := json.Unmarshal(payload, &listings); err != nil {
		s.effects.log.Warn("search cache entry unreadable", zap.Error(err))
		return nil, gen, true
	}
	return listings, gen, true
}

func (s *FlightService) storeSearch(ctx context.Context, gen int64, q store.SearchQuery, listings []FlightWithStops) {
	payload, err := json.Marshal(listings)
	if err != nil {
		return
	}
	if err := s.effects.cache.SetSearch(ctx, gen, q.From, q.To, payload); err != nil {
		s.effects.log.Warn("search cache write failed", zap.Error(err))
	}
}

type FlightInfo struct {
	FlightWithStops
	Company models.Profile
	Booking *models.Booking
}

// FlightInfo is the passenger view of one flight with company contact details.
func (s *FlightService) FlightInfo(ctx context.Context, passengerID, flightID string) (FlightInfo, error) {
	flight, err := s.loadWithStops(ctx, flightID)
	if err != nil {
		return FlightInfo{}, err
	}
	company, err := s.users.GetProfile(ctx, flight.Flight.CompanyID)
	if err != nil {
		return FlightInfo{}, err
	}
	info := FlightInfo{FlightWithStops: flight, Company: company}
	booking, err := s.bookings.GetForPassenger(ctx, flightID, passengerID)
	switch {
	case err == nil:
		info.Booking = &booking
	case !errors.Is(err, sql.ErrNoRows):
		return FlightInfo{}, err
	}
	return info, nil
}

type PassengerTrip struct {
	Booking store.PassengerBooking
	Stops   []models.ItineraryStop
}

func (s *FlightService) PassengerBookings(ctx context.Context, passengerID string) ([]PassengerTrip, error) {
	bookings, err := s.bookings.ListByPassenger(ctx, passengerID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.FlightID)
	}
	stops, err := s.flights.StopsByFlight(ctx, ids)
	if err != nil {
		return nil, err
	}
	trips := make([]PassengerTrip, 0, len(bookings))
	for _, b := range bookings {
		trips = append(trips, PassengerTrip{Booking: b, Stops: stops[b.FlightID]})
	}
	return trips, nil
}

func (s *FlightService) loadWithStops(ctx context.Context, flightID string) (FlightWithStops, error) {
	flight, err := s.flights.GetByID(ctx, flightID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FlightWithStops{}, ErrFlightNotFound
		}
		return FlightWithStops{}, err
	}
	stops, err := s.flights.Stops(ctx, flightID)
	if err != nil {
		return FlightWithStops{}, err
	}
	return FlightWithStops{Flight: flight, Stops: stops}, nil
}

func (s *FlightService) ensureCodeFree(ctx context.Context, code, excludeFlightID string) error {
	taken, err := s.flights.CodeTaken(ctx, code, excludeFlightID)
	if err != nil {
		return err
	}
	if taken {
		return fieldError("flight_code", "flight code already exists")
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
