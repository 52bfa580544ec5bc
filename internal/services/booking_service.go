package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"flightbooking/internal/db"
	"flightbooking/internal/events"
	"flightbooking/internal/models"
	"flightbooking/internal/money"
	"flightbooking/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type FlightStore interface {
	Create(ctx context.Context, tx store.Execer, flight models.Flight) error
	Update(ctx context.Context, tx store.Execer, flight models.Flight) error
	InsertStops(ctx context.Context, tx store.Execer, stops []models.ItineraryStop) error
	DeleteStops(ctx context.Context, tx store.Execer, flightID string) error
	GetByID(ctx context.Context, flightID string) (store.FlightWithCompany, error)
	GetForUpdate(ctx context.Context, tx store.Getter, flightID string) (models.Flight, error)
	CodeTaken(ctx context.Context, code, excludeFlightID string) (bool, error)
	AdjustRegistered(ctx context.Context, tx store.Execer, flightID string, delta int) error
	MarkCancelled(ctx context.Context, tx store.Execer, flightID string) error
	MarkCompleted(ctx context.Context, tx store.Execer, flightID string) error
	ListByCompany(ctx context.Context, companyID string) ([]models.Flight, error)
	Stops(ctx context.Context, flightID string) ([]models.ItineraryStop, error)
	StopsByFlight(ctx context.Context, flightIDs []string) (map[string][]models.ItineraryStop, error)
	Search(ctx context.Context, q store.SearchQuery) ([]store.FlightWithCompany, error)
}

type BookingStore interface {
	Create(ctx context.Context, tx store.Execer, booking models.Booking) error
	ExistsForPassenger(ctx context.Context, tx store.Getter, flightID, passengerID string) (bool, error)
	GetByID(ctx context.Context, bookingID string) (models.Booking, error)
	GetForUpdate(ctx context.Context, tx store.Getter, bookingID string) (models.Booking, error)
	ListOpenForUpdate(ctx context.Context, tx store.Selecter, flightID string) ([]models.Booking, error)
	MarkCancelled(ctx context.Context, tx store.Execer, bookingID string, at time.Time) error
	GetForPassenger(ctx context.Context, flightID, passengerID string) (models.Booking, error)
	ListByFlights(ctx context.Context, flightIDs []string) (map[string][]store.FlightBooking, error)
	ListByPassenger(ctx context.Context, passengerID string) ([]store.PassengerBooking, error)
	StatusesForPassenger(ctx context.Context, passengerID string) (map[string]string, error)
}

// BookingService drives the booking state machine. Every transition locks
// the flight row first, so concurrent bookings and cancellations on one
// flight run one after another.
type BookingService struct {
	txRunner db.TxRunner
	flights  FlightStore
	bookings BookingStore
	ledger   *Ledger
	audit    AuditStore
	effects  SideEffects
	now      func() time.Time
}

func NewBookingService(txRunner db.TxRunner, flights FlightStore, bookings BookingStore, ledger *Ledger, audit AuditStore, effects SideEffects) *BookingService {
	return &BookingService{
		txRunner: txRunner,
		flights:  flights,
		bookings: bookings,
		ledger:   ledger,
		audit:    audit,
		effects:  effects,
		now:      time.Now,
	}
}

type BookRequest struct {
	PassengerID   string
	FlightID      string
	PaymentMethod string
}

type BookingResult struct {
	Booking    models.Booking
	FlightCode string
	// Balance is the passenger balance after payment; nil for cash.
	Balance *int64
}

func (s *BookingService) Book(ctx context.Context, req BookRequest) (BookingResult, error) {
	if req.PaymentMethod != models.PaymentAccount && req.PaymentMethod != models.PaymentCash {
		return BookingResult{}, fieldError("payment_method", "payment method must be one of: account, cash")
	}
	var result BookingResult
	var flight models.Flight
	var movements []Movement
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		movements = nil
		var err error
		flight, err = s.lockFlight(ctx, tx, req.FlightID)
		if err != nil {
			return err
		}
		if flight.Status != models.FlightStatusPending {
			return ErrFlightNotAvailable
		}
		exists, err := s.bookings.ExistsForPassenger(ctx, tx, flight.ID, req.PassengerID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyBooked
		}
		if flight.RegisteredPassengers >= flight.MaxPassengers {
			return ErrNoSeatsAvailable
		}

		now := s.now().UTC()
		booking := models.Booking{
			ID:               uuid.NewString(),
			FlightID:         flight.ID,
			PassengerID:      req.PassengerID,
			BookingStatus:    models.BookingStatusConfirmed,
			PaymentMethod:    req.PaymentMethod,
			AmountPaid:       flight.Fees,
			BookingDate:      now,
			ConfirmationDate: &now,
		}
		if err := s.bookings.Create(ctx, tx, booking); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrAlreadyBooked
			}
			return err
		}

		if req.PaymentMethod == models.PaymentAccount {
			if err := s.ledger.Lock(ctx, tx, req.PassengerID, flight.CompanyID); err != nil {
				return err
			}
			payment, err := s.ledger.Debit(ctx, tx, req.PassengerID, flight.Fees)
			if err != nil {
				return err
			}
			if err := s.ledger.Record(ctx, tx, payment, &booking.ID, models.TransactionPayment,
				fmt.Sprintf("Payment for flight %s", flight.FlightCode)); err != nil {
				return err
			}
			deposit, err := s.ledger.Credit(ctx, tx, flight.CompanyID, flight.Fees)
			if err != nil {
				return err
			}
			if err := s.ledger.Record(ctx, tx, deposit, &booking.ID, models.TransactionDeposit,
				fmt.Sprintf("Booking payment for flight %s", flight.FlightCode)); err != nil {
				return err
			}
			movements = append(movements, payment, deposit)
		}

		if err := s.flights.AdjustRegistered(ctx, tx, flight.ID, 1); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"flight_id":      flight.ID,
			"payment_method": req.PaymentMethod,
			"amount_paid":    money.FormatMinor(flight.Fees),
		})
		if err := s.audit.Log(ctx, tx, req.PassengerID, "book", "booking", booking.ID, string(data)); err != nil {
			return err
		}
		result = BookingResult{Booking: booking, FlightCode: flight.FlightCode}
		return nil
	})
	if err != nil {
		return BookingResult{}, err
	}

	for _, m := range movements {
		s.effects.notifyBalance(m, "booking")
		if m.UserID == req.PassengerID {
			balance := m.BalanceAfter
			result.Balance = &balance
		}
	}
	s.effects.notifyBooking(req.PassengerID, result.Booking.ID, flight.ID, result.Booking.BookingStatus)
	s.effects.publish(ctx, events.Event{
		Type:          events.BookingConfirmed,
		FlightID:      flight.ID,
		BookingID:     result.Booking.ID,
		PassengerID:   req.PassengerID,
		CompanyID:     flight.CompanyID,
		PaymentMethod: req.PaymentMethod,
		Amount:        money.FormatMinor(flight.Fees),
		OccurredAt:    result.Booking.BookingDate,
	})
	s.effects.invalidateSearch(ctx)
	return result, nil
}

type CancelBookingRequest struct {
	ActorID   string
	ActorType string
	BookingID string
}

type CancelBookingResult struct {
	Booking  models.Booking
	Refunded int64
}

// CancelBooking is the single-booking inverse of Book. Passengers may cancel
// their own bookings; companies may cancel bookings on their flights.
func (s *BookingService) CancelBooking(ctx context.Context, req CancelBookingRequest) (CancelBookingResult, error) {
	current, err := s.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CancelBookingResult{}, ErrBookingNotFound
		}
		return CancelBookingResult{}, err
	}

	var result CancelBookingResult
	var flight models.Flight
	var movements []Movement
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		movements = nil
		var err error
		flight, err = s.lockFlight(ctx, tx, current.FlightID)
		if err != nil {
			return err
		}
		booking, err := s.bookings.GetForUpdate(ctx, tx, req.BookingID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrBookingNotFound
			}
			return err
		}
		switch req.ActorType {
		case models.UserTypePassenger:
			if booking.PassengerID != req.ActorID {
				return ErrNotBookingOwner
			}
		case models.UserTypeCompany:
			if flight.CompanyID != req.ActorID {
				return ErrNotFlightOwner
			}
		default:
			return ErrNotBookingOwner
		}
		if booking.BookingStatus == models.BookingStatusCancelled {
			return ErrBookingCancelled
		}
		if flight.Status != models.FlightStatusPending {
			return ErrFlightNotEditable
		}

		refunded, err := s.refund(ctx, tx, flight, booking, &movements)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if err := s.bookings.MarkCancelled(ctx, tx, booking.ID, now); err != nil {
			return err
		}
		if booking.BookingStatus == models.BookingStatusConfirmed {
			if err := s.flights.AdjustRegistered(ctx, tx, flight.ID, -1); err != nil {
				return err
			}
		}
		data, _ := json.Marshal(map[string]any{
			"flight_id": flight.ID,
			"refunded":  money.FormatMinor(refunded),
		})
		if err := s.audit.Log(ctx, tx, req.ActorID, "cancel_booking", "booking", booking.ID, string(data)); err != nil {
			return err
		}
		booking.BookingStatus = models.BookingStatusCancelled
		booking.CancellationDate = &now
		result = CancelBookingResult{Booking: booking, Refunded: refunded}
		return nil
	})
	if err != nil {
		return CancelBookingResult{}, err
	}

	for _, m := range movements {
		s.effects.notifyBalance(m, "booking_cancelled")
	}
	s.effects.notifyBooking(result.Booking.PassengerID, result.Booking.ID, flight.ID, result.Booking.BookingStatus)
	s.effects.publish(ctx, events.Event{
		Type:          events.BookingCancelled,
		FlightID:      flight.ID,
		BookingID:     result.Booking.ID,
		PassengerID:   result.Booking.PassengerID,
		CompanyID:     flight.CompanyID,
		PaymentMethod: result.Booking.PaymentMethod,
		Amount:        money.FormatMinor(result.Refunded),
		OccurredAt:    *result.Booking.CancellationDate,
	})
	s.effects.invalidateSearch(ctx)
	return result, nil
}

type CancelFlightResult struct {
	FlightID          string
	CancelledBookings int
	RefundedBookings  int
	RefundTotal       int64
}

// CancelFlight cancels every open booking on the flight, refunding the
// confirmed account-paid ones, then closes the flight.
func (s *BookingService) CancelFlight(ctx context.Context, companyID, flightID string) (CancelFlightResult, error) {
	var result CancelFlightResult
	var flight models.Flight
	var movements []Movement
	var cancelled []models.Booking
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		movements = nil
		cancelled = nil
		var err error
		flight, err = s.lockFlight(ctx, tx, flightID)
		if err != nil {
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

		bookings, err := s.bookings.ListOpenForUpdate(ctx, tx, flight.ID)
		if err != nil {
			return err
		}
		lockIDs := []string{flight.CompanyID}
		for _, b := range bookings {
			if refundable(b) {
				lockIDs = append(lockIDs, b.PassengerID)
			}
		}
		if err := s.ledger.Lock(ctx, tx, lockIDs...); err != nil {
			return err
		}

		now := s.now().UTC()
		result = CancelFlightResult{FlightID: flight.ID}
		for _, b := range bookings {
			refunded, err := s.refund(ctx, tx, flight, b, &movements)
			if err != nil {
				return err
			}
			if refunded > 0 {
				result.RefundedBookings++
				result.RefundTotal += refunded
			}
			if err := s.bookings.MarkCancelled(ctx, tx, b.ID, now); err != nil {
				return err
			}
			b.BookingStatus = models.BookingStatusCancelled
			b.CancellationDate = &now
			cancelled = append(cancelled, b)
		}
		result.CancelledBookings = len(cancelled)

		if err := s.flights.MarkCancelled(ctx, tx, flight.ID); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"cancelled_bookings": result.CancelledBookings,
			"refunded_bookings":  result.RefundedBookings,
			"refund_total":       money.FormatMinor(result.RefundTotal),
		})
		return s.audit.Log(ctx, tx, companyID, "cancel_flight", "flight", flight.ID, string(data))
	})
	if err != nil {
		return CancelFlightResult{}, err
	}

	for _, m := range movements {
		s.effects.notifyBalance(m, "flight_cancelled")
	}
	for _, b := range cancelled {
		s.effects.notifyBooking(b.PassengerID, b.ID, flight.ID, b.BookingStatus)
	}
	s.effects.publish(ctx, events.Event{
		Type:       events.FlightCancelled,
		FlightID:   flight.ID,
		CompanyID:  flight.CompanyID,
		Amount:     money.FormatMinor(result.RefundTotal),
		OccurredAt: s.now().UTC(),
	})
	s.effects.invalidateSearch(ctx)
	return result, nil
}

// refund returns the fee of a confirmed account-paid booking to the
// passenger and takes it back from the company. Other bookings are left
// untouched and report zero.
func (s *BookingService) refund(ctx context.Context, tx store.Tx, flight models.Flight, b models.Booking, movements *[]Movement) (int64, error) {
	if !refundable(b) {
		return 0, nil
	}
	if err := s.ledger.Lock(ctx, tx, b.PassengerID, flight.CompanyID); err != nil {
		return 0, err
	}
	credit, err := s.ledger.Credit(ctx, tx, b.PassengerID, b.AmountPaid)
	if err != nil {
		return 0, err
	}
	if err := s.ledger.Record(ctx, tx, credit, &b.ID, models.TransactionRefund,
		fmt.Sprintf("Refund for cancelled booking on flight %s", flight.FlightCode)); err != nil {
		return 0, err
	}
	debit, err := s.ledger.Debit(ctx, tx, flight.CompanyID, b.AmountPaid)
	if err != nil {
		return 0, err
	}
	if err := s.ledger.Record(ctx, tx, debit, &b.ID, models.TransactionPayment,
		fmt.Sprintf("Refund issued for booking on flight %s", flight.FlightCode)); err != nil {
		return 0, err
	}
	*movements = append(*movements, credit, debit)
	return b.AmountPaid, nil
}

func (s *BookingService) lockFlight(ctx context.Context, tx store.Getter, flightID string) (models.Flight, error) {
	flight, err := s.flights.GetForUpdate(ctx, tx, flightID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Flight{}, ErrFlightNotFound
		}
		return models.Flight{}, err
	}
	return flight, nil
}

func refundable(b models.Booking) bool {
	return b.BookingStatus == models.BookingStatusConfirmed &&
		b.PaymentMethod == models.PaymentAccount &&
		b.AmountPaid > 0
}
