package store

import (
	"context"
	"time"

	"flightbooking/internal/models"

	"github.com/lib/pq"
)

type BookingStore struct {
	db DB
}

// FlightBooking is a booking joined with the passenger's contact details.
type FlightBooking struct {
	models.Booking
	PassengerName  string `db:"passenger_name"`
	PassengerEmail string `db:"passenger_email"`
	PassengerTel   string `db:"passenger_tel"`
}

// PassengerBooking is a booking joined with its flight and company.
type PassengerBooking struct {
	models.Booking
	FlightName   string `db:"flight_name"`
	FlightCode   string `db:"flight_code"`
	FlightStatus string `db:"flight_status"`
	Fees         int64  `db:"fees"`
	CompanyID    string `db:"company_id"`
	CompanyName  string `db:"company_name"`
}

const bookingColumns = `
	b.id, b.flight_id, b.passenger_id, b.booking_status, b.payment_method, b.amount_paid,
	b.booking_date, b.confirmation_date, b.cancellation_date
`

func NewBookingStore(db DB) *BookingStore {
	return &BookingStore{db: db}
}

func (s *BookingStore) Create(ctx context.Context, tx Execer, booking models.Booking) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (id, flight_id, passenger_id, booking_status, payment_method, amount_paid, confirmation_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, booking.ID, booking.FlightID, booking.PassengerID, booking.BookingStatus, booking.PaymentMethod, booking.AmountPaid, booking.ConfirmationDate)
	return err
}

// ExistsForPassenger checks the (flight, passenger) pair inside tx. Callers
// hold the flight row lock, which serializes concurrent bookings.
func (s *BookingStore) ExistsForPassenger(ctx context.Context, tx Getter, flightID, passengerID string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE flight_id = $1 AND passenger_id = $2
		)
	`, flightID, passengerID)
	return exists, err
}

func (s *BookingStore) GetByID(ctx context.Context, bookingID string) (models.Booking, error) {
	var row models.Booking
	err := s.db.GetContext(ctx, &row, `
		SELECT `+bookingColumns+`
		FROM bookings b
		WHERE b.id = $1
	`, bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	return row, nil
}

func (s *BookingStore) GetForUpdate(ctx context.Context, tx Getter, bookingID string) (models.Booking, error) {
	var row models.Booking
	err := tx.GetContext(ctx, &row, `
		SELECT `+bookingColumns+`
		FROM bookings b
		WHERE b.id = $1
		FOR UPDATE
	`, bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	return row, nil
}

// ListOpenForUpdate locks every not-yet-cancelled booking on a flight.
func (s *BookingStore) ListOpenForUpdate(ctx context.Context, tx Selecter, flightID string) ([]models.Booking, error) {
	var rows []models.Booking
	err := tx.SelectContext(ctx, &rows, `
		SELECT `+bookingColumns+`
		FROM bookings b
		WHERE b.flight_id = $1 AND b.booking_status <> 'cancelled'
		ORDER BY b.booking_date
		FOR UPDATE
	`, flightID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *BookingStore) MarkCancelled(ctx context.Context, tx Execer, bookingID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET booking_status = 'cancelled', cancellation_date = $1
		WHERE id = $2
	`, at, bookingID)
	return err
}

func (s *BookingStore) GetForPassenger(ctx context.Context, flightID, passengerID string) (models.Booking, error) {
	var row models.Booking
	err := s.db.GetContext(ctx, &row, `
		SELECT `+bookingColumns+`
		FROM bookings b
		WHERE b.flight_id = $1 AND b.passenger_id = $2
	`, flightID, passengerID)
	if err != nil {
		return models.Booking{}, err
	}
	return row, nil
}

func (s *BookingStore) ListByFlights(ctx context.Context, flightIDs []string) (map[string][]FlightBooking, error) {
	grouped := make(map[string][]FlightBooking, len(flightIDs))
	if len(flightIDs) == 0 {
		return grouped, nil
	}
	var rows []FlightBooking
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+bookingColumns+`, u.name AS passenger_name, u.email AS passenger_email, u.tel AS passenger_tel
		FROM bookings b
		JOIN users u ON u.id = b.passenger_id
		WHERE b.flight_id = ANY($1::uuid[])
		ORDER BY b.booking_date DESC
	`, pq.Array(flightIDs))
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		grouped[row.FlightID] = append(grouped[row.FlightID], row)
	}
	return grouped, nil
}

func (s *BookingStore) ListByPassenger(ctx context.Context, passengerID string) ([]PassengerBooking, error) {
	var rows []PassengerBooking
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+bookingColumns+`,
		       f.flight_name, f.flight_code, f.status AS flight_status, f.fees,
		       f.company_id, u.name AS company_name
		FROM bookings b
		JOIN flights f ON f.id = b.flight_id
		JOIN users u ON u.id = f.company_id
		WHERE b.passenger_id = $1
		ORDER BY b.booking_date DESC
	`, passengerID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// StatusesForPassenger maps flight id to the passenger's booking status.
func (s *BookingStore) StatusesForPassenger(ctx context.Context, passengerID string) (map[string]string, error) {
	var rows []struct {
		FlightID      string `db:"flight_id"`
		BookingStatus string `db:"booking_status"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT flight_id, booking_status
		FROM bookings
		WHERE passenger_id = $1
	`, passengerID)
	if err != nil {
		return nil, err
	}
	statuses := make(map[string]string, len(rows))
	for _, row := range rows {
		statuses[row.FlightID] = row.BookingStatus
	}
	return statuses, nil
}
