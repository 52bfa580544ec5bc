package models

import "time"

const (
	UserTypeCompany   = "company"
	UserTypePassenger = "passenger"
)

const (
	FlightStatusPending   = "pending"
	FlightStatusCompleted = "completed"
	FlightStatusCancelled = "cancelled"
)

const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

const (
	PaymentAccount = "account"
	PaymentCash    = "cash"
)

const (
	TransactionPayment = "payment"
	TransactionDeposit = "deposit"
	TransactionRefund  = "refund"
)

const (
	MessageTypeFlightInquiry = "flight_inquiry"
	MessageTypeBooking       = "booking"
	MessageTypeGeneral       = "general"
)

// DateTimeLayout is the wire format for itinerary times and timestamps.
const DateTimeLayout = "2006-01-02 15:04:05"

type User struct {
	ID             string    `db:"id"`
	UserType       string    `db:"user_type"`
	Email          string    `db:"email"`
	Username       string    `db:"username"`
	PasswordHash   string    `db:"password_hash"`
	Name           string    `db:"name"`
	Tel            string    `db:"tel"`
	AccountBalance int64     `db:"account_balance"`
	IsActive       bool      `db:"is_active"`
	CreatedAt      time.Time `db:"created_at"`
}

// Profile is a user joined with its company or passenger row.
type Profile struct {
	User
	Bio             *string `db:"bio"`
	Address         *string `db:"address"`
	Location        *string `db:"location"`
	LogoPath        *string `db:"logo_path"`
	PhotoPath       *string `db:"photo_path"`
	PassportImgPath *string `db:"passport_img_path"`
}

type Flight struct {
	ID                   string    `db:"id"`
	CompanyID            string    `db:"company_id"`
	FlightName           string    `db:"flight_name"`
	FlightCode           string    `db:"flight_code"`
	MaxPassengers        int       `db:"max_passengers"`
	RegisteredPassengers int       `db:"registered_passengers"`
	Fees                 int64     `db:"fees"`
	Status               string    `db:"status"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

func (f Flight) SeatsLeft() int {
	left := f.MaxPassengers - f.RegisteredPassengers
	if left < 0 {
		return 0
	}
	return left
}

type ItineraryStop struct {
	ID            string     `db:"id"`
	FlightID      string     `db:"flight_id"`
	City          string     `db:"city"`
	SequenceOrder int        `db:"sequence_order"`
	StartDatetime *time.Time `db:"start_datetime"`
	EndDatetime   *time.Time `db:"end_datetime"`
}

type Booking struct {
	ID               string     `db:"id"`
	FlightID         string     `db:"flight_id"`
	PassengerID      string     `db:"passenger_id"`
	BookingStatus    string     `db:"booking_status"`
	PaymentMethod    string     `db:"payment_method"`
	AmountPaid       int64      `db:"amount_paid"`
	BookingDate      time.Time  `db:"booking_date"`
	ConfirmationDate *time.Time `db:"confirmation_date"`
	CancellationDate *time.Time `db:"cancellation_date"`
}

type Transaction struct {
	ID              string    `db:"id"`
	UserID          string    `db:"user_id"`
	BookingID       *string   `db:"booking_id"`
	TransactionType string    `db:"transaction_type"`
	Amount          int64     `db:"amount"`
	BalanceBefore   int64     `db:"balance_before"`
	BalanceAfter    int64     `db:"balance_after"`
	Description     string    `db:"description"`
	CreatedAt       time.Time `db:"created_at"`
}

type Message struct {
	ID          string    `db:"id"`
	SenderID    string    `db:"sender_id"`
	ReceiverID  string    `db:"receiver_id"`
	FlightID    *string   `db:"flight_id"`
	Message     string    `db:"message"`
	MessageType string    `db:"message_type"`
	IsRead      bool      `db:"is_read"`
	SentAt      time.Time `db:"sent_at"`
}
