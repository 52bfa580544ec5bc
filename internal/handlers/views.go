package handlers

import (
	"time"

	"flightbooking/internal/itinerary"
	"flightbooking/internal/models"
	"flightbooking/internal/money"
	"flightbooking/internal/services"
	"flightbooking/internal/store"
)

func formatTime(t time.Time) string {
	return t.Format(models.DateTimeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := formatTime(*t)
	return &formatted
}

type profileView struct {
	ID              string  `json:"id"`
	UserType        string  `json:"user_type"`
	Email           string  `json:"email"`
	Username        string  `json:"username"`
	Name            string  `json:"name"`
	Tel             string  `json:"tel"`
	AccountBalance  string  `json:"account_balance"`
	IsActive        bool    `json:"is_active"`
	CreatedAt       string  `json:"created_at"`
	Bio             *string `json:"bio,omitempty"`
	Address         *string `json:"address,omitempty"`
	Location        *string `json:"location,omitempty"`
	LogoPath        *string `json:"logo_path,omitempty"`
	PhotoPath       *string `json:"photo_path,omitempty"`
	PassportImgPath *string `json:"passport_img_path,omitempty"`
}

func newProfileView(p models.Profile) profileView {
	view := profileView{
		ID:             p.ID,
		UserType:       p.UserType,
		Email:          p.Email,
		Username:       p.Username,
		Name:           p.Name,
		Tel:            p.Tel,
		AccountBalance: money.FormatMinor(p.AccountBalance),
		IsActive:       p.IsActive,
		CreatedAt:      formatTime(p.CreatedAt),
	}
	switch p.UserType {
	case models.UserTypeCompany:
		view.Bio, view.Address, view.Location, view.LogoPath = p.Bio, p.Address, p.Location, p.LogoPath
	case models.UserTypePassenger:
		view.PhotoPath, view.PassportImgPath = p.PhotoPath, p.PassportImgPath
	}
	return view
}

type companyContactView struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Tel      string  `json:"tel"`
	Address  *string `json:"address,omitempty"`
	Location *string `json:"location,omitempty"`
	Bio      *string `json:"bio,omitempty"`
}

type stopView struct {
	City          string  `json:"city"`
	SequenceOrder int     `json:"sequence_order"`
	StartDatetime *string `json:"start_datetime"`
	EndDatetime   *string `json:"end_datetime"`
}

func newStopViews(rows []models.ItineraryStop) []stopView {
	views := make([]stopView, 0, len(rows))
	for _, row := range rows {
		views = append(views, stopView{
			City:          row.City,
			SequenceOrder: row.SequenceOrder,
			StartDatetime: formatTimePtr(row.StartDatetime),
			EndDatetime:   formatTimePtr(row.EndDatetime),
		})
	}
	return views
}

type flightView struct {
	ID                   string     `json:"id"`
	CompanyID            string     `json:"company_id"`
	CompanyName          string     `json:"company_name,omitempty"`
	FlightName           string     `json:"flight_name"`
	FlightCode           string     `json:"flight_code"`
	MaxPassengers        int        `json:"max_passengers"`
	RegisteredPassengers int        `json:"registered_passengers"`
	SeatsLeft            int        `json:"seats_left"`
	Fees                 string     `json:"fees"`
	Status               string     `json:"status"`
	Route                string     `json:"route"`
	DepartureCity        string     `json:"departure_city"`
	DepartureTime        *string    `json:"departure_time"`
	ArrivalCity          string     `json:"arrival_city"`
	ArrivalTime          *string    `json:"arrival_time"`
	Itinerary            []stopView `json:"itinerary"`
	CreatedAt            string     `json:"created_at"`
}

func newFlightView(f models.Flight, companyName string, stops []models.ItineraryStop) flightView {
	view := flightView{
		ID:                   f.ID,
		CompanyID:            f.CompanyID,
		CompanyName:          companyName,
		FlightName:           f.FlightName,
		FlightCode:           f.FlightCode,
		MaxPassengers:        f.MaxPassengers,
		RegisteredPassengers: f.RegisteredPassengers,
		SeatsLeft:            f.SeatsLeft(),
		Fees:                 money.FormatMinor(f.Fees),
		Status:               f.Status,
		Route:                itinerary.Route(stops),
		Itinerary:            newStopViews(stops),
		CreatedAt:            formatTime(f.CreatedAt),
	}
	if len(stops) > 0 {
		first, last := stops[0], stops[len(stops)-1]
		view.DepartureCity = first.City
		view.DepartureTime = formatTimePtr(first.EndDatetime)
		view.ArrivalCity = last.City
		view.ArrivalTime = formatTimePtr(last.StartDatetime)
	}
	return view
}

func newListingView(f services.FlightWithStops) flightView {
	return newFlightView(f.Flight.Flight, f.Flight.CompanyName, f.Stops)
}

type bookingView struct {
	ID               string  `json:"id"`
	FlightID         string  `json:"flight_id"`
	PassengerID      string  `json:"passenger_id"`
	BookingStatus    string  `json:"booking_status"`
	PaymentMethod    string  `json:"payment_method"`
	AmountPaid       string  `json:"amount_paid"`
	BookingDate      string  `json:"booking_date"`
	ConfirmationDate *string `json:"confirmation_date"`
	CancellationDate *string `json:"cancellation_date"`
	PassengerName    string  `json:"passenger_name,omitempty"`
	PassengerEmail   string  `json:"passenger_email,omitempty"`
	PassengerTel     string  `json:"passenger_tel,omitempty"`
}

func newBookingView(b models.Booking) bookingView {
	return bookingView{
		ID:               b.ID,
		FlightID:         b.FlightID,
		PassengerID:      b.PassengerID,
		BookingStatus:    b.BookingStatus,
		PaymentMethod:    b.PaymentMethod,
		AmountPaid:       money.FormatMinor(b.AmountPaid),
		BookingDate:      formatTime(b.BookingDate),
		ConfirmationDate: formatTimePtr(b.ConfirmationDate),
		CancellationDate: formatTimePtr(b.CancellationDate),
	}
}

func newFlightBookingViews(bookings []store.FlightBooking) []bookingView {
	views := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		view := newBookingView(b.Booking)
		view.PassengerName = b.PassengerName
		view.PassengerEmail = b.PassengerEmail
		view.PassengerTel = b.PassengerTel
		views = append(views, view)
	}
	return views
}

type tripView struct {
	bookingView
	FlightName   string     `json:"flight_name"`
	FlightCode   string     `json:"flight_code"`
	FlightStatus string     `json:"flight_status"`
	Fees         string     `json:"fees"`
	CompanyID    string     `json:"company_id"`
	CompanyName  string     `json:"company_name"`
	Route        string     `json:"route"`
	Itinerary    []stopView `json:"itinerary"`
}

func newTripView(trip services.PassengerTrip) tripView {
	b := trip.Booking
	return tripView{
		bookingView:  newBookingView(b.Booking),
		FlightName:   b.FlightName,
		FlightCode:   b.FlightCode,
		FlightStatus: b.FlightStatus,
		Fees:         money.FormatMinor(b.Fees),
		CompanyID:    b.CompanyID,
		CompanyName:  b.CompanyName,
		Route:        itinerary.Route(trip.Stops),
		Itinerary:    newStopViews(trip.Stops),
	}
}

type transactionView struct {
	ID              string  `json:"id"`
	BookingID       *string `json:"booking_id"`
	TransactionType string  `json:"transaction_type"`
	Amount          string  `json:"amount"`
	BalanceBefore   string  `json:"balance_before"`
	BalanceAfter    string  `json:"balance_after"`
	Description     string  `json:"description"`
	CreatedAt       string  `json:"created_at"`
}

func newTransactionViews(entries []models.Transaction) []transactionView {
	views := make([]transactionView, 0, len(entries))
	for _, e := range entries {
		views = append(views, transactionView{
			ID:              e.ID,
			BookingID:       e.BookingID,
			TransactionType: e.TransactionType,
			Amount:          money.FormatMinor(e.Amount),
			BalanceBefore:   money.FormatMinor(e.BalanceBefore),
			BalanceAfter:    money.FormatMinor(e.BalanceAfter),
			Description:     e.Description,
			CreatedAt:       formatTime(e.CreatedAt),
		})
	}
	return views
}

type messageView struct {
	ID           string  `json:"id"`
	SenderID     string  `json:"sender_id"`
	ReceiverID   string  `json:"receiver_id"`
	FlightID     *string `json:"flight_id"`
	Message      string  `json:"message"`
	MessageType  string  `json:"message_type"`
	IsRead       bool    `json:"is_read"`
	SentAt       string  `json:"sent_at"`
	SenderName   string  `json:"sender_name,omitempty"`
	SenderType   string  `json:"sender_type,omitempty"`
	ReceiverName string  `json:"receiver_name,omitempty"`
	ReceiverType string  `json:"receiver_type,omitempty"`
	FlightCode   *string `json:"flight_code,omitempty"`
	FlightName   *string `json:"flight_name,omitempty"`
}

func newMessageView(m models.Message) messageView {
	return messageView{
		ID:          m.ID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		FlightID:    m.FlightID,
		Message:     m.Message,
		MessageType: m.MessageType,
		IsRead:      m.IsRead,
		SentAt:      formatTime(m.SentAt),
	}
}

func newConversationViews(messages []store.ConversationMessage) []messageView {
	views := make([]messageView, 0, len(messages))
	for _, m := range messages {
		view := newMessageView(m.Message)
		view.SenderName, view.SenderType = m.SenderName, m.SenderType
		view.ReceiverName, view.ReceiverType = m.ReceiverName, m.ReceiverType
		view.FlightCode, view.FlightName = m.FlightCode, m.FlightName
		views = append(views, view)
	}
	return views
}

type conversationView struct {
	OtherUserID     string  `json:"other_user_id"`
	OtherUserName   string  `json:"other_user_name"`
	OtherUserType   string  `json:"other_user_type"`
	OtherUserEmail  string  `json:"other_user_email"`
	OtherUserImage  *string `json:"other_user_image"`
	LastMessage     string  `json:"last_message"`
	LastMessageTime string  `json:"last_message_time"`
	UnreadCount     int     `json:"unread_count"`
}

func newConversationSummaryViews(summaries []store.ConversationSummary) []conversationView {
	views := make([]conversationView, 0, len(summaries))
	for _, s := range summaries {
		views = append(views, conversationView{
			OtherUserID:     s.OtherUserID,
			OtherUserName:   s.OtherUserName,
			OtherUserType:   s.OtherUserType,
			OtherUserEmail:  s.OtherUserEmail,
			OtherUserImage:  s.OtherUserImage,
			LastMessage:     s.LastMessage,
			LastMessageTime: formatTime(s.LastMessageTime),
			UnreadCount:     s.UnreadCount,
		})
	}
	return views
}
