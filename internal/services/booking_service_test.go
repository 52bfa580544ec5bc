package services

import (
	"context"
	"errors"
	"testing"

	"flightbooking/internal/events"
	"flightbooking/internal/models"
	"flightbooking/internal/websocket"
)

func seedFlight(env *testEnv, id string, maxPassengers int, fees int64) {
	env.world.addUser("company", models.UserTypeCompany, 0)
	env.world.addFlight(models.Flight{
		ID:            id,
		CompanyID:     "company",
		FlightName:    "Morning Hop",
		FlightCode:    "MH" + id,
		MaxPassengers: maxPassengers,
		Fees:          fees,
	})
}

func TestBookLastSeat(t *testing.T) {
	env := newTestEnv()
	seedFlight(env, "f1", 1, 5000)
	env.world.addUser("alice", models.UserTypePassenger, 10000)
	env.world.addUser("bob", models.UserTypePassenger, 10000)
	ctx := context.Background()

	result, err := env.bookings.Book(ctx, BookRequest{PassengerID: "alice", FlightID: "f1", PaymentMethod: models.PaymentAccount})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Booking.BookingStatus != models.BookingStatusConfirmed || result.Booking.AmountPaid != 5000 {
		t.Fatalf("unexpected booking: %+v", result.Booking)
	}
	if result.Booking.ConfirmationDate == nil {
		t.Fatalf("expected confirmation date")
	}
	if result.Balance == nil || *result.Balance != 5000 {
		t.Fatalf("expected balance 5000, got %v", result.Balance)
	}
	flight := env.world.flights["f1"]
	if flight.RegisteredPassengers != 1 || flight.Status != models.FlightStatusPending {
		t.Fatalf("unexpected flight state: %+v", flight)
	}

	if _, err := env.bookings.Book(ctx, BookRequest{PassengerID: "bob", FlightID: "f1", PaymentMethod: models.PaymentAccount}); err != ErrNoSeatsAvailable {
		t.Fatalf("expected ErrNoSeatsAvailable, got %v", err)
	}
	if _, err := env.bookings.Book(ctx, BookRequest{PassengerID: "alice", FlightID: "f1", PaymentMethod: models.PaymentAccount}); err != ErrAlreadyBooked {
		t.Fatalf("expected ErrAlreadyBooked, got %v", err)
	}
	if env.world.balance("bob") != 10000 {
		t.Fatalf("bob should not be charged, got %d", env.world.balance("bob"))
	}
}

func TestBookAccountPaymentMovesFunds(t *testing.T) {
	env := newTestEnv()
	seedFlight(env, "f1", 10, 2550)
	env.world.addUser("alice", models.UserTypePassenger, 10000)

	result, err := env.bookings.Book(context.Background(), BookRequest{PassengerID: "alice", FlightID: "f1", PaymentMethod: models.PaymentAccount})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.world.balance("alice") != 7450 || env.world.balance("company") != 2550 {
		t.Fatalf("unexpected balances alice=%d company=%d", env.world.balance("alice"), env.world.balance("company"))
	}
	payments := env.world.transactionsOfType(models.TransactionPayment)
	deposits := env.world.transactionsOfType(models.TransactionDeposit)
	if len(payments) != 1 || len(deposits) != 1 {
		t.Fatalf("expected one payment and one deposit, got %d/%d", len(payments), len(deposits))
	}
	if payments[0].UserID != "alice" || payments[0].BalanceBefore != 10000 || payments[0].BalanceAfter != 7450 {
		t.Fatalf("unexpected payment entry: %+v", payments[0])
	}
	if deposits[0].UserID != "company" || deposits[0].BalanceBefore != 0 || deposits[0].BalanceAfter != 2550 {
		t.Fatalf("unexpected deposit entry: %+v", deposits[0])
	}
	if payments[0].BookingID == nil || *payments[0].BookingID != result.Booking.ID {
		t.Fatalf("payment should reference booking")
	}
	if len(env.world.locks) < 2 || env.world.locks[0] != "alice" || env.world.locks[1] != "company" {
		t.Fatalf("expected accounts locked in id order, got %v", env.world.locks)
	}
}

func TestBookCashSkipsLedger(t *testing.T) {
	env := newTestEnv()
	seedFlight(env, "f1", 10, 2550)
	env.world.addUser("alice", models.UserTypePassenger, 0)

	result, err := env.bookings.Book(context.Background(), BookRequest{PassengerID: "alice", FlightID: "f1", PaymentMethod: models.PaymentCash})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Balance != nil {
		t.Fatalf("cash booking should not report a balance")
	}
	if len(env.world.transactions) != 0 {
		t.Fatalf("expected no ledger entries, got %d", len(env.world.transactions))
	}
	if env.world.flights["f1"].RegisteredPassengers != 1 {
		t.Fatalf("expected seat taken")
	}
}

func TestBookInsufficientFundsRollsBack(t *testing.T) {
	env := newTestEnv()
	seedFlight(env, "f1", 10, 15000)
	env.world.addUser("alice", models.UserTypePassenger, 10000)

	_, err := env.bookings.Book(context.Background(), BookRequest{PassengerID: "alice", FlightID: "f1", PaymentMethod: models.PaymentAccount})
	if err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if env.world.balance("alice") != 10000 {
		t.Fatalf("balance should be unchanged, got %d", env.world.balance("alice"))
	}
	if len(env.world.bookings) != 0 || len(env.world.transactions) != 0 {
		t.Fatalf("expected rollback, got %d bookings %d transactions", len(env.world.bookings), len(env.world.transactions))
	}
	if env.world.flights["f1"].RegisteredPassengers != 0 {
		t.Fatalf("seat counter should be unchanged")
	}
	if len(env.publisher.events) != 0 {
		t.Fatalf("no event expected on failure")
	}
}

func TestBookRejectsUnavailableFlight(t *testing.T) {
	for _, status := range []string{models.FlightStatusCancelled, models.FlightStatusCompleted} {
		env := newTestEnv()
		env.world.addUser("company", models.UserTypeCompany, 0)
		env.world.addUser("alice", models.UserTypePassenger, 10000)
		env.world.addFlight(models.Flight{ID: "f1", CompanyID: "company", MaxPassengers: 5, Fees: 100, Status: status})
		_, err := env.bookings.Book(context.Background(), BookRequest{PassengerID: "alice", FlightID: "f1", PaymentMethod: models.PaymentCash})
		if err != ErrFlightNotAvailable {
			t.Fatalf("%s: expected ErrFlightNotAvailable, got %v", status, err)
		}
	}
}

func TestBookUnknownFlight(t *testing.T) {
	env := newTestEnv()
	_, err := env.bookings.Book(context.Background(), BookRequest{PassengerID: "alice", FlightID: "missing", PaymentMethod: models.PaymentCash})
	if err != ErrFlightNotFound {
		t.Fatalf("expected ErrFlightNotFound, got %v", err)
	}
}

func TestBookInvalidPaymentMethod(t *testing.T) {
	env := newTestEnv()
	_, err := env.bookings.Book(context.Background(), BookRequest{PassengerID: "alice", FlightID: "f1", PaymentMethod: "card"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verr.Fields["payment_method"]) != 1 {
		t.Fatalf("expected payment_method error, got %v", verr.Fields)
	}
}

func TestBookSideEffects(t *testing.T) {
	env := newTestEnv()
	seedFlight(env, "f1", 10, 1000)
	env.world.addUser("alice", models.UserTypePassenger, 1000)

	if _, err := env.bookings.Book(context.Background(), BookRequest{PassengerID: "alice", FlightID: "f1", PaymentMethod: models.PaymentAccount}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.publisher.events) != 1 || env.publisher.events[0].Type != events.BookingConfirmed {
		t.Fatalf("expected booking.confirmed event, got %+v", env.publisher.events)
	}
	if env.publisher.events[0].Amount != "10.00" {
		t.Fatalf("expected amount 10.00, got %s", env.publisher.events[0].Amount)
	}
	if env.cache.invalidated != 1 {
		t.Fatalf("expected cache invalidation")
	}
	aliceEvents := env.notifier.events["alice"]
	if len(aliceEvents) != 2 || aliceEvents[0].Type != websocket.EventBalance || aliceEvents[1].Type != websocket.EventBooking {
		t.Fatalf("unexpected passenger pushes: %+v", aliceEvents)
	}
	update := aliceEvents[0].Payload.(websocket.BalanceUpdate)
	if update.Balance != "0.00" {
		t.Fatalf("expected balance 0.00, got %s", update.Balance)
	}
	if len(env.notifier.events["company"]) != 1 {
		t.Fatalf("expected company balance push")
	}
}

func TestBookPublishFailureDoesNotFailRequest(t *testing.T) {
	env := newTestEnv()
	seedFlight(env, "f1", 10, 1000)
	env.world.addUser("alice", models.UserTypePassenger, 0)
	env.publisher.err = errors.New("broker down")

	if _, err := env.bookings.Book(context.Background(), BookRequest{PassengerID: "alice", FlightID: "f1", PaymentMethod: models.PaymentCash}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.world.bookings) != 1 {
		t.Fatalf("booking should be committed")
	}
}

func seedConfirmed(env *testEnv, flightID string, passengers []string, amount int64, method string) {
	for _, p := range passengers {
		env.world.addUser(p, models.UserTypePassenger, 0)
		env.world.addBooking(models.Booking{
			ID:            "b-" + p,
			FlightID:      flightID,
			PassengerID:   p,
			BookingStatus: models.BookingStatusConfirmed,
			PaymentMethod: method,
			AmountPaid:    amount,
		})
		f := env.world.flights[flightID]
		f.RegisteredPassengers++
		env.world.flights[flightID] = f
	}
}

func TestCancelFlightRefundsConfirmedBookings(t *testing.T) {
	env := newTestEnv()
	seedFlight(env, "f1", 10, 5000)
	seedConfirmed(env, "f1", []string{"p1", "p2", "p3"}, 5000, models.PaymentAccount)
	company := env.world.users["company"]
	company.AccountBalance = 15000
	env.world.users["company"] = company

	result, err := env.bookings.CancelFlight(context.Background(), "company", "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range []string{"p1", "p2", "p3"} {
		if env.world.balance(p) != 5000 {
			t.Fatalf("%s expected refund 5000, got %d", p, env.world.balance(p))
		}
		if env.world.bookings["b-"+p].BookingStatus != models.BookingStatusCancelled {
			t.Fatalf("%s booking should be cancelled", p)
		}
		if env.world.bookings["b-"+p].CancellationDate == nil {
			t.Fatalf("%s cancellation date missing", p)
		}
	}
	if env.world.balance("company") != 0 {
		t.Fatalf("company should be debited 15000, got %d", env.world.balance("company"))
	}
	if refunds := env.world.transactionsOfType(models.TransactionRefund); len(refunds) != 3 {
		t.Fatalf("expected 3 refund entries, got %d", len(refunds))
	}
	flight := env.world.flights["f1"]
	if flight.Status != models.FlightStatusCancelled || flight.RegisteredPassengers != 0 {
		t.Fatalf("unexpected flight state: %+v", flight)
	}
	if result.CancelledBookings != 3 || result.RefundedBookings != 3 || result.RefundTotal != 15000 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(env.publisher.events) != 1 || env.publisher.events[0].Type != events.FlightCancelled {
		t.Fatalf("expected flight.cancelled event")
	}
}

func TestCancelFlightCashBookingsNotRefunded(t *testing.T) {
	env := newTestEnv()
	seedFlight(env, "f1", 10, 5000)
	seedConfirmed(env, "f1", []string{"p1"}, 5000, models.PaymentCash)

	result, err := env.bookings.CancelFlight(context.Background(), "company", "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.world.transactions) != 0 || env.world.balance("p1") != 0 {
		t.Fatalf("cash booking should not be refunded")
	}
	if env.world.bookings["b-p1"].BookingStatus != models.BookingStatusCancelled {
		t.Fatalf("cash booking should still be cancelled")
	}
	if result.CancelledBookings != 1 || result.RefundedBookings != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCancelFlightTwiceIsRejected(t *testing.T) {
	env := newTestEnv()
	seedFlight(env, "f1", 10, 5000)
	seedConfirmed(env, "f1", []string{"p1"}, 5000, models.PaymentAccount)
	company := env.world.users["company"]
	company.AccountBalance = 5000
	env.world.users["company"] = company
	ctx := context.Background()

	if _, err := env.bookings.CancelFlight(ctx, "company", "f1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries := len(env.world.transactions)
	balance := env.world.balance("p1")
	if _, err := env.bookings.CancelFlight(ctx, "company", "f1"); err != ErrAlreadyCancelled {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
	if len(env.world.transactions) != entries || env.world.balance("p1") != balance {
		t.Fatalf("second cancel must not touch the ledger")
	}
}

func TestCancelFlightNotOwner(t *testing.T) {
	env := newTestEnv()
	seedFlight(env, "f1", 10, 5000)
	if _, err := env.bookings.CancelFlight(context.Background(), "other-company", "f1"); err != ErrNotFlightOwner {
		t.Fatalf("expected ErrNotFlightOwner, got %v", err)
	}
	if env.world.flights["f1"].Status != models.FlightStatusPending {
		t.Fatalf("flight should be untouched")
	}
}

func TestCancelFlightRollsBackWhenCompanyCannotRefund(t *testing.T) {
	env := newTestEnv()
	seedFlight(env, "f1", 10, 5000)
	seedConfirmed(env, "f1", []string{"p1", "p2"}, 5000, models.PaymentAccount)
	company := env.world.users["company"]
	company.AccountBalance = 5000
	env.world.users["company"] = company

	if _, err := env.bookings.CancelFlight(context.Background(), "company", "f1"); err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if env.world.balance("p1") != 0 || env.world.balance("company") != 5000 {
		t.Fatalf("balances should be restored")
	}
	if env.world.bookings["b-p1"].BookingStatus != models.BookingStatusConfirmed {
		t.Fatalf("bookings should be restored")
	}
	if env.world.flights["f1"].Status != models.FlightStatusPending {
		t.Fatalf("flight should stay pending")
	}
}

func TestCancelBookingByPassenger(t *testing.T) {
	env := newTestEnv()
	seedFlight(env, "f1", 10, 5000)
	seedConfirmed(env, "f1", []string{"p1"}, 5000, models.PaymentAccount)
	company := env.world.users["company"]
	company.AccountBalance = 5000
	env.world.users["company"] = company

	result, err := env.bookings.CancelBooking(context.Background(), CancelBookingRequest{
		ActorID: "p1", ActorType: models.UserTypePassenger, BookingID: "b-p1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Refunded != 5000 || env.world.balance("p1") != 5000 || env.world.balance("company") != 0 {
		t.Fatalf("unexpected refund: %+v p1=%d company=%d", result, env.world.balance("p1"), env.world.balance("company"))
	}
	if env.world.flights["f1"].RegisteredPassengers != 0 {
		t.Fatalf("seat should be released")
	}
	if result.Booking.BookingStatus != models.BookingStatusCancelled || result.Booking.CancellationDate == nil {
		t.Fatalf("unexpected booking: %+v", result.Booking)
	}
	if _, err := env.bookings.CancelBooking(context.Background(), CancelBookingRequest{
		ActorID: "p1", ActorType: models.UserTypePassenger, BookingID: "b-p1",
	}); err != ErrBookingCancelled {
		t.Fatalf("expected ErrBookingCancelled, got %v", err)
	}
}

func TestCancelBookingOwnership(t *testing.T) {
	env := newTestEnv()
	seedFlight(env, "f1", 10, 5000)
	seedConfirmed(env, "f1", []string{"p1"}, 5000, models.PaymentCash)
	ctx := context.Background()

	if _, err := env.bookings.CancelBooking(ctx, CancelBookingRequest{ActorID: "p2", ActorType: models.UserTypePassenger, BookingID: "b-p1"}); err != ErrNotBookingOwner {
		t.Fatalf("expected ErrNotBookingOwner, got %v", err)
	}
	if _, err := env.bookings.CancelBooking(ctx, CancelBookingRequest{ActorID: "rival", ActorType: models.UserTypeCompany, BookingID: "b-p1"}); err != ErrNotFlightOwner {
		t.Fatalf("expected ErrNotFlightOwner, got %v", err)
	}
	if _, err := env.bookings.CancelBooking(ctx, CancelBookingRequest{ActorID: "company", ActorType: models.UserTypeCompany, BookingID: "b-p1"}); err != nil {
		t.Fatalf("company should cancel bookings on its flight: %v", err)
	}
	if _, err := env.bookings.CancelBooking(ctx, CancelBookingRequest{ActorID: "p1", ActorType: models.UserTypePassenger, BookingID: "missing"}); err != ErrBookingNotFound {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestCancelBookingOnClosedFlight(t *testing.T) {
	env := newTestEnv()
	seedFlight(env, "f1", 10, 5000)
	seedConfirmed(env, "f1", []string{"p1"}, 5000, models.PaymentCash)
	f := env.world.flights["f1"]
	f.Status = models.FlightStatusCompleted
	env.world.flights["f1"] = f

	_, err := env.bookings.CancelBooking(context.Background(), CancelBookingRequest{ActorID: "p1", ActorType: models.UserTypePassenger, BookingID: "b-p1"})
	if err != ErrFlightNotEditable {
		t.Fatalf("expected ErrFlightNotEditable, got %v", err)
	}
}

func TestBookAfterRunnerFailure(t *testing.T) {
	service := NewBookingService(fakeTxRunner{err: errors.New("db down")}, memFlights{newWorld()}, memBookings{newWorld()}, nil, memAudit{newWorld()}, NewSideEffects(nil, nil, nil, nil))
	if _, err := service.Book(context.Background(), BookRequest{PassengerID: "p", FlightID: "f", PaymentMethod: models.PaymentCash}); err == nil {
		t.Fatalf("expected error")
	}
}
