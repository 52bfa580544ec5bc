package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"flightbooking/internal/events"
	"flightbooking/internal/models"
	"flightbooking/internal/store"
	"flightbooking/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

// memWorld is an in-memory database. memTxRunner restores a snapshot when
// the callback fails, so tests observe commit-or-rollback behaviour.
type memWorld struct {
	users        map[string]models.User
	flights      map[string]models.Flight
	stops        map[string][]models.ItineraryStop
	bookings     map[string]models.Booking
	bookingOrder []string
	transactions []store.TransactionInput
	audits       []string
	locks        []string
}

func newWorld() *memWorld {
	return &memWorld{
		users:    map[string]models.User{},
		flights:  map[string]models.Flight{},
		stops:    map[string][]models.ItineraryStop{},
		bookings: map[string]models.Booking{},
	}
}

func (w *memWorld) addUser(id, userType string, balance int64) {
	w.users[id] = models.User{ID: id, UserType: userType, Name: strings.ToUpper(id), AccountBalance: balance, IsActive: true}
}

func (w *memWorld) addFlight(f models.Flight) {
	if f.Status == "" {
		f.Status = models.FlightStatusPending
	}
	w.flights[f.ID] = f
}

func (w *memWorld) addBooking(b models.Booking) {
	w.bookings[b.ID] = b
	w.bookingOrder = append(w.bookingOrder, b.ID)
}

func (w *memWorld) balance(id string) int64 {
	return w.users[id].AccountBalance
}

func (w *memWorld) transactionsOfType(txType string) []store.TransactionInput {
	var out []store.TransactionInput
	for _, t := range w.transactions {
		if t.Type == txType {
			out = append(out, t)
		}
	}
	return out
}

func (w *memWorld) snapshot() *memWorld {
	c := newWorld()
	for k, v := range w.users {
		c.users[k] = v
	}
	for k, v := range w.flights {
		c.flights[k] = v
	}
	for k, v := range w.stops {
		c.stops[k] = append([]models.ItineraryStop(nil), v...)
	}
	for k, v := range w.bookings {
		c.bookings[k] = v
	}
	c.bookingOrder = append([]string(nil), w.bookingOrder...)
	c.transactions = append([]store.TransactionInput(nil), w.transactions...)
	c.audits = append([]string(nil), w.audits...)
	return c
}

type memTxRunner struct {
	w *memWorld
}

func (r memTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	saved := r.w.snapshot()
	r.w.locks = nil
	if err := fn(nil); err != nil {
		locks := r.w.locks
		*r.w = *saved
		r.w.locks = locks
		return err
	}
	return nil
}

type memAccounts struct{ w *memWorld }

func (m memAccounts) GetByUser(_ context.Context, userID string) (store.Account, error) {
	u, ok := m.w.users[userID]
	if !ok {
		return store.Account{}, sql.ErrNoRows
	}
	return store.Account{UserID: u.ID, UserType: u.UserType, Name: u.Name, Balance: u.AccountBalance}, nil
}

func (m memAccounts) GetForUpdate(ctx context.Context, _ store.Getter, userID string) (store.Account, error) {
	m.w.locks = append(m.w.locks, userID)
	return m.GetByUser(ctx, userID)
}

func (m memAccounts) UpdateBalance(_ context.Context, _ store.Execer, userID string, balance int64) error {
	u := m.w.users[userID]
	u.AccountBalance = balance
	m.w.users[userID] = u
	return nil
}

type memTransactions struct{ w *memWorld }

func (m memTransactions) Create(_ context.Context, _ store.Execer, input store.TransactionInput) error {
	m.w.transactions = append(m.w.transactions, input)
	return nil
}

func (m memTransactions) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	var out []models.Transaction
	for i := len(m.w.transactions) - 1; i >= 0; i-- {
		t := m.w.transactions[i]
		if t.UserID != userID {
			continue
		}
		out = append(out, models.Transaction{
			ID: t.ID, UserID: t.UserID, BookingID: t.BookingID, TransactionType: t.Type,
			Amount: t.Amount, BalanceBefore: t.BalanceBefore, BalanceAfter: t.BalanceAfter, Description: t.Description,
		})
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type memFlights struct{ w *memWorld }

func (m memFlights) Create(_ context.Context, _ store.Execer, flight models.Flight) error {
	flight.RegisteredPassengers = 0
	m.w.flights[flight.ID] = flight
	return nil
}

func (m memFlights) Update(_ context.Context, _ store.Execer, flight models.Flight) error {
	m.w.flights[flight.ID] = flight
	return nil
}

func (m memFlights) InsertStops(_ context.Context, _ store.Execer, stops []models.ItineraryStop) error {
	for _, s := range stops {
		m.w.stops[s.FlightID] = append(m.w.stops[s.FlightID], s)
	}
	return nil
}

func (m memFlights) DeleteStops(_ context.Context, _ store.Execer, flightID string) error {
	delete(m.w.stops, flightID)
	return nil
}

func (m memFlights) GetByID(_ context.Context, flightID string) (store.FlightWithCompany, error) {
	f, ok := m.w.flights[flightID]
	if !ok {
		return store.FlightWithCompany{}, sql.ErrNoRows
	}
	return store.FlightWithCompany{Flight: f, CompanyName: m.w.users[f.CompanyID].Name}, nil
}

func (m memFlights) GetForUpdate(_ context.Context, _ store.Getter, flightID string) (models.Flight, error) {
	f, ok := m.w.flights[flightID]
	if !ok {
		return models.Flight{}, sql.ErrNoRows
	}
	return f, nil
}

func (m memFlights) CodeTaken(_ context.Context, code, excludeFlightID string) (bool, error) {
	for id, f := range m.w.flights {
		if f.FlightCode == code && id != excludeFlightID {
			return true, nil
		}
	}
	return false, nil
}

func (m memFlights) AdjustRegistered(_ context.Context, _ store.Execer, flightID string, delta int) error {
	f := m.w.flights[flightID]
	f.RegisteredPassengers += delta
	m.w.flights[flightID] = f
	return nil
}

func (m memFlights) MarkCancelled(_ context.Context, _ store.Execer, flightID string) error {
	f := m.w.flights[flightID]
	f.Status = models.FlightStatusCancelled
	f.RegisteredPassengers = 0
	m.w.flights[flightID] = f
	return nil
}

func (m memFlights) MarkCompleted(_ context.Context, _ store.Execer, flightID string) error {
	f := m.w.flights[flightID]
	f.Status = models.FlightStatusCompleted
	m.w.flights[flightID] = f
	return nil
}

func (m memFlights) ListByCompany(_ context.Context, companyID string) ([]models.Flight, error) {
	var out []models.Flight
	for _, f := range m.w.flights {
		if f.CompanyID == companyID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memFlights) Stops(_ context.Context, flightID string) ([]models.ItineraryStop, error) {
	return m.w.stops[flightID], nil
}

func (m memFlights) StopsByFlight(_ context.Context, flightIDs []string) (map[string][]models.ItineraryStop, error) {
	out := map[string][]models.ItineraryStop{}
	for _, id := range flightIDs {
		out[id] = m.w.stops[id]
	}
	return out, nil
}

func (m memFlights) Search(_ context.Context, q store.SearchQuery) ([]store.FlightWithCompany, error) {
	var out []store.FlightWithCompany
	for _, f := range m.w.flights {
		if f.Status == models.FlightStatusPending && f.SeatsLeft() > 0 {
			out = append(out, store.FlightWithCompany{Flight: f, CompanyName: m.w.users[f.CompanyID].Name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memBookings struct{ w *memWorld }

func (m memBookings) Create(_ context.Context, _ store.Execer, booking models.Booking) error {
	m.w.addBooking(booking)
	return nil
}

func (m memBookings) ExistsForPassenger(_ context.Context, _ store.Getter, flightID, passengerID string) (bool, error) {
	for _, b := range m.w.bookings {
		if b.FlightID == flightID && b.PassengerID == passengerID {
			return true, nil
		}
	}
	return false, nil
}

func (m memBookings) GetByID(_ context.Context, bookingID string) (models.Booking, error) {
	b, ok := m.w.bookings[bookingID]
	if !ok {
		return models.Booking{}, sql.ErrNoRows
	}
	return b, nil
}

func (m memBookings) GetForUpdate(ctx context.Context, _ store.Getter, bookingID string) (models.Booking, error) {
	return m.GetByID(ctx, bookingID)
}

func (m memBookings) ListOpenForUpdate(_ context.Context, _ store.Selecter, flightID string) ([]models.Booking, error) {
	var out []models.Booking
	for _, id := range m.w.bookingOrder {
		b := m.w.bookings[id]
		if b.FlightID == flightID && b.BookingStatus != models.BookingStatusCancelled {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m memBookings) MarkCancelled(_ context.Context, _ store.Execer, bookingID string, at time.Time) error {
	b := m.w.bookings[bookingID]
	b.BookingStatus = models.BookingStatusCancelled
	b.CancellationDate = &at
	m.w.bookings[bookingID] = b
	return nil
}

func (m memBookings) GetForPassenger(_ context.Context, flightID, passengerID string) (models.Booking, error) {
	for _, b := range m.w.bookings {
		if b.FlightID == flightID && b.PassengerID == passengerID {
			return b, nil
		}
	}
	return models.Booking{}, sql.ErrNoRows
}

func (m memBookings) ListByFlights(_ context.Context, flightIDs []string) (map[string][]store.FlightBooking, error) {
	out := map[string][]store.FlightBooking{}
	for _, id := range m.w.bookingOrder {
		b := m.w.bookings[id]
		for _, fid := range flightIDs {
			if b.FlightID == fid {
				out[fid] = append(out[fid], store.FlightBooking{Booking: b, PassengerName: m.w.users[b.PassengerID].Name})
			}
		}
	}
	return out, nil
}

func (m memBookings) ListByPassenger(_ context.Context, passengerID string) ([]store.PassengerBooking, error) {
	var out []store.PassengerBooking
	for _, id := range m.w.bookingOrder {
		b := m.w.bookings[id]
		if b.PassengerID != passengerID {
			continue
		}
		f := m.w.flights[b.FlightID]
		out = append(out, store.PassengerBooking{
			Booking: b, FlightName: f.FlightName, FlightCode: f.FlightCode, FlightStatus: f.Status,
			Fees: f.Fees, CompanyID: f.CompanyID, CompanyName: m.w.users[f.CompanyID].Name,
		})
	}
	return out, nil
}

func (m memBookings) StatusesForPassenger(_ context.Context, passengerID string) (map[string]string, error) {
	out := map[string]string{}
	for _, b := range m.w.bookings {
		if b.PassengerID == passengerID {
			out[b.FlightID] = b.BookingStatus
		}
	}
	return out, nil
}

type memAudit struct{ w *memWorld }

func (m memAudit) Log(_ context.Context, _ store.Execer, actorID, action, entityType, entityID, data string) error {
	m.w.audits = append(m.w.audits, action)
	return nil
}

type recordingNotifier struct {
	events map[string][]websocket.Event
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: map[string][]websocket.Event{}}
}

func (n *recordingNotifier) Send(userID string, event websocket.Event) {
	n.events[userID] = append(n.events[userID], event)
}

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.events = append(p.events, event)
	return p.err
}

type memCache struct {
	entries      map[string][]byte
	generation   int64
	invalidated  int
	gets, writes int
	// beforeSet runs between a miss and the write that follows it.
	beforeSet func()
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func cacheKey(gen int64, from, to string) string {
	return fmt.Sprintf("%d:%s|%s", gen, from, to)
}

func (c *memCache) GetSearch(_ context.Context, from, to string) ([]byte, int64, error) {
	c.gets++
	return c.entries[cacheKey(c.generation, from, to)], c.generation, nil
}

func (c *memCache) SetSearch(_ context.Context, gen int64, from, to string, payload []byte) error {
	if c.beforeSet != nil {
		c.beforeSet()
	}
	c.writes++
	c.entries[cacheKey(gen, from, to)] = payload
	return nil
}

func (c *memCache) Invalidate(context.Context) error {
	c.invalidated++
	c.generation++
	return nil
}

type testEnv struct {
	world     *memWorld
	notifier  *recordingNotifier
	publisher *recordingPublisher
	cache     *memCache
	ledger    *Ledger
	bookings  *BookingService
	flights   *FlightService
	accounts  *AccountService
}

func newTestEnv() *testEnv {
	w := newWorld()
	env := &testEnv{
		world:     w,
		notifier:  newRecordingNotifier(),
		publisher: &recordingPublisher{},
		cache:     newMemCache(),
	}
	effects := NewSideEffects(env.notifier, env.publisher, env.cache, nil)
	runner := memTxRunner{w: w}
	env.ledger = NewLedger(memAccounts{w}, memTransactions{w})
	env.bookings = NewBookingService(runner, memFlights{w}, memBookings{w}, env.ledger, memAudit{w}, effects)
	env.bookings.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	env.flights = NewFlightService(runner, memFlights{w}, memBookings{w}, stubUserStore{}, memAudit{w}, effects)
	env.accounts = NewAccountService(runner, stubUserStore{}, env.ledger, memAudit{w}, effects)
	return env
}

func stringPtr(value string) *string {
	return &value
}
