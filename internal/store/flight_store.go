package store

import (
	"context"
	"strings"

	"flightbooking/internal/models"

	"github.com/lib/pq"
)

type FlightStore struct {
	db DB
}

// FlightWithCompany is a flight row joined with the owning company's name.
type FlightWithCompany struct {
	models.Flight
	CompanyName string `db:"company_name"`
}

// SearchQuery holds optional city substrings; matching is case-insensitive.
type SearchQuery struct {
	From string
	To   string
}

const flightColumns = `
	f.id, f.company_id, f.flight_name, f.flight_code, f.max_passengers,
	f.registered_passengers, f.fees, f.status, f.created_at, f.updated_at
`

func NewFlightStore(db DB) *FlightStore {
	return &FlightStore{db: db}
}

func (s *FlightStore) Create(ctx context.Context, tx Execer, flight models.Flight) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO flights (id, company_id, flight_name, flight_code, max_passengers, registered_passengers, fees, status)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7)
	`, flight.ID, flight.CompanyID, flight.FlightName, flight.FlightCode, flight.MaxPassengers, flight.Fees, flight.Status)
	return err
}

func (s *FlightStore) Update(ctx context.Context, tx Execer, flight models.Flight) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE flights
		SET flight_name = $1, flight_code = $2, max_passengers = $3, fees = $4, updated_at = NOW()
		WHERE id = $5
	`, flight.FlightName, flight.FlightCode, flight.MaxPassengers, flight.Fees, flight.ID)
	return err
}

func (s *FlightStore) InsertStops(ctx context.Context, tx Execer, stops []models.ItineraryStop) error {
	for _, stop := range stops {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO flight_itinerary (id, flight_id, city, sequence_order, start_datetime, end_datetime)
			VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		`, stop.FlightID, stop.City, stop.SequenceOrder, stop.StartDatetime, stop.EndDatetime); err != nil {
			return err
		}
	}
	return nil
}

func (s *FlightStore) DeleteStops(ctx context.Context, tx Execer, flightID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM flight_itinerary WHERE flight_id = $1`, flightID)
	return err
}

func (s *FlightStore) GetByID(ctx context.Context, flightID string) (FlightWithCompany, error) {
	var row FlightWithCompany
	err := s.db.GetContext(ctx, &row, `
		SELECT `+flightColumns+`, u.name AS company_name
		FROM flights f
		JOIN users u ON u.id = f.company_id
		WHERE f.id = $1
	`, flightID)
	if err != nil {
		return FlightWithCompany{}, err
	}
	return row, nil
}

func (s *FlightStore) GetForUpdate(ctx context.Context, tx Getter, flightID string) (models.Flight, error) {
	var row models.Flight
	err := tx.GetContext(ctx, &row, `
		SELECT `+flightColumns+`
		FROM flights f
		WHERE f.id = $1
		FOR UPDATE
	`, flightID)
	if err != nil {
		return models.Flight{}, err
	}
	return row, nil
}

// CodeTaken reports whether another flight already uses code.
func (s *FlightStore) CodeTaken(ctx context.Context, code, excludeFlightID string) (bool, error) {
	var taken bool
	err := s.db.GetContext(ctx, &taken, `
		SELECT EXISTS(
			SELECT 1 FROM flights
			WHERE flight_code = $1 AND ($2 = '' OR id::text <> $2)
		)
	`, code, excludeFlightID)
	return taken, err
}

func (s *FlightStore) AdjustRegistered(ctx context.Context, tx Execer, flightID string, delta int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE flights
		SET registered_passengers = registered_passengers + $1, updated_at = NOW()
		WHERE id = $2
	`, delta, flightID)
	return err
}

func (s *FlightStore) MarkCancelled(ctx context.Context, tx Execer, flightID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE flights
		SET status = 'cancelled', registered_passengers = 0, updated_at = NOW()
		WHERE id = $1
	`, flightID)
	return err
}

func (s *FlightStore) MarkCompleted(ctx context.Context, tx Execer, flightID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE flights
		SET status = 'completed', updated_at = NOW()
		WHERE id = $1
	`, flightID)
	return err
}

func (s *FlightStore) ListByCompany(ctx context.Context, companyID string) ([]models.Flight, error) {
	var rows []models.Flight
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+flightColumns+`
		FROM flights f
		WHERE f.company_id = $1
		ORDER BY f.created_at DESC
	`, companyID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *FlightStore) Stops(ctx context.Context, flightID string) ([]models.ItineraryStop, error) {
	var rows []models.ItineraryStop
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, flight_id, city, sequence_order, start_datetime, end_datetime
		FROM flight_itinerary
		WHERE flight_id = $1
		ORDER BY sequence_order
	`, flightID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// StopsByFlight loads itineraries for several flights keyed by flight id.
func (s *FlightStore) StopsByFlight(ctx context.Context, flightIDs []string) (map[string][]models.ItineraryStop, error) {
	grouped := make(map[string][]models.ItineraryStop, len(flightIDs))
	if len(flightIDs) == 0 {
		return grouped, nil
	}
	var rows []models.ItineraryStop
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, flight_id, city, sequence_order, start_datetime, end_datetime
		FROM flight_itinerary
		WHERE flight_id = ANY($1::uuid[])
		ORDER BY flight_id, sequence_order
	`, pq.Array(flightIDs))
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		grouped[row.FlightID] = append(grouped[row.FlightID], row)
	}
	return grouped, nil
}

// Search returns bookable flights whose itinerary visits From before To.
// With only From, the matching stop may not be the destination; with only
// To, it may not be the origin.
func (s *FlightStore) Search(ctx context.Context, q SearchQuery) ([]FlightWithCompany, error) {
	query := `
		SELECT ` + flightColumns + `, u.name AS company_name
		FROM flights f
		JOIN users u ON u.id = f.company_id
		WHERE f.status = 'pending'
		  AND f.registered_passengers < f.max_passengers
	`
	var args []any
	switch {
	case q.From != "" && q.To != "":
		args = append(args, likePattern(q.From), likePattern(q.To))
		query += `
		  AND EXISTS (
			SELECT 1
			FROM flight_itinerary o
			JOIN flight_itinerary d ON d.flight_id = o.flight_id AND d.sequence_order > o.sequence_order
			WHERE o.flight_id = f.id AND o.city ILIKE $1 ESCAPE '\' AND d.city ILIKE $2 ESCAPE '\'
		  )`
	case q.From != "":
		args = append(args, likePattern(q.From))
		query += `
		  AND EXISTS (
			SELECT 1
			FROM flight_itinerary o
			WHERE o.flight_id = f.id AND o.city ILIKE $1 ESCAPE '\'
			  AND o.sequence_order < (SELECT MAX(sequence_order) FROM flight_itinerary WHERE flight_id = f.id)
		  )`
	case q.To != "":
		args = append(args, likePattern(q.To))
		query += `
		  AND EXISTS (
			SELECT 1
			FROM flight_itinerary d
			WHERE d.flight_id = f.id AND d.city ILIKE $1 ESCAPE '\' AND d.sequence_order > 1
		  )`
	}
	query += " ORDER BY f.created_at DESC"

	var rows []FlightWithCompany
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(value string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(value)) + "%"
}
