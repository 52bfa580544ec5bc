// Package itinerary turns the raw ordered stop list of a flight into typed
// departure, layover and arrival stops and enforces their ordering rules.
package itinerary

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"flightbooking/internal/models"
)

const (
	MinStops      = 2
	minCityLength = 2
	maxCityLength = 255
)

var layouts = []string{
	models.DateTimeLayout,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.RFC3339,
}

// RawStop is a stop as submitted by a client.
type RawStop struct {
	City          string  `json:"city"`
	StartDatetime *string `json:"start_datetime"`
	EndDatetime   *string `json:"end_datetime"`
}

// Error reports the first stop that breaks the itinerary rules. Index is
// zero-based; Index is -1 when the list as a whole is rejected.
type Error struct {
	Index  int
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

type Stop interface {
	CityName() string
	Arrival() *time.Time
	Departure() *time.Time
	isStop()
}

// DepartureStop is the origin. Only the departure time is required; an
// arrival time, if the client sent one, is carried through untouched.
type DepartureStop struct {
	City          string
	DepartureTime time.Time
	ArrivalTime   *time.Time
}

type LayoverStop struct {
	City          string
	ArrivalTime   time.Time
	DepartureTime time.Time
}

// ArrivalStop is the destination. Only the arrival time is required.
type ArrivalStop struct {
	City          string
	ArrivalTime   time.Time
	DepartureTime *time.Time
}

func (s DepartureStop) CityName() string      { return s.City }
func (s DepartureStop) Arrival() *time.Time   { return s.ArrivalTime }
func (s DepartureStop) Departure() *time.Time { return &s.DepartureTime }
func (DepartureStop) isStop()                 {}

func (s LayoverStop) CityName() string      { return s.City }
func (s LayoverStop) Arrival() *time.Time   { return &s.ArrivalTime }
func (s LayoverStop) Departure() *time.Time { return &s.DepartureTime }
func (LayoverStop) isStop()                 {}

func (s ArrivalStop) CityName() string      { return s.City }
func (s ArrivalStop) Arrival() *time.Time   { return &s.ArrivalTime }
func (s ArrivalStop) Departure() *time.Time { return s.DepartureTime }
func (ArrivalStop) isStop()                 {}

// Build validates raw stops in order and stops at the first violation.
func Build(raw []RawStop) ([]Stop, error) {
	if len(raw) < MinStops {
		return nil, &Error{Index: -1, Reason: "Itinerary must contain at least 2 stops (departure and arrival)"}
	}
	last := len(raw) - 1
	stops := make([]Stop, 0, len(raw))
	for i, r := range raw {
		label := stopLabel(i, last)
		city := strings.TrimSpace(r.City)
		if n := utf8.RuneCountInString(city); n < minCityLength || n > maxCityLength {
			return nil, &Error{Index: i, Reason: fmt.Sprintf("%s name must be between %d and %d characters", label, minCityLength, maxCityLength)}
		}
		start, err := parseOptional(r.StartDatetime)
		if err != nil {
			return nil, &Error{Index: i, Reason: fmt.Sprintf("%s arrival time is not a valid datetime", label)}
		}
		end, err := parseOptional(r.EndDatetime)
		if err != nil {
			return nil, &Error{Index: i, Reason: fmt.Sprintf("%s departure time is not a valid datetime", label)}
		}

		var stop Stop
		switch {
		case i == 0:
			if end == nil {
				return nil, &Error{Index: i, Reason: fmt.Sprintf("%s departure time is required", label)}
			}
			stop = DepartureStop{City: city, DepartureTime: *end, ArrivalTime: start}
		case i == last:
			if start == nil {
				return nil, &Error{Index: i, Reason: fmt.Sprintf("%s arrival time is required", label)}
			}
			stop = ArrivalStop{City: city, ArrivalTime: *start, DepartureTime: end}
		default:
			if start == nil {
				return nil, &Error{Index: i, Reason: fmt.Sprintf("%s arrival time is required", label)}
			}
			if end == nil {
				return nil, &Error{Index: i, Reason: fmt.Sprintf("%s departure time is required", label)}
			}
			if start.After(*end) {
				return nil, &Error{Index: i, Reason: fmt.Sprintf("Invalid datetime range for layover stop %d - departure must be after arrival", i)}
			}
			stop = LayoverStop{City: city, ArrivalTime: *start, DepartureTime: *end}
		}

		if i > 0 {
			prevDeparture := stops[i-1].Departure()
			if stop.Arrival().Before(*prevDeparture) {
				return nil, &Error{Index: i, Reason: fmt.Sprintf("%s arrival time must be after previous departure time", label)}
			}
		}
		stops = append(stops, stop)
	}
	return stops, nil
}

// Rows maps typed stops to storage rows with 1-based sequence numbers. A
// missing arrival on the origin takes its departure time and a missing
// departure on the destination takes its arrival time.
func Rows(flightID string, stops []Stop) []models.ItineraryStop {
	rows := make([]models.ItineraryStop, 0, len(stops))
	for i, stop := range stops {
		start := stop.Arrival()
		end := stop.Departure()
		if start == nil {
			start = end
		}
		if end == nil {
			end = start
		}
		rows = append(rows, models.ItineraryStop{
			FlightID:      flightID,
			City:          stop.CityName(),
			SequenceOrder: i + 1,
			StartDatetime: start,
			EndDatetime:   end,
		})
	}
	return rows
}

// Route renders stop cities as "A → B → C".
func Route(rows []models.ItineraryStop) string {
	cities := make([]string, 0, len(rows))
	for _, row := range rows {
		cities = append(cities, row.City)
	}
	return strings.Join(cities, " → ")
}

// ParseTime accepts the layouts above and returns the instant in UTC, the
// zone the TIMESTAMP columns are written in.
func ParseTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	var lastErr error
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, trimmed)
		if err == nil {
			return parsed.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func parseOptional(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	parsed, err := ParseTime(*value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func stopLabel(index, last int) string {
	switch index {
	case 0:
		return "Departure city"
	case last:
		return "Arrival city"
	default:
		return fmt.Sprintf("Layover stop %d", index)
	}
}
