package services

import (
	"context"

	"flightbooking/internal/events"
	"flightbooking/internal/money"
	"flightbooking/internal/store"
	"flightbooking/internal/websocket"

	"go.uber.org/zap"
)

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type Notifier interface {
	Send(userID string, event websocket.Event)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type SearchCache interface {
	GetSearch(ctx context.Context, from, to string) (payload []byte, generation int64, err error)
	SetSearch(ctx context.Context, generation int64, from, to string, payload []byte) error
	Invalidate(ctx context.Context) error
}

// SideEffects runs the work that follows a commit. None of it can fail the
// request; failures are logged.
type SideEffects struct {
	notifier Notifier
	events   EventPublisher
	cache    SearchCache
	log      *zap.Logger
}

func NewSideEffects(notifier Notifier, publisher EventPublisher, cache SearchCache, log *zap.Logger) SideEffects {
	if log == nil {
		log = zap.NewNop()
	}
	return SideEffects{notifier: notifier, events: publisher, cache: cache, log: log}
}

func (e SideEffects) publish(ctx context.Context, event events.Event) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, event); err != nil {
		e.log.Warn("event publish failed", zap.String("type", event.Type), zap.String("flight_id", event.FlightID), zap.Error(err))
	}
}

func (e SideEffects) invalidateSearch(ctx context.Context) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx); err != nil {
		e.log.Warn("search cache invalidation failed", zap.Error(err))
	}
}

func (e SideEffects) notify(userID string, eventType string, payload any) {
	if e.notifier == nil {
		return
	}
	e.notifier.Send(userID, websocket.Event{Type: eventType, Payload: payload})
}

func (e SideEffects) notifyBalance(m Movement, reason string) {
	e.notify(m.UserID, websocket.EventBalance, websocket.BalanceUpdate{
		Balance: money.FormatMinor(m.BalanceAfter),
		Reason:  reason,
	})
}

func (e SideEffects) notifyBooking(passengerID, bookingID, flightID, status string) {
	e.notify(passengerID, websocket.EventBooking, websocket.BookingUpdate{
		BookingID: bookingID,
		FlightID:  flightID,
		Status:    status,
	})
}
