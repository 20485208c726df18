// internal/fakeapi/events.go
package fakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"clubportal/internal/club"
)

var ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")

// Event types recorded per club.
const (
	EventClubCreated  = "ClubCreated"
	EventMemberJoined = "MemberJoined"
	EventJoinRejected = "JoinRejected"
)

// Event is one entry in a club's history.
type Event struct {
	ID        int64           `json:"id"`
	ClubID    club.ID         `json:"club_id"`
	Type      string          `json:"event_type"`
	Data      json.RawMessage `json:"event_data"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventLog is an append-only, per-club event history with optimistic
// concurrency on the club's version.
type EventLog struct {
	tracer trace.Tracer

	mu     sync.RWMutex
	nextID int64
	byClub map[club.ID][]Event
}

func NewEventLog() *EventLog {
	return &EventLog{
		tracer: otel.Tracer("clubportal/fakeapi/events"),
		byClub: make(map[club.ID][]Event),
	}
}

// Append adds an event when the club is still at expectedVersion.
func (l *EventLog) Append(ctx context.Context, id club.ID, expectedVersion int, eventType string, data any) error {
	_, span := l.tracer.Start(ctx, "eventlog.append",
		trace.WithAttributes(
			attribute.String("club.id", id.String()),
			attribute.String("event.type", eventType),
			attribute.Int("expected.version", expectedVersion),
		),
	)
	defer span.End()

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current := len(l.byClub[id])
	if current != expectedVersion {
		span.SetAttributes(attribute.Bool("conflict.detected", true))
		return ErrConcurrencyConflict
	}
	l.nextID++
	l.byClub[id] = append(l.byClub[id], Event{
		ID:        l.nextID,
		ClubID:    id,
		Type:      eventType,
		Data:      raw,
		Version:   current + 1,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// Version returns the number of events recorded for a club.
func (l *EventLog) Version(id club.ID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byClub[id])
}

// Load returns a copy of a club's events in append order.
func (l *EventLog) Load(id club.ID) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Event(nil), l.byClub[id]...)
}
