package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edgefleet/armada/internal/domain"
)

// EventStore appends and reads the stored_events log. The expected-version
// check runs inside the caller's transaction; a concurrent writer that
// slipped past the count check still trips the unique index on
// (aggregate_id, aggregate_version), so either way a stale writer gets a
// version conflict and applies nothing.
type EventStore struct {
	q querier
}

func NewEventStore(q querier) *EventStore {
	return &EventStore{q: q}
}

func (s *EventStore) SaveEvents(ctx context.Context, aggregateID uuid.UUID, events []domain.DomainEvent, expectedVersion int) error {
	if len(events) == 0 {
		return nil
	}

	var current int
	err := s.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM stored_events WHERE aggregate_id = $1
	`, aggregateID).Scan(&current)
	if err != nil {
		return fmt.Errorf("count events: %w", err)
	}
	if current != expectedVersion {
		return &domain.VersionConflictError{
			AggregateID:     aggregateID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   current,
		}
	}

	for i, e := range events {
		if e.Version() != expectedVersion+1+i {
			return &domain.RepositoryError{
				Op:  "save events",
				Err: &domain.ValidationError{Msg: "event versions are not contiguous"},
			}
		}
		data, err := domain.MarshalEventData(e)
		if err != nil {
			return &domain.RepositoryError{Op: "save events", Err: err}
		}
		_, err = s.q.Exec(ctx, `
			INSERT INTO stored_events (event_id, event_type, aggregate_id, aggregate_version, event_data, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, e.EventID(), e.EventType(), aggregateID, e.Version(), data, e.OccurredAt())
		if err != nil {
			if isUniqueViolation(err) {
				return &domain.VersionConflictError{
					AggregateID:     aggregateID,
					ExpectedVersion: expectedVersion,
					ActualVersion:   e.Version(),
				}
			}
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return nil
}

func (s *EventStore) GetEvents(ctx context.Context, aggregateID uuid.UUID, fromVersion int) ([]domain.DomainEvent, error) {
	rows, err := s.q.Query(ctx, `
		SELECT event_type, event_data
		FROM stored_events
		WHERE aggregate_id = $1 AND aggregate_version > $2
		ORDER BY aggregate_version ASC
	`, aggregateID, fromVersion)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []domain.DomainEvent
	for rows.Next() {
		var eventType string
		var data []byte
		if err := rows.Scan(&eventType, &data); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e, err := domain.UnmarshalEvent(eventType, data)
		if err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *EventStore) GetAllEvents(ctx context.Context, fromTimestamp *time.Time) ([]domain.StoredEvent, error) {
	return s.scanStored(ctx, `
		SELECT id, event_type, event_data, stored_at
		FROM stored_events
		WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
		ORDER BY occurred_at ASC, id ASC
	`, fromTimestamp)
}

func (s *EventStore) GetEventsByType(ctx context.Context, eventType string, fromTimestamp *time.Time) ([]domain.StoredEvent, error) {
	return s.scanStored(ctx, `
		SELECT id, event_type, event_data, stored_at
		FROM stored_events
		WHERE event_type = $2 AND ($1::timestamptz IS NULL OR occurred_at >= $1)
		ORDER BY occurred_at ASC, id ASC
	`, fromTimestamp, eventType)
}

func (s *EventStore) scanStored(ctx context.Context, query string, args ...any) ([]domain.StoredEvent, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []domain.StoredEvent
	for rows.Next() {
		var se domain.StoredEvent
		var eventType string
		var data []byte
		if err := rows.Scan(&se.Sequence, &eventType, &data, &se.StoredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		se.Event, err = domain.UnmarshalEvent(eventType, data)
		if err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, se)
	}
	return out, rows.Err()
}
