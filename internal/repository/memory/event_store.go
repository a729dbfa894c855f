package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/edgefleet/armada/internal/domain"
)

// eventStore stages appends into its unit of work and reads through to the
// committed log overlaid with this unit of work's own staged events.
type eventStore struct {
	store  *Store
	staged *staging
}

func (s *eventStore) SaveEvents(ctx context.Context, aggregateID uuid.UUID, events []domain.DomainEvent, expectedVersion int) error {
	if len(events) == 0 {
		return nil
	}
	s.store.mu.RLock()
	current := s.store.eventCountLocked(aggregateID)
	s.store.mu.RUnlock()
	current += s.staged.stagedEventCount(aggregateID)
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
	}
	copied := make([]domain.DomainEvent, len(events))
	copy(copied, events)
	s.staged.appends = append(s.staged.appends, eventAppend{
		aggregateID:     aggregateID,
		events:          copied,
		expectedVersion: expectedVersion,
	})
	return nil
}

func (s *eventStore) GetEvents(ctx context.Context, aggregateID uuid.UUID, fromVersion int) ([]domain.DomainEvent, error) {
	s.store.mu.RLock()
	committed := s.store.events[aggregateID]
	all := make([]domain.DomainEvent, len(committed))
	copy(all, committed)
	s.store.mu.RUnlock()

	for _, ap := range s.staged.appends {
		if ap.aggregateID == aggregateID {
			all = append(all, ap.events...)
		}
	}

	var out []domain.DomainEvent
	for _, e := range all {
		if e.Version() > fromVersion {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *eventStore) GetAllEvents(ctx context.Context, fromTimestamp *time.Time) ([]domain.StoredEvent, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	var out []domain.StoredEvent
	for _, se := range s.store.log {
		if fromTimestamp != nil && se.Event.OccurredAt().Before(*fromTimestamp) {
			continue
		}
		out = append(out, se)
	}
	return out, nil
}

func (s *eventStore) GetEventsByType(ctx context.Context, eventType string, fromTimestamp *time.Time) ([]domain.StoredEvent, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	var out []domain.StoredEvent
	for _, se := range s.store.log {
		if se.Event.EventType() != eventType {
			continue
		}
		if fromTimestamp != nil && se.Event.OccurredAt().Before(*fromTimestamp) {
			continue
		}
		out = append(out, se)
	}
	return out, nil
}
