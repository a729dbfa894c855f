package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DeviceFilter narrows snapshot queries. Nil fields are ignored; all supplied
// fields combine with AND semantics. SearchTerm matches name, manufacturer,
// model and serial number case-insensitively. Capabilities keeps only devices
// declaring every listed protocol, sensor or actuator.
type DeviceFilter struct {
	Types        []DeviceType
	Statuses     []DeviceStatus
	Manufacturer *string
	Model        *string
	SearchTerm   *string
	HasLocation  *bool
	Capabilities []string
}

// DeviceSort names a snapshot column and direction for list queries.
type DeviceSort struct {
	Field      string
	Descending bool
}

// DeviceRepository persists device snapshots and drives event appends.
// Save upserts the snapshot and appends the aggregate's uncommitted events
// with an optimistic-concurrency check; it does not drain the buffer, the
// owning unit of work does that on commit.
type DeviceRepository interface {
	Save(ctx context.Context, agg *DeviceAggregate) error
	GetByID(ctx context.Context, id uuid.UUID) (*DeviceAggregate, error)
	GetBySerialNumber(ctx context.Context, serialNumber string) (*DeviceAggregate, error)
	GetAll(ctx context.Context) ([]*DeviceEntity, error)
	FindByCriteria(ctx context.Context, filter DeviceFilter, sort *DeviceSort, limit, offset int) ([]*DeviceEntity, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type GroupRepository interface {
	Save(ctx context.Context, group *DeviceGroup) error
	GetByID(ctx context.Context, id uuid.UUID) (*DeviceGroup, error)
	GetAll(ctx context.Context) ([]*DeviceGroup, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// StoredEvent is an event row as persisted: the decoded domain event plus
// storage metadata.
type StoredEvent struct {
	Sequence int64
	Event    DomainEvent
	StoredAt time.Time
}

// EventStore is the append-only log and the system's source of truth.
// SaveEvents fails with a VersionConflictError when expectedVersion does not
// match the stored event count for the aggregate, and appends atomically
// otherwise.
type EventStore interface {
	SaveEvents(ctx context.Context, aggregateID uuid.UUID, events []DomainEvent, expectedVersion int) error
	GetEvents(ctx context.Context, aggregateID uuid.UUID, fromVersion int) ([]DomainEvent, error)
	GetAllEvents(ctx context.Context, fromTimestamp *time.Time) ([]StoredEvent, error)
	GetEventsByType(ctx context.Context, eventType string, fromTimestamp *time.Time) ([]StoredEvent, error)
}

// EventHandler receives committed domain events. Handler errors are logged
// and do not fail the commit that produced the events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event DomainEvent) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event DomainEvent) error

func (f EventHandlerFunc) HandleEvent(ctx context.Context, event DomainEvent) error {
	return f(ctx, event)
}

// UnitOfWork scopes one command or query to one storage transaction. Commit
// persists staged writes, drains the tracked aggregates' event buffers and
// dispatches their events; Rollback discards everything staged. Rollback
// after a successful Commit is a no-op, so callers can defer it.
type UnitOfWork interface {
	Devices() DeviceRepository
	Groups() GroupRepository
	Events() EventStore
	TrackAggregate(agg *DeviceAggregate)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWorkFactory opens a fresh unit of work per invocation.
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}
