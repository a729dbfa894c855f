package memory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edgefleet/armada/internal/domain"
)

// Factory opens units of work against one shared Store. Event handlers
// registered on the factory receive every committed event.
type Factory struct {
	store    *Store
	log      *slog.Logger
	handlers []domain.EventHandler
}

func NewFactory(store *Store, log *slog.Logger, handlers ...domain.EventHandler) *Factory {
	return &Factory{store: store, log: log, handlers: handlers}
}

func (f *Factory) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	uow := &unitOfWork{
		store:    f.store,
		log:      f.log,
		handlers: f.handlers,
		staged: &staging{
			deviceUpserts: make(map[uuid.UUID]*domain.DeviceEntity),
			deviceDeletes: make(map[uuid.UUID]struct{}),
			groupUpserts:  make(map[uuid.UUID]*domain.DeviceGroup),
			groupDeletes:  make(map[uuid.UUID]struct{}),
		},
	}
	uow.devices = &deviceRepository{store: f.store, staged: uow.staged}
	uow.groups = &groupRepository{store: f.store, staged: uow.staged}
	uow.events = &eventStore{store: f.store, staged: uow.staged}
	return uow, nil
}

type eventAppend struct {
	aggregateID     uuid.UUID
	events          []domain.DomainEvent
	expectedVersion int
}

// staging collects a unit of work's pending writes. Nothing here is visible
// to other units of work until commit.
type staging struct {
	deviceUpserts map[uuid.UUID]*domain.DeviceEntity
	deviceDeletes map[uuid.UUID]struct{}
	groupUpserts  map[uuid.UUID]*domain.DeviceGroup
	groupDeletes  map[uuid.UUID]struct{}
	appends       []eventAppend
}

// stagedEventCount is the number of events this unit of work has already
// staged for the aggregate.
func (st *staging) stagedEventCount(aggregateID uuid.UUID) int {
	n := 0
	for _, ap := range st.appends {
		if ap.aggregateID == aggregateID {
			n += len(ap.events)
		}
	}
	return n
}

type unitOfWork struct {
	store    *Store
	log      *slog.Logger
	handlers []domain.EventHandler

	staged  *staging
	devices *deviceRepository
	groups  *groupRepository
	events  *eventStore
	tracked []*domain.DeviceAggregate
	done    bool
}

func (u *unitOfWork) Devices() domain.DeviceRepository { return u.devices }
func (u *unitOfWork) Groups() domain.GroupRepository   { return u.groups }
func (u *unitOfWork) Events() domain.EventStore        { return u.events }

func (u *unitOfWork) TrackAggregate(agg *domain.DeviceAggregate) {
	u.tracked = append(u.tracked, agg)
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}

	u.store.mu.Lock()
	// Validate every staged append against the committed log before touching
	// anything, so a conflict applies zero writes.
	pending := make(map[uuid.UUID]int)
	for _, ap := range u.staged.appends {
		current := u.store.eventCountLocked(ap.aggregateID) + pending[ap.aggregateID]
		if current != ap.expectedVersion {
			u.store.mu.Unlock()
			return &domain.VersionConflictError{
				AggregateID:     ap.aggregateID,
				ExpectedVersion: ap.expectedVersion,
				ActualVersion:   current,
			}
		}
		pending[ap.aggregateID] += len(ap.events)
	}
	for id, entity := range u.staged.deviceUpserts {
		if existing, ok := u.store.serials[strings.ToLower(entity.Identifier.SerialNumber)]; ok && existing != id {
			u.store.mu.Unlock()
			return &domain.RepositoryError{Op: "save device", Err: domain.ErrConflict}
		}
	}

	now := time.Now().UTC()
	for _, ap := range u.staged.appends {
		for _, e := range ap.events {
			u.store.events[ap.aggregateID] = append(u.store.events[ap.aggregateID], e)
			u.store.seq++
			u.store.log = append(u.store.log, domain.StoredEvent{
				Sequence: u.store.seq,
				Event:    e,
				StoredAt: now,
			})
		}
	}
	for id, entity := range u.staged.deviceUpserts {
		if old, ok := u.store.devices[id]; ok {
			delete(u.store.serials, strings.ToLower(old.Identifier.SerialNumber))
		}
		u.store.devices[id] = entity.Clone()
		u.store.serials[strings.ToLower(entity.Identifier.SerialNumber)] = id
	}
	for id := range u.staged.deviceDeletes {
		if old, ok := u.store.devices[id]; ok {
			delete(u.store.serials, strings.ToLower(old.Identifier.SerialNumber))
			delete(u.store.devices, id)
		}
	}
	for id, group := range u.staged.groupUpserts {
		u.store.groups[id] = group
	}
	for id := range u.staged.groupDeletes {
		delete(u.store.groups, id)
	}
	u.store.mu.Unlock()

	u.done = true

	var committed []domain.DomainEvent
	for _, agg := range u.tracked {
		committed = append(committed, agg.UncommittedEvents()...)
		agg.MarkEventsCommitted()
	}
	u.dispatch(ctx, committed)
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	u.staged.appends = nil
	u.staged.deviceUpserts = map[uuid.UUID]*domain.DeviceEntity{}
	u.staged.deviceDeletes = map[uuid.UUID]struct{}{}
	u.staged.groupUpserts = map[uuid.UUID]*domain.DeviceGroup{}
	u.staged.groupDeletes = map[uuid.UUID]struct{}{}
	u.tracked = nil
	return nil
}

// dispatch delivers committed events to every registered handler. Handler
// failures are logged, not propagated: the write already committed.
func (u *unitOfWork) dispatch(ctx context.Context, events []domain.DomainEvent) {
	for _, e := range events {
		for _, h := range u.handlers {
			if err := h.HandleEvent(ctx, e); err != nil {
				u.log.Error("event handler failed",
					"event_type", e.EventType(),
					"aggregate_id", e.AggregateID(),
					"error", err)
			}
		}
	}
}
