package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edgefleet/armada/internal/domain"
)

// Factory opens one transaction per unit of work. Event handlers registered
// on the factory receive every event committed through any of its units.
type Factory struct {
	pool     *pgxpool.Pool
	log      *slog.Logger
	handlers []domain.EventHandler
}

func NewFactory(pool *pgxpool.Pool, log *slog.Logger, handlers ...domain.EventHandler) *Factory {
	return &Factory{pool: pool, log: log, handlers: handlers}
}

func (f *Factory) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	tx, err := f.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &unitOfWork{
		tx:       tx,
		log:      f.log,
		handlers: f.handlers,
		devices:  NewDeviceRepo(tx),
		groups:   NewGroupRepo(tx),
		events:   NewEventStore(tx),
	}, nil
}

type unitOfWork struct {
	tx       pgx.Tx
	log      *slog.Logger
	handlers []domain.EventHandler
	devices  *DeviceRepo
	groups   *GroupRepo
	events   *EventStore
	tracked  []*domain.DeviceAggregate
	done     bool
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
	if err := u.tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return &domain.RepositoryError{Op: "commit", Err: domain.ErrConflict}
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	u.done = true

	var committed []domain.DomainEvent
	for _, agg := range u.tracked {
		committed = append(committed, agg.UncommittedEvents()...)
		agg.MarkEventsCommitted()
	}
	for _, e := range committed {
		for _, h := range u.handlers {
			if err := h.HandleEvent(ctx, e); err != nil {
				u.log.Error("event handler failed",
					"event_type", e.EventType(),
					"aggregate_id", e.AggregateID(),
					"error", err)
			}
		}
	}
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	u.tracked = nil
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}
