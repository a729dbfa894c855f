package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/edgefleet/armada/internal/domain"
)

// GroupService manages device groups. Groups are plain CRUD entities, so
// the service works on the repository directly without the command
// machinery.
type GroupService struct {
	uowf domain.UnitOfWorkFactory
	log  *slog.Logger
}

func NewGroupService(uowf domain.UnitOfWorkFactory, log *slog.Logger) *GroupService {
	return &GroupService{uowf: uowf, log: log}
}

func (s *GroupService) CreateGroup(ctx context.Context, name, description string, parentID *uuid.UUID) (*domain.DeviceGroup, error) {
	group, err := domain.NewDeviceGroup(name, description, parentID)
	if err != nil {
		return nil, err
	}

	uow, err := s.uowf.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback(ctx)

	if parentID != nil {
		if _, err := uow.Groups().GetByID(ctx, *parentID); err != nil {
			return nil, err
		}
	}
	if err := uow.Groups().Save(ctx, group); err != nil {
		return nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}

	s.log.Info("group created", "group_id", group.ID, "name", group.Name)
	return group, nil
}

func (s *GroupService) GetGroup(ctx context.Context, id uuid.UUID) (*domain.DeviceGroup, error) {
	uow, err := s.uowf.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback(ctx)
	return uow.Groups().GetByID(ctx, id)
}

func (s *GroupService) ListGroups(ctx context.Context) ([]*domain.DeviceGroup, error) {
	uow, err := s.uowf.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback(ctx)
	return uow.Groups().GetAll(ctx)
}

func (s *GroupService) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	uow, err := s.uowf.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback(ctx)

	if _, err := uow.Groups().GetByID(ctx, id); err != nil {
		return err
	}
	if err := uow.Groups().Delete(ctx, id); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

func (s *GroupService) AddDeviceToGroup(ctx context.Context, groupID, deviceID uuid.UUID) error {
	return s.withGroup(ctx, groupID, func(uow domain.UnitOfWork, group *domain.DeviceGroup) error {
		if _, err := uow.Devices().GetByID(ctx, deviceID); err != nil {
			return err
		}
		return group.AddDevice(deviceID)
	})
}

func (s *GroupService) RemoveDeviceFromGroup(ctx context.Context, groupID, deviceID uuid.UUID) error {
	return s.withGroup(ctx, groupID, func(uow domain.UnitOfWork, group *domain.DeviceGroup) error {
		return group.RemoveDevice(deviceID)
	})
}

func (s *GroupService) withGroup(ctx context.Context, groupID uuid.UUID, fn func(domain.UnitOfWork, *domain.DeviceGroup) error) error {
	uow, err := s.uowf.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback(ctx)

	group, err := uow.Groups().GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if err := fn(uow, group); err != nil {
		return err
	}
	if err := uow.Groups().Save(ctx, group); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

// IsNotFound reports whether an error from the group or device services
// means the target does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
