package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/edgefleet/armada/internal/domain"
)

type groupRepository struct {
	store  *Store
	staged *staging
}

func (r *groupRepository) Save(ctx context.Context, group *domain.DeviceGroup) error {
	copied := *group
	copied.DeviceIDs = append([]uuid.UUID(nil), group.DeviceIDs...)
	r.staged.groupUpserts[group.ID] = &copied
	delete(r.staged.groupDeletes, group.ID)
	return nil
}

func (r *groupRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeviceGroup, error) {
	if _, deleted := r.staged.groupDeletes[id]; deleted {
		return nil, &domain.RepositoryError{Op: "get group", Err: domain.ErrNotFound}
	}
	if staged, ok := r.staged.groupUpserts[id]; ok {
		copied := *staged
		return &copied, nil
	}
	r.store.mu.RLock()
	group, ok := r.store.groups[id]
	r.store.mu.RUnlock()
	if !ok {
		return nil, &domain.RepositoryError{Op: "get group", Err: domain.ErrNotFound}
	}
	copied := *group
	copied.DeviceIDs = append([]uuid.UUID(nil), group.DeviceIDs...)
	return &copied, nil
}

func (r *groupRepository) GetAll(ctx context.Context) ([]*domain.DeviceGroup, error) {
	r.store.mu.RLock()
	out := make([]*domain.DeviceGroup, 0, len(r.store.groups))
	for _, g := range r.store.groups {
		copied := *g
		copied.DeviceIDs = append([]uuid.UUID(nil), g.DeviceIDs...)
		out = append(out, &copied)
	}
	r.store.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *groupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	delete(r.staged.groupUpserts, id)
	r.staged.groupDeletes[id] = struct{}{}
	return nil
}
