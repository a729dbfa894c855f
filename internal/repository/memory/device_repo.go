package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/edgefleet/armada/internal/domain"
)

type deviceRepository struct {
	store  *Store
	staged *staging
}

func (r *deviceRepository) Save(ctx context.Context, agg *domain.DeviceAggregate) error {
	entity := agg.Entity()

	serial := strings.ToLower(entity.Identifier.SerialNumber)
	r.store.mu.RLock()
	existing, taken := r.store.serials[serial]
	r.store.mu.RUnlock()
	if taken && existing != entity.ID {
		return &domain.RepositoryError{Op: "save device", Err: domain.ErrConflict}
	}
	for id, staged := range r.staged.deviceUpserts {
		if id != entity.ID && strings.EqualFold(staged.Identifier.SerialNumber, entity.Identifier.SerialNumber) {
			return &domain.RepositoryError{Op: "save device", Err: domain.ErrConflict}
		}
	}

	es := &eventStore{store: r.store, staged: r.staged}
	if err := es.SaveEvents(ctx, entity.ID, agg.UncommittedEvents(), agg.ExpectedVersion()); err != nil {
		return err
	}
	r.staged.deviceUpserts[entity.ID] = entity.Clone()
	delete(r.staged.deviceDeletes, entity.ID)
	return nil
}

func (r *deviceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeviceAggregate, error) {
	if _, deleted := r.staged.deviceDeletes[id]; deleted {
		return nil, &domain.RepositoryError{Op: "get device", Err: domain.ErrNotFound}
	}
	if staged, ok := r.staged.deviceUpserts[id]; ok {
		return domain.LoadDevice(staged.Clone()), nil
	}
	r.store.mu.RLock()
	entity, ok := r.store.devices[id]
	r.store.mu.RUnlock()
	if !ok {
		return nil, &domain.RepositoryError{Op: "get device", Err: domain.ErrNotFound}
	}
	return domain.LoadDevice(entity.Clone()), nil
}

func (r *deviceRepository) GetBySerialNumber(ctx context.Context, serialNumber string) (*domain.DeviceAggregate, error) {
	for _, staged := range r.staged.deviceUpserts {
		if strings.EqualFold(staged.Identifier.SerialNumber, serialNumber) {
			return domain.LoadDevice(staged.Clone()), nil
		}
	}
	r.store.mu.RLock()
	id, ok := r.store.serials[strings.ToLower(serialNumber)]
	var entity *domain.DeviceEntity
	if ok {
		entity = r.store.devices[id]
	}
	r.store.mu.RUnlock()
	if entity == nil {
		return nil, &domain.RepositoryError{Op: "get device by serial", Err: domain.ErrNotFound}
	}
	if _, deleted := r.staged.deviceDeletes[entity.ID]; deleted {
		return nil, &domain.RepositoryError{Op: "get device by serial", Err: domain.ErrNotFound}
	}
	return domain.LoadDevice(entity.Clone()), nil
}

func (r *deviceRepository) GetAll(ctx context.Context) ([]*domain.DeviceEntity, error) {
	r.store.mu.RLock()
	out := make([]*domain.DeviceEntity, 0, len(r.store.devices))
	for _, d := range r.store.devices {
		out = append(out, d.Clone())
	}
	r.store.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *deviceRepository) FindByCriteria(ctx context.Context, filter domain.DeviceFilter, sortBy *domain.DeviceSort, limit, offset int) ([]*domain.DeviceEntity, int, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, 0, err
	}

	var matched []*domain.DeviceEntity
	for _, d := range all {
		if matchesFilter(d, filter) {
			matched = append(matched, d)
		}
	}
	total := len(matched)

	sortEntities(matched, sortBy)

	if offset >= len(matched) {
		return []*domain.DeviceEntity{}, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *deviceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.RLock()
	_, ok := r.store.devices[id]
	r.store.mu.RUnlock()
	if !ok {
		if _, staged := r.staged.deviceUpserts[id]; !staged {
			return &domain.RepositoryError{Op: "delete device", Err: domain.ErrNotFound}
		}
	}
	delete(r.staged.deviceUpserts, id)
	r.staged.deviceDeletes[id] = struct{}{}
	return nil
}

func matchesFilter(d *domain.DeviceEntity, f domain.DeviceFilter) bool {
	if len(f.Types) > 0 && !containsType(f.Types, d.Type) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, d.Status) {
		return false
	}
	if f.Manufacturer != nil && !strings.EqualFold(d.Manufacturer, *f.Manufacturer) {
		return false
	}
	if f.Model != nil && !strings.EqualFold(d.Model, *f.Model) {
		return false
	}
	if f.HasLocation != nil && *f.HasLocation != (d.Location != nil) {
		return false
	}
	if len(f.Capabilities) > 0 {
		if d.Capabilities == nil {
			return false
		}
		for _, want := range f.Capabilities {
			if !d.Capabilities.Declares(want) {
				return false
			}
		}
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(*f.SearchTerm)
		if !strings.Contains(strings.ToLower(d.Name), term) &&
			!strings.Contains(strings.ToLower(d.Manufacturer), term) &&
			!strings.Contains(strings.ToLower(d.Model), term) &&
			!strings.Contains(strings.ToLower(d.Identifier.SerialNumber), term) {
			return false
		}
	}
	return true
}

func containsType(set []domain.DeviceType, t domain.DeviceType) bool {
	for _, v := range set {
		if v == t {
			return true
		}
	}
	return false
}

func containsStatus(set []domain.DeviceStatus, s domain.DeviceStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func sortEntities(devices []*domain.DeviceEntity, sortBy *domain.DeviceSort) {
	field := "created_at"
	desc := false
	if sortBy != nil {
		field = sortBy.Field
		desc = sortBy.Descending
	}
	less := func(a, b *domain.DeviceEntity) bool {
		switch field {
		case "name":
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case "device_type":
			return a.Type < b.Type
		case "status":
			return a.Status < b.Status
		case "serial_number":
			return strings.ToLower(a.Identifier.SerialNumber) < strings.ToLower(b.Identifier.SerialNumber)
		case "manufacturer":
			return strings.ToLower(a.Manufacturer) < strings.ToLower(b.Manufacturer)
		case "model":
			return strings.ToLower(a.Model) < strings.ToLower(b.Model)
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt)
		case "last_seen":
			switch {
			case a.LastSeen == nil:
				return b.LastSeen != nil
			case b.LastSeen == nil:
				return false
			default:
				return a.LastSeen.Before(*b.LastSeen)
			}
		case "version":
			return a.Version < b.Version
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(devices, func(i, j int) bool {
		if desc {
			return less(devices[j], devices[i])
		}
		return less(devices[i], devices[j])
	})
}
