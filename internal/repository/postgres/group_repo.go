package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/edgefleet/armada/internal/domain"
)

type GroupRepo struct {
	q querier
}

func NewGroupRepo(q querier) *GroupRepo {
	return &GroupRepo{q: q}
}

func (r *GroupRepo) Save(ctx context.Context, g *domain.DeviceGroup) error {
	idsJSON, err := json.Marshal(g.DeviceIDs)
	if err != nil {
		return fmt.Errorf("marshal device ids: %w", err)
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO device_groups (id, name, description, parent_id, device_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			parent_id = EXCLUDED.parent_id,
			device_ids = EXCLUDED.device_ids,
			updated_at = EXCLUDED.updated_at
	`, g.ID, g.Name, g.Description, g.ParentID, idsJSON, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	return nil
}

func (r *GroupRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeviceGroup, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, description, parent_id, device_ids, created_at, updated_at
		FROM device_groups WHERE id = $1
	`, id)
	g, err := scanGroup(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &domain.RepositoryError{Op: "get group", Err: domain.ErrNotFound}
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (r *GroupRepo) GetAll(ctx context.Context) ([]*domain.DeviceGroup, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, name, description, parent_id, device_ids, created_at, updated_at
		FROM device_groups ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	groups := []*domain.DeviceGroup{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *GroupRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM device_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.RepositoryError{Op: "delete group", Err: domain.ErrNotFound}
	}
	return nil
}

func scanGroup(row pgx.Row) (*domain.DeviceGroup, error) {
	g := &domain.DeviceGroup{}
	var idsJSON []byte
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &g.ParentID, &idsJSON, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(idsJSON, &g.DeviceIDs); err != nil {
		return nil, fmt.Errorf("unmarshal device ids: %w", err)
	}
	if g.DeviceIDs == nil {
		g.DeviceIDs = []uuid.UUID{}
	}
	return g, nil
}
