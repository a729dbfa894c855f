package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeviceGroup aggregates device ids under a name, optionally nested beneath
// a parent group. Groups are plain CRUD entities, not event-sourced.
type DeviceGroup struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	ParentID    *uuid.UUID  `json:"parent_id,omitempty"`
	DeviceIDs   []uuid.UUID `json:"device_ids"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func NewDeviceGroup(name, description string, parentID *uuid.UUID) (*DeviceGroup, error) {
	if err := ValidateDeviceName(name); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &DeviceGroup{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		ParentID:    parentID,
		DeviceIDs:   []uuid.UUID{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (g *DeviceGroup) Contains(deviceID uuid.UUID) bool {
	for _, id := range g.DeviceIDs {
		if id == deviceID {
			return true
		}
	}
	return false
}

func (g *DeviceGroup) AddDevice(deviceID uuid.UUID) error {
	if g.Contains(deviceID) {
		return validationErrorf("device %s is already in group %s", deviceID, g.Name)
	}
	g.DeviceIDs = append(g.DeviceIDs, deviceID)
	g.UpdatedAt = time.Now().UTC()
	return nil
}

func (g *DeviceGroup) RemoveDevice(deviceID uuid.UUID) error {
	for i, id := range g.DeviceIDs {
		if id == deviceID {
			g.DeviceIDs = append(g.DeviceIDs[:i], g.DeviceIDs[i+1:]...)
			g.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return validationErrorf("device %s is not in group %s", deviceID, g.Name)
}
