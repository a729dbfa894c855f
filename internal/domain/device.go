package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type DeviceStatus string

const (
	StatusActive         DeviceStatus = "ACTIVE"
	StatusInactive       DeviceStatus = "INACTIVE"
	StatusMaintenance    DeviceStatus = "MAINTENANCE"
	StatusDecommissioned DeviceStatus = "DECOMMISSIONED"
)

func (s DeviceStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusMaintenance, StatusDecommissioned:
		return true
	}
	return false
}

type DeviceType string

const (
	TypeSensor     DeviceType = "sensor"
	TypeActuator   DeviceType = "actuator"
	TypeGateway    DeviceType = "gateway"
	TypeController DeviceType = "controller"
	TypeCamera     DeviceType = "camera"
	TypeDisplay    DeviceType = "display"
	TypeRouter     DeviceType = "router"
	TypeSwitch     DeviceType = "switch"
	TypeOther      DeviceType = "other"
)

func (t DeviceType) Valid() bool {
	switch t {
	case TypeSensor, TypeActuator, TypeGateway, TypeController,
		TypeCamera, TypeDisplay, TypeRouter, TypeSwitch, TypeOther:
		return true
	}
	return false
}

// ParseDeviceType normalizes a user-supplied type string.
func ParseDeviceType(s string) (DeviceType, error) {
	t := DeviceType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", validationErrorf("invalid device type %q", s)
	}
	return t, nil
}

func ParseDeviceStatus(s string) (DeviceStatus, error) {
	st := DeviceStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", validationErrorf("invalid device status %q", s)
	}
	return st, nil
}

// DeviceConfiguration is a versioned key/value bag owned by a device. Its
// version advances on every change, independent of the device's own version.
type DeviceConfiguration struct {
	Settings  map[string]interface{} `json:"settings"`
	Version   int                    `json:"version"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func NewDeviceConfiguration(now time.Time) *DeviceConfiguration {
	return &DeviceConfiguration{
		Settings:  make(map[string]interface{}),
		Version:   1,
		UpdatedAt: now,
	}
}

// Set stores a value under key and bumps the configuration version.
func (c *DeviceConfiguration) Set(key string, value interface{}, now time.Time) error {
	if strings.TrimSpace(key) == "" {
		return validationErrorf("configuration key is required")
	}
	c.Settings[key] = value
	c.Version++
	c.UpdatedAt = now
	return nil
}

// Remove deletes key from the settings. Removing an absent key is an error so
// callers cannot silently no-op.
func (c *DeviceConfiguration) Remove(key string, now time.Time) error {
	if _, ok := c.Settings[key]; !ok {
		return validationErrorf("configuration key %q not found", key)
	}
	delete(c.Settings, key)
	c.Version++
	c.UpdatedAt = now
	return nil
}

func (c *DeviceConfiguration) Get(key string) (interface{}, bool) {
	v, ok := c.Settings[key]
	return v, ok
}

func (c *DeviceConfiguration) clone() *DeviceConfiguration {
	if c == nil {
		return nil
	}
	settings := make(map[string]interface{}, len(c.Settings))
	for k, v := range c.Settings {
		settings[k] = v
	}
	out := *c
	out.Settings = settings
	return &out
}

// MaxMetricsHistory bounds the in-memory metrics ring kept on each entity.
// Older entries are evicted from the front.
const MaxMetricsHistory = 100

// DeviceEntity is the state of a device aggregate. All mutation goes through
// DeviceAggregate so that state changes and events stay in lockstep.
type DeviceEntity struct {
	ID            uuid.UUID            `json:"id"`
	Name          string               `json:"name"`
	Type          DeviceType           `json:"device_type"`
	Status        DeviceStatus         `json:"status"`
	Identifier    DeviceIdentifier     `json:"identifier"`
	Manufacturer  string               `json:"manufacturer,omitempty"`
	Model         string               `json:"model,omitempty"`
	Location      *DeviceLocation      `json:"location,omitempty"`
	Capabilities  *DeviceCapabilities  `json:"capabilities,omitempty"`
	Configuration *DeviceConfiguration `json:"configuration,omitempty"`
	Metrics       []DeviceMetrics      `json:"metrics,omitempty"`
	Version       int                  `json:"version"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	LastSeen      *time.Time           `json:"last_seen,omitempty"`
}

// IsOperational reports whether the device can accept lifecycle commands
// other than decommissioning.
func (d *DeviceEntity) IsOperational() bool {
	return d.Status != StatusDecommissioned
}

// LatestMetrics returns the most recent metrics sample, or nil if none were
// recorded.
func (d *DeviceEntity) LatestMetrics() *DeviceMetrics {
	if len(d.Metrics) == 0 {
		return nil
	}
	m := d.Metrics[len(d.Metrics)-1]
	return &m
}

// Clone returns a deep copy of the entity. Repositories hand out clones so
// callers cannot mutate stored state.
func (d *DeviceEntity) Clone() *DeviceEntity {
	out := *d
	if d.Location != nil {
		loc := *d.Location
		out.Location = &loc
	}
	if d.Capabilities != nil {
		caps := d.Capabilities.clone()
		out.Capabilities = caps
	}
	out.Configuration = d.Configuration.clone()
	if d.Metrics != nil {
		out.Metrics = make([]DeviceMetrics, len(d.Metrics))
		copy(out.Metrics, d.Metrics)
	}
	if d.LastSeen != nil {
		ls := *d.LastSeen
		out.LastSeen = &ls
	}
	return &out
}
