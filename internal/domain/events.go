package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event type discriminants. The set is closed: every concrete event is listed
// here and in the decoder registry below.
const (
	EventTypeDeviceRegistered           = "device.registered"
	EventTypeDeviceUpdated              = "device.updated"
	EventTypeDeviceDeactivated          = "device.deactivated"
	EventTypeDeviceActivated            = "device.activated"
	EventTypeDeviceConfigurationChanged = "device.configuration.changed"
	EventTypeDeviceMetricsRecorded      = "device.metrics.recorded"
	EventTypeDeviceLocationChanged      = "device.location.changed"
	EventTypeDeviceCapabilitiesUpdated  = "device.capabilities.updated"
)

// DomainEvent is an immutable fact describing what happened to a device.
// Events are ordered per aggregate strictly by Version.
type DomainEvent interface {
	EventID() uuid.UUID
	AggregateID() uuid.UUID
	Version() int
	OccurredAt() time.Time
	EventType() string
}

// EventMeta carries the fields shared by every domain event. Concrete events
// embed it.
type EventMeta struct {
	ID          uuid.UUID `json:"event_id"`
	Aggregate   uuid.UUID `json:"aggregate_id"`
	AggVersion  int       `json:"version"`
	Occurred    time.Time `json:"occurred_at"`
}

func newEventMeta(aggregateID uuid.UUID, version int, occurredAt time.Time) EventMeta {
	return EventMeta{
		ID:         uuid.New(),
		Aggregate:  aggregateID,
		AggVersion: version,
		Occurred:   occurredAt,
	}
}

func (m EventMeta) EventID() uuid.UUID     { return m.ID }
func (m EventMeta) AggregateID() uuid.UUID { return m.Aggregate }
func (m EventMeta) Version() int           { return m.AggVersion }
func (m EventMeta) OccurredAt() time.Time  { return m.Occurred }

// DeviceRegistered records the creation of a new device aggregate.
type DeviceRegistered struct {
	EventMeta
	DeviceName   string              `json:"device_name"`
	DeviceType   DeviceType          `json:"device_type"`
	Identifier   DeviceIdentifier    `json:"identifier"`
	Manufacturer string              `json:"manufacturer,omitempty"`
	Model        string              `json:"model,omitempty"`
	Location     *DeviceLocation     `json:"location,omitempty"`
	Capabilities *DeviceCapabilities `json:"capabilities,omitempty"`
}

func (DeviceRegistered) EventType() string { return EventTypeDeviceRegistered }

// DeviceUpdated records changes to basic device fields (name, manufacturer,
// model, status). Values are stored as strings keyed by field name.
type DeviceUpdated struct {
	EventMeta
	UpdatedFields  map[string]string `json:"updated_fields"`
	PreviousValues map[string]string `json:"previous_values"`
}

func (DeviceUpdated) EventType() string { return EventTypeDeviceUpdated }

type DeviceDeactivated struct {
	EventMeta
	Reason        string `json:"reason"`
	DeactivatedBy string `json:"deactivated_by,omitempty"`
}

func (DeviceDeactivated) EventType() string { return EventTypeDeviceDeactivated }

type DeviceActivated struct {
	EventMeta
	ActivatedBy string `json:"activated_by,omitempty"`
}

func (DeviceActivated) EventType() string { return EventTypeDeviceActivated }

// DeviceConfigurationChanged records a single key change in the owned
// configuration. ConfigVersion is the configuration's own version, which is
// tracked independently of the aggregate version.
type DeviceConfigurationChanged struct {
	EventMeta
	Key           string      `json:"configuration_key"`
	NewValue      interface{} `json:"new_value"`
	PreviousValue interface{} `json:"previous_value,omitempty"`
	ChangedBy     string      `json:"changed_by,omitempty"`
	ConfigVersion int         `json:"configuration_version"`
	Removed       bool        `json:"removed,omitempty"`
}

func (DeviceConfigurationChanged) EventType() string { return EventTypeDeviceConfigurationChanged }

type DeviceMetricsRecorded struct {
	EventMeta
	Metrics DeviceMetrics `json:"metrics"`
}

func (DeviceMetricsRecorded) EventType() string { return EventTypeDeviceMetricsRecorded }

type DeviceLocationChanged struct {
	EventMeta
	NewLocation      DeviceLocation  `json:"new_location"`
	PreviousLocation *DeviceLocation `json:"previous_location,omitempty"`
}

func (DeviceLocationChanged) EventType() string { return EventTypeDeviceLocationChanged }

type DeviceCapabilitiesUpdated struct {
	EventMeta
	NewCapabilities      DeviceCapabilities  `json:"new_capabilities"`
	PreviousCapabilities *DeviceCapabilities `json:"previous_capabilities,omitempty"`
}

func (DeviceCapabilitiesUpdated) EventType() string { return EventTypeDeviceCapabilitiesUpdated }

// MarshalEventData serializes an event for storage. The meta fields travel
// inside the payload so a stored event row is self-describing.
func MarshalEventData(e DomainEvent) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", e.EventType(), err)
	}
	return data, nil
}

var eventDecoders = map[string]func([]byte) (DomainEvent, error){
	EventTypeDeviceRegistered: func(data []byte) (DomainEvent, error) {
		var e DeviceRegistered
		return &e, json.Unmarshal(data, &e)
	},
	EventTypeDeviceUpdated: func(data []byte) (DomainEvent, error) {
		var e DeviceUpdated
		return &e, json.Unmarshal(data, &e)
	},
	EventTypeDeviceDeactivated: func(data []byte) (DomainEvent, error) {
		var e DeviceDeactivated
		return &e, json.Unmarshal(data, &e)
	},
	EventTypeDeviceActivated: func(data []byte) (DomainEvent, error) {
		var e DeviceActivated
		return &e, json.Unmarshal(data, &e)
	},
	EventTypeDeviceConfigurationChanged: func(data []byte) (DomainEvent, error) {
		var e DeviceConfigurationChanged
		return &e, json.Unmarshal(data, &e)
	},
	EventTypeDeviceMetricsRecorded: func(data []byte) (DomainEvent, error) {
		var e DeviceMetricsRecorded
		return &e, json.Unmarshal(data, &e)
	},
	EventTypeDeviceLocationChanged: func(data []byte) (DomainEvent, error) {
		var e DeviceLocationChanged
		return &e, json.Unmarshal(data, &e)
	},
	EventTypeDeviceCapabilitiesUpdated: func(data []byte) (DomainEvent, error) {
		var e DeviceCapabilitiesUpdated
		return &e, json.Unmarshal(data, &e)
	},
}

// UnmarshalEvent reconstructs a concrete event from its discriminant and
// stored payload.
func UnmarshalEvent(eventType string, data []byte) (DomainEvent, error) {
	decode, ok := eventDecoders[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
	e, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s event: %w", eventType, err)
	}
	return e, nil
}
