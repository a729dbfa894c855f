package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeviceAggregate wraps a DeviceEntity and keeps state changes and domain
// events in lockstep: every mutation validates its input, raises exactly one
// event, and applies that event to the entity. Because live mutation and
// replay share the same apply path, replaying an aggregate's events from
// scratch reproduces the live entity exactly.
type DeviceAggregate struct {
	entity      *DeviceEntity
	uncommitted []DomainEvent
}

// NewDeviceParams carries the registration inputs. Manufacturer, Model,
// Location and Capabilities are optional.
type NewDeviceParams struct {
	Name         string
	Type         DeviceType
	Identifier   DeviceIdentifier
	Manufacturer string
	Model        string
	Location     *DeviceLocation
	Capabilities *DeviceCapabilities
}

// NewDevice registers a new device: a fresh aggregate at version 1 carrying
// one uncommitted registration event. The device starts ACTIVE.
func NewDevice(p NewDeviceParams) (*DeviceAggregate, error) {
	if err := ValidateDeviceName(p.Name); err != nil {
		return nil, err
	}
	if !p.Type.Valid() {
		return nil, validationErrorf("invalid device type %q", p.Type)
	}
	if p.Location != nil {
		loc, err := NewDeviceLocation(*p.Location)
		if err != nil {
			return nil, err
		}
		p.Location = &loc
	}
	if p.Capabilities != nil {
		caps, err := NewDeviceCapabilities(*p.Capabilities)
		if err != nil {
			return nil, err
		}
		p.Capabilities = &caps
	}
	if err := ValidateTypeCapabilities(p.Type, p.Capabilities); err != nil {
		return nil, err
	}

	agg := &DeviceAggregate{}
	now := time.Now().UTC()
	agg.raise(&DeviceRegistered{
		EventMeta:    newEventMeta(uuid.New(), 1, now),
		DeviceName:   strings.TrimSpace(p.Name),
		DeviceType:   p.Type,
		Identifier:   p.Identifier,
		Manufacturer: strings.TrimSpace(p.Manufacturer),
		Model:        strings.TrimSpace(p.Model),
		Location:     p.Location,
		Capabilities: p.Capabilities,
	})
	return agg, nil
}

// LoadDevice wraps a snapshot entity in an aggregate with an empty
// uncommitted buffer, ready for further commands.
func LoadDevice(entity *DeviceEntity) *DeviceAggregate {
	return &DeviceAggregate{entity: entity}
}

// ReplayDevice rebuilds an aggregate purely from its event history. Events
// must be ordered ascending by version.
func ReplayDevice(events []DomainEvent) (*DeviceAggregate, error) {
	if len(events) == 0 {
		return nil, validationErrorf("cannot replay an empty event history")
	}
	agg := &DeviceAggregate{}
	for _, e := range events {
		if agg.entity != nil && e.Version() != agg.entity.Version+1 {
			return nil, validationErrorf("event history has a gap: expected version %d, got %d",
				agg.entity.Version+1, e.Version())
		}
		agg.apply(e)
	}
	return agg, nil
}

func (a *DeviceAggregate) ID() uuid.UUID         { return a.entity.ID }
func (a *DeviceAggregate) Entity() *DeviceEntity { return a.entity }
func (a *DeviceAggregate) Version() int          { return a.entity.Version }

// UncommittedEvents returns the events raised since the last commit, in
// version order.
func (a *DeviceAggregate) UncommittedEvents() []DomainEvent {
	out := make([]DomainEvent, len(a.uncommitted))
	copy(out, a.uncommitted)
	return out
}

// MarkEventsCommitted drains the uncommitted buffer. Only a successful unit
// of work commit should call this.
func (a *DeviceAggregate) MarkEventsCommitted() {
	a.uncommitted = a.uncommitted[:0]
}

// ExpectedVersion is the stored event count this aggregate was loaded at,
// used as the optimistic-concurrency check on append.
func (a *DeviceAggregate) ExpectedVersion() int {
	return a.entity.Version - len(a.uncommitted)
}

// UpdateDetails changes name, manufacturer and/or model. Nil arguments leave
// the field untouched. At least one field must be supplied.
func (a *DeviceAggregate) UpdateDetails(name, manufacturer, model *string) error {
	if err := a.requireOperational(); err != nil {
		return err
	}
	updated := make(map[string]string)
	previous := make(map[string]string)
	if name != nil {
		if err := ValidateDeviceName(*name); err != nil {
			return err
		}
		updated["name"] = strings.TrimSpace(*name)
		previous["name"] = a.entity.Name
	}
	if manufacturer != nil {
		updated["manufacturer"] = strings.TrimSpace(*manufacturer)
		previous["manufacturer"] = a.entity.Manufacturer
	}
	if model != nil {
		updated["model"] = strings.TrimSpace(*model)
		previous["model"] = a.entity.Model
	}
	if len(updated) == 0 {
		return validationErrorf("no fields to update")
	}
	a.raise(&DeviceUpdated{
		EventMeta:      a.nextMeta(),
		UpdatedFields:  updated,
		PreviousValues: previous,
	})
	return nil
}

func (a *DeviceAggregate) UpdateLocation(location DeviceLocation) error {
	if err := a.requireOperational(); err != nil {
		return err
	}
	a.raise(&DeviceLocationChanged{
		EventMeta:        a.nextMeta(),
		NewLocation:      location,
		PreviousLocation: a.entity.Location,
	})
	return nil
}

func (a *DeviceAggregate) UpdateCapabilities(caps DeviceCapabilities) error {
	if err := a.requireOperational(); err != nil {
		return err
	}
	if err := ValidateTypeCapabilities(a.entity.Type, &caps); err != nil {
		return err
	}
	a.raise(&DeviceCapabilitiesUpdated{
		EventMeta:            a.nextMeta(),
		NewCapabilities:      caps,
		PreviousCapabilities: a.entity.Capabilities,
	})
	return nil
}

func (a *DeviceAggregate) Activate(by string) error {
	if ok, reason := CanActivate(a.entity); !ok {
		return validationErrorf("%s", reason)
	}
	a.raise(&DeviceActivated{
		EventMeta:   a.nextMeta(),
		ActivatedBy: by,
	})
	return nil
}

func (a *DeviceAggregate) Deactivate(reason, by string) error {
	if ok, why := CanDeactivate(a.entity); !ok {
		return validationErrorf("%s", why)
	}
	if strings.TrimSpace(reason) == "" {
		return validationErrorf("deactivation reason is required")
	}
	a.raise(&DeviceDeactivated{
		EventMeta:     a.nextMeta(),
		Reason:        strings.TrimSpace(reason),
		DeactivatedBy: by,
	})
	return nil
}

func (a *DeviceAggregate) SetMaintenanceMode() error {
	if ok, reason := CanSetMaintenance(a.entity); !ok {
		return validationErrorf("%s", reason)
	}
	a.raise(&DeviceUpdated{
		EventMeta:      a.nextMeta(),
		UpdatedFields:  map[string]string{"status": string(StatusMaintenance)},
		PreviousValues: map[string]string{"status": string(a.entity.Status)},
	})
	return nil
}

// Decommission is a terminal administrative override; the device accepts no
// further mutations afterwards.
func (a *DeviceAggregate) Decommission() error {
	if ok, reason := CanDecommission(a.entity); !ok {
		return validationErrorf("%s", reason)
	}
	a.raise(&DeviceUpdated{
		EventMeta:      a.nextMeta(),
		UpdatedFields:  map[string]string{"status": string(StatusDecommissioned)},
		PreviousValues: map[string]string{"status": string(a.entity.Status)},
	})
	return nil
}

// RecordMetrics stores a metrics sample, advances last_seen, and evicts the
// oldest sample once the ring exceeds its bound.
func (a *DeviceAggregate) RecordMetrics(metrics DeviceMetrics) error {
	if err := a.requireOperational(); err != nil {
		return err
	}
	a.raise(&DeviceMetricsRecorded{
		EventMeta: a.nextMeta(),
		Metrics:   metrics,
	})
	return nil
}

func (a *DeviceAggregate) UpdateConfiguration(key string, value interface{}, by string) error {
	if err := a.requireOperational(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return validationErrorf("configuration key is required")
	}
	var previous interface{}
	if v, ok := a.entity.Configuration.Get(key); ok {
		previous = v
	}
	a.raise(&DeviceConfigurationChanged{
		EventMeta:     a.nextMeta(),
		Key:           key,
		NewValue:      value,
		PreviousValue: previous,
		ChangedBy:     by,
		ConfigVersion: a.entity.Configuration.Version + 1,
	})
	return nil
}

func (a *DeviceAggregate) RemoveConfiguration(key string, by string) error {
	if err := a.requireOperational(); err != nil {
		return err
	}
	previous, ok := a.entity.Configuration.Get(key)
	if !ok {
		return validationErrorf("configuration key %q not found", key)
	}
	a.raise(&DeviceConfigurationChanged{
		EventMeta:     a.nextMeta(),
		Key:           key,
		PreviousValue: previous,
		ChangedBy:     by,
		ConfigVersion: a.entity.Configuration.Version + 1,
		Removed:       true,
	})
	return nil
}

func (a *DeviceAggregate) requireOperational() error {
	if !a.entity.IsOperational() {
		return validationErrorf("device is decommissioned and cannot be modified")
	}
	return nil
}

func (a *DeviceAggregate) nextMeta() EventMeta {
	return newEventMeta(a.entity.ID, a.entity.Version+1, time.Now().UTC())
}

// raise appends the event to the uncommitted buffer and applies it to the
// entity.
func (a *DeviceAggregate) raise(e DomainEvent) {
	a.apply(e)
	a.uncommitted = append(a.uncommitted, e)
}

func (a *DeviceAggregate) apply(e DomainEvent) {
	switch ev := e.(type) {
	case *DeviceRegistered:
		a.entity = &DeviceEntity{
			ID:            ev.AggregateID(),
			Name:          ev.DeviceName,
			Type:          ev.DeviceType,
			Status:        StatusActive,
			Identifier:    ev.Identifier,
			Manufacturer:  ev.Manufacturer,
			Model:         ev.Model,
			Configuration: NewDeviceConfiguration(ev.OccurredAt()),
			CreatedAt:     ev.OccurredAt(),
		}
		if ev.Location != nil {
			loc := *ev.Location
			a.entity.Location = &loc
		}
		if ev.Capabilities != nil {
			a.entity.Capabilities = ev.Capabilities.clone()
		}
	case *DeviceUpdated:
		for field, value := range ev.UpdatedFields {
			switch field {
			case "name":
				a.entity.Name = value
			case "manufacturer":
				a.entity.Manufacturer = value
			case "model":
				a.entity.Model = value
			case "status":
				a.entity.Status = DeviceStatus(value)
			}
		}
	case *DeviceDeactivated:
		a.entity.Status = StatusInactive
	case *DeviceActivated:
		a.entity.Status = StatusActive
	case *DeviceConfigurationChanged:
		if ev.Removed {
			delete(a.entity.Configuration.Settings, ev.Key)
		} else {
			a.entity.Configuration.Settings[ev.Key] = ev.NewValue
		}
		a.entity.Configuration.Version = ev.ConfigVersion
		a.entity.Configuration.UpdatedAt = ev.OccurredAt()
	case *DeviceMetricsRecorded:
		a.entity.Metrics = append(a.entity.Metrics, ev.Metrics)
		if len(a.entity.Metrics) > MaxMetricsHistory {
			a.entity.Metrics = a.entity.Metrics[len(a.entity.Metrics)-MaxMetricsHistory:]
		}
		ts := ev.Metrics.Timestamp
		a.entity.LastSeen = &ts
	case *DeviceLocationChanged:
		loc := ev.NewLocation
		a.entity.Location = &loc
	case *DeviceCapabilitiesUpdated:
		a.entity.Capabilities = ev.NewCapabilities.clone()
	}
	a.entity.Version = e.Version()
	a.entity.UpdatedAt = e.OccurredAt()
}
