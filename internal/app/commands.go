// Package app is the application layer: commands, queries, their handlers
// and the DTOs that cross the service boundary. Domain objects never leave
// this package.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edgefleet/armada/internal/domain"
)

// Command type discriminants.
const (
	CommandTypeRegisterDevice      = "device.register"
	CommandTypeUpdateDevice        = "device.update"
	CommandTypeDeactivateDevice    = "device.deactivate"
	CommandTypeActivateDevice      = "device.activate"
	CommandTypeSetMaintenanceMode  = "device.set_maintenance"
	CommandTypeDecommissionDevice  = "device.decommission"
	CommandTypeUpdateLocation      = "device.update_location"
	CommandTypeUpdateCapabilities  = "device.update_capabilities"
	CommandTypeUpdateConfiguration = "device.update_configuration"
	CommandTypeRemoveConfiguration = "device.remove_configuration"
	CommandTypeRecordMetrics       = "device.record_metrics"
	CommandTypeDeleteDevice        = "device.delete"
	CommandTypeBulkUpdateStatus    = "device.bulk_update_status"
	CommandTypeImportDevices       = "device.import"
	CommandTypeSyncDevice          = "device.sync"
)

// Command is the closed set of write operations. Concrete commands embed
// CommandMeta and are matched by type switch in the handler.
type Command interface {
	CommandID() uuid.UUID
	IssuedAt() time.Time
	CommandType() string
}

type CommandMeta struct {
	ID            uuid.UUID
	Issued        time.Time
	UserID        string
	CorrelationID string
}

func NewCommandMeta(userID string) CommandMeta {
	return CommandMeta{ID: uuid.New(), Issued: time.Now().UTC(), UserID: userID}
}

func (m CommandMeta) CommandID() uuid.UUID { return m.ID }
func (m CommandMeta) IssuedAt() time.Time  { return m.Issued }

type RegisterDeviceCommand struct {
	CommandMeta
	Name         string
	DeviceType   string
	SerialNumber string
	MACAddress   string
	HardwareID   string
	Manufacturer string
	Model        string
	Location     *domain.DeviceLocation
	Capabilities *domain.DeviceCapabilities
}

func (RegisterDeviceCommand) CommandType() string { return CommandTypeRegisterDevice }

type UpdateDeviceCommand struct {
	CommandMeta
	DeviceID     uuid.UUID
	Name         *string
	Manufacturer *string
	Model        *string
}

func (UpdateDeviceCommand) CommandType() string { return CommandTypeUpdateDevice }

type DeactivateDeviceCommand struct {
	CommandMeta
	DeviceID uuid.UUID
	Reason   string
}

func (DeactivateDeviceCommand) CommandType() string { return CommandTypeDeactivateDevice }

type ActivateDeviceCommand struct {
	CommandMeta
	DeviceID uuid.UUID
}

func (ActivateDeviceCommand) CommandType() string { return CommandTypeActivateDevice }

type SetMaintenanceModeCommand struct {
	CommandMeta
	DeviceID uuid.UUID
}

func (SetMaintenanceModeCommand) CommandType() string { return CommandTypeSetMaintenanceMode }

type DecommissionDeviceCommand struct {
	CommandMeta
	DeviceID uuid.UUID
}

func (DecommissionDeviceCommand) CommandType() string { return CommandTypeDecommissionDevice }

type UpdateDeviceLocationCommand struct {
	CommandMeta
	DeviceID uuid.UUID
	Location domain.DeviceLocation
}

func (UpdateDeviceLocationCommand) CommandType() string { return CommandTypeUpdateLocation }

type UpdateDeviceCapabilitiesCommand struct {
	CommandMeta
	DeviceID     uuid.UUID
	Capabilities domain.DeviceCapabilities
}

func (UpdateDeviceCapabilitiesCommand) CommandType() string { return CommandTypeUpdateCapabilities }

type UpdateDeviceConfigurationCommand struct {
	CommandMeta
	DeviceID uuid.UUID
	Key      string
	Value    interface{}
}

func (UpdateDeviceConfigurationCommand) CommandType() string { return CommandTypeUpdateConfiguration }

type RemoveDeviceConfigurationCommand struct {
	CommandMeta
	DeviceID uuid.UUID
	Key      string
}

func (RemoveDeviceConfigurationCommand) CommandType() string { return CommandTypeRemoveConfiguration }

type RecordDeviceMetricsCommand struct {
	CommandMeta
	DeviceID uuid.UUID
	Metrics  domain.DeviceMetrics
}

func (RecordDeviceMetricsCommand) CommandType() string { return CommandTypeRecordMetrics }

// DeleteDeviceCommand removes the snapshot row. Events referencing the
// device stay in the log; this is the administrative escape hatch outside
// the event-sourced happy path.
type DeleteDeviceCommand struct {
	CommandMeta
	DeviceID uuid.UUID
}

func (DeleteDeviceCommand) CommandType() string { return CommandTypeDeleteDevice }

// BulkUpdateStatusCommand applies one status transition to many devices.
// Each device runs in its own unit of work; failures are reported per item
// and never roll back the rest of the batch.
type BulkUpdateStatusCommand struct {
	CommandMeta
	DeviceIDs []uuid.UUID
	Status    string
	Reason    string
}

func (BulkUpdateStatusCommand) CommandType() string { return CommandTypeBulkUpdateStatus }

// ImportDevicesCommand registers a batch of devices, one unit of work each.
type ImportDevicesCommand struct {
	CommandMeta
	Devices []RegisterDeviceCommand
}

func (ImportDevicesCommand) CommandType() string { return CommandTypeImportDevices }

// SyncDeviceCommand reconciles a device's snapshot against its event log,
// repairing a snapshot that drifted or was deleted out-of-band.
type SyncDeviceCommand struct {
	CommandMeta
	DeviceID uuid.UUID
}

func (SyncDeviceCommand) CommandType() string { return CommandTypeSyncDevice }

// CommandResult is what every command returns. Expected failures (bad
// input, duplicate serial, illegal transition, version conflict) surface
// here rather than as errors.
// ResultKind classifies a failed CommandResult so transports can pick a
// status code without parsing error strings.
type ResultKind string

const (
	KindInvalid  ResultKind = "invalid"
	KindNotFound ResultKind = "not_found"
	KindConflict ResultKind = "conflict"
	KindInternal ResultKind = "internal"
)

type CommandResult struct {
	Success          bool       `json:"success"`
	Kind             ResultKind `json:"-"`
	AggregateID      *uuid.UUID `json:"aggregate_id,omitempty"`
	Error            string     `json:"error,omitempty"`
	ValidationErrors []string   `json:"validation_errors,omitempty"`
}

func successResult(aggregateID uuid.UUID) CommandResult {
	return CommandResult{Success: true, AggregateID: &aggregateID}
}

func failureResult(err error) CommandResult {
	return CommandResult{Success: false, Kind: KindInternal, Error: err.Error()}
}

func invalidResult(errs []string) CommandResult {
	return CommandResult{Success: false, Kind: KindInvalid, Error: "command validation failed", ValidationErrors: errs}
}

const maxConfigurationKeyLength = 255

// ValidateCommand runs structural checks before any domain logic executes.
// It returns human-readable messages, one per violation.
func ValidateCommand(cmd Command) []string {
	var errs []string
	switch c := cmd.(type) {
	case RegisterDeviceCommand:
		if strings.TrimSpace(c.Name) == "" {
			errs = append(errs, "device name is required")
		}
		if strings.TrimSpace(c.SerialNumber) == "" {
			errs = append(errs, "serial number is required")
		}
		if strings.TrimSpace(c.DeviceType) == "" {
			errs = append(errs, "device type is required")
		}
	case UpdateDeviceCommand:
		if c.DeviceID == uuid.Nil {
			errs = append(errs, "device id is required")
		}
		if c.Name == nil && c.Manufacturer == nil && c.Model == nil {
			errs = append(errs, "at least one field to update is required")
		}
		if c.Name != nil && strings.TrimSpace(*c.Name) == "" {
			errs = append(errs, "device name cannot be empty")
		}
	case DeactivateDeviceCommand:
		if c.DeviceID == uuid.Nil {
			errs = append(errs, "device id is required")
		}
		if strings.TrimSpace(c.Reason) == "" {
			errs = append(errs, "deactivation reason is required")
		}
	case ActivateDeviceCommand:
		if c.DeviceID == uuid.Nil {
			errs = append(errs, "device id is required")
		}
	case SetMaintenanceModeCommand:
		if c.DeviceID == uuid.Nil {
			errs = append(errs, "device id is required")
		}
	case DecommissionDeviceCommand:
		if c.DeviceID == uuid.Nil {
			errs = append(errs, "device id is required")
		}
	case UpdateDeviceLocationCommand:
		if c.DeviceID == uuid.Nil {
			errs = append(errs, "device id is required")
		}
	case UpdateDeviceCapabilitiesCommand:
		if c.DeviceID == uuid.Nil {
			errs = append(errs, "device id is required")
		}
		if len(c.Capabilities.SupportedProtocols) == 0 {
			errs = append(errs, "at least one supported protocol is required")
		}
	case UpdateDeviceConfigurationCommand:
		if c.DeviceID == uuid.Nil {
			errs = append(errs, "device id is required")
		}
		if strings.TrimSpace(c.Key) == "" {
			errs = append(errs, "configuration key is required")
		}
		if len(c.Key) > maxConfigurationKeyLength {
			errs = append(errs, fmt.Sprintf("configuration key cannot exceed %d characters", maxConfigurationKeyLength))
		}
	case RemoveDeviceConfigurationCommand:
		if c.DeviceID == uuid.Nil {
			errs = append(errs, "device id is required")
		}
		if strings.TrimSpace(c.Key) == "" {
			errs = append(errs, "configuration key is required")
		}
	case RecordDeviceMetricsCommand:
		if c.DeviceID == uuid.Nil {
			errs = append(errs, "device id is required")
		}
		if c.Metrics.Timestamp.IsZero() {
			errs = append(errs, "metrics timestamp is required")
		}
	case DeleteDeviceCommand:
		if c.DeviceID == uuid.Nil {
			errs = append(errs, "device id is required")
		}
	case BulkUpdateStatusCommand:
		if len(c.DeviceIDs) == 0 {
			errs = append(errs, "at least one device id is required")
		}
		if _, err := domain.ParseDeviceStatus(c.Status); err != nil {
			errs = append(errs, fmt.Sprintf("invalid status %q", c.Status))
		}
	case ImportDevicesCommand:
		if len(c.Devices) == 0 {
			errs = append(errs, "at least one device is required")
		}
	case SyncDeviceCommand:
		if c.DeviceID == uuid.Nil {
			errs = append(errs, "device id is required")
		}
	}
	return errs
}
