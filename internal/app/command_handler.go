package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/edgefleet/armada/internal/domain"
)

// CommandHandler executes write commands. Each command gets its own unit of
// work: load the aggregate, invoke exactly one aggregate method, save,
// commit. Expected failures come back inside the CommandResult; the error
// channel is reserved for nothing, callers only look at the result.
type CommandHandler struct {
	uowf domain.UnitOfWorkFactory
	log  *slog.Logger
}

func NewCommandHandler(uowf domain.UnitOfWorkFactory, log *slog.Logger) *CommandHandler {
	return &CommandHandler{uowf: uowf, log: log}
}

func (h *CommandHandler) Handle(ctx context.Context, cmd Command) CommandResult {
	if errs := ValidateCommand(cmd); len(errs) > 0 {
		return invalidResult(errs)
	}

	switch c := cmd.(type) {
	case RegisterDeviceCommand:
		return h.registerDevice(ctx, c)
	case UpdateDeviceCommand:
		return h.mutate(ctx, c.DeviceID, func(agg *domain.DeviceAggregate) error {
			return agg.UpdateDetails(c.Name, c.Manufacturer, c.Model)
		})
	case DeactivateDeviceCommand:
		return h.mutate(ctx, c.DeviceID, func(agg *domain.DeviceAggregate) error {
			return agg.Deactivate(c.Reason, c.UserID)
		})
	case ActivateDeviceCommand:
		return h.mutate(ctx, c.DeviceID, func(agg *domain.DeviceAggregate) error {
			return agg.Activate(c.UserID)
		})
	case SetMaintenanceModeCommand:
		return h.mutate(ctx, c.DeviceID, func(agg *domain.DeviceAggregate) error {
			return agg.SetMaintenanceMode()
		})
	case DecommissionDeviceCommand:
		return h.mutate(ctx, c.DeviceID, func(agg *domain.DeviceAggregate) error {
			return agg.Decommission()
		})
	case UpdateDeviceLocationCommand:
		return h.mutate(ctx, c.DeviceID, func(agg *domain.DeviceAggregate) error {
			location, err := domain.NewDeviceLocation(c.Location)
			if err != nil {
				return err
			}
			return agg.UpdateLocation(location)
		})
	case UpdateDeviceCapabilitiesCommand:
		return h.mutate(ctx, c.DeviceID, func(agg *domain.DeviceAggregate) error {
			caps, err := domain.NewDeviceCapabilities(c.Capabilities)
			if err != nil {
				return err
			}
			return agg.UpdateCapabilities(caps)
		})
	case UpdateDeviceConfigurationCommand:
		return h.mutate(ctx, c.DeviceID, func(agg *domain.DeviceAggregate) error {
			return agg.UpdateConfiguration(c.Key, c.Value, c.UserID)
		})
	case RemoveDeviceConfigurationCommand:
		return h.mutate(ctx, c.DeviceID, func(agg *domain.DeviceAggregate) error {
			return agg.RemoveConfiguration(c.Key, c.UserID)
		})
	case RecordDeviceMetricsCommand:
		return h.mutate(ctx, c.DeviceID, func(agg *domain.DeviceAggregate) error {
			metrics, err := domain.NewDeviceMetrics(c.Metrics)
			if err != nil {
				return err
			}
			return agg.RecordMetrics(metrics)
		})
	case DeleteDeviceCommand:
		return h.deleteDevice(ctx, c)
	case BulkUpdateStatusCommand:
		return h.bulkUpdateStatus(ctx, c)
	case ImportDevicesCommand:
		return h.importDevices(ctx, c)
	case SyncDeviceCommand:
		return h.syncDevice(ctx, c)
	default:
		return CommandResult{Success: false, Kind: KindInvalid, Error: fmt.Sprintf("unsupported command type %q", cmd.CommandType())}
	}
}

func (h *CommandHandler) registerDevice(ctx context.Context, c RegisterDeviceCommand) CommandResult {
	deviceType, err := domain.ParseDeviceType(c.DeviceType)
	if err != nil {
		return resultFromError(err)
	}
	identifier, err := domain.NewDeviceIdentifier(c.SerialNumber, c.MACAddress, c.HardwareID)
	if err != nil {
		return resultFromError(err)
	}

	uow, err := h.uowf.Begin(ctx)
	if err != nil {
		return failureResult(err)
	}
	defer uow.Rollback(ctx)

	// Duplicate serial numbers are rejected before the aggregate raises its
	// registration event; the unique constraint is the backstop for races.
	_, err = uow.Devices().GetBySerialNumber(ctx, identifier.SerialNumber)
	switch {
	case err == nil:
		return CommandResult{
			Success: false,
			Kind:    KindConflict,
			Error:   fmt.Sprintf("device with serial number %q is already registered", identifier.SerialNumber),
		}
	case !errors.Is(err, domain.ErrNotFound):
		return resultFromError(err)
	}

	agg, err := domain.NewDevice(domain.NewDeviceParams{
		Name:         c.Name,
		Type:         deviceType,
		Identifier:   identifier,
		Manufacturer: c.Manufacturer,
		Model:        c.Model,
		Location:     c.Location,
		Capabilities: c.Capabilities,
	})
	if err != nil {
		return resultFromError(err)
	}

	if err := uow.Devices().Save(ctx, agg); err != nil {
		return resultFromError(err)
	}
	uow.TrackAggregate(agg)
	if err := uow.Commit(ctx); err != nil {
		return resultFromError(err)
	}

	h.log.Info("device registered", "device_id", agg.ID(), "serial_number", identifier.SerialNumber)
	return successResult(agg.ID())
}

// mutate runs a single-aggregate command: load, apply fn, save, commit.
func (h *CommandHandler) mutate(ctx context.Context, deviceID uuid.UUID, fn func(*domain.DeviceAggregate) error) CommandResult {
	uow, err := h.uowf.Begin(ctx)
	if err != nil {
		return failureResult(err)
	}
	defer uow.Rollback(ctx)

	agg, err := uow.Devices().GetByID(ctx, deviceID)
	if err != nil {
		return resultFromError(err)
	}
	if err := fn(agg); err != nil {
		return resultFromError(err)
	}
	if err := uow.Devices().Save(ctx, agg); err != nil {
		return resultFromError(err)
	}
	uow.TrackAggregate(agg)
	if err := uow.Commit(ctx); err != nil {
		return resultFromError(err)
	}
	return successResult(agg.ID())
}

func (h *CommandHandler) deleteDevice(ctx context.Context, c DeleteDeviceCommand) CommandResult {
	uow, err := h.uowf.Begin(ctx)
	if err != nil {
		return failureResult(err)
	}
	defer uow.Rollback(ctx)

	if err := uow.Devices().Delete(ctx, c.DeviceID); err != nil {
		return resultFromError(err)
	}
	if err := uow.Commit(ctx); err != nil {
		return resultFromError(err)
	}
	h.log.Info("device snapshot deleted", "device_id", c.DeviceID)
	return successResult(c.DeviceID)
}

// bulkUpdateStatus runs one independent unit of work per device. There is
// no cross-device rollback; every failure is reported per item.
func (h *CommandHandler) bulkUpdateStatus(ctx context.Context, c BulkUpdateStatusCommand) CommandResult {
	status, err := domain.ParseDeviceStatus(c.Status)
	if err != nil {
		return resultFromError(err)
	}

	var failures []string
	for _, id := range c.DeviceIDs {
		var result CommandResult
		switch status {
		case domain.StatusActive:
			result = h.Handle(ctx, ActivateDeviceCommand{CommandMeta: c.CommandMeta, DeviceID: id})
		case domain.StatusInactive:
			result = h.Handle(ctx, DeactivateDeviceCommand{CommandMeta: c.CommandMeta, DeviceID: id, Reason: c.Reason})
		case domain.StatusMaintenance:
			result = h.Handle(ctx, SetMaintenanceModeCommand{CommandMeta: c.CommandMeta, DeviceID: id})
		case domain.StatusDecommissioned:
			result = h.Handle(ctx, DecommissionDeviceCommand{CommandMeta: c.CommandMeta, DeviceID: id})
		}
		if !result.Success {
			msg := result.Error
			if len(result.ValidationErrors) > 0 {
				msg = result.ValidationErrors[0]
			}
			failures = append(failures, fmt.Sprintf("%s: %s", id, msg))
		}
	}

	if len(failures) > 0 {
		return CommandResult{
			Success:          false,
			Kind:             KindInvalid,
			Error:            fmt.Sprintf("%d of %d devices failed", len(failures), len(c.DeviceIDs)),
			ValidationErrors: failures,
		}
	}
	return CommandResult{Success: true}
}

func (h *CommandHandler) importDevices(ctx context.Context, c ImportDevicesCommand) CommandResult {
	var failures []string
	for i, reg := range c.Devices {
		reg.CommandMeta = NewCommandMeta(c.UserID)
		if result := h.Handle(ctx, reg); !result.Success {
			msg := result.Error
			if len(result.ValidationErrors) > 0 {
				msg = result.ValidationErrors[0]
			}
			failures = append(failures, fmt.Sprintf("device %d (%s): %s", i, reg.SerialNumber, msg))
		}
	}
	if len(failures) > 0 {
		return CommandResult{
			Success:          false,
			Kind:             KindInvalid,
			Error:            fmt.Sprintf("%d of %d devices failed to import", len(failures), len(c.Devices)),
			ValidationErrors: failures,
		}
	}
	return CommandResult{Success: true}
}

// syncDevice rebuilds the snapshot from the event log, repairing drift or an
// out-of-band snapshot deletion.
func (h *CommandHandler) syncDevice(ctx context.Context, c SyncDeviceCommand) CommandResult {
	uow, err := h.uowf.Begin(ctx)
	if err != nil {
		return failureResult(err)
	}
	defer uow.Rollback(ctx)

	events, err := uow.Events().GetEvents(ctx, c.DeviceID, 0)
	if err != nil {
		return resultFromError(err)
	}
	if len(events) == 0 {
		return CommandResult{Success: false, Kind: KindNotFound, Error: fmt.Sprintf("no event history for device %s", c.DeviceID)}
	}

	agg, err := domain.ReplayDevice(events)
	if err != nil {
		return resultFromError(err)
	}
	if err := uow.Devices().Save(ctx, agg); err != nil {
		return resultFromError(err)
	}
	if err := uow.Commit(ctx); err != nil {
		return resultFromError(err)
	}

	h.log.Info("device snapshot rebuilt", "device_id", c.DeviceID, "version", agg.Version())
	return successResult(c.DeviceID)
}

// resultFromError maps domain and persistence failures onto the result
// object so expected errors never escape as exceptions.
func resultFromError(err error) CommandResult {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return CommandResult{Success: false, Kind: KindInvalid, Error: verr.Error(), ValidationErrors: []string{verr.Error()}}
	}
	var conflict *domain.VersionConflictError
	if errors.As(err, &conflict) {
		return CommandResult{Success: false, Kind: KindConflict, Error: conflict.Error()}
	}
	if errors.Is(err, domain.ErrNotFound) {
		return CommandResult{Success: false, Kind: KindNotFound, Error: "device not found"}
	}
	if errors.Is(err, domain.ErrConflict) {
		return CommandResult{Success: false, Kind: KindConflict, Error: "device conflicts with an existing device"}
	}
	return failureResult(err)
}
