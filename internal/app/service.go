package app

import (
	"context"
	"log/slog"

	"github.com/edgefleet/armada/internal/domain"
)

// DeviceService is the application-service facade consumed by the HTTP
// layer and any other caller. All inputs and outputs are commands, queries
// and DTOs; domain objects stay behind it.
type DeviceService struct {
	commands *CommandHandler
	queries  *QueryHandler
}

func NewDeviceService(uowf domain.UnitOfWorkFactory, log *slog.Logger) *DeviceService {
	return &DeviceService{
		commands: NewCommandHandler(uowf, log),
		queries:  NewQueryHandler(uowf, log),
	}
}

func (s *DeviceService) RegisterDevice(ctx context.Context, cmd RegisterDeviceCommand) CommandResult {
	return s.commands.Handle(ctx, cmd)
}

func (s *DeviceService) UpdateDevice(ctx context.Context, cmd UpdateDeviceCommand) CommandResult {
	return s.commands.Handle(ctx, cmd)
}

func (s *DeviceService) DeactivateDevice(ctx context.Context, cmd DeactivateDeviceCommand) CommandResult {
	return s.commands.Handle(ctx, cmd)
}

func (s *DeviceService) ActivateDevice(ctx context.Context, cmd ActivateDeviceCommand) CommandResult {
	return s.commands.Handle(ctx, cmd)
}

func (s *DeviceService) SetMaintenanceMode(ctx context.Context, cmd SetMaintenanceModeCommand) CommandResult {
	return s.commands.Handle(ctx, cmd)
}

func (s *DeviceService) DecommissionDevice(ctx context.Context, cmd DecommissionDeviceCommand) CommandResult {
	return s.commands.Handle(ctx, cmd)
}

func (s *DeviceService) UpdateDeviceLocation(ctx context.Context, cmd UpdateDeviceLocationCommand) CommandResult {
	return s.commands.Handle(ctx, cmd)
}

func (s *DeviceService) UpdateDeviceCapabilities(ctx context.Context, cmd UpdateDeviceCapabilitiesCommand) CommandResult {
	return s.commands.Handle(ctx, cmd)
}

func (s *DeviceService) UpdateDeviceConfiguration(ctx context.Context, cmd UpdateDeviceConfigurationCommand) CommandResult {
	return s.commands.Handle(ctx, cmd)
}

func (s *DeviceService) RemoveDeviceConfiguration(ctx context.Context, cmd RemoveDeviceConfigurationCommand) CommandResult {
	return s.commands.Handle(ctx, cmd)
}

func (s *DeviceService) RecordDeviceMetrics(ctx context.Context, cmd RecordDeviceMetricsCommand) CommandResult {
	return s.commands.Handle(ctx, cmd)
}

func (s *DeviceService) DeleteDevice(ctx context.Context, cmd DeleteDeviceCommand) CommandResult {
	return s.commands.Handle(ctx, cmd)
}

func (s *DeviceService) BulkUpdateStatus(ctx context.Context, cmd BulkUpdateStatusCommand) CommandResult {
	return s.commands.Handle(ctx, cmd)
}

func (s *DeviceService) ImportDevices(ctx context.Context, cmd ImportDevicesCommand) CommandResult {
	return s.commands.Handle(ctx, cmd)
}

func (s *DeviceService) SyncDevice(ctx context.Context, cmd SyncDeviceCommand) CommandResult {
	return s.commands.Handle(ctx, cmd)
}

func (s *DeviceService) GetDevice(ctx context.Context, q GetDeviceQuery) (*DeviceDto, error) {
	return s.queries.GetDevice(ctx, q)
}

func (s *DeviceService) GetDeviceBySerialNumber(ctx context.Context, q GetDeviceBySerialNumberQuery) (*DeviceDto, error) {
	return s.queries.GetDeviceBySerialNumber(ctx, q)
}

func (s *DeviceService) ListDevices(ctx context.Context, q ListDevicesQuery) (*DeviceListDto, error) {
	return s.queries.ListDevices(ctx, q)
}

func (s *DeviceService) SearchDevices(ctx context.Context, q SearchDevicesQuery) (*DeviceSearchResultDto, error) {
	return s.queries.SearchDevices(ctx, q)
}

func (s *DeviceService) GetDevicesByType(ctx context.Context, q GetDevicesByTypeQuery) (*DeviceListDto, error) {
	return s.queries.GetDevicesByType(ctx, q)
}

func (s *DeviceService) GetDevicesByStatus(ctx context.Context, q GetDevicesByStatusQuery) (*DeviceListDto, error) {
	return s.queries.GetDevicesByStatus(ctx, q)
}

func (s *DeviceService) GetStaleDevices(ctx context.Context, q GetStaleDevicesQuery) ([]DeviceDto, error) {
	return s.queries.GetStaleDevices(ctx, q)
}

func (s *DeviceService) GetDeviceMetrics(ctx context.Context, q GetDeviceMetricsQuery) (*DeviceMetricsDto, error) {
	return s.queries.GetDeviceMetrics(ctx, q)
}

func (s *DeviceService) GetStatistics(ctx context.Context, q GetDeviceStatisticsQuery) (*DeviceStatisticsDto, error) {
	return s.queries.GetStatistics(ctx, q)
}

func (s *DeviceService) GetDeviceHealth(ctx context.Context, q GetDeviceHealthQuery) (*DeviceHealthDto, error) {
	return s.queries.GetDeviceHealth(ctx, q)
}
