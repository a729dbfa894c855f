package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/edgefleet/armada/internal/domain"
	"github.com/edgefleet/armada/internal/repository/memory"
)

func newTestService() (*DeviceService, *memory.Factory) {
	store := memory.NewStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := memory.NewFactory(store, log)
	return NewDeviceService(factory, log), factory
}

func registerCmd(serial string) RegisterDeviceCommand {
	return RegisterDeviceCommand{
		CommandMeta:  NewCommandMeta("test-user"),
		Name:         "warehouse-sensor",
		DeviceType:   "sensor",
		SerialNumber: serial,
		Manufacturer: "Acme",
		Model:        "TH-200",
		Capabilities: &domain.DeviceCapabilities{
			SupportedProtocols: []string{"mqtt"},
			Sensors:            []string{"temperature", "humidity"},
		},
	}
}

func mustRegister(t *testing.T, svc *DeviceService, serial string) uuid.UUID {
	t.Helper()
	res := svc.RegisterDevice(context.Background(), registerCmd(serial))
	if !res.Success {
		t.Fatalf("register failed: %s %v", res.Error, res.ValidationErrors)
	}
	return *res.AggregateID
}

func TestRegisterDevice_Success(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	res := svc.RegisterDevice(ctx, registerCmd("SN-CMD-1"))
	if !res.Success {
		t.Fatalf("expected success, got %s %v", res.Error, res.ValidationErrors)
	}
	if res.AggregateID == nil {
		t.Fatal("expected aggregate id in result")
	}

	dto, err := svc.GetDevice(ctx, GetDeviceQuery{QueryMeta: NewQueryMeta("test-user"), DeviceID: *res.AggregateID})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if dto.Version != 1 {
		t.Fatalf("expected version 1, got %d", dto.Version)
	}
	if dto.Status != string(domain.StatusActive) {
		t.Fatalf("expected ACTIVE, got %s", dto.Status)
	}
}

func TestRegisterDevice_DuplicateSerial(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	mustRegister(t, svc, "SN-CMD-2")

	dupe := registerCmd("sn-cmd-2")
	res := svc.RegisterDevice(ctx, dupe)
	if res.Success {
		t.Fatal("duplicate serial must fail")
	}
	if res.Error == "" {
		t.Fatal("expected an error message")
	}
	if res.Kind != KindConflict {
		t.Fatalf("expected conflict result, got %q", res.Kind)
	}

	// The failed registration left nothing behind
	list, err := svc.ListDevices(ctx, ListDevicesQuery{QueryMeta: NewQueryMeta("test-user"), Pagination: DefaultPagination()})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.TotalCount != 1 {
		t.Fatalf("expected 1 device after duplicate attempt, got %d", list.TotalCount)
	}
}

func TestRegisterDevice_ValidationFailures(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cmd := registerCmd("SN-CMD-3")
	cmd.Name = ""
	res := svc.RegisterDevice(ctx, cmd)
	if res.Success {
		t.Fatal("expected validation failure for empty name")
	}
	if len(res.ValidationErrors) == 0 {
		t.Fatalf("expected validation errors, got %v", res)
	}

	cmd = registerCmd("SN-CMD-3")
	cmd.DeviceType = "starship"
	res = svc.RegisterDevice(ctx, cmd)
	if res.Success {
		t.Fatal("expected validation failure for unknown device type")
	}
	if len(res.ValidationErrors) == 0 {
		t.Fatalf("expected validation errors, got %v", res)
	}

	cmd = registerCmd("SN-CMD-3")
	badLat := 999.0
	cmd.Location = &domain.DeviceLocation{Latitude: &badLat}
	res = svc.RegisterDevice(ctx, cmd)
	if res.Success {
		t.Fatal("expected validation failure for out-of-range latitude")
	}
	if len(res.ValidationErrors) == 0 {
		t.Fatalf("expected validation errors, got %v", res)
	}

	cmd = registerCmd("SN-CMD-3")
	cmd.Capabilities = &domain.DeviceCapabilities{Sensors: []string{"temperature"}}
	res = svc.RegisterDevice(ctx, cmd)
	if res.Success {
		t.Fatal("expected validation failure for capabilities without protocols")
	}
	if len(res.ValidationErrors) == 0 {
		t.Fatalf("expected validation errors, got %v", res)
	}

	// Nothing was persisted by any attempt
	list, err := svc.ListDevices(ctx, ListDevicesQuery{QueryMeta: NewQueryMeta("test-user"), Pagination: DefaultPagination()})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.TotalCount != 0 {
		t.Fatalf("expected no devices, got %d", list.TotalCount)
	}
}

func TestDeactivateActivate_Flow(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id := mustRegister(t, svc, "SN-CMD-4")

	res := svc.DeactivateDevice(ctx, DeactivateDeviceCommand{
		CommandMeta: NewCommandMeta("ops"), DeviceID: id, Reason: "relocation",
	})
	if !res.Success {
		t.Fatalf("deactivate: %s", res.Error)
	}

	// Deactivating again is an illegal transition, reported in the result
	res = svc.DeactivateDevice(ctx, DeactivateDeviceCommand{
		CommandMeta: NewCommandMeta("ops"), DeviceID: id,
	})
	if res.Success {
		t.Fatal("double deactivate must fail")
	}

	res = svc.ActivateDevice(ctx, ActivateDeviceCommand{CommandMeta: NewCommandMeta("ops"), DeviceID: id})
	if !res.Success {
		t.Fatalf("activate: %s", res.Error)
	}

	dto, err := svc.GetDevice(ctx, GetDeviceQuery{QueryMeta: NewQueryMeta("test-user"), DeviceID: id})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if dto.Status != string(domain.StatusActive) || dto.Version != 3 {
		t.Fatalf("expected ACTIVE at version 3, got %s at %d", dto.Status, dto.Version)
	}
}

func TestCommand_UnknownDevice(t *testing.T) {
	svc, _ := newTestService()
	res := svc.ActivateDevice(context.Background(), ActivateDeviceCommand{
		CommandMeta: NewCommandMeta("ops"), DeviceID: uuid.New(),
	})
	if res.Success {
		t.Fatal("expected failure for unknown device")
	}
	if res.Error != "device not found" {
		t.Fatalf("expected not-found error, got %q", res.Error)
	}
	if res.Kind != KindNotFound {
		t.Fatalf("expected not-found result, got %q", res.Kind)
	}
}

func TestDecommission_BlocksFurtherCommands(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id := mustRegister(t, svc, "SN-CMD-5")

	if res := svc.DecommissionDevice(ctx, DecommissionDeviceCommand{CommandMeta: NewCommandMeta("ops"), DeviceID: id}); !res.Success {
		t.Fatalf("decommission: %s", res.Error)
	}

	name := "renamed"
	res := svc.UpdateDevice(ctx, UpdateDeviceCommand{CommandMeta: NewCommandMeta("ops"), DeviceID: id, Name: &name})
	if res.Success {
		t.Fatal("update after decommission must fail")
	}

	dto, err := svc.GetDevice(ctx, GetDeviceQuery{QueryMeta: NewQueryMeta("test-user"), DeviceID: id})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if dto.Version != 2 {
		t.Fatalf("rejected command must not bump the stored version, got %d", dto.Version)
	}
}

func TestUpdateConfiguration_Flow(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id := mustRegister(t, svc, "SN-CMD-6")

	res := svc.UpdateDeviceConfiguration(ctx, UpdateDeviceConfigurationCommand{
		CommandMeta: NewCommandMeta("ops"), DeviceID: id, Key: "report_interval", Value: 60,
	})
	if !res.Success {
		t.Fatalf("set config: %s %v", res.Error, res.ValidationErrors)
	}

	res = svc.UpdateDeviceConfiguration(ctx, UpdateDeviceConfigurationCommand{
		CommandMeta: NewCommandMeta("ops"), DeviceID: id, Key: "",
	})
	if res.Success {
		t.Fatal("empty configuration key must be rejected")
	}

	dto, err := svc.GetDevice(ctx, GetDeviceQuery{QueryMeta: NewQueryMeta("test-user"), DeviceID: id})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if dto.ConfigurationVersion != 1 {
		t.Fatalf("expected configuration version 1, got %d", dto.ConfigurationVersion)
	}
	if dto.Configuration["report_interval"] == nil {
		t.Fatal("configuration value missing from dto")
	}
}

func TestBulkUpdateStatus_PartialFailure(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	a := mustRegister(t, svc, "SN-BULK-1")
	b := mustRegister(t, svc, "SN-BULK-2")
	missing := uuid.New()

	res := svc.BulkUpdateStatus(ctx, BulkUpdateStatusCommand{
		CommandMeta: NewCommandMeta("ops"),
		DeviceIDs:   []uuid.UUID{a, b, missing},
		Status:      "INACTIVE",
		Reason:      "site shutdown",
	})
	if res.Success {
		t.Fatal("batch with a missing device must report failure")
	}
	if len(res.ValidationErrors) != 1 {
		t.Fatalf("expected exactly one per-item failure, got %v", res.ValidationErrors)
	}

	// The healthy devices still transitioned
	for _, id := range []uuid.UUID{a, b} {
		dto, err := svc.GetDevice(ctx, GetDeviceQuery{QueryMeta: NewQueryMeta("test-user"), DeviceID: id})
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if dto.Status != string(domain.StatusInactive) {
			t.Fatalf("device %s: expected INACTIVE, got %s", id, dto.Status)
		}
	}
}

func TestImportDevices_PartialFailure(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	mustRegister(t, svc, "SN-IMP-1")

	batch := ImportDevicesCommand{CommandMeta: NewCommandMeta("ops")}
	for i := 0; i < 3; i++ {
		batch.Devices = append(batch.Devices, registerCmd(fmt.Sprintf("SN-IMP-%d", i)))
	}

	res := svc.ImportDevices(ctx, batch)
	if res.Success {
		t.Fatal("import with a duplicate serial must report failure")
	}
	if len(res.ValidationErrors) != 1 {
		t.Fatalf("expected one per-item failure, got %v", res.ValidationErrors)
	}

	list, err := svc.ListDevices(ctx, ListDevicesQuery{QueryMeta: NewQueryMeta("test-user"), Pagination: DefaultPagination()})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.TotalCount != 3 {
		t.Fatalf("expected 3 devices (1 seed + 2 imported), got %d", list.TotalCount)
	}
}

func TestRecordMetrics_UpdatesLastSeen(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id := mustRegister(t, svc, "SN-MET-1")

	ts := time.Now().UTC().Add(-time.Minute)
	cpu := 45.0
	res := svc.RecordDeviceMetrics(ctx, RecordDeviceMetricsCommand{
		CommandMeta: NewCommandMeta("agent"),
		DeviceID:    id,
		Metrics:     domain.DeviceMetrics{Timestamp: ts, CPUUsagePercent: &cpu},
	})
	if !res.Success {
		t.Fatalf("record: %s %v", res.Error, res.ValidationErrors)
	}

	dto, err := svc.GetDevice(ctx, GetDeviceQuery{QueryMeta: NewQueryMeta("test-user"), DeviceID: id})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if dto.LastSeen == nil || !dto.LastSeen.Equal(ts) {
		t.Fatalf("expected last_seen %v, got %v", ts, dto.LastSeen)
	}
}

func TestSyncDevice_RebuildsDeletedSnapshot(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id := mustRegister(t, svc, "SN-SYNC-1")

	if res := svc.DeactivateDevice(ctx, DeactivateDeviceCommand{CommandMeta: NewCommandMeta("ops"), DeviceID: id, Reason: "audit"}); !res.Success {
		t.Fatalf("deactivate: %s", res.Error)
	}
	if res := svc.DeleteDevice(ctx, DeleteDeviceCommand{CommandMeta: NewCommandMeta("ops"), DeviceID: id}); !res.Success {
		t.Fatalf("delete: %s", res.Error)
	}
	if _, err := svc.GetDevice(ctx, GetDeviceQuery{QueryMeta: NewQueryMeta("test-user"), DeviceID: id}); err == nil {
		t.Fatal("snapshot should be gone after delete")
	}

	res := svc.SyncDevice(ctx, SyncDeviceCommand{CommandMeta: NewCommandMeta("ops"), DeviceID: id})
	if !res.Success {
		t.Fatalf("sync: %s", res.Error)
	}

	dto, err := svc.GetDevice(ctx, GetDeviceQuery{QueryMeta: NewQueryMeta("test-user"), DeviceID: id})
	if err != nil {
		t.Fatalf("get after sync: %v", err)
	}
	if dto.Version != 2 || dto.Status != string(domain.StatusInactive) {
		t.Fatalf("expected rebuilt snapshot at version 2 INACTIVE, got %d %s", dto.Version, dto.Status)
	}
}
