package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/edgefleet/armada/internal/domain"
)

func seedFleet(t *testing.T, factory *Factory) {
	t.Helper()
	specs := []struct {
		name   string
		serial string
		typ    domain.DeviceType
		mfr    string
	}{
		{"temp-sensor-01", "SN-F-01", domain.TypeSensor, "Acme"},
		{"temp-sensor-02", "SN-F-02", domain.TypeSensor, "Acme"},
		{"core-gateway", "SN-F-03", domain.TypeGateway, "NetCorp"},
		{"lobby-camera", "SN-F-04", domain.TypeCamera, "NetCorp"},
	}
	for _, s := range specs {
		id, err := domain.NewDeviceIdentifier(s.serial, "", "")
		if err != nil {
			t.Fatalf("identifier: %v", err)
		}
		var caps *domain.DeviceCapabilities
		switch s.typ {
		case domain.TypeSensor:
			caps = &domain.DeviceCapabilities{SupportedProtocols: []string{"mqtt"}, Sensors: []string{"temperature"}}
		case domain.TypeGateway:
			caps = &domain.DeviceCapabilities{SupportedProtocols: []string{"mqtt", "http"}}
		case domain.TypeCamera:
			caps = &domain.DeviceCapabilities{SupportedProtocols: []string{"rtsp"}, Sensors: []string{"video"}}
		}
		agg, err := domain.NewDevice(domain.NewDeviceParams{
			Name:         s.name,
			Type:         s.typ,
			Identifier:   id,
			Manufacturer: s.mfr,
			Capabilities: caps,
		})
		if err != nil {
			t.Fatalf("new device %s: %v", s.name, err)
		}
		saveAndCommit(t, factory, agg)
	}
}

func TestFindByCriteria_TypeFilter(t *testing.T) {
	factory, _ := newTestFactory()
	seedFleet(t, factory)
	ctx := context.Background()

	uow, _ := factory.Begin(ctx)
	defer uow.Rollback(ctx)
	matched, total, err := uow.Devices().FindByCriteria(ctx,
		domain.DeviceFilter{Types: []domain.DeviceType{domain.TypeSensor}}, nil, 0, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if total != 2 || len(matched) != 2 {
		t.Fatalf("expected 2 sensors, got %d (total %d)", len(matched), total)
	}
}

func TestFindByCriteria_CapabilityFilter(t *testing.T) {
	factory, _ := newTestFactory()
	seedFleet(t, factory)
	ctx := context.Background()

	uow, _ := factory.Begin(ctx)
	defer uow.Rollback(ctx)

	_, total, err := uow.Devices().FindByCriteria(ctx,
		domain.DeviceFilter{Capabilities: []string{"MQTT"}}, nil, 0, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 mqtt devices, got %d", total)
	}

	// Every listed capability must be declared
	matched, total, err := uow.Devices().FindByCriteria(ctx,
		domain.DeviceFilter{Capabilities: []string{"mqtt", "temperature"}}, nil, 0, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 temperature sensors, got %d", total)
	}
	for _, d := range matched {
		if d.Type != domain.TypeSensor {
			t.Fatalf("unexpected device type %s", d.Type)
		}
	}

	if _, total, _ := uow.Devices().FindByCriteria(ctx,
		domain.DeviceFilter{Capabilities: []string{"zigbee"}}, nil, 0, 0); total != 0 {
		t.Fatalf("expected no zigbee devices, got %d", total)
	}
}

func TestFindByCriteria_SearchAndFilterCombine(t *testing.T) {
	factory, _ := newTestFactory()
	seedFleet(t, factory)
	ctx := context.Background()

	uow, _ := factory.Begin(ctx)
	defer uow.Rollback(ctx)

	term := "temp"
	matched, total, err := uow.Devices().FindByCriteria(ctx, domain.DeviceFilter{
		SearchTerm: &term,
		Types:      []domain.DeviceType{domain.TypeSensor},
	}, nil, 0, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 matches, got %d", total)
	}
	for _, d := range matched {
		if d.Type != domain.TypeSensor {
			t.Fatalf("filter must AND with search, got type %s", d.Type)
		}
	}

	// Search term also hits manufacturer
	mfr := "netcorp"
	matched, total, err = uow.Devices().FindByCriteria(ctx, domain.DeviceFilter{SearchTerm: &mfr}, nil, 0, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 NetCorp devices, got %d", total)
	}
	_ = matched
}

func TestFindByCriteria_SortAndPage(t *testing.T) {
	factory, _ := newTestFactory()
	seedFleet(t, factory)
	ctx := context.Background()

	uow, _ := factory.Begin(ctx)
	defer uow.Rollback(ctx)

	sortBy := &domain.DeviceSort{Field: "name"}
	page1, total, err := uow.Devices().FindByCriteria(ctx, domain.DeviceFilter{}, sortBy, 2, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected total 4 regardless of paging, got %d", total)
	}
	if len(page1) != 2 || page1[0].Name != "core-gateway" {
		t.Fatalf("expected name-sorted first page, got %v", names(page1))
	}

	page2, _, err := uow.Devices().FindByCriteria(ctx, domain.DeviceFilter{}, sortBy, 2, 2)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(page2) != 2 || page2[0].Name != "temp-sensor-01" {
		t.Fatalf("expected second page to continue the order, got %v", names(page2))
	}

	// Offset past the end yields an empty page, not an error
	empty, total, err := uow.Devices().FindByCriteria(ctx, domain.DeviceFilter{}, sortBy, 2, 10)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(empty) != 0 || total != 4 {
		t.Fatalf("expected empty page with full total, got %d/%d", len(empty), total)
	}

	desc := &domain.DeviceSort{Field: "name", Descending: true}
	top, _, err := uow.Devices().FindByCriteria(ctx, domain.DeviceFilter{}, desc, 1, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(top) != 1 || top[0].Name != "temp-sensor-02" {
		t.Fatalf("expected descending order, got %v", names(top))
	}
}

func names(devices []*domain.DeviceEntity) []string {
	out := make([]string, len(devices))
	for i, d := range devices {
		out[i] = d.Name
	}
	return out
}

func TestDelete_RemovesSnapshotKeepsHistory(t *testing.T) {
	factory, _ := newTestFactory()
	ctx := context.Background()
	agg := registerDevice(t, "SN-DEL-1")
	saveAndCommit(t, factory, agg)

	uow, _ := factory.Begin(ctx)
	if err := uow.Devices().Delete(ctx, agg.ID()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	check, _ := factory.Begin(ctx)
	defer check.Rollback(ctx)
	if _, err := check.Devices().GetByID(ctx, agg.ID()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	events, err := check.Events().GetEvents(ctx, agg.ID(), 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 {
		t.Fatal("delete must not erase the event history")
	}

	// The serial is free for reuse after deletion
	if err := check.Devices().Save(ctx, registerDevice(t, "SN-DEL-1")); err != nil {
		t.Fatalf("expected serial to be reusable after delete: %v", err)
	}
}

func TestSaveEvents_NonContiguousRejected(t *testing.T) {
	factory, _ := newTestFactory()
	ctx := context.Background()
	agg := registerDevice(t, "SN-GAP-1")

	events := agg.UncommittedEvents()
	uow, _ := factory.Begin(ctx)
	defer uow.Rollback(ctx)
	// The aggregate has no stored events yet, so expectedVersion 2 is stale.
	if err := uow.Events().SaveEvents(ctx, agg.ID(), events, 2); err == nil {
		t.Fatal("expected conflict for wrong expected version")
	}
}
