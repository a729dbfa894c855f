package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/edgefleet/armada/internal/domain"
)

func seedDevices(t *testing.T, svc *DeviceService, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		cmd := registerCmd(fmt.Sprintf("SN-Q-%03d", i))
		cmd.Name = fmt.Sprintf("sensor-%03d", i)
		res := svc.RegisterDevice(context.Background(), cmd)
		if !res.Success {
			t.Fatalf("seed %d: %s %v", i, res.Error, res.ValidationErrors)
		}
	}
}

func TestListDevices_PaginationMath(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	seedDevices(t, svc, 47)

	page1, err := svc.ListDevices(ctx, ListDevicesQuery{
		QueryMeta:  NewQueryMeta("test-user"),
		Pagination: Pagination{Page: 1, PageSize: 10},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page1.TotalCount != 47 || page1.TotalPages != 5 {
		t.Fatalf("expected 47 items over 5 pages, got %d/%d", page1.TotalCount, page1.TotalPages)
	}
	if !page1.HasNext || page1.HasPrevious {
		t.Fatalf("first page flags wrong: next=%v prev=%v", page1.HasNext, page1.HasPrevious)
	}
	if len(page1.Devices) != 10 {
		t.Fatalf("expected 10 devices on page 1, got %d", len(page1.Devices))
	}

	page5, err := svc.ListDevices(ctx, ListDevicesQuery{
		QueryMeta:  NewQueryMeta("test-user"),
		Pagination: Pagination{Page: 5, PageSize: 10},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page5.HasNext || !page5.HasPrevious {
		t.Fatalf("last page flags wrong: next=%v prev=%v", page5.HasNext, page5.HasPrevious)
	}
	if len(page5.Devices) != 7 {
		t.Fatalf("expected 7 devices on page 5, got %d", len(page5.Devices))
	}
}

func TestListDevices_Defaults(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	seedDevices(t, svc, 3)

	list, err := svc.ListDevices(ctx, ListDevicesQuery{QueryMeta: NewQueryMeta("test-user"), Pagination: DefaultPagination()})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Page != 1 || list.PageSize != 20 {
		t.Fatalf("expected default page 1 size 20, got %d/%d", list.Page, list.PageSize)
	}
}

func TestListDevices_RejectsBadPagination(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cases := []Pagination{
		{Page: 0, PageSize: 10},
		{Page: -1, PageSize: 10},
		{Page: 1, PageSize: 0},
		{Page: 1, PageSize: -5},
		{Page: 1, PageSize: 2000},
	}
	for _, p := range cases {
		_, err := svc.ListDevices(ctx, ListDevicesQuery{QueryMeta: NewQueryMeta("test-user"), Pagination: p})
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("pagination %+v: expected ValidationErrors, got %v", p, err)
		}
	}
}

func TestListDevices_SortAllowList(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	seedDevices(t, svc, 2)

	_, err := svc.ListDevices(ctx, ListDevicesQuery{
		QueryMeta:  NewQueryMeta("test-user"),
		Pagination: DefaultPagination(),
		SortBy:     "password_hash",
	})
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected rejection of unknown sort field, got %v", err)
	}

	_, err = svc.ListDevices(ctx, ListDevicesQuery{
		QueryMeta:  NewQueryMeta("test-user"),
		Pagination: DefaultPagination(),
		SortBy:     "name",
		SortOrder:  "sideways",
	})
	if !errors.As(err, &verrs) {
		t.Fatalf("expected rejection of unknown sort order, got %v", err)
	}

	list, err := svc.ListDevices(ctx, ListDevicesQuery{
		QueryMeta:  NewQueryMeta("test-user"),
		Pagination: DefaultPagination(),
		SortBy:     "name",
		SortOrder:  "desc",
	})
	if err != nil {
		t.Fatalf("valid sort rejected: %v", err)
	}
	if list.Devices[0].Name != "sensor-001" {
		t.Fatalf("expected descending name order, got %s first", list.Devices[0].Name)
	}
}

func TestSearchDevices_CombinesTermAndFilters(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	seedDevices(t, svc, 3)

	gw := registerCmd("SN-Q-GW")
	gw.Name = "main-gateway"
	gw.DeviceType = "gateway"
	gw.Capabilities = &domain.DeviceCapabilities{SupportedProtocols: []string{"mqtt", "http"}}
	if res := svc.RegisterDevice(ctx, gw); !res.Success {
		t.Fatalf("register gateway: %s", res.Error)
	}

	result, err := svc.SearchDevices(ctx, SearchDevicesQuery{
		QueryMeta:   NewQueryMeta("test-user"),
		Pagination:  DefaultPagination(),
		SearchTerm:  "sensor",
		DeviceTypes: []string{"sensor"},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.TotalCount != 3 {
		t.Fatalf("expected 3 sensors, got %d", result.TotalCount)
	}
	if result.SearchTerm != "sensor" {
		t.Fatalf("search term must echo back, got %q", result.SearchTerm)
	}

	// A capability filter narrows the hits further
	byCap, err := svc.SearchDevices(ctx, SearchDevicesQuery{
		QueryMeta:    NewQueryMeta("test-user"),
		Pagination:   DefaultPagination(),
		SearchTerm:   "main",
		Capabilities: []string{"http"},
	})
	if err != nil {
		t.Fatalf("search by capability: %v", err)
	}
	if byCap.TotalCount != 1 || byCap.Devices[0].Name != "main-gateway" {
		t.Fatalf("expected only the gateway, got %d devices", byCap.TotalCount)
	}

	// Empty search term is invalid
	_, err = svc.SearchDevices(ctx, SearchDevicesQuery{QueryMeta: NewQueryMeta("test-user"), Pagination: DefaultPagination()})
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation error for empty term, got %v", err)
	}
}

func TestGetDevicesByTypeAndStatus(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	seedDevices(t, svc, 2)
	id := mustRegister(t, svc, "SN-Q-OFF")
	if res := svc.DeactivateDevice(ctx, DeactivateDeviceCommand{CommandMeta: NewCommandMeta("ops"), DeviceID: id}); !res.Success {
		t.Fatalf("deactivate: %s", res.Error)
	}

	byType, err := svc.GetDevicesByType(ctx, GetDevicesByTypeQuery{QueryMeta: NewQueryMeta("test-user"), Pagination: DefaultPagination(), DeviceType: "sensor"})
	if err != nil {
		t.Fatalf("by type: %v", err)
	}
	if byType.TotalCount != 3 {
		t.Fatalf("expected 3 sensors, got %d", byType.TotalCount)
	}

	inactive, err := svc.GetDevicesByStatus(ctx, GetDevicesByStatusQuery{QueryMeta: NewQueryMeta("test-user"), Pagination: DefaultPagination(), Status: "INACTIVE"})
	if err != nil {
		t.Fatalf("by status: %v", err)
	}
	if inactive.TotalCount != 1 {
		t.Fatalf("expected 1 inactive device, got %d", inactive.TotalCount)
	}

	if _, err := svc.GetDevicesByStatus(ctx, GetDevicesByStatusQuery{QueryMeta: NewQueryMeta("test-user"), Pagination: DefaultPagination(), Status: "BROKEN"}); err == nil {
		t.Fatal("unknown status must be rejected")
	}
}

func TestGetStaleDevices(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	fresh := mustRegister(t, svc, "SN-STALE-1")
	neverSeen := mustRegister(t, svc, "SN-STALE-2")

	now := time.Now().UTC()
	if res := svc.RecordDeviceMetrics(ctx, RecordDeviceMetricsCommand{
		CommandMeta: NewCommandMeta("agent"),
		DeviceID:    fresh,
		Metrics:     domain.DeviceMetrics{Timestamp: now},
	}); !res.Success {
		t.Fatalf("metrics: %s", res.Error)
	}

	stale, err := svc.GetStaleDevices(ctx, GetStaleDevicesQuery{QueryMeta: NewQueryMeta("test-user"), ThresholdSeconds: 3600})
	if err != nil {
		t.Fatalf("stale: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != neverSeen {
		t.Fatalf("expected only the never-seen device, got %d", len(stale))
	}
}

func TestGetDeviceMetrics_SinceAndLimit(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id := mustRegister(t, svc, "SN-MET-Q")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		res := svc.RecordDeviceMetrics(ctx, RecordDeviceMetricsCommand{
			CommandMeta: NewCommandMeta("agent"),
			DeviceID:    id,
			Metrics:     domain.DeviceMetrics{Timestamp: base.Add(time.Duration(i) * time.Minute)},
		})
		if !res.Success {
			t.Fatalf("record %d: %s", i, res.Error)
		}
	}

	all, err := svc.GetDeviceMetrics(ctx, GetDeviceMetricsQuery{QueryMeta: NewQueryMeta("test-user"), DeviceID: id})
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if len(all.Samples) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(all.Samples))
	}

	since := base.Add(3 * time.Minute)
	recent, err := svc.GetDeviceMetrics(ctx, GetDeviceMetricsQuery{QueryMeta: NewQueryMeta("test-user"), DeviceID: id, Since: &since})
	if err != nil {
		t.Fatalf("metrics since: %v", err)
	}
	if len(recent.Samples) != 2 {
		t.Fatalf("expected 2 samples since cutoff, got %d", len(recent.Samples))
	}

	limited, err := svc.GetDeviceMetrics(ctx, GetDeviceMetricsQuery{QueryMeta: NewQueryMeta("test-user"), DeviceID: id, Limit: 3})
	if err != nil {
		t.Fatalf("metrics limited: %v", err)
	}
	if len(limited.Samples) != 3 {
		t.Fatalf("expected 3 newest samples, got %d", len(limited.Samples))
	}
	if !limited.Samples[2].Timestamp.Equal(base.Add(4 * time.Minute)) {
		t.Fatal("limit must keep the newest samples")
	}
}

func TestGetStatistics(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	seedDevices(t, svc, 2)
	id := mustRegister(t, svc, "SN-STAT-1")
	if res := svc.DecommissionDevice(ctx, DecommissionDeviceCommand{CommandMeta: NewCommandMeta("ops"), DeviceID: id}); !res.Success {
		t.Fatalf("decommission: %s", res.Error)
	}

	stats, err := svc.GetStatistics(ctx, GetDeviceStatisticsQuery{QueryMeta: NewQueryMeta("test-user")})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalDevices != 3 {
		t.Fatalf("expected 3 devices, got %d", stats.TotalDevices)
	}
	if stats.ByStatus[string(domain.StatusActive)] != 2 || stats.ByStatus[string(domain.StatusDecommissioned)] != 1 {
		t.Fatalf("status counts wrong: %v", stats.ByStatus)
	}
	if stats.ByType["sensor"] != 3 {
		t.Fatalf("type counts wrong: %v", stats.ByType)
	}
	if stats.NeverSeenCount != 3 {
		t.Fatalf("expected 3 never-seen devices, got %d", stats.NeverSeenCount)
	}
	if stats.AverageHealth <= 0 || stats.AverageHealth > 1 {
		t.Fatalf("average health out of range: %f", stats.AverageHealth)
	}
}

func TestGetDeviceHealth(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id := mustRegister(t, svc, "SN-HEALTH-1")

	health, err := svc.GetDeviceHealth(ctx, GetDeviceHealthQuery{QueryMeta: NewQueryMeta("test-user"), DeviceID: id})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Status != string(domain.StatusActive) {
		t.Fatalf("expected ACTIVE, got %s", health.Status)
	}
	if !health.Stale {
		t.Fatal("never-seen device must be stale")
	}
	if health.HealthScore != 0.2 {
		t.Fatalf("expected never-seen active score 0.2, got %f", health.HealthScore)
	}

	res := svc.RecordDeviceMetrics(ctx, RecordDeviceMetricsCommand{
		CommandMeta: NewCommandMeta("agent"),
		DeviceID:    id,
		Metrics:     domain.DeviceMetrics{Timestamp: time.Now().UTC()},
	})
	if !res.Success {
		t.Fatalf("metrics: %s", res.Error)
	}
	health, err = svc.GetDeviceHealth(ctx, GetDeviceHealthQuery{QueryMeta: NewQueryMeta("test-user"), DeviceID: id})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Stale || health.HealthScore != 1.0 {
		t.Fatalf("expected fresh healthy device, got stale=%v score=%f", health.Stale, health.HealthScore)
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.GetDeviceBySerialNumber(context.Background(), GetDeviceBySerialNumberQuery{
		QueryMeta: NewQueryMeta("test-user"), SerialNumber: "SN-MISSING",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
