package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/edgefleet/armada/internal/domain"
)

// ValidationErrors is the query validator's failure mode: one message per
// structural violation.
type ValidationErrors []string

func (e ValidationErrors) Error() string {
	return "query validation failed: " + strings.Join(e, "; ")
}

// staleThreshold is the default last-seen age beyond which a device is
// reported unhealthy.
const staleThreshold = time.Hour

// QueryHandler serves the read side. Every query runs in its own unit of
// work against the snapshot table; only the metrics query reads the event
// log directly.
type QueryHandler struct {
	uowf domain.UnitOfWorkFactory
	log  *slog.Logger
}

func NewQueryHandler(uowf domain.UnitOfWorkFactory, log *slog.Logger) *QueryHandler {
	return &QueryHandler{uowf: uowf, log: log}
}

func (h *QueryHandler) GetDevice(ctx context.Context, q GetDeviceQuery) (*DeviceDto, error) {
	if errs := ValidateQuery(q); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	uow, err := h.uowf.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback(ctx)

	agg, err := uow.Devices().GetByID(ctx, q.DeviceID)
	if err != nil {
		return nil, err
	}
	dto := toDeviceDto(agg.Entity())
	return &dto, nil
}

func (h *QueryHandler) GetDeviceBySerialNumber(ctx context.Context, q GetDeviceBySerialNumberQuery) (*DeviceDto, error) {
	if errs := ValidateQuery(q); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	uow, err := h.uowf.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback(ctx)

	agg, err := uow.Devices().GetBySerialNumber(ctx, q.SerialNumber)
	if err != nil {
		return nil, err
	}
	dto := toDeviceDto(agg.Entity())
	return &dto, nil
}

func (h *QueryHandler) ListDevices(ctx context.Context, q ListDevicesQuery) (*DeviceListDto, error) {
	if errs := ValidateQuery(q); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	filter, err := buildFilter(q.DeviceTypes, q.Statuses)
	if err != nil {
		return nil, err
	}
	filter.Manufacturer = q.Manufacturer
	filter.Model = q.Model
	filter.HasLocation = q.HasLocation
	filter.Capabilities = q.Capabilities

	return h.page(ctx, filter, q.SortBy, q.SortOrder, q.Pagination)
}

func (h *QueryHandler) SearchDevices(ctx context.Context, q SearchDevicesQuery) (*DeviceSearchResultDto, error) {
	if errs := ValidateQuery(q); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	filter, err := buildFilter(q.DeviceTypes, q.Statuses)
	if err != nil {
		return nil, err
	}
	term := q.SearchTerm
	filter.SearchTerm = &term
	filter.Capabilities = q.Capabilities

	list, err := h.page(ctx, filter, q.SortBy, q.SortOrder, q.Pagination)
	if err != nil {
		return nil, err
	}
	return &DeviceSearchResultDto{DeviceListDto: *list, SearchTerm: q.SearchTerm}, nil
}

func (h *QueryHandler) GetDevicesByType(ctx context.Context, q GetDevicesByTypeQuery) (*DeviceListDto, error) {
	if errs := ValidateQuery(q); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	filter, err := buildFilter([]string{q.DeviceType}, nil)
	if err != nil {
		return nil, err
	}
	return h.page(ctx, filter, "", "", q.Pagination)
}

func (h *QueryHandler) GetDevicesByStatus(ctx context.Context, q GetDevicesByStatusQuery) (*DeviceListDto, error) {
	if errs := ValidateQuery(q); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	filter, err := buildFilter(nil, []string{q.Status})
	if err != nil {
		return nil, err
	}
	return h.page(ctx, filter, "", "", q.Pagination)
}

func (h *QueryHandler) GetStaleDevices(ctx context.Context, q GetStaleDevicesQuery) ([]DeviceDto, error) {
	if errs := ValidateQuery(q); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	uow, err := h.uowf.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback(ctx)

	all, err := uow.Devices().GetAll(ctx)
	if err != nil {
		return nil, err
	}
	threshold := time.Duration(q.ThresholdSeconds) * time.Second
	stale := domain.StaleDevices(all, threshold, time.Now().UTC())
	return toDeviceDtos(stale), nil
}

// GetDeviceMetrics reads the device's metrics history from the event log,
// which outlives the bounded in-memory ring on the entity.
func (h *QueryHandler) GetDeviceMetrics(ctx context.Context, q GetDeviceMetricsQuery) (*DeviceMetricsDto, error) {
	if errs := ValidateQuery(q); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	uow, err := h.uowf.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback(ctx)

	if _, err := uow.Devices().GetByID(ctx, q.DeviceID); err != nil {
		return nil, err
	}
	events, err := uow.Events().GetEvents(ctx, q.DeviceID, 0)
	if err != nil {
		return nil, err
	}

	var samples []domain.DeviceMetrics
	for _, e := range events {
		recorded, ok := e.(*domain.DeviceMetricsRecorded)
		if !ok {
			continue
		}
		if q.Since != nil && recorded.Metrics.Timestamp.Before(*q.Since) {
			continue
		}
		samples = append(samples, recorded.Metrics)
	}
	if q.Limit > 0 && len(samples) > q.Limit {
		samples = samples[len(samples)-q.Limit:]
	}
	return &DeviceMetricsDto{DeviceID: q.DeviceID, Samples: samples}, nil
}

func (h *QueryHandler) GetStatistics(ctx context.Context, q GetDeviceStatisticsQuery) (*DeviceStatisticsDto, error) {
	uow, err := h.uowf.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback(ctx)

	all, err := uow.Devices().GetAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DeviceStatisticsDto{
		TotalDevices: len(all),
		ByStatus:     make(map[string]int),
		ByType:       make(map[string]int),
	}
	now := time.Now().UTC()
	var healthSum float64
	for _, d := range all {
		stats.ByStatus[string(d.Status)]++
		stats.ByType[string(d.Type)]++
		healthSum += domain.HealthScore(d, now)
		if d.LastSeen == nil {
			stats.NeverSeenCount++
		}
	}
	if len(all) > 0 {
		stats.AverageHealth = healthSum / float64(len(all))
	}
	return stats, nil
}

func (h *QueryHandler) GetDeviceHealth(ctx context.Context, q GetDeviceHealthQuery) (*DeviceHealthDto, error) {
	if errs := ValidateQuery(q); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	uow, err := h.uowf.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback(ctx)

	agg, err := uow.Devices().GetByID(ctx, q.DeviceID)
	if err != nil {
		return nil, err
	}
	d := agg.Entity()
	now := time.Now().UTC()
	return &DeviceHealthDto{
		DeviceID:    d.ID,
		Status:      string(d.Status),
		HealthScore: domain.HealthScore(d, now),
		LastSeen:    d.LastSeen,
		Stale:       domain.IsStale(d, staleThreshold, now),
	}, nil
}

// page runs a filtered, sorted, paginated snapshot query and wraps the
// result with pagination bookkeeping.
func (h *QueryHandler) page(ctx context.Context, filter domain.DeviceFilter, sortBy, sortOrder string, p Pagination) (*DeviceListDto, error) {
	var sort *domain.DeviceSort
	if sortBy != "" {
		sort = &domain.DeviceSort{Field: sortBy, Descending: sortOrder == "desc"}
	}

	uow, err := h.uowf.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback(ctx)

	devices, total, err := uow.Devices().FindByCriteria(ctx, filter, sort, p.PageSize, p.offset())
	if err != nil {
		return nil, err
	}
	list := toDeviceListDto(devices, total, p)
	return &list, nil
}

func buildFilter(types, statuses []string) (domain.DeviceFilter, error) {
	var filter domain.DeviceFilter
	for _, t := range types {
		parsed, err := domain.ParseDeviceType(t)
		if err != nil {
			return filter, err
		}
		filter.Types = append(filter.Types, parsed)
	}
	for _, s := range statuses {
		parsed, err := domain.ParseDeviceStatus(s)
		if err != nil {
			return filter, err
		}
		filter.Statuses = append(filter.Statuses, parsed)
	}
	return filter, nil
}
