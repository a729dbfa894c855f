package app

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Query type discriminants.
const (
	QueryTypeGetDevice          = "device.get"
	QueryTypeGetBySerialNumber  = "device.get_by_serial"
	QueryTypeListDevices        = "device.list"
	QueryTypeSearchDevices      = "device.search"
	QueryTypeGetDevicesByType   = "device.by_type"
	QueryTypeGetDevicesByStatus = "device.by_status"
	QueryTypeGetStaleDevices    = "device.stale"
	QueryTypeGetDeviceMetrics   = "device.metrics"
	QueryTypeGetStatistics      = "device.statistics"
	QueryTypeGetDeviceHealth    = "device.health"
)

type Query interface {
	QueryID() uuid.UUID
	IssuedAt() time.Time
	QueryType() string
}

type QueryMeta struct {
	ID            uuid.UUID
	Issued        time.Time
	UserID        string
	CorrelationID string
}

func NewQueryMeta(userID string) QueryMeta {
	return QueryMeta{ID: uuid.New(), Issued: time.Now().UTC(), UserID: userID}
}

func (m QueryMeta) QueryID() uuid.UUID  { return m.ID }
func (m QueryMeta) IssuedAt() time.Time { return m.Issued }

const (
	defaultPageSize = 20
	maxPageSize     = 1000
)

// Pagination carries the page request shared by list-shaped queries. Both
// fields are required; callers without a preference use DefaultPagination.
type Pagination struct {
	Page     int
	PageSize int
}

// DefaultPagination is the first page at the standard size.
func DefaultPagination() Pagination {
	return Pagination{Page: 1, PageSize: defaultPageSize}
}

func (p Pagination) offset() int { return (p.Page - 1) * p.PageSize }

type GetDeviceQuery struct {
	QueryMeta
	DeviceID uuid.UUID
}

func (GetDeviceQuery) QueryType() string { return QueryTypeGetDevice }

type GetDeviceBySerialNumberQuery struct {
	QueryMeta
	SerialNumber string
}

func (GetDeviceBySerialNumberQuery) QueryType() string { return QueryTypeGetBySerialNumber }

type ListDevicesQuery struct {
	QueryMeta
	Pagination   Pagination
	SortBy       string
	SortOrder    string
	DeviceTypes  []string
	Statuses     []string
	Manufacturer *string
	Model        *string
	HasLocation  *bool
	Capabilities []string
}

func (ListDevicesQuery) QueryType() string { return QueryTypeListDevices }

type SearchDevicesQuery struct {
	QueryMeta
	SearchTerm   string
	DeviceTypes  []string
	Statuses     []string
	Capabilities []string
	Pagination   Pagination
	SortBy       string
	SortOrder    string
}

func (SearchDevicesQuery) QueryType() string { return QueryTypeSearchDevices }

type GetDevicesByTypeQuery struct {
	QueryMeta
	DeviceType string
	Pagination Pagination
}

func (GetDevicesByTypeQuery) QueryType() string { return QueryTypeGetDevicesByType }

type GetDevicesByStatusQuery struct {
	QueryMeta
	Status     string
	Pagination Pagination
}

func (GetDevicesByStatusQuery) QueryType() string { return QueryTypeGetDevicesByStatus }

type GetStaleDevicesQuery struct {
	QueryMeta
	ThresholdSeconds int
}

func (GetStaleDevicesQuery) QueryType() string { return QueryTypeGetStaleDevices }

type GetDeviceMetricsQuery struct {
	QueryMeta
	DeviceID uuid.UUID
	Since    *time.Time
	Limit    int
}

func (GetDeviceMetricsQuery) QueryType() string { return QueryTypeGetDeviceMetrics }

type GetDeviceStatisticsQuery struct {
	QueryMeta
}

func (GetDeviceStatisticsQuery) QueryType() string { return QueryTypeGetStatistics }

type GetDeviceHealthQuery struct {
	QueryMeta
	DeviceID uuid.UUID
}

func (GetDeviceHealthQuery) QueryType() string { return QueryTypeGetDeviceHealth }

// sortableFields is the allow-list for user-supplied sort columns.
var sortableFields = map[string]struct{}{
	"name":          {},
	"device_type":   {},
	"status":        {},
	"serial_number": {},
	"manufacturer":  {},
	"model":         {},
	"created_at":    {},
	"updated_at":    {},
	"last_seen":     {},
	"version":       {},
}

func validatePagination(p Pagination, errs []string) []string {
	if p.Page < 1 {
		errs = append(errs, "page must be at least 1")
	}
	if p.PageSize < 1 || p.PageSize > maxPageSize {
		errs = append(errs, fmt.Sprintf("page size must be between 1 and %d", maxPageSize))
	}
	return errs
}

func validateSort(sortBy, sortOrder string, errs []string) []string {
	if sortBy != "" {
		if _, ok := sortableFields[sortBy]; !ok {
			errs = append(errs, fmt.Sprintf("cannot sort by %q", sortBy))
		}
	}
	if sortOrder != "" && sortOrder != "asc" && sortOrder != "desc" {
		errs = append(errs, `sort order must be "asc" or "desc"`)
	}
	return errs
}

// ValidateQuery runs structural checks on a query before it touches storage.
func ValidateQuery(q Query) []string {
	var errs []string
	switch qq := q.(type) {
	case GetDeviceQuery:
		if qq.DeviceID == uuid.Nil {
			errs = append(errs, "device id is required")
		}
	case GetDeviceBySerialNumberQuery:
		if qq.SerialNumber == "" {
			errs = append(errs, "serial number is required")
		}
	case ListDevicesQuery:
		errs = validatePagination(qq.Pagination, errs)
		errs = validateSort(qq.SortBy, qq.SortOrder, errs)
	case SearchDevicesQuery:
		if qq.SearchTerm == "" {
			errs = append(errs, "search term is required")
		}
		errs = validatePagination(qq.Pagination, errs)
		errs = validateSort(qq.SortBy, qq.SortOrder, errs)
	case GetDevicesByTypeQuery:
		if qq.DeviceType == "" {
			errs = append(errs, "device type is required")
		}
		errs = validatePagination(qq.Pagination, errs)
	case GetDevicesByStatusQuery:
		if qq.Status == "" {
			errs = append(errs, "status is required")
		}
		errs = validatePagination(qq.Pagination, errs)
	case GetStaleDevicesQuery:
		if qq.ThresholdSeconds <= 0 {
			errs = append(errs, "threshold must be positive")
		}
	case GetDeviceMetricsQuery:
		if qq.DeviceID == uuid.Nil {
			errs = append(errs, "device id is required")
		}
		if qq.Limit < 0 {
			errs = append(errs, "limit cannot be negative")
		}
	case GetDeviceHealthQuery:
		if qq.DeviceID == uuid.Nil {
			errs = append(errs, "device id is required")
		}
	}
	return errs
}
