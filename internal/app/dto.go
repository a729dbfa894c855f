package app

import (
	"time"

	"github.com/google/uuid"

	"github.com/edgefleet/armada/internal/domain"
)

// DeviceDto is the external representation of a device snapshot.
type DeviceDto struct {
	ID                   uuid.UUID                  `json:"id"`
	Name                 string                     `json:"name"`
	DeviceType           string                     `json:"device_type"`
	Status               string                     `json:"status"`
	SerialNumber         string                     `json:"serial_number"`
	MACAddress           string                     `json:"mac_address,omitempty"`
	HardwareID           string                     `json:"hardware_id,omitempty"`
	Manufacturer         string                     `json:"manufacturer,omitempty"`
	Model                string                     `json:"model,omitempty"`
	Location             *domain.DeviceLocation     `json:"location,omitempty"`
	Capabilities         *domain.DeviceCapabilities `json:"capabilities,omitempty"`
	Configuration        map[string]interface{}     `json:"configuration"`
	ConfigurationVersion int                        `json:"configuration_version"`
	LastSeen             *time.Time                 `json:"last_seen,omitempty"`
	CreatedAt            time.Time                  `json:"created_at"`
	UpdatedAt            time.Time                  `json:"updated_at"`
	Version              int                        `json:"version"`
}

// DeviceListDto is a page of devices with pagination bookkeeping.
type DeviceListDto struct {
	Devices     []DeviceDto `json:"devices"`
	TotalCount  int         `json:"total_count"`
	Page        int         `json:"page"`
	PageSize    int         `json:"page_size"`
	TotalPages  int         `json:"total_pages"`
	HasNext     bool        `json:"has_next"`
	HasPrevious bool        `json:"has_previous"`
}

type DeviceSearchResultDto struct {
	DeviceListDto
	SearchTerm string `json:"search_term"`
}

type DeviceMetricsDto struct {
	DeviceID uuid.UUID              `json:"device_id"`
	Samples  []domain.DeviceMetrics `json:"samples"`
}

type DeviceStatisticsDto struct {
	TotalDevices   int            `json:"total_devices"`
	ByStatus       map[string]int `json:"by_status"`
	ByType         map[string]int `json:"by_type"`
	AverageHealth  float64        `json:"average_health"`
	NeverSeenCount int            `json:"never_seen_count"`
}

type DeviceHealthDto struct {
	DeviceID    uuid.UUID  `json:"device_id"`
	Status      string     `json:"status"`
	HealthScore float64    `json:"health_score"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
	Stale       bool       `json:"stale"`
}

func toDeviceDto(d *domain.DeviceEntity) DeviceDto {
	dto := DeviceDto{
		ID:           d.ID,
		Name:         d.Name,
		DeviceType:   string(d.Type),
		Status:       string(d.Status),
		SerialNumber: d.Identifier.SerialNumber,
		MACAddress:   d.Identifier.MACAddress,
		HardwareID:   d.Identifier.HardwareID,
		Manufacturer: d.Manufacturer,
		Model:        d.Model,
		Location:     d.Location,
		Capabilities: d.Capabilities,
		LastSeen:     d.LastSeen,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		Version:      d.Version,
	}
	if d.Configuration != nil {
		dto.Configuration = d.Configuration.Settings
		dto.ConfigurationVersion = d.Configuration.Version
	} else {
		dto.Configuration = map[string]interface{}{}
	}
	return dto
}

func toDeviceDtos(devices []*domain.DeviceEntity) []DeviceDto {
	out := make([]DeviceDto, len(devices))
	for i, d := range devices {
		out[i] = toDeviceDto(d)
	}
	return out
}

func toDeviceListDto(devices []*domain.DeviceEntity, totalCount int, p Pagination) DeviceListDto {
	totalPages := (totalCount + p.PageSize - 1) / p.PageSize
	return DeviceListDto{
		Devices:     toDeviceDtos(devices),
		TotalCount:  totalCount,
		Page:        p.Page,
		PageSize:    p.PageSize,
		TotalPages:  totalPages,
		HasNext:     p.Page < totalPages,
		HasPrevious: p.Page > 1,
	}
}
