// Package agent exposes the endpoints used by field agents running on the
// devices themselves: metrics ingest and configuration pull. Agents identify
// themselves by serial number and authenticate with the shared agent token.
package agent

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edgefleet/armada/internal/api/response"
	"github.com/edgefleet/armada/internal/app"
	"github.com/edgefleet/armada/internal/domain"
)

type IngestHandler struct {
	devices *app.DeviceService
}

func NewIngestHandler(devices *app.DeviceService) *IngestHandler {
	return &IngestHandler{devices: devices}
}

type metricsReport struct {
	Timestamp            *time.Time             `json:"timestamp"`
	CPUUsagePercent      *float64               `json:"cpu_usage_percent"`
	MemoryUsagePercent   *float64               `json:"memory_usage_percent"`
	DiskUsagePercent     *float64               `json:"disk_usage_percent"`
	TemperatureCelsius   *float64               `json:"temperature_celsius"`
	BatteryLevelPercent  *float64               `json:"battery_level_percent"`
	NetworkBytesSent     *int64                 `json:"network_bytes_sent"`
	NetworkBytesReceived *int64                 `json:"network_bytes_received"`
	UptimeSeconds        *int64                 `json:"uptime_seconds"`
	Custom               map[string]interface{} `json:"custom"`
}

// ReportMetrics records one metrics sample for the device with the given
// serial number. A missing timestamp defaults to the ingest time.
func (h *IngestHandler) ReportMetrics(w http.ResponseWriter, r *http.Request) {
	var report metricsReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	device, err := h.devices.GetDeviceBySerialNumber(r.Context(), app.GetDeviceBySerialNumberQuery{
		QueryMeta:    app.NewQueryMeta("agent"),
		SerialNumber: chi.URLParam(r, "serial"),
	})
	if err != nil {
		response.Error(w, http.StatusNotFound, "unknown device")
		return
	}

	timestamp := time.Now().UTC()
	if report.Timestamp != nil {
		timestamp = *report.Timestamp
	}

	result := h.devices.RecordDeviceMetrics(r.Context(), app.RecordDeviceMetricsCommand{
		CommandMeta: app.NewCommandMeta("agent"),
		DeviceID:    device.ID,
		Metrics: domain.DeviceMetrics{
			Timestamp:            timestamp,
			CPUUsagePercent:      report.CPUUsagePercent,
			MemoryUsagePercent:   report.MemoryUsagePercent,
			DiskUsagePercent:     report.DiskUsagePercent,
			TemperatureCelsius:   report.TemperatureCelsius,
			BatteryLevelPercent:  report.BatteryLevelPercent,
			NetworkBytesSent:     report.NetworkBytesSent,
			NetworkBytesReceived: report.NetworkBytesReceived,
			UptimeSeconds:        report.UptimeSeconds,
			Custom:               report.Custom,
		},
	})
	if !result.Success {
		status := http.StatusBadRequest
		if result.Kind == app.KindInternal {
			status = http.StatusInternalServerError
		}
		response.JSON(w, status, result)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// GetConfiguration returns the device's current configuration so agents can
// reconcile local state against it.
func (h *IngestHandler) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	device, err := h.devices.GetDeviceBySerialNumber(r.Context(), app.GetDeviceBySerialNumberQuery{
		QueryMeta:    app.NewQueryMeta("agent"),
		SerialNumber: chi.URLParam(r, "serial"),
	})
	if err != nil {
		response.Error(w, http.StatusNotFound, "unknown device")
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"configuration":         device.Configuration,
		"configuration_version": device.ConfigurationVersion,
	})
}
