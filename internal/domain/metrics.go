package domain

import "time"

// DeviceMetrics is a single timestamped telemetry snapshot. It is immutable
// once created; percentages are bounded to [0,100] and counters must be
// non-negative.
type DeviceMetrics struct {
	Timestamp            time.Time              `json:"timestamp"`
	CPUUsagePercent      *float64               `json:"cpu_usage_percent,omitempty"`
	MemoryUsagePercent   *float64               `json:"memory_usage_percent,omitempty"`
	DiskUsagePercent     *float64               `json:"disk_usage_percent,omitempty"`
	TemperatureCelsius   *float64               `json:"temperature_celsius,omitempty"`
	BatteryLevelPercent  *float64               `json:"battery_level_percent,omitempty"`
	NetworkBytesSent     *int64                 `json:"network_bytes_sent,omitempty"`
	NetworkBytesReceived *int64                 `json:"network_bytes_received,omitempty"`
	UptimeSeconds        *int64                 `json:"uptime_seconds,omitempty"`
	Custom               map[string]interface{} `json:"custom_metrics,omitempty"`
}

func NewDeviceMetrics(m DeviceMetrics) (DeviceMetrics, error) {
	if m.Timestamp.IsZero() {
		return DeviceMetrics{}, validationErrorf("timestamp is required for metrics")
	}

	percentages := map[string]*float64{
		"cpu_usage_percent":     m.CPUUsagePercent,
		"memory_usage_percent":  m.MemoryUsagePercent,
		"disk_usage_percent":    m.DiskUsagePercent,
		"battery_level_percent": m.BatteryLevelPercent,
	}
	for name, v := range percentages {
		if v != nil && (*v < 0 || *v > 100) {
			return DeviceMetrics{}, validationErrorf("%s must be between 0 and 100", name)
		}
	}

	counters := map[string]*int64{
		"network_bytes_sent":     m.NetworkBytesSent,
		"network_bytes_received": m.NetworkBytesReceived,
	}
	for name, v := range counters {
		if v != nil && *v < 0 {
			return DeviceMetrics{}, validationErrorf("%s cannot be negative", name)
		}
	}
	if m.UptimeSeconds != nil && *m.UptimeSeconds < 0 {
		return DeviceMetrics{}, validationErrorf("uptime cannot be negative")
	}

	if m.Custom == nil {
		m.Custom = map[string]interface{}{}
	}
	return m, nil
}

func (m DeviceMetrics) Age(now time.Time) time.Duration {
	return now.Sub(m.Timestamp)
}
