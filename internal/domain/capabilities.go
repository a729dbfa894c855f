package domain

import "strings"

// DeviceCapabilities lists what a device can do: the protocols it speaks, its
// sensors and actuators, and optional hardware facts. At least one supported
// protocol is mandatory.
type DeviceCapabilities struct {
	SupportedProtocols []string `json:"supported_protocols"`
	Sensors            []string `json:"sensors,omitempty"`
	Actuators          []string `json:"actuators,omitempty"`
	Connectivity       []string `json:"connectivity,omitempty"`
	PowerSource        string   `json:"power_source,omitempty"`
	OperatingSystem    string   `json:"operating_system,omitempty"`
	FirmwareVersion    string   `json:"firmware_version,omitempty"`
	HardwareVersion    string   `json:"hardware_version,omitempty"`
	MemoryMB           *int     `json:"memory_mb,omitempty"`
	StorageMB          *int     `json:"storage_mb,omitempty"`
	CPUCores           *int     `json:"cpu_cores,omitempty"`
}

func NewDeviceCapabilities(caps DeviceCapabilities) (DeviceCapabilities, error) {
	if len(caps.SupportedProtocols) == 0 {
		return DeviceCapabilities{}, validationErrorf("at least one supported protocol is required")
	}
	if caps.MemoryMB != nil && *caps.MemoryMB < 0 {
		return DeviceCapabilities{}, validationErrorf("memory size cannot be negative")
	}
	if caps.StorageMB != nil && *caps.StorageMB < 0 {
		return DeviceCapabilities{}, validationErrorf("storage size cannot be negative")
	}
	if caps.CPUCores != nil && *caps.CPUCores < 1 {
		return DeviceCapabilities{}, validationErrorf("CPU cores must be at least 1")
	}
	return caps, nil
}

func (c *DeviceCapabilities) clone() *DeviceCapabilities {
	if c == nil {
		return nil
	}
	out := *c
	out.SupportedProtocols = append([]string(nil), c.SupportedProtocols...)
	out.Sensors = append([]string(nil), c.Sensors...)
	out.Actuators = append([]string(nil), c.Actuators...)
	out.Connectivity = append([]string(nil), c.Connectivity...)
	return &out
}

func (c DeviceCapabilities) HasSensors() bool {
	return len(c.Sensors) > 0
}

func (c DeviceCapabilities) HasActuators() bool {
	return len(c.Actuators) > 0
}

func (c DeviceCapabilities) IsBatteryPowered() bool {
	return strings.Contains(strings.ToLower(c.PowerSource), "battery")
}

// SupportsProtocol reports whether the device speaks the given protocol,
// ignoring case.
func (c DeviceCapabilities) SupportsProtocol(protocol string) bool {
	for _, p := range c.SupportedProtocols {
		if strings.EqualFold(p, protocol) {
			return true
		}
	}
	return false
}

func (c DeviceCapabilities) HasSensor(sensor string) bool {
	for _, s := range c.Sensors {
		if strings.EqualFold(s, sensor) {
			return true
		}
	}
	return false
}

// Declares reports whether the capability appears among the device's
// protocols, sensors or actuators, ignoring case.
func (c DeviceCapabilities) Declares(capability string) bool {
	if c.SupportsProtocol(capability) || c.HasSensor(capability) {
		return true
	}
	for _, a := range c.Actuators {
		if strings.EqualFold(a, capability) {
			return true
		}
	}
	return false
}
