package domain

import (
	"regexp"
	"strings"
)

const (
	minDeviceNameLength = 2
	maxDeviceNameLength = 200
)

var (
	deviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9 _.-]+$`)

	// Names that would collide with system accounts or sentinel strings in
	// downstream tooling.
	reservedDeviceNames = map[string]struct{}{
		"admin":     {},
		"root":      {},
		"system":    {},
		"null":      {},
		"undefined": {},
	}
)

// ValidateDeviceName checks the syntax rules shared by registration and
// rename: non-empty, bounded length, safe character set, not a reserved word.
func ValidateDeviceName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return validationErrorf("device name is required")
	}
	if len(name) < minDeviceNameLength {
		return validationErrorf("device name must be at least %d characters", minDeviceNameLength)
	}
	if len(name) > maxDeviceNameLength {
		return validationErrorf("device name cannot exceed %d characters", maxDeviceNameLength)
	}
	if !deviceNamePattern.MatchString(name) {
		return validationErrorf("device name contains invalid characters")
	}
	if _, reserved := reservedDeviceNames[strings.ToLower(name)]; reserved {
		return validationErrorf("device name %q is reserved", name)
	}
	return nil
}

// ValidateTypeCapabilities checks that declared capabilities make sense for
// the device type. A nil capabilities set is always acceptable; the checks
// only apply when capabilities are declared.
func ValidateTypeCapabilities(deviceType DeviceType, caps *DeviceCapabilities) error {
	if caps == nil {
		return nil
	}
	switch deviceType {
	case TypeSensor:
		if !caps.HasSensors() {
			return validationErrorf("sensor devices must declare at least one sensor capability")
		}
	case TypeActuator:
		if !caps.HasActuators() {
			return validationErrorf("actuator devices must declare at least one actuator capability")
		}
	case TypeGateway:
		if !caps.SupportsProtocol("mqtt") && !caps.SupportsProtocol("http") && !caps.SupportsProtocol("https") {
			return validationErrorf("gateway devices must support MQTT, HTTP or HTTPS")
		}
	case TypeCamera:
		if !caps.HasSensor("video") {
			return validationErrorf("camera devices must declare a video sensor capability")
		}
	}
	return nil
}
