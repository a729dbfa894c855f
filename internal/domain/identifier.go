package domain

import (
	"regexp"
	"strings"
)

var macAddressPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}([0-9A-Fa-f]{2})$`)

// DeviceIdentifier is the hardware fingerprint of a device. The serial number
// is required and unique across the fleet; MAC address and hardware id are
// optional.
type DeviceIdentifier struct {
	SerialNumber string `json:"serial_number"`
	MACAddress   string `json:"mac_address,omitempty"`
	HardwareID   string `json:"hardware_id,omitempty"`
}

func NewDeviceIdentifier(serialNumber, macAddress, hardwareID string) (DeviceIdentifier, error) {
	serialNumber = strings.TrimSpace(serialNumber)
	if serialNumber == "" {
		return DeviceIdentifier{}, validationErrorf("serial number is required")
	}
	if len(serialNumber) > 100 {
		return DeviceIdentifier{}, validationErrorf("serial number too long (max 100 characters)")
	}
	if macAddress != "" && !macAddressPattern.MatchString(macAddress) {
		return DeviceIdentifier{}, validationErrorf("invalid MAC address format: %s", macAddress)
	}

	return DeviceIdentifier{
		SerialNumber: serialNumber,
		MACAddress:   macAddress,
		HardwareID:   hardwareID,
	}, nil
}

// MatchesMAC reports whether both identifiers carry a MAC address and the
// addresses are equal, ignoring case.
func (i DeviceIdentifier) MatchesMAC(other DeviceIdentifier) bool {
	if i.MACAddress == "" || other.MACAddress == "" {
		return false
	}
	return strings.EqualFold(i.MACAddress, other.MACAddress)
}

func (i DeviceIdentifier) String() string {
	s := "SN:" + i.SerialNumber
	if i.MACAddress != "" {
		s += " | MAC:" + i.MACAddress
	}
	if i.HardwareID != "" {
		s += " | HW:" + i.HardwareID
	}
	return s
}
