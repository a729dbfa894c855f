package domain

// DeviceLocation describes where a device lives: GPS coordinates, a physical
// address, or both. All fields are optional; coordinates are range-checked.
type DeviceLocation struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Address   string   `json:"address,omitempty"`
	Building  string   `json:"building,omitempty"`
	Floor     string   `json:"floor,omitempty"`
	Room      string   `json:"room,omitempty"`
}

func NewDeviceLocation(loc DeviceLocation) (DeviceLocation, error) {
	if loc.Latitude != nil && (*loc.Latitude < -90 || *loc.Latitude > 90) {
		return DeviceLocation{}, validationErrorf("latitude must be between -90 and 90 degrees")
	}
	if loc.Longitude != nil && (*loc.Longitude < -180 || *loc.Longitude > 180) {
		return DeviceLocation{}, validationErrorf("longitude must be between -180 and 180 degrees")
	}
	if len(loc.Address) > 500 {
		return DeviceLocation{}, validationErrorf("address too long (max 500 characters)")
	}
	return loc, nil
}

func (l DeviceLocation) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

func (l DeviceLocation) HasPhysicalLocation() bool {
	return l.Address != "" || l.Building != "" || l.Floor != "" || l.Room != ""
}

func (l DeviceLocation) IsZero() bool {
	return !l.HasCoordinates() && l.Altitude == nil && !l.HasPhysicalLocation()
}
