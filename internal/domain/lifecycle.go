package domain

import (
	"time"
)

// Lifecycle guard functions encode the status state machine as pure decision
// functions. Each returns whether the transition is legal and, when it is
// not, a human-readable reason.

func CanActivate(d *DeviceEntity) (bool, string) {
	switch d.Status {
	case StatusInactive, StatusMaintenance:
		return true, ""
	case StatusActive:
		return false, "device is already active"
	default:
		return false, "decommissioned devices cannot be activated"
	}
}

func CanDeactivate(d *DeviceEntity) (bool, string) {
	switch d.Status {
	case StatusActive, StatusMaintenance:
		return true, ""
	case StatusInactive:
		return false, "device is already inactive"
	default:
		return false, "decommissioned devices cannot be deactivated"
	}
}

func CanSetMaintenance(d *DeviceEntity) (bool, string) {
	switch d.Status {
	case StatusActive, StatusInactive:
		return true, ""
	case StatusMaintenance:
		return false, "device is already in maintenance mode"
	default:
		return false, "decommissioned devices cannot enter maintenance mode"
	}
}

func CanDecommission(d *DeviceEntity) (bool, string) {
	if d.Status == StatusDecommissioned {
		return false, "device is already decommissioned"
	}
	return true, ""
}

// StaleDevices returns devices that have never reported, or whose last_seen
// is older than the threshold. Decommissioned devices are skipped since no
// further heartbeats are expected from them.
func StaleDevices(devices []*DeviceEntity, threshold time.Duration, now time.Time) []*DeviceEntity {
	var stale []*DeviceEntity
	for _, d := range devices {
		if d.IsOperational() && IsStale(d, threshold, now) {
			stale = append(stale, d)
		}
	}
	return stale
}

func IsStale(d *DeviceEntity, threshold time.Duration, now time.Time) bool {
	if d.LastSeen == nil {
		return true
	}
	return now.Sub(*d.LastSeen) > threshold
}

// HealthScore combines a status multiplier with a staleness multiplier and
// clamps the product to [0,1]. A decommissioned device always scores 0.
func HealthScore(d *DeviceEntity, now time.Time) float64 {
	var statusFactor float64
	switch d.Status {
	case StatusActive:
		statusFactor = 1.0
	case StatusMaintenance:
		statusFactor = 0.7
	case StatusInactive:
		statusFactor = 0.5
	default:
		return 0.0
	}

	var stalenessFactor float64
	switch {
	case d.LastSeen == nil:
		stalenessFactor = 0.2
	case now.Sub(*d.LastSeen) > 24*time.Hour:
		stalenessFactor = 0.3
	case now.Sub(*d.LastSeen) > 12*time.Hour:
		stalenessFactor = 0.6
	case now.Sub(*d.LastSeen) > 6*time.Hour:
		stalenessFactor = 0.8
	default:
		stalenessFactor = 1.0
	}

	score := statusFactor * stalenessFactor
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
