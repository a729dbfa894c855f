package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func deviceWithStatus(status DeviceStatus, lastSeen *time.Time) *DeviceEntity {
	return &DeviceEntity{ID: uuid.New(), Status: status, LastSeen: lastSeen}
}

func TestHealthScore_DecommissionedIsZero(t *testing.T) {
	now := time.Now().UTC()
	seen := now.Add(-time.Minute)
	d := deviceWithStatus(StatusDecommissioned, &seen)
	if got := HealthScore(d, now); got != 0.0 {
		t.Fatalf("expected 0.0 for decommissioned device, got %f", got)
	}
}

func TestHealthScore_NeverSeen(t *testing.T) {
	now := time.Now().UTC()
	d := deviceWithStatus(StatusActive, nil)
	got := HealthScore(d, now)
	if got != 0.2 {
		t.Fatalf("expected 0.2 for never-seen active device, got %f", got)
	}
}

func TestHealthScore_StalenessTiers(t *testing.T) {
	now := time.Now().UTC()
	cases := []struct {
		age  time.Duration
		want float64
	}{
		{5 * time.Minute, 1.0},
		{7 * time.Hour, 0.8},
		{13 * time.Hour, 0.6},
		{25 * time.Hour, 0.3},
	}
	for _, tc := range cases {
		seen := now.Add(-tc.age)
		d := deviceWithStatus(StatusActive, &seen)
		if got := HealthScore(d, now); got != tc.want {
			t.Fatalf("age %v: expected %f, got %f", tc.age, tc.want, got)
		}
	}
}

func TestHealthScore_StatusFactor(t *testing.T) {
	now := time.Now().UTC()
	seen := now.Add(-time.Minute)
	cases := []struct {
		status DeviceStatus
		want   float64
	}{
		{StatusActive, 1.0},
		{StatusMaintenance, 0.7},
		{StatusInactive, 0.5},
	}
	for _, tc := range cases {
		d := deviceWithStatus(tc.status, &seen)
		if got := HealthScore(d, now); got != tc.want {
			t.Fatalf("status %s: expected %f, got %f", tc.status, tc.want, got)
		}
	}
}

func TestHealthScore_Bounded(t *testing.T) {
	now := time.Now().UTC()
	ancient := now.Add(-999 * time.Hour)
	statuses := []DeviceStatus{StatusActive, StatusInactive, StatusMaintenance, StatusDecommissioned}
	for _, status := range statuses {
		for _, seen := range []*time.Time{nil, &ancient, &now} {
			d := deviceWithStatus(status, seen)
			got := HealthScore(d, now)
			if got < 0 || got > 1 {
				t.Fatalf("score out of range for %s: %f", status, got)
			}
		}
	}
}

func TestStaleDevices(t *testing.T) {
	now := time.Now().UTC()
	fresh := now.Add(-10 * time.Minute)
	old := now.Add(-2 * time.Hour)

	devices := []*DeviceEntity{
		deviceWithStatus(StatusActive, &fresh),
		deviceWithStatus(StatusActive, &old),
		deviceWithStatus(StatusActive, nil),
		deviceWithStatus(StatusDecommissioned, &old),
	}

	stale := StaleDevices(devices, time.Hour, now)
	if len(stale) != 2 {
		t.Fatalf("expected 2 stale devices, got %d", len(stale))
	}
	for _, d := range stale {
		if d.Status == StatusDecommissioned {
			t.Fatal("decommissioned devices must not be reported stale")
		}
		if d.LastSeen != nil && now.Sub(*d.LastSeen) < time.Hour {
			t.Fatal("fresh device reported stale")
		}
	}
}

func TestCanTransitions(t *testing.T) {
	if ok, _ := CanActivate(deviceWithStatus(StatusActive, nil)); ok {
		t.Fatal("active device must not be activatable")
	}
	if ok, _ := CanActivate(deviceWithStatus(StatusInactive, nil)); !ok {
		t.Fatal("inactive device must be activatable")
	}
	if ok, _ := CanActivate(deviceWithStatus(StatusMaintenance, nil)); !ok {
		t.Fatal("maintenance device must be activatable")
	}
	if ok, _ := CanDeactivate(deviceWithStatus(StatusInactive, nil)); ok {
		t.Fatal("inactive device must not be deactivatable")
	}
	if ok, _ := CanSetMaintenance(deviceWithStatus(StatusInactive, nil)); !ok {
		t.Fatal("maintenance must be reachable from inactive")
	}
	if ok, _ := CanSetMaintenance(deviceWithStatus(StatusMaintenance, nil)); ok {
		t.Fatal("maintenance from maintenance must be rejected")
	}
	if ok, reason := CanDecommission(deviceWithStatus(StatusDecommissioned, nil)); ok || reason == "" {
		t.Fatal("decommission must be rejected with a reason when already decommissioned")
	}
	if ok, _ := CanDecommission(deviceWithStatus(StatusMaintenance, nil)); !ok {
		t.Fatal("any non-terminal status must be decommissionable")
	}
}
