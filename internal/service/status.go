package service

import (
	"time"

	"site_registry/internal/domain"
)

// TransitionStatus applies the maintenance rule: moving to active stamps
// lastMaintenance with now, any other status keeps the current value.
func TransitionStatus(current domain.Status, lastMaintenance *time.Time, next domain.Status, now time.Time) (domain.Status, *time.Time) {
	if next == domain.StatusActive {
		t := now
		return domain.StatusActive, &t
	}
	return next, lastMaintenance
}
