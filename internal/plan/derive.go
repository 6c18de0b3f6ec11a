package plan

import (
	"time"

	"github.com/joseph-ayodele/housing-reconciler/constants"
)

// CivilToday returns the calendar date of now in loc, as midnight UTC so it
// compares directly with normalized record dates.
func CivilToday(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DerivePresence computes the occupancy status of an employee record.
// Arrival on or before today is present; after today or unknown is future.
func DerivePresence(hasReference bool, arrival *time.Time, today time.Time) constants.PresenceStatus {
	if !hasReference {
		return constants.StatusUnassigned
	}
	if arrival == nil || arrival.After(today) {
		return constants.StatusFuture
	}
	return constants.StatusPresent
}
