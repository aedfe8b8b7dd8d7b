package schedule

import (
	"time"

	"github.com/kizunaapp/kizuna/internal/clock"
)

// Canonical daily slot hours (Tokyo wall clock) by times-per-day setting.
var slotHours = map[int][]int{
	1: {8},
	2: {8, 20},
	3: {8, 16, 20},
}

// FiringSlots returns the civil hours at which challenges fire for the
// given frequency. Unknown frequencies fall back to the single-slot set.
func FiringSlots(timesPerDay int) []int {
	if hours, ok := slotHours[timesPerDay]; ok {
		return hours
	}
	return slotHours[1]
}

// ShouldFireNow reports whether a tick at the given instant should produce
// a challenge for the given frequency, i.e. whether the current Tokyo hour
// is one of the frequency's slot hours.
func ShouldFireNow(timesPerDay int, now time.Time) bool {
	hour := clock.InZone(now).Hour()
	for _, h := range FiringSlots(timesPerDay) {
		if h == hour {
			return true
		}
	}
	return false
}

// ComputeWindow returns the scheduled-at and expires-at instants for a
// challenge fired at the given instant, as UTC.
//
// Scheduled-at is today's slot hour (Tokyo). The expiry window runs to the
// next slot of the frequency, or 24h for once-a-day:
//
//	1/day:            fired 8  -> expires next day 8
//	2/day:            fired 8  -> expires 20 same day; fired 20 -> next day 8
//	3/day:            fired 8  -> 16; fired 16 -> 20; fired 20 -> next day 8
//
// Any hour outside the frequency's slot set expires next day at 8 as a
// defensive default.
func ComputeWindow(timesPerDay int, now time.Time) (scheduledAt, expiresAt time.Time) {
	local := clock.InZone(now)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, clock.Zone())
	hour := local.Hour()

	scheduled := midnight.Add(time.Duration(hour) * time.Hour)

	var expires time.Time
	switch {
	case timesPerDay == 1:
		expires = scheduled.AddDate(0, 0, 1)
	case timesPerDay == 2 && hour == 8:
		expires = midnight.Add(20 * time.Hour)
	case timesPerDay == 2 && hour == 20:
		expires = midnight.AddDate(0, 0, 1).Add(8 * time.Hour)
	case timesPerDay == 3 && hour == 8:
		expires = midnight.Add(16 * time.Hour)
	case timesPerDay == 3 && hour == 16:
		expires = midnight.Add(20 * time.Hour)
	default:
		expires = midnight.AddDate(0, 0, 1).Add(8 * time.Hour)
	}

	return scheduled.UTC(), expires.UTC()
}
