// Package schedule holds the pure scheduling policies: the weekly
// preference-freeze window and the daily slot scheduler. All functions take
// an explicit "now" and do civil arithmetic in the Tokyo zone.
package schedule

import (
	"time"

	"github.com/kizunaapp/kizuna/internal/clock"
)

// freezeWeekday is the first frozen ISO weekday (Wednesday).
// Preference edits for the current week are frozen Wednesday through
// Sunday so in-flight schedules stay stable; changes land next week.
const freezeWeekday = 3

// isoWeekday returns the ISO weekday of t in the civil zone,
// Monday = 1 .. Sunday = 7.
func isoWeekday(t time.Time) int {
	wd := int(clock.InZone(t).Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// IsFrozen reports whether preference edits for the current civil week are
// frozen at the given instant. Not frozen on Monday and Tuesday; frozen
// Wednesday through Sunday.
func IsFrozen(now time.Time) bool {
	return isoWeekday(now) >= freezeWeekday
}

// CurrentWeekStart returns the most recent Monday 00:00 Tokyo boundary at
// or before now, as an absolute instant.
func CurrentWeekStart(now time.Time) time.Time {
	local := clock.InZone(now)
	daysSinceMonday := isoWeekday(now) - 1
	monday := local.AddDate(0, 0, -daysSinceMonday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, clock.Zone()).UTC()
}

// NextWeekStart returns the Monday 00:00 Tokyo boundary of the week after
// the current one.
func NextWeekStart(now time.Time) time.Time {
	cur := clock.InZone(CurrentWeekStart(now))
	return cur.AddDate(0, 0, 7).UTC()
}

// TargetWeekStart picks the week a preference save should land on: the
// current week while edits are open, next week during the freeze.
func TargetWeekStart(now time.Time) time.Time {
	if IsFrozen(now) {
		return NextWeekStart(now)
	}
	return CurrentWeekStart(now)
}
