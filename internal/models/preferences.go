package models

import "time"

// Times-per-day bounds for WeeklyPreferences.TimesPerDay.
const (
	MinTimesPerDay = 1
	MaxTimesPerDay = 3
)

// Spice level bounds for WeeklyPreferences.SpiceLevel.
const (
	MinSpiceLevel = 1
	MaxSpiceLevel = 5
)

// WeeklyPreferences holds a group's challenge settings for one civil week.
//
// Keyed by (GroupID, WeekStart); saving for an existing key replaces the row.
// WeekStart is always a Monday 00:00 Tokyo boundary, stored as the
// corresponding UTC instant.
type WeeklyPreferences struct {
	GroupID string

	// WeekStart is the Monday 00:00 Tokyo boundary this row applies to.
	WeekStart time.Time

	// SpiceLevel is the challenge intensity, 1..5.
	SpiceLevel int

	// TimesPerDay is how many challenges fire per day: 1, 2 or 3.
	TimesPerDay int

	// Keywords is free text, comma-separated tokens.
	Keywords string

	// LongDistance marks the pair as geographically separated; snapshotted
	// onto each generated challenge.
	LongDistance bool
}
