package models

import "time"

// Stored challenge statuses. Expiry is never stored; see DisplayStatus.
const (
	StatusIncomplete = "Incomplete"
	StatusComplete   = "Complete"
)

// Display statuses derived at read time.
const (
	DisplayPending  = "Pending"
	DisplayComplete = "Complete"
	DisplayExpired  = "Expired"
)

// Challenge is one generated paired challenge.
//
// Status only ever moves Incomplete -> Complete (when both participants
// record completion). Challenges past their expiry window are left
// untouched; projections compute an "Expired" display state instead.
type Challenge struct {
	// ID is the unique identifier for the challenge (UUID format).
	ID string

	// GroupID is the group this challenge belongs to.
	GroupID string

	// ScheduledAt is the absolute instant of the challenge's slot.
	ScheduledAt time.Time

	// ExpiresAt is the absolute instant the challenge window closes.
	ExpiresAt time.Time

	// Status is StatusIncomplete or StatusComplete.
	Status string

	// LongDistance is snapshotted from the group's preferences at
	// generation time.
	LongDistance bool

	Title       string
	Description string
}

// DisplayStatus derives the user-facing state at the given instant.
// Complete always wins over Expired.
func (c *Challenge) DisplayStatus(now time.Time) string {
	if c.Status == StatusComplete {
		return DisplayComplete
	}
	if !now.Before(c.ExpiresAt) {
		return DisplayExpired
	}
	return DisplayPending
}

// Completion is one participant's acknowledgement of a challenge.
// Append-only; the join condition counts distinct user ids.
type Completion struct {
	ChallengeID string
	UserID      string
	CompletedAt time.Time
}
