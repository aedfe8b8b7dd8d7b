package models

import "time"

// Notification types emitted by the engine.
const (
	NotificationScheduled      = "scheduled"
	NotificationInviteConsumed = "invite_consumed"
)

// Notification is a fire-and-forget signal for live feeds.
//
// Notifications are best-effort: they are written after the primary
// mutation commits and a failed insert never fails the operation.
type Notification struct {
	ID        string
	GroupID   string
	Type      string
	CreatedAt time.Time
}
