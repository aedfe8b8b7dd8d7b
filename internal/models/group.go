package models

import "time"

// Participant roles within a group.
const (
	RoleCreator = "creator"
	RoleMember  = "member"
)

// Group represents a two-person challenge group.
//
// A group is created by one user and joined by a second via an invite token.
// Groups are immutable after creation and are never deleted by the engine.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// CreatedBy is the user ID of the group creator.
	CreatedBy string

	// CreatedAt is when the group was created.
	CreatedAt time.Time
}

// Participant is a user's membership in a group.
// Unique per (group, user). The two-person model is a convention, not a
// hard cap enforced by the store.
type Participant struct {
	GroupID string
	UserID  string

	// Role is RoleCreator for the founding user, RoleMember for the user
	// who consumed the invite.
	Role string
}
