package models

import "time"

// Invite is a single-use token that grants membership in a group.
//
// UsedAt is monotonic: it starts nil and is set exactly once when the token
// is consumed. A token with a non-nil UsedAt is permanently inert.
type Invite struct {
	// Token is the unguessable invite token (UUID format).
	Token string

	// GroupID is the group the token grants membership to.
	GroupID string

	// CreatedBy is the user ID that created the invite.
	CreatedBy string

	// CreatedAt is when the invite was issued.
	CreatedAt time.Time

	// UsedAt is when the token was consumed, or nil if still unused.
	UsedAt *time.Time
}

// Used reports whether the token has been consumed.
func (i *Invite) Used() bool {
	return i.UsedAt != nil
}
