// Package models defines the core domain models for Kizuna.
//
// # Model Overview
//
// Kizuna schedules recurring paired challenges for two-person groups:
//   - Group: a pair of participants joined by an invite
//   - Invite: a single-use token granting group membership
//   - WeeklyPreferences: per-week settings that drive challenge generation
//   - Challenge: a generated challenge with a scheduled/expiry window
//   - Completion: one participant's acknowledgement of a challenge
//   - Notification: best-effort signals for live feeds
//   - User: a registered account identified by an opaque id
//
// # Design Principles
//
// 1. **Opaque identity**: the engine only ever sees user ids as strings
// 2. **Instants in UTC**: scheduled_at/expires_at are absolute instants;
//    all civil (Tokyo wall-clock) arithmetic happens in internal/schedule
// 3. **Avoid circular references**: relationships use ID strings, not pointers
// 4. **Derived state stays derived**: "Expired" is computed at read time and
//    never written back as a status value
package models
