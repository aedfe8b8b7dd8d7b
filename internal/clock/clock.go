// Package clock provides the fixed civil timezone used for all scheduling
// decisions and an injectable clock for deterministic tests.
//
// Kizuna's civil zone is Asia/Tokyo: week boundaries, freeze windows and
// slot hours are all Tokyo wall-clock concepts, while stored instants are
// UTC.
package clock

import "time"

// ZoneName is the fixed civil timezone for all scheduling arithmetic.
const ZoneName = "Asia/Tokyo"

var tokyo *time.Location

func init() {
	loc, err := time.LoadLocation(ZoneName)
	if err != nil {
		// Asia/Tokyo has a fixed +9 offset and no DST; a static fallback
		// keeps the engine working on systems without a tzdata bundle.
		loc = time.FixedZone("JST", 9*60*60)
	}
	tokyo = loc
}

// Zone returns the fixed civil timezone.
func Zone() *time.Location {
	return tokyo
}

// InZone converts an absolute instant to Tokyo wall-clock time.
func InZone(t time.Time) time.Time {
	return t.In(tokyo)
}

// Clock supplies the current instant. Inject a fixed implementation in
// tests; production code uses Real.
type Clock interface {
	Now() time.Time
}

// Real is a Clock backed by the system clock.
type Real struct{}

// Now returns the current instant in UTC.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a Clock pinned to a single instant.
type Fixed struct {
	Instant time.Time
}

// Now returns the pinned instant.
func (f Fixed) Now() time.Time {
	return f.Instant
}
