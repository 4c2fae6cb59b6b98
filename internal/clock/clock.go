// Package clock resolves "today" for ReportHub.
// Every date comparison in the dashboard and filters goes through a Clock so
// that the authoritative calendar day is defined by one configured timezone.
package clock

import (
	"fmt"
	"time"

	_ "time/tzdata" // the default zone must resolve on hosts without zoneinfo
)

// DateLayout is the ISO calendar-day format used for report and due dates.
const DateLayout = "2006-01-02"

// DefaultTimezone is the zone the reporting day is anchored to.
const DefaultTimezone = "Asia/Jerusalem"

// Clock supplies the current instant in the reporting timezone.
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by the wall clock.
type System struct {
	loc *time.Location
}

// NewSystem returns a wall clock for the named IANA zone.
// An empty name selects DefaultTimezone.
func NewSystem(zone string) (*System, error) {
	if zone == "" {
		zone = DefaultTimezone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", zone, err)
	}
	return &System{loc: loc}, nil
}

// Now returns the current time in the configured zone.
func (s *System) Now() time.Time {
	return time.Now().In(s.loc)
}

// Fixed always reports the same instant. Used by tests.
type Fixed struct {
	T time.Time
}

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return f.T
}

// Today formats the clock's current calendar day as YYYY-MM-DD.
func Today(c Clock) string {
	return c.Now().Format(DateLayout)
}

// ParseDate parses a stored calendar day in the ISO YYYY-MM-DD form only.
// Timestamps and other layouts are rejected.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}
