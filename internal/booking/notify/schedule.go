package notify

import (
	"fmt"
	"time"
)

// Schedule knows the night window during which opted-out users get
// deferred pushes, and when business hours resume.
type Schedule struct {
	loc           *time.Location
	nightStart    time.Duration
	nightEnd      time.Duration
	businessStart time.Duration
}

// NewSchedule parses a timezone name and HH:MM bounds
func NewSchedule(timezone, nightStart, nightEnd, businessStart string) (*Schedule, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	s := &Schedule{loc: loc}
	for _, f := range []struct {
		dst   *time.Duration
		value string
	}{
		{&s.nightStart, nightStart},
		{&s.nightEnd, nightEnd},
		{&s.businessStart, businessStart},
	} {
		d, err := ParseClock(f.value)
		if err != nil {
			return nil, err
		}
		*f.dst = d
	}
	return s, nil
}

// ParseClock parses HH:MM into an offset from midnight
func ParseClock(value string) (time.Duration, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: expected HH:MM", value)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Location is the schedule's timezone
func (s *Schedule) Location() *time.Location {
	return s.loc
}

// IsNight reports whether t falls inside the night window. A window whose
// start is after its end wraps midnight.
func (s *Schedule) IsNight(t time.Time) bool {
	local := t.In(s.loc)
	offset := time.Duration(local.Hour())*time.Hour + time.Duration(local.Minute())*time.Minute

	if s.nightStart == s.nightEnd {
		return false
	}
	if s.nightStart < s.nightEnd {
		return offset >= s.nightStart && offset < s.nightEnd
	}
	return offset >= s.nightStart || offset < s.nightEnd
}

// NextBusinessTime is the first business start strictly after t
func (s *Schedule) NextBusinessTime(t time.Time) time.Time {
	local := t.In(s.loc)
	y, m, d := local.Date()
	hour, minute := int(s.businessStart/time.Hour), int(s.businessStart%time.Hour/time.Minute)

	next := time.Date(y, m, d, hour, minute, 0, 0, s.loc)
	if !next.After(local) {
		next = time.Date(y, m, d+1, hour, minute, 0, 0, s.loc)
	}
	return next
}
