package plans

import (
	"time"
)

const (
	// DefaultTimezone is used for local-date queries when none is configured
	DefaultTimezone = "Asia/Seoul"
	// DateLayout is the calendar date format accepted by date queries
	DateLayout = "2006-01-02"
)

// fallbackLocation stands in for DefaultTimezone when the zone database is unavailable
var fallbackLocation = time.FixedZone("UTC+9", 9*60*60)

// LoadLocation resolves a timezone name. An empty name selects DefaultTimezone;
// an unknown one falls back to a fixed UTC+9 zone.
func LoadLocation(name string) (*time.Location, bool) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallbackLocation, false
	}
	return loc, true
}

// ValidDate reports whether s is a YYYY-MM-DD calendar date
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func (s *Service) localDate(t time.Time) string {
	return t.In(s.location).Format(DateLayout)
}

// inDateRange compares the local calendar date of t against an inclusive range.
// An empty bound is open.
func (s *Service) inDateRange(t time.Time, start, end string) bool {
	d := s.localDate(t)
	if start != "" && d < start {
		return false
	}
	if end != "" && d > end {
		return false
	}
	return true
}
