package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// clockTime is a time of day with minute resolution, independent of any date.
type clockTime struct {
	hour   int
	minute int
}

// parseClock parses a "HH:MM" string. The whole input must be the clock
// time; trailing characters are rejected.
func parseClock(s string) (clockTime, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return clockTime{}, fmt.Errorf("clock time %q is not in HH:MM form", s)
	}
	hour, errHour := strconv.Atoi(hh)
	minute, errMinute := strconv.Atoi(mm)
	if errHour != nil || errMinute != nil {
		return clockTime{}, fmt.Errorf("clock time %q is not in HH:MM form", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return clockTime{}, fmt.Errorf("clock time %q out of range", s)
	}
	return clockTime{hour: hour, minute: minute}, nil
}

// minutes returns the time of day as minutes since midnight.
func (c clockTime) minutes() int {
	return c.hour*60 + c.minute
}

// inWindow reports whether t's local time of day falls within [start, end).
// Windows wrapping midnight (start > end) are supported.
func inWindow(t time.Time, start, end clockTime) bool {
	mins := t.Hour()*60 + t.Minute()
	s, e := start.minutes(), end.minutes()
	if s == e {
		return false
	}
	if s < e {
		return mins >= s && mins < e
	}
	return mins >= s || mins < e
}

// nextOccurrence returns the next instant at or after t when the local time
// of day equals ct. If t is exactly at ct it returns t.
func nextOccurrence(t time.Time, ct clockTime) time.Time {
	candidate := time.Date(t.Year(), t.Month(), t.Day(), ct.hour, ct.minute, 0, 0, t.Location())
	if candidate.Before(t) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// localMidnight returns the start of t's day in its own location.
func localMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// nextLocalMidnight returns the start of the day after t.
func nextLocalMidnight(t time.Time) time.Time {
	return localMidnight(t).AddDate(0, 0, 1)
}
