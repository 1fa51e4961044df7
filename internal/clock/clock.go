// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package clock provides the pipeline's time source and the
// timezone-aware window math shared by the scheduler, temporal matcher
// and key-partitioning code. Every partition key uses UTC components;
// every human-visible date uses the configured display timezone.
package clock

import "time"

// Clock is the pipeline's time source, mockable for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Real is the production Clock, backed by time.Now.
type Real struct{}

// Now returns the current wall-clock time.
func (Real) Now() time.Time { return time.Now() }

// Frozen is a test Clock that always returns a fixed instant.
type Frozen struct {
	At time.Time
}

// Now returns the frozen instant.
func (f Frozen) Now() time.Time { return f.At }

// UTCPartition returns the (year, month, day) UTC components used to
// build a time-partitioned object-store key.
func UTCPartition(t time.Time) (year int, month int, day int) {
	u := t.UTC()
	return u.Year(), int(u.Month()), u.Day()
}

// Window returns the inclusive [t-w, t+w] interval around t.
func Window(t time.Time, w time.Duration) (start, end time.Time) {
	return t.Add(-w), t.Add(w)
}

// InWindow reports whether event falls within [t-w, t+w].
func InWindow(t, event time.Time, w time.Duration) bool {
	start, end := Window(t, w)
	return !event.Before(start) && !event.After(end)
}

// DisplayTime converts t to the given IANA timezone for human-visible
// rendering (blog front matter, notifications). Falls back to UTC if
// the zone is unknown.
func DisplayTime(t time.Time, tz string) time.Time {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc)
}

// MonthsBetween returns the UTC (year, month) pairs from start to end
// inclusive, used by date-range ContentItem listing to iterate month
// partitions in order.
func MonthsBetween(start, end time.Time) [][2]int {
	s := start.UTC()
	e := end.UTC()
	var months [][2]int
	y, m := s.Year(), int(s.Month())
	for {
		months = append(months, [2]int{y, m})
		if y > e.Year() || (y == e.Year() && m >= int(e.Month())) {
			break
		}
		m++
		if m > 12 {
			m = 1
			y++
		}
	}
	return months
}
