package timeline

import (
	"time"

	"github.com/good-yellow-bee/focusdial/internal/models"
)

// DefaultWorkdayStartHour is the hour single-day views start at when no
// earlier work was tracked.
const DefaultWorkdayStartHour = 8

// DateRange is an inclusive time interval.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (r DateRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Contains reports whether t lies within the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Resolver turns an Option into a concrete DateRange.
type Resolver struct {
	WorkdayStartHour int
}

// DefaultResolver starts single-day views at 08:00.
var DefaultResolver = Resolver{WorkdayStartHour: DefaultWorkdayStartHour}

// Resolve is DefaultResolver.Resolve.
func Resolve(opt Option, now time.Time, entries []*models.TimeEntry) DateRange {
	return DefaultResolver.Resolve(opt, now, entries)
}

// Window returns the calendar window of opt at now, before any workday
// trimming. Callers use it to select the entries passed to Resolve.
func Window(opt Option, now time.Time) DateRange {
	today := StartOfDay(now)
	end := EndOfDay(now)

	switch opt {
	case Yesterday:
		y := today.AddDate(0, 0, -1)
		return DateRange{Start: y, End: EndOfDay(y)}
	case WeekToDate:
		return DateRange{Start: StartOfWeek(now), End: end}
	case MonthToDate:
		return DateRange{Start: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), End: end}
	case YearToDate:
		return DateRange{Start: time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()), End: end}
	case Last7Days:
		return DateRange{Start: today.AddDate(0, 0, -6), End: end}
	case Last30Days:
		return DateRange{Start: today.AddDate(0, 0, -29), End: end}
	default:
		return DateRange{Start: today, End: end}
	}
}

// Resolve computes the visible range for opt. Calendar arithmetic happens
// in now's location.
//
// Single-day options start at the workday start hour unless an entry in
// that day began earlier, in which case the range starts with that entry.
// Only StartTime of the entries is consulted.
func (rs Resolver) Resolve(opt Option, now time.Time, entries []*models.TimeEntry) DateRange {
	w := Window(opt, now)
	if opt.MultiDay() {
		return w
	}

	start := w.Start.Add(time.Duration(rs.WorkdayStartHour) * time.Hour)
	for _, e := range entries {
		if e == nil {
			continue
		}
		st := e.StartTime.In(now.Location())
		if w.Contains(st) && st.Before(start) {
			start = st
		}
	}
	return DateRange{Start: start, End: w.End}
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of t's day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// StartOfWeek returns midnight of the Sunday on or before t.
func StartOfWeek(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, -int(t.Weekday()))
}
