package timeline

import (
	"iter"
	"slices"
	"strconv"
	"time"
)

const (
	// maxMarkers bounds marker generation for pathological ranges.
	maxMarkers = 100
	// startTolerance is how far the first aligned marker may sit from the
	// range start before an explicit start marker is added.
	startTolerance = time.Minute
)

// Marker is a labelled tick on the timeline axis.
type Marker struct {
	Label           string    `json:"label"`
	PositionPercent float64   `json:"position_percent"`
	Time            time.Time `json:"time"`
}

// Position formats PositionPercent the way it is rendered, e.g. "12.50%".
// Markers are unique by this string.
func (m Marker) Position() string {
	return strconv.FormatFloat(m.PositionPercent, 'f', 2, 64) + "%"
}

type scale struct {
	r        DateRange
	interval time.Duration
	layout   string
}

func newScale(r DateRange, opt Option) scale {
	span := r.Duration()
	s := scale{r: r}
	switch {
	case opt.MultiDay() && span > 7*24*time.Hour:
		s.interval, s.layout = 7*24*time.Hour, "Jan 2"
	case opt.MultiDay():
		s.interval, s.layout = 24*time.Hour, "Mon 2"
	case span <= 8*time.Hour:
		s.interval, s.layout = time.Hour, "03:04 PM"
	case span <= 16*time.Hour:
		s.interval, s.layout = 2*time.Hour, "03:04 PM"
	default:
		s.interval, s.layout = 3*time.Hour, "03:04 PM"
	}
	return s
}

// align returns the first candidate marker time, at or before the range start.
func (s scale) align() time.Time {
	start := s.r.Start
	switch s.interval {
	case 7 * 24 * time.Hour:
		return StartOfWeek(start)
	case 24 * time.Hour:
		return StartOfDay(start)
	default:
		step := int(s.interval / time.Hour)
		h := start.Hour() / step * step
		return time.Date(start.Year(), start.Month(), start.Day(), h, 0, 0, 0, start.Location())
	}
}

// next advances by one interval. Day and week steps follow the calendar so
// markers stay on midnight across DST changes.
func (s scale) next(t time.Time) time.Time {
	switch s.interval {
	case 7 * 24 * time.Hour:
		return t.AddDate(0, 0, 7)
	case 24 * time.Hour:
		return t.AddDate(0, 0, 1)
	default:
		return t.Add(s.interval)
	}
}

func (s scale) marker(t time.Time) Marker {
	pos := float64(t.Sub(s.r.Start)) / float64(s.r.Duration()) * 100
	return Marker{
		Label:           t.Format(s.layout),
		PositionPercent: min(max(pos, 0), 100),
		Time:            t,
	}
}

// Markers lazily yields the axis markers for r. The sequence is finite and
// may be ranged over any number of times. An empty or inverted range yields
// nothing.
//
// Candidates are aligned to week, day or hour-multiple boundaries at or
// before r.Start, so the first one may be clamped to 0%. When it is more
// than a minute away from r.Start, a marker for the exact start is yielded
// first and wins the 0% slot.
func Markers(r DateRange, opt Option) iter.Seq[Marker] {
	return func(yield func(Marker) bool) {
		if !r.End.After(r.Start) {
			return
		}
		s := newScale(r, opt)
		seen := make(map[string]struct{})
		emit := func(m Marker) bool {
			key := m.Position()
			if _, dup := seen[key]; dup {
				return true
			}
			seen[key] = struct{}{}
			return yield(m)
		}

		t := s.align()
		if r.Start.Sub(t) > startTolerance {
			if !emit(Marker{Label: r.Start.Format(s.layout), Time: r.Start}) {
				return
			}
		}
		for i := 0; i < maxMarkers && !t.After(r.End); i++ {
			if !emit(s.marker(t)) {
				return
			}
			t = s.next(t)
		}
	}
}

// GenerateMarkers collects Markers into a slice.
func GenerateMarkers(r DateRange, opt Option) []Marker {
	return slices.Collect(Markers(r, opt))
}
