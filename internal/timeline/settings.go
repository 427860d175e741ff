package timeline

import (
	"sync/atomic"
	"time"
)

// Settings holds the location and workday start hour used to resolve
// ranges. It is safe for concurrent use and can be swapped on config reload.
type Settings struct {
	state atomic.Pointer[settingsState]
	now   func() time.Time
}

type settingsState struct {
	loc      *time.Location
	resolver Resolver
}

// NewSettings creates settings for loc. A nil loc means time.Local.
func NewSettings(loc *time.Location, workdayStartHour int) *Settings {
	s := &Settings{now: time.Now}
	s.Set(loc, workdayStartHour)
	return s
}

// Set replaces location and workday start hour.
func (s *Settings) Set(loc *time.Location, workdayStartHour int) {
	if loc == nil {
		loc = time.Local
	}
	s.state.Store(&settingsState{loc: loc, resolver: Resolver{WorkdayStartHour: workdayStartHour}})
}

// SetClock replaces the time source.
func (s *Settings) SetClock(now func() time.Time) {
	s.now = now
}

// Location returns the configured location.
func (s *Settings) Location() *time.Location {
	return s.state.Load().loc
}

// Resolver returns the configured resolver.
func (s *Settings) Resolver() Resolver {
	return s.state.Load().resolver
}

// Now returns the current time in the configured location.
func (s *Settings) Now() time.Time {
	return s.now().In(s.Location())
}

// Window is Window(opt, s.Now()).
func (s *Settings) Window(opt Option) DateRange {
	return Window(opt, s.Now())
}
