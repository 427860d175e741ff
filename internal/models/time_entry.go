package models

import (
	"time"
)

// TimeEntry is one tracked interval of work on a project.
// A nil EndTime means the timer is still running.
type TimeEntry struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	UserID      string     `json:"user_id"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Duration    *int64     `json:"duration"` // seconds
	Description string     `json:"description,omitempty"`
	Invoiced    bool       `json:"invoiced"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTimeEntry creates a running entry starting at start.
func NewTimeEntry(userID, projectID string, start time.Time) *TimeEntry {
	now := time.Now()
	return &TimeEntry{
		UserID:    userID,
		ProjectID: projectID,
		StartTime: start,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsRunning returns true if the entry has not been stopped.
func (e *TimeEntry) IsRunning() bool {
	return e.EndTime == nil
}

// Stop closes the entry at end and records the whole-second duration.
func (e *TimeEntry) Stop(end time.Time) {
	e.EndTime = &end
	e.Recalculate()
}

// Recalculate derives Duration from StartTime and EndTime.
// Durations are floored to whole seconds. An end before the start, as
// after the server clock steps back between start and stop, records 0.
func (e *TimeEntry) Recalculate() {
	if e.EndTime == nil {
		e.Duration = nil
		return
	}
	secs := int64(e.EndTime.Sub(e.StartTime) / time.Second)
	if secs < 0 {
		secs = 0
	}
	e.Duration = &secs
}

// Elapsed returns the tracked duration, measuring running entries up to now.
func (e *TimeEntry) Elapsed(now time.Time) time.Duration {
	if e.EndTime != nil {
		return e.EndTime.Sub(e.StartTime)
	}
	if now.Before(e.StartTime) {
		return 0
	}
	return now.Sub(e.StartTime)
}
