package models

import (
	"regexp"
	"time"
)

// DefaultProjectColor is used when a device reports no colour.
const DefaultProjectColor = "#808080"

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Project groups time entries. Projects created by the dial carry the
// device-local identifier in DeviceProjectID.
type Project struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	Color           string    `json:"color"`
	DeviceProjectID string    `json:"device_project_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewProject creates a new Project with initialized timestamps.
func NewProject(userID, name, color string) *Project {
	now := time.Now()
	if color == "" {
		color = DefaultProjectColor
	}
	return &Project{
		UserID:    userID,
		Name:      name,
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidColor reports whether c is a #RRGGBB hex colour.
func ValidColor(c string) bool {
	return colorPattern.MatchString(c)
}
