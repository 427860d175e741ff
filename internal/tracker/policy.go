package tracker

import (
	"fmt"
)

// ProjectUpdatePolicy decides what happens to a stored project's name and
// colour when a device reports different values for a known device id.
type ProjectUpdatePolicy string

const (
	// UpdateNever keeps the values from the first sighting.
	UpdateNever ProjectUpdatePolicy = "never"
	// UpdateIfChanged writes the device's values when they differ.
	UpdateIfChanged ProjectUpdatePolicy = "if_changed"
	// UpdateAlways rewrites the project on every call, touching updated_at.
	UpdateAlways ProjectUpdatePolicy = "always"
)

// ParseProjectUpdatePolicy validates s. The empty string means UpdateNever.
func ParseProjectUpdatePolicy(s string) (ProjectUpdatePolicy, error) {
	switch p := ProjectUpdatePolicy(s); p {
	case "":
		return UpdateNever, nil
	case UpdateNever, UpdateIfChanged, UpdateAlways:
		return p, nil
	default:
		return "", fmt.Errorf("invalid project update policy %q (want never, if_changed or always)", s)
	}
}
