package projects

import (
	"errors"
	"strings"

	"github.com/good-yellow-bee/focusdial/internal/models"
)

// ValidateName checks a project name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}
	if len(name) > 100 {
		return errors.New("name must be 100 characters or less")
	}
	return nil
}

// ValidateColor checks a #RRGGBB colour.
func ValidateColor(color string) error {
	if !models.ValidColor(color) {
		return errors.New("color must be a hex colour like #FF5733")
	}
	return nil
}
