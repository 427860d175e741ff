package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// PasswordValidationError lists every rule a password broke.
type PasswordValidationError struct {
	Messages []string
}

func (e *PasswordValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// PasswordPolicy describes the complexity a password needs.
type PasswordPolicy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPasswordPolicy is applied to API and CLI password changes.
var DefaultPasswordPolicy = PasswordPolicy{
	MinLength:      12,
	RequireUpper:   true,
	RequireLower:   true,
	RequireDigit:   true,
	RequireSpecial: true,
}

const specialChars = "!@#$%^&*()-_=+[]{}|;:',.<>?/`~\"\\"

// Check returns a *PasswordValidationError when password breaks the policy.
func (p PasswordPolicy) Check(password string) error {
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}

	var messages []string
	if len(password) < p.MinLength {
		messages = append(messages, fmt.Sprintf("password must be at least %d characters", p.MinLength))
	}
	if p.RequireUpper && !upper {
		messages = append(messages, "password must contain at least 1 uppercase letter")
	}
	if p.RequireLower && !lower {
		messages = append(messages, "password must contain at least 1 lowercase letter")
	}
	if p.RequireDigit && !digit {
		messages = append(messages, "password must contain at least 1 digit")
	}
	if p.RequireSpecial && !special {
		messages = append(messages, "password must contain at least 1 special character (!@#$%^&*...)")
	}

	if len(messages) > 0 {
		return &PasswordValidationError{Messages: messages}
	}
	return nil
}

// ValidatePassword checks password against DefaultPasswordPolicy.
func ValidatePassword(password string) error {
	return DefaultPasswordPolicy.Check(password)
}

// ValidatePasswordOrError is ValidatePassword reduced to the first broken
// rule, for API responses.
func ValidatePasswordOrError(password string) error {
	err := ValidatePassword(password)
	var verr *PasswordValidationError
	if errors.As(err, &verr) {
		return errors.New(verr.Messages[0])
	}
	return err
}
