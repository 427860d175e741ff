package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantOK   bool
	}{
		{"valid complex", "MyP@ssw0rd123!", true},
		{"valid minimal", "Abcdefgh123!", true},
		{"too short", "Ab1!", false},
		{"exactly 11", "Abcdefgh12!", false},
		{"no uppercase", "abcdefgh123!", false},
		{"no lowercase", "ABCDEFGH123!", false},
		{"no digit", "Abcdefghijk!", false},
		{"no special", "Abcdefgh1234", false},
		{"empty", "", false},
		{"unicode lowercase", "ABCDEFGH123!é", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if (err == nil) != tc.wantOK {
				t.Errorf("ValidatePassword(%q) error=%v, want valid=%v", tc.password, err, tc.wantOK)
			}
		})
	}
}

func TestValidatePassword_ReportsEveryRule(t *testing.T) {
	err := ValidatePassword("")
	var verr *PasswordValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %T, want *PasswordValidationError", err)
	}
	if len(verr.Messages) != 5 {
		t.Errorf("got %d messages, want 5: %v", len(verr.Messages), verr.Messages)
	}
}

func TestPasswordPolicy_Custom(t *testing.T) {
	p := PasswordPolicy{MinLength: 6, RequireDigit: true}

	if err := p.Check("abcdef1"); err != nil {
		t.Errorf("Check() = %v, want nil", err)
	}
	err := p.Check("abc")
	if err == nil || !strings.Contains(err.Error(), "at least 6") {
		t.Errorf("Check(short) = %v, want length error", err)
	}
}

func TestValidatePasswordOrError_Messages(t *testing.T) {
	tests := []struct {
		password    string
		wantContain string
	}{
		{"short", "at least 12"},
		{"abcdefgh123!", "uppercase"},
		{"ABCDEFGH123!", "lowercase"},
		{"Abcdefghijk!", "digit"},
		{"Abcdefgh1234", "special"},
	}

	for _, tc := range tests {
		t.Run(tc.wantContain, func(t *testing.T) {
			err := ValidatePasswordOrError(tc.password)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantContain) {
				t.Errorf("error %q should contain %q", err.Error(), tc.wantContain)
			}
		})
	}

	if err := ValidatePasswordOrError("MyP@ssw0rd123!"); err != nil {
		t.Errorf("valid password rejected: %v", err)
	}
}
