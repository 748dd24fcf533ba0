// Package validation checks user-supplied fields before they reach the services.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex      = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	pinRegex        = regexp.MustCompile(`^[0-9]{4}$`)
	familyCodeRegex = regexp.MustCompile(`^[A-Z0-9]{6}$`)
)

// MaxLabelLength bounds child names and action labels
const MaxLabelLength = 60

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if password == "" {
		return ValidationError{Field: "password", Message: "password is required"}
	}
	if len(password) < 8 {
		return ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	return nil
}

// ValidateName checks a parent's display name
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "name is required"}
	}
	if utf8.RuneCountInString(name) < 2 {
		return ValidationError{Field: "name", Message: "name must be at least 2 characters"}
	}
	return nil
}

// ValidateLabel checks a child name or an action label
func ValidateLabel(field, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return ValidationError{Field: field, Message: field + " is required"}
	}
	if utf8.RuneCountInString(value) > MaxLabelLength {
		return ValidationError{Field: field, Message: fmt.Sprintf("%s must be at most %d characters", field, MaxLabelLength)}
	}
	return nil
}

// ValidatePin checks the household PIN is exactly four digits
func ValidatePin(pin string) error {
	if !pinRegex.MatchString(pin) {
		return ValidationError{Field: "pin", Message: "pin must be exactly 4 digits"}
	}
	return nil
}

// NormalizeFamilyCode trims and uppercases a code typed by a user
func NormalizeFamilyCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateFamilyCode checks an already normalized family code
func ValidateFamilyCode(code string) error {
	if !familyCodeRegex.MatchString(code) {
		return ValidationError{Field: "family_code", Message: "family code must be 6 letters or digits"}
	}
	return nil
}
