// Package validator holds the field rules shared by the admin user endpoints.
// Lengths are counted in runes so Cyrillic names measure the same as Latin
// ones.
package validator

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidFullName = errors.New("invalid full name")
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword requires at least 6 characters.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < 6 {
		return ErrInvalidPassword
	}
	return nil
}

// ValidateFullName requires 2 to 100 characters after trimming whitespace.
func ValidateFullName(fullName string) error {
	trimmed := strings.TrimSpace(fullName)
	if n := utf8.RuneCountInString(trimmed); n < 2 || n > 100 {
		return ErrInvalidFullName
	}
	return nil
}
