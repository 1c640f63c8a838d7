package security

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	passwordSpecials  = `!@#$%^&*(),.?":{}|<>`
)

var ErrWeakPassword = errors.New("password does not meet strength requirements")

// PasswordIssues lists every strength rule raw fails. An empty result means
// the password is acceptable.
func PasswordIssues(raw string) []string {
	var issues []string
	if utf8.RuneCountInString(raw) < MinPasswordLength {
		issues = append(issues, "must be at least 8 characters long")
	}
	var upper, digit, special bool
	for _, r := range raw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	if !upper {
		issues = append(issues, "must contain at least one uppercase letter")
	}
	if !digit {
		issues = append(issues, "must contain at least one number")
	}
	if !special {
		issues = append(issues, "must contain at least one special character")
	}
	return issues
}

func ValidatePasswordStrength(raw string) error {
	issues := PasswordIssues(raw)
	if len(issues) == 0 {
		return nil
	}
	return &PasswordError{Issues: issues}
}

type PasswordError struct {
	Issues []string
}

func (e *PasswordError) Error() string {
	return "password " + strings.Join(e.Issues, "; ")
}

func (e *PasswordError) Unwrap() error { return ErrWeakPassword }

func HashPassword(raw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
