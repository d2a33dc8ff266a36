package auth

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8

	// bcrypt truncates anything past 72 bytes, so longer passwords are
	// rejected instead of silently losing their tail.
	maxPasswordLength = 72

	bcryptCost = 12
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 72 characters")
	ErrPasswordNoUpper  = errors.New("password must contain at least one uppercase letter")
	ErrPasswordNoLower  = errors.New("password must contain at least one lowercase letter")
	ErrPasswordNoDigit  = errors.New("password must contain at least one digit")
	ErrPasswordDenied   = errors.New("password is too easy to guess")
)

// deniedPasswords are rejected regardless of character classes. The list
// mixes the usual credential-stuffing staples with product-adjacent guesses.
// All entries are lowercase and at least minPasswordLength long; shorter ones
// would be caught by the length check first.
var deniedPasswords = []string{
	"12345678",
	"123456789",
	"1234567890",
	"iloveyou1",
	"letmein123",
	"media1234",
	"mediakit1",
	"mediakit123",
	"password",
	"password1",
	"password123",
	"qwerty123",
	"qwertyuiop",
	"sunshine1",
	"trustno1!",
	"welcome123",
}

// HashPassword derives a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePasswordStrength enforces the registration password policy:
// 8 to 72 bytes, not on the denylist, and at least one uppercase letter,
// one lowercase letter and one digit. The first failed rule is returned so
// the caller can surface a specific message.
func ValidatePasswordStrength(password string) error {
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordLength {
		return ErrPasswordTooLong
	}

	lowered := strings.ToLower(password)
	for _, denied := range deniedPasswords {
		if lowered == denied {
			return ErrPasswordDenied
		}
	}

	classes := scanClasses(password)
	if !classes.upper {
		return ErrPasswordNoUpper
	}
	if !classes.lower {
		return ErrPasswordNoLower
	}
	if !classes.digit {
		return ErrPasswordNoDigit
	}
	return nil
}

type charClasses struct {
	upper bool
	lower bool
	digit bool
}

func scanClasses(password string) charClasses {
	var c charClasses
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			c.upper = true
		case unicode.IsLower(r):
			c.lower = true
		case unicode.IsDigit(r):
			c.digit = true
		}
	}
	return c
}
