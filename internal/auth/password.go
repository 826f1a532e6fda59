package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned when a password does not match the stored value.
var ErrPasswordMismatch = errors.New("password mismatch")

// Cost is the bcrypt work factor used by HashPassword.
var Cost = bcrypt.DefaultCost

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// IsHashed reports whether stored looks like a bcrypt hash.
func IsHashed(stored string) bool {
	if len(stored) != 60 {
		return false
	}
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}

// CheckPassword compares password with stored. Rows written before hashing
// was introduced hold plaintext and are compared in constant time.
func CheckPassword(stored, password string) error {
	if IsHashed(stored) {
		if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)); err != nil {
			return ErrPasswordMismatch
		}
		return nil
	}
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(password)) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}
