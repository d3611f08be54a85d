package auth

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past 72 bytes; truncate explicitly so hashing and
// comparison agree on long passwords.
const maxPasswordBytes = 72

func truncatePassword(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}

func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword(truncatePassword(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func ComparePassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncatePassword(password)) == nil
}

// PasswordPolicy is the local signup check. Thresholds are configuration,
// not invariants.
type PasswordPolicy struct {
	MinLength int
}

func (p PasswordPolicy) Validate(password string) error {
	minLen := p.MinLength
	if minLen <= 0 {
		minLen = 8
	}
	if len(password) < minLen {
		return fmt.Errorf("must be at least %d characters", minLen)
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return errors.New("must contain both letters and digits")
	}
	return nil
}
