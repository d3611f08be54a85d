package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password; callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Store persists user credentials. Plaintext passwords never leave
// Register and Verify.
type Store struct {
	db    *gorm.DB
	cost  int
	dummy string
}

func NewStore(db *gorm.DB, cost int) *Store {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// Compared against when the email does not exist, so the absent-user
	// and wrong-password paths cost about the same.
	dummy, _ := HashPassword("tasklist-dummy-password", cost)
	return &Store{db: db, cost: cost, dummy: dummy}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) Register(ctx context.Context, email, password string) (uint64, error) {
	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return 0, err
	}

	u := User{Email: NormalizeEmail(email), PasswordHash: hash}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, ErrDuplicateEmail
		}
		return 0, err
	}
	return u.ID, nil
}

func (s *Store) Verify(ctx context.Context, email, password string) (uint64, error) {
	var u User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ComparePassword(s.dummy, password)
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	if !ComparePassword(u.PasswordHash, password) {
		return 0, ErrInvalidCredentials
	}
	return u.ID, nil
}
