package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenMalformed        = errors.New("malformed token")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenInvalidSignature = errors.New("invalid token signature")
)

// Identity is what a verified token asserts.
type Identity struct {
	UserID uint64
	Email  string
}

type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWT issues and verifies HS256 tokens signed with a single symmetric
// secret. Verification is stateless, so a valid token cannot be revoked
// before it expires.
type JWT struct {
	secret []byte
	ttl    time.Duration
}

func NewJWT(secret string, ttl time.Duration) *JWT {
	return &JWT{secret: []byte(secret), ttl: ttl}
}

// TTL reports the fixed token lifetime.
func (j *JWT) TTL() time.Duration { return j.ttl }

func (j *JWT) Issue(userID uint64, email string) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(j.secret)
}

// Verify pins HS256: a token declaring any other algorithm, "none"
// included, fails as an invalid signature.
func (j *JWT) Verify(tokenStr string) (Identity, error) {
	var claims tokenClaims
	t, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Identity{}, ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return Identity{}, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Identity{}, ErrTokenInvalidSignature
	case err != nil:
		return Identity{}, ErrTokenMalformed
	}
	if !t.Valid {
		return Identity{}, ErrTokenInvalidSignature
	}

	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return Identity{}, ErrTokenMalformed
	}
	return Identity{UserID: uid, Email: claims.Email}, nil
}
