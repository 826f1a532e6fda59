package auth

import (
	"errors"
	"fmt"
	"time"

	"aquaflow/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session token")

// Session is the identity carried by a verified token.
type Session struct {
	UserID    string
	FullName  string
	Role      models.Role
	ExpiresAt time.Time
}

// TokenManager issues signed JWTs for authenticated users.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a manager with the provided secret, issuer, and lifetime.
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate issues a signed JWT string for the provided user.
func (t *TokenManager) Generate(user models.User) (string, error) {
	if len(t.secret) == 0 {
		return "", errors.New("session secret is not configured")
	}
	now := t.now()
	claims := jwt.MapClaims{
		"iss":  t.issuer,
		"sub":  user.ID,
		"name": user.FullName,
		"role": string(user.Type),
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"exp":  now.Add(t.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse verifies signature, issuer and expiry and returns the session.
func (t *TokenManager) Parse(raw string) (Session, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return Session{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	role := models.Role(stringClaim(claims, "role"))
	if !role.Valid() {
		return Session{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}
	exp, _ := claims.GetExpirationTime()

	s := Session{
		UserID:   sub,
		FullName: stringClaim(claims, "name"),
		Role:     role,
	}
	if exp != nil {
		s.ExpiresAt = exp.Time
	}
	return s, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}
