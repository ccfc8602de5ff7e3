package utils // package utils provides helpers for admin sessions, hashing and files

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionSubject is the only subject ever issued; the service has a
// single admin identity.
const SessionSubject = "admin"

// ErrInvalidSession covers bad signatures, expired and malformed cookies.
var ErrInvalidSession = errors.New("invalid session")

// SessionToken is a signed admin session together with its expiry.
type SessionToken struct {
	Token string
	Exp   time.Time
}

// NewSessionToken signs an HS256 JWT for the admin UI valid for ttl from now.
func NewSessionToken(secret string, now time.Time, ttl time.Duration) (SessionToken, error) {
	exp := now.UTC().Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   SessionSubject,
		IssuedAt:  jwt.NewNumericDate(now.UTC()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

// ParseSessionToken verifies raw against secret at time now.
func ParseSessionToken(secret, raw string, now time.Time) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		jwt.WithSubject(SessionSubject),
	)
	if err != nil {
		return ErrInvalidSession
	}
	return nil
}
