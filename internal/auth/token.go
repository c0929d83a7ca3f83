// Package auth issues and verifies the bearer tokens that identify a user.
// Tokens are stateless HS256 JWTs; there is no server-side session.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

// ErrMissingSecret is returned when the signing secret is not configured.
var ErrMissingSecret = errors.New("jwt signing secret is not configured")

// Config is the process-wide signing configuration. It is built once at
// startup and never mutated afterwards.
type Config struct {
	Secret []byte
	TTL    time.Duration
}

// VerificationKind tells callers why a token was rejected.
type VerificationKind int

const (
	Malformed VerificationKind = iota + 1
	BadSignature
	Expired
	NotYetValid
)

func (k VerificationKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case BadSignature:
		return "bad_signature"
	case Expired:
		return "expired"
	case NotYetValid:
		return "not_yet_valid"
	default:
		return "unknown"
	}
}

// VerificationError is returned by Verify. It never carries the token or key.
type VerificationError struct {
	Kind VerificationKind
	err  error
}

func (e *VerificationError) Error() string {
	return "token " + e.Kind.String()
}

func (e *VerificationError) Unwrap() error { return e.err }

// TokenService signs and verifies bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*TokenService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) {
		s.now = now
	}
}

func NewTokenService(cfg Config, opts ...Option) (*TokenService, error) {
	if len(cfg.Secret) == 0 || strings.TrimSpace(string(cfg.Secret)) == "" {
		return nil, ErrMissingSecret
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	s := &TokenService{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue returns a signed token with sub=userID, iat=now and exp=now+TTL.
func (s *TokenService) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("issue token: empty subject")
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and time bounds and returns the token subject.
func (s *TokenService) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", classify(err)
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return "", &VerificationError{Kind: Malformed, err: jwt.ErrTokenRequiredClaimMissing}
	}
	return claims.Subject, nil
}

// classify maps jwt parse errors onto VerificationKind. The signature is
// checked before time claims, so Expired implies a genuine token.
func classify(err error) *VerificationError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &VerificationError{Kind: Malformed, err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &VerificationError{Kind: BadSignature, err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &VerificationError{Kind: Expired, err: err}
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return &VerificationError{Kind: NotYetValid, err: err}
	default:
		return &VerificationError{Kind: Malformed, err: err}
	}
}
