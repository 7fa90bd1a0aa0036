package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrTokenExpired signals that the provided session token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the provided session token is invalid.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Claims is the JWT payload issued for first-party sessions.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 session tokens.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  func() time.Time
}

// TokenServiceDeps carries the inputs required to build a TokenService.
type TokenServiceDeps struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Clock  func() time.Time
}

// NewTokenService validates dependencies and builds a TokenService.
func NewTokenService(deps TokenServiceDeps) (*TokenService, error) {
	if strings.TrimSpace(deps.Secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	if deps.TTL <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenService{
		secret: []byte(deps.Secret),
		issuer: strings.TrimSpace(deps.Issuer),
		ttl:    deps.TTL,
		clock:  clock,
	}, nil
}

// Issue signs a session token for the given principal.
func (s *TokenService) Issue(uid, email, name, role string) (string, time.Time, error) {
	if strings.TrimSpace(uid) == "" {
		return "", time.Time{}, errors.New("auth: uid is required")
	}

	now := s.clock()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Email: strings.TrimSpace(email),
		Name:  strings.TrimSpace(name),
		Role:  strings.ToLower(strings.TrimSpace(role)),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a session token, returning its claims.
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, ErrTokenInvalid
	}

	// Claims validation is deferred so expiry can be checked against the
	// injected clock instead of the parser's wall clock.
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	now := s.clock()
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrTokenInvalid)
	}
	if now.After(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return nil, fmt.Errorf("%w: token not yet valid", ErrTokenInvalid)
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrTokenInvalid)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}
