// Package auth issues and verifies the HS256 bearer tokens that guard the
// play engine's HTTP and WebSocket surfaces.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Audience is stamped into every token this package issues.
const Audience = "diamondsim"

var (
	// ErrInvalidToken indicates the token failed signature checks or had malformed structure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken signals that the token's expiry is in the past.
	ErrExpiredToken = errors.New("token expired")
	// ErrMissingToken is returned when a request carries no token at all.
	ErrMissingToken = errors.New("missing token")
)

// Claims is the verified payload of an API token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// TokenService signs and verifies tokens with a shared secret.
type TokenService struct {
	secret []byte
	now    func() time.Time
	leeway time.Duration
}

// NewTokenService constructs a service for the shared secret and clock skew allowance.
func NewTokenService(secret string, leeway time.Duration) (*TokenService, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if leeway < 0 {
		leeway = 0
	}
	return &TokenService{secret: []byte(secret), now: time.Now, leeway: leeway}, nil
}

// WithClock overrides the service clock.
func (s *TokenService) WithClock(clock func() time.Time) {
	if clock == nil {
		return
	}
	s.now = clock
}

// Issue signs a token for subject that expires after ttl.
func (s *TokenService) Issue(subject string, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("token subject must not be empty")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token lifetime must be positive, got %s", ttl)
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(s.secret)
}

// Verify parses the token and validates the signature, audience and expiry.
func (s *TokenService) Verify(raw string) (*Claims, error) {
	if s == nil || len(s.secret) == 0 {
		return nil, errors.New("token service not initialised")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingToken
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case strings.TrimSpace(claims.Subject) == "":
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	out := &Claims{Subject: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// Authenticate checks the request's token and returns its subject. Tokens are
// read from the Authorization bearer header, then X-Auth-Token, then the
// auth_token query parameter browsers use for WebSocket upgrades.
func (s *TokenService) Authenticate(r *http.Request) (string, error) {
	claims, err := s.Verify(RequestToken(r))
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// RequestToken extracts the raw token from a request.
func RequestToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	if value := strings.TrimSpace(r.Header.Get("Authorization")); len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	if value := strings.TrimSpace(r.Header.Get("X-Auth-Token")); value != "" {
		return value
	}
	return strings.TrimSpace(r.URL.Query().Get("auth_token"))
}
