// Package auth provides credential hashing, JWT issuance and validation, and
// the double-token session check used by the account API.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. Client POSTs email + password to /api/account/login
//  2. Server verifies the password hash, then issues TWO independent JWTs for
//     the same user: one goes into the HttpOnly "jwt" cookie, the other into the
//     "Authorization: Bearer" response header (and the response body)
//  3. On protected calls the client sends both back: the browser attaches the
//     cookie automatically, the frontend sets the Authorization header itself
//  4. SessionVerifier requires both tokens to verify AND to name the user id the
//     caller claims to be (double-submit check)
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"iss":"courier","sub":"<userID>","iat":...,"exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// The server can verify the signature without any DB lookup, just the secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const (
	// DefaultTokenTTL is how long an issued token stays valid. There is no
	// refresh: after expiry the user logs in again.
	DefaultTokenTTL = 15 * time.Minute

	issuer = "courier"

	minSecretLength = 16
)

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens. The secret is
// process-wide configuration (JWT_SECRET), never a literal in code.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithTTL overrides the token lifetime.
func WithTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now for both issuing and validating. Tests use it to
// move through the validity window without sleeping.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", minSecretLength)
	}
	s := &TokenService{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL reports the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload. The internal user ID goes in "sub".
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a new token for userID, valid from now for TTL.
//
// Every call produces a distinct token: the "jti" claim carries a fresh xid,
// so two tokens issued in the same second for the same user still differ.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.generateWithDuration(userID, s.ttl)
}

// generateWithDuration signs a token expiring d after now. A negative d
// yields an already-expired token.
func (s *TokenService) generateWithDuration(userID string, d time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: token subject must not be empty")
	}

	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        newTokenID(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

func newTokenID() string {
	return xid.New().String()
}

// Validate parses and verifies a JWT string.
// Returns the userID (stored in the "sub" claim) if the token is valid.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
//   - Issuer matches "courier"
//   - IssuedAt <= now < ExpiresAt, using the service clock
func (s *TokenService) Validate(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", errors.New("auth: empty token")
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}

// Verify reports whether tokenStr is correctly signed and inside its validity
// window. It never fails loudly: any problem is simply false.
func (s *TokenService) Verify(tokenStr string) bool {
	_, err := s.Validate(tokenStr)
	return err == nil
}

// SubjectOf returns the user id of a token. The claim is only read after the
// token passes verification, so an untrusted token never yields an id.
func (s *TokenService) SubjectOf(tokenStr string) (string, error) {
	return s.Validate(tokenStr)
}
