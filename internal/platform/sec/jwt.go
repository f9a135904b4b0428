// Copyright (c) 2026 1move Community. All rights reserved.

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via the [auth.TokenProvider] interface.
package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents the payload embedded inside a JWT Access Token.
//
// # Why custom claims?
//
// By embedding the subject email and role directly inside the JWT, the
// authentication middleware can reject forged or expired credentials
// WITHOUT querying the database. The gate still resolves the subject to a
// live account before trusting it — a stale token for a deleted account
// must fail resolution, not silently authenticate.
type AuthClaims struct {
	jwt.RegisteredClaims

	// Role is abbreviated to keep the JWT payload small.
	Role string `json:"rol"`
}

// Email returns the subject email carried by the token.
func (c *AuthClaims) Email() string { return c.Subject }

// TokenService handles generation and verification of JWT tokens using HS256.
//
// The signing secret is process-wide configuration, loaded once at startup
// and never rotated during a process lifetime. There is no revocation list:
// a compromised token remains valid until its natural expiry. This is a
// documented limitation of the bearer design, not an oversight.
type TokenService struct {
	secret []byte
	issuer string

	// now is injectable for deterministic expiry tests.
	now func() time.Time
}

// NewTokenService creates a new TokenService with the given signing secret.
func NewTokenService(secret, issuer string) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("sec: signing secret must not be empty")
	}

	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// WithClock returns a copy of the service using the provided time source.
// Intended for tests only.
func (service *TokenService) WithClock(now func() time.Time) *TokenService {
	clone := *service
	clone.now = now
	return &clone
}

// Issue creates a new signed access token for the given subject email.
func (service *TokenService) Issue(email string, role UserRole, timeToLive time.Duration) (string, error) {
	currentTime := service.now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		Role: string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// Verify checks the signature, algorithm, and expiry of a JWT string.
//
// Every failure mode — bad signature, wrong algorithm, expired, missing
// subject — collapses into a single error. Callers treat any non-nil error
// as "unauthenticated"; the distinction is never exposed to clients.
func (service *TokenService) Verify(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.secret, nil
	}, jwt.WithTimeFunc(service.now))

	if err != nil {
		return nil, fmt.Errorf("sec: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sec: invalid token claims")
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("sec: token missing subject claim")
	}

	return claims, nil
}
