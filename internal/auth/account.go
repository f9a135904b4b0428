// Copyright (c) 2026 1move Community. All rights reserved.

/*
Package auth implements the credential and verification lifecycle.

It covers password hashing glue, JWT issuance, login throttling, single-use
verification/reset tokens, and the authentication gate consulted by every
protected endpoint.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no external
dependencies and encapsulate all business rules related to identity.
*/
package auth

import (
	"strings"
	"time"

	"github.com/onemove/affiliate-api/internal/platform/sec"
)

// # Domain Entities

// Account represents a registered principal: an admin, an approved affiliate,
// or a referral member recruited through an affiliate link.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`

	// Credential is the stored "salt:hash" form produced by [sec.HashPassword].
	// Explicitly omitted from JSON for security.
	Credential string `json:"-"`

	Role       sec.UserRole `json:"role"`
	IsActive   bool         `json:"is_active"`
	IsVerified bool         `json:"is_verified"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// NormalizeIdentifier canonicalizes an email for lookups and throttle keys.
//
// Throttling keyed on the raw input would be trivially bypassable by case
// variation, so every identifier passes through here first.
func NormalizeIdentifier(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldCode            = "verification_code"
	FieldToken           = "token"
	FieldPurpose         = "purpose"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldAccessToken     = "access_token"
	FieldTokenType       = "token_type"
	FieldExpiresIn       = "expires_in"
	FieldMessage         = "message"
)
