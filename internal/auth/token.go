// Copyright (c) 2026 1move Community. All rights reserved.

package auth

import "time"

// # Single-Use Tokens

// TokenPurpose is the closed set of flows a single-use token can serve.
//
// Adding a flow means adding a constant here — a compile-time-visible change,
// not a new magic string in a handler.
type TokenPurpose string

const (
	// PurposeAdminRegistration verifies an email during admin enrollment.
	PurposeAdminRegistration TokenPurpose = "admin_registration"

	// PurposeAffiliateRegistration verifies an email before an affiliate
	// application can be submitted.
	PurposeAffiliateRegistration TokenPurpose = "affiliate_registration"

	// PurposeReferralRegistration verifies an email during referral signup.
	PurposeReferralRegistration TokenPurpose = "referral_registration"

	// PurposePasswordReset authorizes a one-time password replacement.
	PurposePasswordReset TokenPurpose = "password_reset"
)

// IsValid reports whether the purpose is one of the known values.
func (p TokenPurpose) IsValid() bool {
	switch p {
	case PurposeAdminRegistration, PurposeAffiliateRegistration,
		PurposeReferralRegistration, PurposePasswordReset:
		return true
	}
	return false
}

// IsRegistration reports whether the purpose belongs to an email
// verification flow (as opposed to password recovery).
func (p TokenPurpose) IsRegistration() bool {
	return p == PurposeAdminRegistration ||
		p == PurposeAffiliateRegistration ||
		p == PurposeReferralRegistration
}

// VerificationToken is a persisted single-use credential: a 6-digit code for
// human-entry verification flows, or a 32-hex opaque string for password
// resets.
//
// # Lifecycle
//
// Created unused with an absolute expiry. Mutated exactly once: Used flips
// to true and UsedAt is set, atomically with the validity check. Once used,
// the token never grants access again, even before expiry; once expired, it
// is rejected regardless of the used flag.
type VerificationToken struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	Code      string       `json:"-"` // Never serialized; delivered by email only.
	Purpose   TokenPurpose `json:"purpose"`
	ExpiresAt time.Time    `json:"expires_at"`

	// Used blocks further consumption. Consumed additionally records that the
	// token was redeemed by its owner rather than swept by an invalidation.
	Used     bool `json:"used"`
	Consumed bool `json:"-"`

	CreatedAt time.Time  `json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}
