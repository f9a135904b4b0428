// Copyright (c) 2026 1move Community. All rights reserved.

package auth

import "time"

// # Authentication Constraints

const (
	// DefaultAccessTokenTTL is the duration a JWT access token remains valid.
	DefaultAccessTokenTTL = 30 * time.Minute

	// DefaultVerificationCodeTTL is the lifetime of an emailed 6-digit code.
	// Short (15m) because codes are low-entropy by design.
	DefaultVerificationCodeTTL = 15 * time.Minute

	// DefaultResetTokenTTL is the lifetime of a password reset token.
	DefaultResetTokenTTL = 1 * time.Hour

	// VerificationCodeDigits is the length of the human-entry code.
	VerificationCodeDigits = 6

	// ResetTokenLength is the byte length of the random password reset token.
	ResetTokenLength = 32
)

// # Login Throttling

const (
	// DefaultThrottleWindow is the trailing window over which failed login
	// attempts are counted.
	DefaultThrottleWindow = 300 * time.Second

	// DefaultThrottleMaxAttempts is the number of failures inside the window
	// after which further attempts are rejected.
	DefaultThrottleMaxAttempts = 10
)
