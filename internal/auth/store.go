// Copyright (c) 2026 1move Community. All rights reserved.

package auth

import (
	"context"

	"github.com/onemove/affiliate-api/internal/platform/apperr"
)

// ErrInvalidToken is the single caller-visible outcome for every single-use
// token rejection. "Not found", "already used", and "expired" are distinct
// conditions internally, but revealing which one occurred would leak account
// existence and token state to an attacker.
var ErrInvalidToken = apperr.ValidationError("Invalid or expired verification code")

// # Account Data Access

// AccountRepository defines the data access contract for accounts.
//
// Implementations must return [apperr.NotFound] for missing rows and wrap
// every other failure, so the service can distinguish "no such account"
// from "the store is down".
type AccountRepository interface {

	/*
		FindByEmail returns the account with the given (normalized) email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *Account: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*Account, error)

	/*
		Create persists a brand-new account.

		Parameters:
		  - context: context.Context
		  - account: *Account

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, account *Account) error

	/*
		UpdateCredential replaces only the account's stored credential form.

		Parameters:
		  - context: context.Context
		  - email: string
		  - storedForm: string ("salt:hash")

		Returns:
		  - error: Persistence failures
	*/
	UpdateCredential(context context.Context, email, storedForm string) error

	/*
		MarkVerified updates the account's status to is_verified = true.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - error: Persistence failures
	*/
	MarkVerified(context context.Context, email string) error

	/*
		Delete removes the account with the given email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - error: Persistence failures
	*/
	Delete(context context.Context, email string) error
}

// # Single-Use Token Data Access

// VerificationTokenRepository defines the contract for persisted single-use
// verification and password-reset tokens.
type VerificationTokenRepository interface {

	/*
		Create persists a fresh unused token record.

		The service invalidates previous live tokens for the same email and
		purpose before calling Create, so only the newest token is live.

		Parameters:
		  - context: context.Context
		  - token: *VerificationToken

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, token *VerificationToken) error

	/*
		Consume atomically marks a token used and returns it.

		This is ONE conditional update — "mark used where unused and not
		expired" — never a lookup followed by a separate write. Two
		concurrent consumers of the same code cannot both succeed.

		An empty email matches any record with the given code and purpose
		(opaque reset tokens are globally unique); verification codes are
		additionally scoped by email because 6-digit codes collide.

		Parameters:
		  - context: context.Context
		  - email: string (may be empty for opaque tokens)
		  - code: string
		  - purpose: TokenPurpose

		Returns:
		  - *VerificationToken: The consumed record
		  - error: ErrInvalidToken for any rejection, or storage failures
	*/
	Consume(context context.Context, email, code string, purpose TokenPurpose) (*VerificationToken, error)

	/*
		InvalidateAll marks every live token for the email and purpose as used,
		so a resent code leaves no older token exploitable.

		Parameters:
		  - context: context.Context
		  - email: string
		  - purpose: TokenPurpose

		Returns:
		  - error: Persistence failures
	*/
	InvalidateAll(context context.Context, email string, purpose TokenPurpose) error

	/*
		IsEmailVerified reports whether a registration-purpose token for the
		email has ever been successfully consumed.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - bool: Verified state
		  - error: Retrieval failures
	*/
	IsEmailVerified(context context.Context, email string) (bool, error)
}

// # Login Throttling

// Throttle is the per-identifier failed-login limiter consulted by the gate.
//
// It is advisory: a best-effort guard against brute force, not an exact
// counter. Implementations are safe for concurrent use. The identifier is
// already normalized by the service.
type Throttle interface {
	// Allowed reports whether another attempt for the identifier may proceed.
	Allowed(context context.Context, identifier string) bool

	// RecordFailure notes a failed attempt at the current time.
	RecordFailure(context context.Context, identifier string)

	// RecordSuccess clears all recorded failures for the identifier.
	RecordSuccess(context context.Context, identifier string)
}
