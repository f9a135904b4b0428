// Copyright (c) 2026 1move Community. All rights reserved.

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/onemove/affiliate-api/internal/mail"
	"github.com/onemove/affiliate-api/internal/platform/apperr"
	"github.com/onemove/affiliate-api/internal/platform/sec"
	"github.com/onemove/affiliate-api/pkg/uuid"
)

// # Contracts & Types

// TokenProvider defines the contract for issuing and verifying bearer tokens.
type TokenProvider interface {
	// Issue creates a signed bearer token string for the given account.
	//
	// # Parameters
	//   - email: The canonical email identifying the account.
	//   - role: The role of the account.
	//   - timeToLive: The duration before the token expires.
	//
	// # Returns
	//   - A signed token string, or an err if signing fails.
	Issue(email string, role sec.UserRole, timeToLive time.Duration) (string, error)

	// Verify parses and validates a bearer token string.
	//
	// # Returns
	//   - The embedded claims, or an err for any expired, forged, or
	//     malformed token.
	Verify(tokenString string) (*sec.AuthClaims, error)
}

// Options tune the service's lifecycle durations and policy switches.
type Options struct {
	AccessTokenTTL       time.Duration
	VerificationCodeTTL  time.Duration
	ResetTokenTTL        time.Duration
	RequireVerifiedEmail bool
}

// withDefaults fills any zero-valued duration with the package default.
func (options Options) withDefaults() Options {
	if options.AccessTokenTTL <= 0 {
		options.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if options.VerificationCodeTTL <= 0 {
		options.VerificationCodeTTL = DefaultVerificationCodeTTL
	}
	if options.ResetTokenTTL <= 0 {
		options.ResetTokenTTL = DefaultResetTokenTTL
	}
	return options
}

// Service implements the credential and verification lifecycle use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, throttling,
// or login logic must be reviewed by the security team.
type Service struct {
	accounts      AccountRepository
	tokens        VerificationTokenRepository
	throttle      Throttle
	tokenProvider TokenProvider
	mailer        mail.Mailer
	options       Options

	// now is injectable for deterministic expiry tests.
	now func() time.Time
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(
	accountRepo AccountRepository,
	tokenRepo VerificationTokenRepository,
	throttle Throttle,
	tokenProv TokenProvider,
	mailer mail.Mailer,
	options Options,
) *Service {
	return &Service{
		accounts:      accountRepo,
		tokens:        tokenRepo,
		throttle:      throttle,
		tokenProvider: tokenProv,
		mailer:        mailer,
		options:       options.withDefaults(),
		now:           time.Now,
	}
}

// WithClock sets the service's time source. Intended for tests only.
func (service *Service) WithClock(now func() time.Time) *Service {
	service.now = now
	return service
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult represents a successfully established bearer session.
type LoginResult struct {
	AccessToken string
	TokenType   string
	Account     *Account
}

/*
Login validates credentials and issues a bearer token.

Description: Applies the login throttle before any credential work, verifies
the password with a constant-time comparison, and returns a signed access
token on success. All credential failures share one generic message to
prevent account enumeration.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *LoginResult: Transport-ready bearer token and account
  - err: Throttled, Unauthorized, Forbidden, or ServiceUnavailable
*/
func (service *Service) Login(context context.Context, input LoginInput) (*LoginResult, error) {
	email := NormalizeIdentifier(input.Email)

	// Reject before touching storage or hashing when the identifier is
	// locked out. A correct password during lockout must still be refused.
	if !service.throttle.Allowed(context, email) {
		return nil, apperr.Throttled()
	}

	account, err := service.accounts.FindByEmail(context, email)
	if err != nil {
		// Unknown accounts count as failed attempts so enumeration probes
		// hit the throttle too.
		if apperr.IsAppError(err) {
			service.throttle.RecordFailure(context, email)
			return nil, apperr.Unauthorized("Incorrect email or password")
		}
		// Storage outage is not a credential failure; surface it honestly.
		return nil, apperr.ServiceUnavailable("Authentication backend is unavailable", err)
	}

	if !sec.VerifyPassword(input.Password, account.Credential) {
		service.throttle.RecordFailure(context, email)
		return nil, apperr.Unauthorized("Incorrect email or password")
	}

	if !account.IsActive {
		return nil, apperr.Forbidden("Account is deactivated")
	}

	if service.options.RequireVerifiedEmail && !account.IsVerified {
		return nil, apperr.Forbidden("Email address is not verified")
	}

	service.throttle.RecordSuccess(context, email)

	accessToken, err := service.tokenProvider.Issue(account.Email, account.Role, service.options.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_issue_failed: %w", err)
	}

	return &LoginResult{
		AccessToken: accessToken,
		TokenType:   "bearer",
		Account:     account,
	}, nil
}

/*
Authenticate resolves a bearer token string to the live account it names.

Description: Verifies the token signature and lifetime, then confirms the
account still exists. A token for a deleted account is as dead as a forged
one.

Parameters:
  - context: context.Context
  - tokenString: string

Returns:
  - *Account: The authenticated account
  - err: Unauthorized or ServiceUnavailable
*/
func (service *Service) Authenticate(context context.Context, tokenString string) (*Account, error) {
	claims, err := service.tokenProvider.Verify(tokenString)
	if err != nil {
		return nil, apperr.Unauthorized("Could not validate credentials")
	}

	account, err := service.accounts.FindByEmail(context, claims.Email())
	if err != nil {
		if apperr.IsAppError(err) {
			return nil, apperr.Unauthorized("Could not validate credentials")
		}
		return nil, apperr.ServiceUnavailable("Authentication backend is unavailable", err)
	}

	if !account.IsActive {
		return nil, apperr.Forbidden("Account is deactivated")
	}

	return account, nil
}

/*
Profile returns the account behind an already-verified set of claims.

Description: Backs the /me endpoint, where the gate middleware has validated
the bearer token and only the account row is still needed.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *Account: The current account
  - err: Unauthorized or ServiceUnavailable
*/
func (service *Service) Profile(context context.Context, email string) (*Account, error) {
	account, err := service.accounts.FindByEmail(context, NormalizeIdentifier(email))
	if err != nil {
		if apperr.IsAppError(err) {
			return nil, apperr.Unauthorized("Could not validate credentials")
		}
		return nil, apperr.ServiceUnavailable("Authentication backend is unavailable", err)
	}
	return account, nil
}

/*
Authorize checks that the account's role grants at least the required role.

Parameters:
  - account: *Account
  - required: sec.UserRole

Returns:
  - err: Forbidden when the role is insufficient
*/
func (service *Service) Authorize(account *Account, required sec.UserRole) error {
	if !account.Role.AtLeast(required) {
		return apperr.Forbidden("Not enough permissions")
	}
	return nil
}

// # Email Verification Flow

/*
SendVerification issues a fresh verification code for the email and purpose.

Description: Registration purposes are refused when the email already belongs
to an account. Any previously issued codes for the same email and purpose are
invalidated first, so only the newest code works.

Parameters:
  - context: context.Context
  - email: string
  - purpose: TokenPurpose

Returns:
  - err: Conflict, validation, or storage failures
*/
func (service *Service) SendVerification(context context.Context, email string, purpose TokenPurpose) error {
	email = NormalizeIdentifier(email)

	if !purpose.IsValid() || !purpose.IsRegistration() {
		return apperr.ValidationError("Unknown verification purpose")
	}

	// An email that already has an account needs no registration code. Only
	// a domain not-found clears the way; a store outage must not leak codes.
	if _, err := service.accounts.FindByEmail(context, email); err == nil {
		return apperr.Conflict("Email is already registered")
	} else if !apperr.IsAppError(err) {
		return apperr.ServiceUnavailable("Authentication backend is unavailable", err)
	}

	verified, err := service.tokens.IsEmailVerified(context, email)
	if err != nil {
		return fmt.Errorf("auth_service_verified_lookup_failed: %w", err)
	}
	if verified {
		return apperr.Conflict("Email is already verified")
	}

	return service.issueCode(context, email, purpose)
}

/*
ResendVerification re-issues the verification code for a pending registration.

Description: Older codes stop working the moment the new one is created.

Parameters:
  - context: context.Context
  - email: string
  - purpose: TokenPurpose

Returns:
  - err: Conflict, validation, or storage failures
*/
func (service *Service) ResendVerification(context context.Context, email string, purpose TokenPurpose) error {
	return service.SendVerification(context, email, purpose)
}

// issueCode invalidates prior codes, stores a new one, and mails it.
func (service *Service) issueCode(context context.Context, email string, purpose TokenPurpose) error {
	if err := service.tokens.InvalidateAll(context, email, purpose); err != nil {
		return fmt.Errorf("auth_service_invalidate_codes_failed: %w", err)
	}

	code, err := sec.GenerateNumericCode(VerificationCodeDigits)
	if err != nil {
		return fmt.Errorf("auth_service_generate_code_failed: %w", err)
	}

	token := &VerificationToken{
		ID:        uuid.New(),
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: service.now().Add(service.options.VerificationCodeTTL),
	}
	if err := service.tokens.Create(context, token); err != nil {
		return fmt.Errorf("auth_service_store_code_failed: %w", err)
	}

	subject, body := mail.VerificationMessage(code, int(service.options.VerificationCodeTTL.Minutes()))
	if err := service.mailer.Send(context, email, subject, body); err != nil {
		return fmt.Errorf("auth_service_send_code_failed: %w", err)
	}

	return nil
}

/*
VerifyEmail redeems a verification code exactly once.

Description: The redemption is a single atomic conditional update, so two
concurrent requests with the same code cannot both succeed. An account that
already exists for the email is marked verified as a side effect.

Parameters:
  - context: context.Context
  - email: string
  - code: string
  - purpose: TokenPurpose

Returns:
  - err: ErrInvalidToken or storage failures
*/
func (service *Service) VerifyEmail(context context.Context, email, code string, purpose TokenPurpose) error {
	email = NormalizeIdentifier(email)

	token, err := service.tokens.Consume(context, email, code, purpose)
	if err != nil {
		return err
	}

	// The account may not exist yet; verification can precede registration.
	if err := service.accounts.MarkVerified(context, token.Email); err != nil && !apperr.IsAppError(err) {
		return fmt.Errorf("auth_service_mark_verified_failed: %w", err)
	}

	return nil
}

/*
CheckVerification reports whether the email completed registration
verification.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - bool: True when a registration code was redeemed for this email
  - err: Storage failures
*/
func (service *Service) CheckVerification(context context.Context, email string) (bool, error) {
	verified, err := service.tokens.IsEmailVerified(context, NormalizeIdentifier(email))
	if err != nil {
		return false, fmt.Errorf("auth_service_check_verification_failed: %w", err)
	}
	return verified, nil
}

// # Password Recovery

/*
RequestPasswordReset initiates the forgot-password flow.

Description: Generates an opaque reset token and mails it to the account.
NOTE: An unknown email still reports success to prevent user enumeration.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - err: Generation or storage failures
*/
func (service *Service) RequestPasswordReset(context context.Context, email string) error {
	email = NormalizeIdentifier(email)

	account, err := service.accounts.FindByEmail(context, email)
	if err != nil {
		if apperr.IsAppError(err) {
			return nil
		}
		return apperr.ServiceUnavailable("Authentication backend is unavailable", err)
	}

	if err := service.tokens.InvalidateAll(context, account.Email, PurposePasswordReset); err != nil {
		return fmt.Errorf("auth_service_invalidate_reset_failed: %w", err)
	}

	resetToken, err := sec.GenerateSecureToken(ResetTokenLength)
	if err != nil {
		return fmt.Errorf("auth_service_generate_reset_token_failed: %w", err)
	}

	token := &VerificationToken{
		ID:        uuid.New(),
		Email:     account.Email,
		Code:      resetToken,
		Purpose:   PurposePasswordReset,
		ExpiresAt: service.now().Add(service.options.ResetTokenTTL),
	}
	if err := service.tokens.Create(context, token); err != nil {
		return fmt.Errorf("auth_service_store_reset_token_failed: %w", err)
	}

	subject, body := mail.PasswordResetMessage(resetToken, int(service.options.ResetTokenTTL.Minutes()))
	if err := service.mailer.Send(context, account.Email, subject, body); err != nil {
		return fmt.Errorf("auth_service_send_reset_token_failed: %w", err)
	}

	return nil
}

/*
ResetPassword completes the forgot-password flow.

Description: Redeems the reset token exactly once, hashes the replacement
password, and updates the stored credential. Reset tokens are globally
unique, so redemption is not scoped to an email.

Parameters:
  - context: context.Context
  - resetToken: string
  - newPassword: string

Returns:
  - err: ErrInvalidToken or update failures
*/
func (service *Service) ResetPassword(context context.Context, resetToken, newPassword string) error {
	token, err := service.tokens.Consume(context, "", resetToken, PurposePasswordReset)
	if err != nil {
		return err
	}

	storedForm, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_reset_hash_failed: %w", err)
	}

	// The account can vanish between token issue and redemption; a token
	// for a deleted account is simply invalid.
	if err := service.accounts.UpdateCredential(context, token.Email, storedForm); err != nil {
		if apperr.IsAppError(err) {
			return ErrInvalidToken
		}
		return fmt.Errorf("auth_service_reset_update_failed: %w", err)
	}

	return nil
}

/*
ChangePassword allows an authenticated account to rotate its credential.

Description: Verifies the current password before storing the new hash.

Parameters:
  - context: context.Context
  - email: string
  - currentPassword: string
  - newPassword: string

Returns:
  - err: Unauthorized or storage failures
*/
func (service *Service) ChangePassword(context context.Context, email, currentPassword, newPassword string) error {
	email = NormalizeIdentifier(email)

	account, err := service.accounts.FindByEmail(context, email)
	if err != nil {
		if apperr.IsAppError(err) {
			return apperr.Unauthorized("Could not validate credentials")
		}
		return apperr.ServiceUnavailable("Authentication backend is unavailable", err)
	}

	if !sec.VerifyPassword(currentPassword, account.Credential) {
		return apperr.Unauthorized("Current password is incorrect")
	}

	storedForm, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_change_password_hash_failed: %w", err)
	}

	if err := service.accounts.UpdateCredential(context, account.Email, storedForm); err != nil {
		return fmt.Errorf("auth_service_change_password_update_failed: %w", err)
	}

	return nil
}

// # Bootstrap

/*
EnsureAdmin guarantees that one administrator account exists.

Description: Called at startup with credentials from the environment. An
existing account with the email is left untouched; otherwise a verified,
active administrator is created.

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - err: Hashing or storage failures
*/
func (service *Service) EnsureAdmin(context context.Context, email, password string) error {
	email = NormalizeIdentifier(email)

	if _, err := service.accounts.FindByEmail(context, email); err == nil {
		return nil
	} else if !apperr.IsAppError(err) {
		return fmt.Errorf("auth_service_ensure_admin_lookup_failed: %w", err)
	}

	storedForm, err := sec.HashPassword(password)
	if err != nil {
		return fmt.Errorf("auth_service_ensure_admin_hash_failed: %w", err)
	}

	account := &Account{
		ID:         uuid.New(),
		Email:      email,
		Credential: storedForm,
		Role:       sec.RoleAdmin,
		IsActive:   true,
		IsVerified: true,
	}
	if err := service.accounts.Create(context, account); err != nil {
		return fmt.Errorf("auth_service_ensure_admin_create_failed: %w", err)
	}

	return nil
}
