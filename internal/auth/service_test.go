// Copyright (c) 2026 1move Community. All rights reserved.

package auth_test

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onemove/affiliate-api/internal/auth"
	"github.com/onemove/affiliate-api/internal/platform/apperr"
	"github.com/onemove/affiliate-api/internal/platform/sec"
	"github.com/onemove/affiliate-api/pkg/uuid"
)

// recordingMailer captures outgoing messages for assertions.
type recordingMailer struct {
	sent []recordedMessage
}

type recordedMessage struct {
	To      string
	Subject string
	Body    string
}

func (mailer *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	mailer.sent = append(mailer.sent, recordedMessage{To: to, Subject: subject, Body: body})
	return nil
}

var verificationCodePattern = regexp.MustCompile(`\b\d{6}\b`)
var resetTokenPattern = regexp.MustCompile(`\b[0-9a-f]{64}\b`)

// lastCode extracts the 6-digit code from the most recent message.
func (mailer *recordingMailer) lastCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, mailer.sent)
	code := verificationCodePattern.FindString(mailer.sent[len(mailer.sent)-1].Body)
	require.NotEmpty(t, code)
	return code
}

// lastResetToken extracts the opaque reset token from the most recent message.
func (mailer *recordingMailer) lastResetToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, mailer.sent)
	token := resetTokenPattern.FindString(mailer.sent[len(mailer.sent)-1].Body)
	require.NotEmpty(t, token)
	return token
}

// outageAccountRepository simulates a database outage on every call.
type outageAccountRepository struct{}

var errStoreDown = fmt.Errorf("connection refused")

func (outageAccountRepository) FindByEmail(context.Context, string) (*auth.Account, error) {
	return nil, errStoreDown
}
func (outageAccountRepository) Create(context.Context, *auth.Account) error  { return errStoreDown }
func (outageAccountRepository) UpdateCredential(context.Context, string, string) error {
	return errStoreDown
}
func (outageAccountRepository) MarkVerified(context.Context, string) error { return errStoreDown }
func (outageAccountRepository) Delete(context.Context, string) error       { return errStoreDown }

// testEnv bundles a service with its injected fakes.
type testEnv struct {
	service  *auth.Service
	accounts *auth.MemoryAccountRepository
	tokens   *auth.MemoryVerificationTokenRepository
	throttle *auth.MemoryThrottle
	mailer   *recordingMailer
	clock    *fakeClock
}

func newTestEnv(t *testing.T, options auth.Options) *testEnv {
	t.Helper()

	clock := newFakeClock()
	accounts := auth.NewMemoryAccountRepository()
	tokens := auth.NewMemoryVerificationTokenRepository().WithClock(clock.Now)
	throttle := auth.NewMemoryThrottle(5*time.Minute, 10).WithClock(clock.Now)
	mailer := &recordingMailer{}

	tokenService, err := sec.NewTokenService("test-secret", "1move.community")
	require.NoError(t, err)

	return &testEnv{
		service:  auth.NewService(accounts, tokens, throttle, tokenService, mailer, options).WithClock(clock.Now),
		accounts: accounts,
		tokens:   tokens,
		throttle: throttle,
		mailer:   mailer,
		clock:    clock,
	}
}

// seedAccount registers a verified, active account with the given password.
func (env *testEnv) seedAccount(t *testing.T, email, password string, role sec.UserRole) {
	t.Helper()

	storedForm, err := sec.HashPassword(password)
	require.NoError(t, err)

	require.NoError(t, env.accounts.Create(context.Background(), &auth.Account{
		ID:         uuid.New(),
		Email:      email,
		Credential: storedForm,
		Role:       role,
		IsActive:   true,
		IsVerified: true,
	}))
}

// # Login

/*
TestService_Login_Success verifies the happy path: the issued bearer token
round-trips through Authenticate back to the same account.
*/
func TestService_Login_Success(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})
	env.seedAccount(t, "member@example.com", "hunter2hunter2", sec.RoleAffiliate)

	result, err := env.service.Login(ctx, auth.LoginInput{
		Email:    "Member@Example.com ", // canonicalized before lookup
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	assert.Equal(t, "bearer", result.TokenType)
	assert.Equal(t, "member@example.com", result.Account.Email)

	account, err := env.service.Authenticate(ctx, result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "member@example.com", account.Email)
}

/*
TestService_Login_GenericRejection verifies that an unknown email and a wrong
password produce the identical client-visible error.
*/
func TestService_Login_GenericRejection(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})
	env.seedAccount(t, "member@example.com", "hunter2hunter2", sec.RoleAffiliate)

	_, unknownErr := env.service.Login(ctx, auth.LoginInput{
		Email:    "ghost@example.com",
		Password: "hunter2hunter2",
	})
	_, wrongErr := env.service.Login(ctx, auth.LoginInput{
		Email:    "member@example.com",
		Password: "wrong-password",
	})

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())

	ae := apperr.As(wrongErr)
	require.NotNil(t, ae)
	assert.Equal(t, "UNAUTHORIZED", ae.Code)
}

/*
TestService_Login_Lockout verifies the throttle boundary: after the limit of
failures, even the correct password is refused until the window passes.
*/
func TestService_Login_Lockout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})
	env.seedAccount(t, "member@example.com", "hunter2hunter2", sec.RoleAffiliate)

	for i := 0; i < 10; i++ {
		_, err := env.service.Login(ctx, auth.LoginInput{
			Email:    "member@example.com",
			Password: "wrong-password",
		})
		require.Error(t, err)
	}

	// The 11th attempt carries the CORRECT password and must still fail,
	// with the throttle error rather than the credential error.
	_, err := env.service.Login(ctx, auth.LoginInput{
		Email:    "member@example.com",
		Password: "hunter2hunter2",
	})
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "THROTTLED", ae.Code)

	// Once the window passes, the correct password works again.
	env.clock.Advance(5*time.Minute + time.Second)
	_, err = env.service.Login(ctx, auth.LoginInput{
		Email:    "member@example.com",
		Password: "hunter2hunter2",
	})
	assert.NoError(t, err)
}

/*
TestService_Login_SuccessClearsThrottle verifies that a successful login
resets the failure count completely.
*/
func TestService_Login_SuccessClearsThrottle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})
	env.seedAccount(t, "member@example.com", "hunter2hunter2", sec.RoleAffiliate)

	for i := 0; i < 9; i++ {
		_, err := env.service.Login(ctx, auth.LoginInput{
			Email:    "member@example.com",
			Password: "wrong-password",
		})
		require.Error(t, err)
	}

	_, err := env.service.Login(ctx, auth.LoginInput{
		Email:    "member@example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	// A fresh run of failures starts counting from zero: none of these nine
	// attempts hits the throttle.
	for i := 0; i < 9; i++ {
		_, err := env.service.Login(ctx, auth.LoginInput{
			Email:    "member@example.com",
			Password: "wrong-password",
		})
		require.Error(t, err)
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	}
}

/*
TestService_Login_DeactivatedAccount verifies that a deactivated account is
refused with a Forbidden error even with correct credentials.
*/
func TestService_Login_DeactivatedAccount(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})

	storedForm, err := sec.HashPassword("hunter2hunter2")
	require.NoError(t, err)
	require.NoError(t, env.accounts.Create(ctx, &auth.Account{
		ID:         uuid.New(),
		Email:      "member@example.com",
		Credential: storedForm,
		Role:       sec.RoleAffiliate,
		IsActive:   false,
		IsVerified: true,
	}))

	_, err = env.service.Login(ctx, auth.LoginInput{
		Email:    "member@example.com",
		Password: "hunter2hunter2",
	})
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "FORBIDDEN", ae.Code)
}

/*
TestService_Login_UnverifiedEmail verifies the verification gate: blocked
when the policy requires verification, allowed otherwise.
*/
func TestService_Login_UnverifiedEmail(t *testing.T) {
	ctx := context.Background()

	seed := func(env *testEnv) {
		storedForm, err := sec.HashPassword("hunter2hunter2")
		require.NoError(t, err)
		require.NoError(t, env.accounts.Create(ctx, &auth.Account{
			ID:         uuid.New(),
			Email:      "member@example.com",
			Credential: storedForm,
			Role:       sec.RoleAffiliate,
			IsActive:   true,
			IsVerified: false,
		}))
	}

	strict := newTestEnv(t, auth.Options{RequireVerifiedEmail: true})
	seed(strict)
	_, err := strict.service.Login(ctx, auth.LoginInput{Email: "member@example.com", Password: "hunter2hunter2"})
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperr.As(err).Code)

	relaxed := newTestEnv(t, auth.Options{RequireVerifiedEmail: false})
	seed(relaxed)
	_, err = relaxed.service.Login(ctx, auth.LoginInput{Email: "member@example.com", Password: "hunter2hunter2"})
	assert.NoError(t, err)
}

/*
TestService_Login_StorageOutage verifies that a database outage surfaces as
ServiceUnavailable, never as a credential failure.
*/
func TestService_Login_StorageOutage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})

	tokenService, err := sec.NewTokenService("test-secret", "1move.community")
	require.NoError(t, err)

	broken := auth.NewService(
		outageAccountRepository{},
		env.tokens,
		env.throttle,
		tokenService,
		env.mailer,
		auth.Options{},
	)

	_, err = broken.Login(ctx, auth.LoginInput{
		Email:    "member@example.com",
		Password: "hunter2hunter2",
	})
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "SERVICE_UNAVAILABLE", ae.Code)
}

// # Authentication Gate

/*
TestService_Authenticate_DeletedAccount verifies that a structurally valid
token stops working the moment its account is removed.
*/
func TestService_Authenticate_DeletedAccount(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})
	env.seedAccount(t, "member@example.com", "hunter2hunter2", sec.RoleAffiliate)

	result, err := env.service.Login(ctx, auth.LoginInput{
		Email:    "member@example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	require.NoError(t, env.accounts.Delete(ctx, "member@example.com"))

	_, err = env.service.Authenticate(ctx, result.AccessToken)
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
}

/*
TestService_Authenticate_Garbage verifies that malformed bearer tokens are
rejected with the generic credential error.
*/
func TestService_Authenticate_Garbage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})

	_, err := env.service.Authenticate(ctx, "not-a-token")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
}

/*
TestService_Authorize verifies the role hierarchy: admins pass every gate,
referrals only their own.
*/
func TestService_Authorize(t *testing.T) {
	env := newTestEnv(t, auth.Options{})

	admin := &auth.Account{Role: sec.RoleAdmin}
	affiliate := &auth.Account{Role: sec.RoleAffiliate}
	referral := &auth.Account{Role: sec.RoleReferral}

	assert.NoError(t, env.service.Authorize(admin, sec.RoleAffiliate))
	assert.NoError(t, env.service.Authorize(affiliate, sec.RoleAffiliate))
	assert.NoError(t, env.service.Authorize(affiliate, sec.RoleReferral))

	err := env.service.Authorize(referral, sec.RoleAffiliate)
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperr.As(err).Code)
	assert.Equal(t, "Not enough permissions", err.Error())
}

// # Email Verification

/*
TestService_VerificationFlow covers the full round trip: send, verify, and
the single-use guarantee on replay.
*/
func TestService_VerificationFlow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})

	require.NoError(t, env.service.SendVerification(ctx, "new@example.com", auth.PurposeAffiliateRegistration))
	code := env.mailer.lastCode(t)

	verified, err := env.service.CheckVerification(ctx, "new@example.com")
	require.NoError(t, err)
	assert.False(t, verified)

	require.NoError(t, env.service.VerifyEmail(ctx, "new@example.com", code, auth.PurposeAffiliateRegistration))

	verified, err = env.service.CheckVerification(ctx, "new@example.com")
	require.NoError(t, err)
	assert.True(t, verified)

	// Replay: the code was consumed and never works twice.
	err = env.service.VerifyEmail(ctx, "new@example.com", code, auth.PurposeAffiliateRegistration)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// A verified email gets no further registration codes.
	err = env.service.SendVerification(ctx, "new@example.com", auth.PurposeAffiliateRegistration)
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)
}

/*
TestService_SendVerification_RegisteredEmail verifies that registration
codes are refused for emails that already have an account.
*/
func TestService_SendVerification_RegisteredEmail(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})
	env.seedAccount(t, "member@example.com", "hunter2hunter2", sec.RoleAffiliate)

	err := env.service.SendVerification(ctx, "member@example.com", auth.PurposeAffiliateRegistration)
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)
}

/*
TestService_SendVerification_StorageOutage verifies that a database outage
surfaces as ServiceUnavailable and no code goes out; an unreachable store
must never be mistaken for an unregistered email.
*/
func TestService_SendVerification_StorageOutage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})

	tokenService, err := sec.NewTokenService("test-secret", "1move.community")
	require.NoError(t, err)

	broken := auth.NewService(
		outageAccountRepository{},
		env.tokens,
		env.throttle,
		tokenService,
		env.mailer,
		auth.Options{},
	)

	err = broken.SendVerification(ctx, "new@example.com", auth.PurposeAffiliateRegistration)
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "SERVICE_UNAVAILABLE", ae.Code)
	assert.Empty(t, env.mailer.sent)
}

/*
TestService_ResendVerification_NewestWins verifies that re-sending
invalidates the previous code: only the latest one redeems.
*/
func TestService_ResendVerification_NewestWins(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})

	require.NoError(t, env.service.SendVerification(ctx, "new@example.com", auth.PurposeReferralRegistration))
	firstCode := env.mailer.lastCode(t)

	require.NoError(t, env.service.ResendVerification(ctx, "new@example.com", auth.PurposeReferralRegistration))
	secondCode := env.mailer.lastCode(t)

	err := env.service.VerifyEmail(ctx, "new@example.com", firstCode, auth.PurposeReferralRegistration)
	if firstCode != secondCode {
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	}

	assert.NoError(t, env.service.VerifyEmail(ctx, "new@example.com", secondCode, auth.PurposeReferralRegistration))
}

/*
TestService_VerifyEmail_Expired verifies that a code past its TTL is
rejected even though it was never used.
*/
func TestService_VerifyEmail_Expired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{VerificationCodeTTL: 15 * time.Minute})

	require.NoError(t, env.service.SendVerification(ctx, "new@example.com", auth.PurposeAffiliateRegistration))
	code := env.mailer.lastCode(t)

	env.clock.Advance(16 * time.Minute)

	err := env.service.VerifyEmail(ctx, "new@example.com", code, auth.PurposeAffiliateRegistration)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

/*
TestService_VerifyEmail_WrongScope verifies that a code never redeems for a
different email or purpose than it was issued for.
*/
func TestService_VerifyEmail_WrongScope(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})

	require.NoError(t, env.service.SendVerification(ctx, "new@example.com", auth.PurposeAffiliateRegistration))
	code := env.mailer.lastCode(t)

	err := env.service.VerifyEmail(ctx, "other@example.com", code, auth.PurposeAffiliateRegistration)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	err = env.service.VerifyEmail(ctx, "new@example.com", code, auth.PurposeAdminRegistration)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// The correctly scoped redemption still works afterwards.
	assert.NoError(t, env.service.VerifyEmail(ctx, "new@example.com", code, auth.PurposeAffiliateRegistration))
}

// # Password Recovery

/*
TestService_PasswordResetFlow covers the full recovery round trip, including
the replay guarantee and the old credential going dead.
*/
func TestService_PasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})
	env.seedAccount(t, "member@example.com", "old-password-1", sec.RoleAffiliate)

	require.NoError(t, env.service.RequestPasswordReset(ctx, "member@example.com"))
	resetToken := env.mailer.lastResetToken(t)

	require.NoError(t, env.service.ResetPassword(ctx, resetToken, "new-password-1"))

	// Old credential is dead, new one works.
	_, err := env.service.Login(ctx, auth.LoginInput{Email: "member@example.com", Password: "old-password-1"})
	require.Error(t, err)

	_, err = env.service.Login(ctx, auth.LoginInput{Email: "member@example.com", Password: "new-password-1"})
	require.NoError(t, err)

	// Replay: the token was consumed and never works twice.
	err = env.service.ResetPassword(ctx, resetToken, "attacker-password")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

/*
TestService_RequestPasswordReset_UnknownEmail verifies the anti-enumeration
contract: unknown emails succeed silently and no mail goes out.
*/
func TestService_RequestPasswordReset_UnknownEmail(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})

	require.NoError(t, env.service.RequestPasswordReset(ctx, "ghost@example.com"))
	assert.Empty(t, env.mailer.sent)
}

/*
TestService_ResetPassword_Expired verifies that a reset token past its TTL is
rejected even though it was never used.
*/
func TestService_ResetPassword_Expired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{ResetTokenTTL: time.Hour})
	env.seedAccount(t, "member@example.com", "old-password-1", sec.RoleAffiliate)

	require.NoError(t, env.service.RequestPasswordReset(ctx, "member@example.com"))
	resetToken := env.mailer.lastResetToken(t)

	env.clock.Advance(time.Hour + time.Minute)

	err := env.service.ResetPassword(ctx, resetToken, "new-password-1")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

/*
TestService_ResetPassword_DeletedAccount verifies that a reset token issued
before an account's deletion cannot resurrect a credential.
*/
func TestService_ResetPassword_DeletedAccount(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})
	env.seedAccount(t, "member@example.com", "old-password-1", sec.RoleAffiliate)

	require.NoError(t, env.service.RequestPasswordReset(ctx, "member@example.com"))
	resetToken := env.mailer.lastResetToken(t)

	require.NoError(t, env.accounts.Delete(ctx, "member@example.com"))

	err := env.service.ResetPassword(ctx, resetToken, "new-password-1")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

/*
TestService_ChangePassword verifies the authenticated credential rotation,
including rejection of a wrong current password.
*/
func TestService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})
	env.seedAccount(t, "member@example.com", "old-password-1", sec.RoleAffiliate)

	err := env.service.ChangePassword(ctx, "member@example.com", "wrong-password", "new-password-1")
	require.Error(t, err)
	assert.Equal(t, "Current password is incorrect", err.Error())

	require.NoError(t, env.service.ChangePassword(ctx, "member@example.com", "old-password-1", "new-password-1"))

	_, err = env.service.Login(ctx, auth.LoginInput{Email: "member@example.com", Password: "new-password-1"})
	assert.NoError(t, err)
}

/*
TestService_ChangePassword_DeletedAccount verifies that a rotation attempt
for an account removed mid-session is refused as a credential failure, not
reported as a missing resource.
*/
func TestService_ChangePassword_DeletedAccount(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})
	env.seedAccount(t, "member@example.com", "old-password-1", sec.RoleAffiliate)

	require.NoError(t, env.accounts.Delete(ctx, "member@example.com"))

	err := env.service.ChangePassword(ctx, "member@example.com", "old-password-1", "new-password-1")
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "UNAUTHORIZED", ae.Code)
	assert.Equal(t, "Could not validate credentials", ae.Message)
}

// # Bootstrap

/*
TestService_EnsureAdmin verifies idempotent admin provisioning: the account
is created once and an existing account is never overwritten.
*/
func TestService_EnsureAdmin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, auth.Options{})

	require.NoError(t, env.service.EnsureAdmin(ctx, "Admin@Example.com", "bootstrap-password"))

	account, err := env.accounts.FindByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, sec.RoleAdmin, account.Role)
	assert.True(t, account.IsActive)
	assert.True(t, account.IsVerified)

	// Second run with a different password leaves the account untouched.
	require.NoError(t, env.service.EnsureAdmin(ctx, "admin@example.com", "different-password"))

	_, err = env.service.Login(ctx, auth.LoginInput{Email: "admin@example.com", Password: "bootstrap-password"})
	assert.NoError(t, err)
}
