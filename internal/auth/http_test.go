// Copyright (c) 2026 1move Community. All rights reserved.

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onemove/affiliate-api/internal/auth"
	"github.com/onemove/affiliate-api/internal/platform/middleware"
	"github.com/onemove/affiliate-api/internal/platform/sec"
)

// httpEnv mounts the auth routes behind the real token middleware, the way
// the server composes them.
type httpEnv struct {
	*testEnv
	router chi.Router
}

func newHTTPEnv(t *testing.T) *httpEnv {
	t.Helper()

	env := newTestEnv(t, auth.Options{})

	tokenService, err := sec.NewTokenService("test-secret", "1move.community")
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Use(middleware.Authenticate(tokenService))
	router.Mount("/api/v1/auth", auth.NewHandler(env.service).Routes())

	return &httpEnv{testEnv: env, router: router}
}

func (env *httpEnv) do(t *testing.T, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		request.Header.Set("Authorization", "Bearer "+bearer)
	}

	recorder := httptest.NewRecorder()
	env.router.ServeHTTP(recorder, request)
	return recorder
}

/*
TestHTTP_Login exercises the login endpoint end to end: success, bad
credentials, malformed input, and the throttle status code.
*/
func TestHTTP_Login(t *testing.T) {
	env := newHTTPEnv(t)
	env.seedAccount(t, "member@example.com", "hunter2hunter2", sec.RoleAffiliate)

	// Success returns a bearer token envelope.
	recorder := env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "member@example.com",
		"password": "hunter2hunter2",
	}, "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data["access_token"])
	assert.Equal(t, "bearer", envelope.Data["token_type"])

	// Wrong password is a 401.
	recorder = env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "member@example.com",
		"password": "wrong-password",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Missing fields are a 400 before the service is ever consulted.
	recorder = env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "member@example.com",
	}, "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// Not JSON at all.
	request := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader([]byte("{")))
	raw := httptest.NewRecorder()
	env.router.ServeHTTP(raw, request)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

/*
TestHTTP_Login_Throttled verifies the 429 status once the attempt limit is
exhausted.
*/
func TestHTTP_Login_Throttled(t *testing.T) {
	env := newHTTPEnv(t)
	env.seedAccount(t, "member@example.com", "hunter2hunter2", sec.RoleAffiliate)

	for i := 0; i < 10; i++ {
		recorder := env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
			"email":    "member@example.com",
			"password": "wrong-password",
		}, "")
		require.Equal(t, http.StatusUnauthorized, recorder.Code)
	}

	recorder := env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "member@example.com",
		"password": "hunter2hunter2",
	}, "")
	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
}

/*
TestHTTP_Me verifies the protected profile endpoint against valid, missing,
and stale credentials.
*/
func TestHTTP_Me(t *testing.T) {
	env := newHTTPEnv(t)
	env.seedAccount(t, "member@example.com", "hunter2hunter2", sec.RoleAffiliate)

	login := env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "member@example.com",
		"password": "hunter2hunter2",
	}, "")
	require.Equal(t, http.StatusOK, login.Code)

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &envelope))
	bearer := envelope.Data["access_token"].(string)

	// With the token: profile comes back, credential never serialized.
	recorder := env.do(t, http.MethodGet, "/api/v1/auth/me", nil, bearer)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "member@example.com")
	assert.NotContains(t, recorder.Body.String(), "credential")

	// Without the token: the gate rejects before the handler runs.
	recorder = env.do(t, http.MethodGet, "/api/v1/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// With a token for a deleted account: same rejection.
	require.NoError(t, env.accounts.Delete(context.Background(), "member@example.com"))
	recorder = env.do(t, http.MethodGet, "/api/v1/auth/me", nil, bearer)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

/*
TestHTTP_VerificationFlow exercises send, check, and verify over HTTP,
including input validation of the purpose and code fields.
*/
func TestHTTP_VerificationFlow(t *testing.T) {
	env := newHTTPEnv(t)

	recorder := env.do(t, http.MethodPost, "/api/v1/auth/send-verification", map[string]string{
		"email":   "new@example.com",
		"purpose": string(auth.PurposeAffiliateRegistration),
	}, "")
	require.Equal(t, http.StatusOK, recorder.Code)
	code := env.mailer.lastCode(t)

	// Unknown purpose never reaches the service.
	recorder = env.do(t, http.MethodPost, "/api/v1/auth/send-verification", map[string]string{
		"email":   "new@example.com",
		"purpose": "password_reset",
	}, "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// Non-numeric code rejected at validation.
	recorder = env.do(t, http.MethodPost, "/api/v1/auth/verify-email", map[string]string{
		"email":             "new@example.com",
		"verification_code": "abc123",
		"purpose":           string(auth.PurposeAffiliateRegistration),
	}, "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = env.do(t, http.MethodPost, "/api/v1/auth/verify-email", map[string]string{
		"email":             "new@example.com",
		"verification_code": code,
		"purpose":           string(auth.PurposeAffiliateRegistration),
	}, "")
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = env.do(t, http.MethodGet, "/api/v1/auth/check-verification/new@example.com", nil, "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"verified":true`)
}

/*
TestHTTP_PasswordRecovery exercises forgot/reset over HTTP, verifying the
anti-enumeration response body is identical for known and unknown emails.
*/
func TestHTTP_PasswordRecovery(t *testing.T) {
	env := newHTTPEnv(t)
	env.seedAccount(t, "member@example.com", "old-password-1", sec.RoleAffiliate)

	known := env.do(t, http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{
		"email": "member@example.com",
	}, "")
	unknown := env.do(t, http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{
		"email": "ghost@example.com",
	}, "")

	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())

	resetToken := env.mailer.lastResetToken(t)

	recorder := env.do(t, http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"token":    resetToken,
		"password": "new-password-1",
	}, "")
	require.Equal(t, http.StatusOK, recorder.Code)

	// Replay over HTTP is a 400 with the generic token message.
	recorder = env.do(t, http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"token":    resetToken,
		"password": "another-password",
	}, "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	login := env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "member@example.com",
		"password": "new-password-1",
	}, "")
	assert.Equal(t, http.StatusOK, login.Code)
}

/*
TestHTTP_ChangePassword verifies the authenticated rotation endpoint.
*/
func TestHTTP_ChangePassword(t *testing.T) {
	env := newHTTPEnv(t)
	env.seedAccount(t, "member@example.com", "old-password-1", sec.RoleAffiliate)

	login := env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "member@example.com",
		"password": "old-password-1",
	}, "")
	require.Equal(t, http.StatusOK, login.Code)

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &envelope))
	bearer := envelope.Data["access_token"].(string)

	// Wrong current password.
	recorder := env.do(t, http.MethodPost, "/api/v1/auth/change-password", map[string]string{
		"current_password": "wrong-password",
		"new_password":     "new-password-1",
	}, bearer)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Weak new password stopped at validation.
	recorder = env.do(t, http.MethodPost, "/api/v1/auth/change-password", map[string]string{
		"current_password": "old-password-1",
		"new_password":     "short",
	}, bearer)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = env.do(t, http.MethodPost, "/api/v1/auth/change-password", map[string]string{
		"current_password": "old-password-1",
		"new_password":     "new-password-1",
	}, bearer)
	require.Equal(t, http.StatusOK, recorder.Code)

	relogin := env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "member@example.com",
		"password": "new-password-1",
	}, "")
	assert.Equal(t, http.StatusOK, relogin.Code)
}

// Guard against the verification TTL leaking into reset tokens: the two
// flows use different durations.
func TestOptionsDefaults(t *testing.T) {
	assert.Equal(t, 30*time.Minute, auth.DefaultAccessTokenTTL)
	assert.Equal(t, 15*time.Minute, auth.DefaultVerificationCodeTTL)
	assert.Equal(t, time.Hour, auth.DefaultResetTokenTTL)
}
