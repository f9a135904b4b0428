// Copyright (c) 2026 1move Community. All rights reserved.

package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/onemove/affiliate-api/internal/platform/middleware"
	requestutil "github.com/onemove/affiliate-api/internal/platform/request"
	"github.com/onemove/affiliate-api/internal/platform/respond"
	"github.com/onemove/affiliate-api/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// This handler owns the entire credential lifecycle surface: login, identity
// introspection, email verification, and password recovery. It is strictly
// responsible for transport concerns (status codes, headers, JSON).
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /login               : Authenticates and returns a bearer token.
//   - POST /verify-email        : Redeems a verification code.
//   - POST /forgot-password     : Starts password recovery.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/login", handler.login)
	router.Post("/send-verification", handler.sendVerification)
	router.Post("/resend-verification", handler.resendVerification)
	router.Post("/verify-email", handler.verifyEmail)
	router.Get("/check-verification/{email}", handler.checkVerification)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/me", handler.me)
		r.Post("/change-password", handler.changePassword)
	})

	return router
}

// # Request Payloads

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sendVerificationRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

type verifyEmailRequest struct {
	Email   string `json:"email"`
	Code    string `json:"verification_code"`
	Purpose string `json:"purpose"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

/*
Login authenticates an account and issues a bearer token.

POST /api/v1/auth/login

Description: Applies the login throttle, verifies credentials, and returns
a signed access token with the account profile.

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: Session: Access token and account profile
  - 401: ErrUnauthorized: Incorrect email or password
  - 403: ErrForbidden: Deactivated or unverified account
  - 429: ErrThrottled: Too many failed attempts
  - 503: ErrServiceUnavailable: Authentication backend down
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		FieldAccessToken: result.AccessToken,
		FieldTokenType:   result.TokenType,
		FieldExpiresIn:   handler.authService.options.AccessTokenTTL / time.Second,
		"account":        result.Account,
	})
}

/*
Me returns the profile of the authenticated account.

GET /api/v1/auth/me

Response:
  - 200: Account: Current account profile
  - 401: ErrUnauthorized: Missing or invalid bearer token
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	email, err := requestutil.RequiredEmail(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.authService.Profile(request.Context(), email)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, account)
}

/*
SendVerification issues a verification code for a registration flow.

POST /api/v1/auth/send-verification

Description: Validates the email and purpose, then emails a fresh 6-digit
code. Previously issued codes for the same email and purpose stop working.

Request:
  - Body: sendVerificationRequest (Email, Purpose)

Response:
  - 200: Success: Code sent
  - 400: ErrInvalidJSON: Bad email or unknown purpose
  - 409: ErrConflict: Email already registered
*/
func (handler *Handler) sendVerification(writer http.ResponseWriter, request *http.Request) {
	input, err := handler.decodeVerificationTarget(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.SendVerification(request.Context(), input.Email, TokenPurpose(input.Purpose)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Verification code sent",
	})
}

/*
ResendVerification re-issues the verification code for a pending registration.

POST /api/v1/auth/resend-verification

Request:
  - Body: sendVerificationRequest (Email, Purpose)

Response:
  - 200: Success: Code sent
  - 400: ErrInvalidJSON: Bad email or unknown purpose
  - 409: ErrConflict: Email already registered
*/
func (handler *Handler) resendVerification(writer http.ResponseWriter, request *http.Request) {
	input, err := handler.decodeVerificationTarget(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResendVerification(request.Context(), input.Email, TokenPurpose(input.Purpose)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Verification code sent",
	})
}

// decodeVerificationTarget parses and validates the shared email+purpose body.
func (handler *Handler) decodeVerificationTarget(request *http.Request) (*sendVerificationRequest, error) {
	var input sendVerificationRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		return nil, validate.ErrInvalidJSON
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPurpose, input.Purpose).
		OneOf(FieldPurpose, input.Purpose,
			string(PurposeAdminRegistration),
			string(PurposeAffiliateRegistration),
			string(PurposeReferralRegistration),
		)

	if err := validator.Err(); err != nil {
		return nil, err
	}
	return &input, nil
}

/*
VerifyEmail redeems a 6-digit verification code.

POST /api/v1/auth/verify-email

Description: Consumes the code exactly once; replays and expired codes are
rejected with a single generic message.

Request:
  - Body: verifyEmailRequest (Email, Code, Purpose)

Response:
  - 200: Success: Email verified
  - 400: ErrInvalidJSON: Invalid or expired verification code
*/
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	var input verifyEmailRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldCode, input.Code).
		Digits(FieldCode, input.Code, VerificationCodeDigits).
		Required(FieldPurpose, input.Purpose).
		OneOf(FieldPurpose, input.Purpose,
			string(PurposeAdminRegistration),
			string(PurposeAffiliateRegistration),
			string(PurposeReferralRegistration),
		)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.VerifyEmail(request.Context(), input.Email, input.Code, TokenPurpose(input.Purpose)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Email verified successfully",
	})
}

/*
CheckVerification reports whether an email completed verification.

GET /api/v1/auth/check-verification/{email}

Response:
  - 200: Status: {"email": ..., "verified": bool}
  - 400: ErrInvalidJSON: Malformed email
*/
func (handler *Handler) checkVerification(writer http.ResponseWriter, request *http.Request) {
	email := requestutil.Param(request, "email")

	validator := &validate.Validator{}
	validator.Required(FieldEmail, email).Email(FieldEmail, email)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	verified, err := handler.authService.CheckVerification(request.Context(), email)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		FieldEmail: NormalizeIdentifier(email),
		"verified": verified,
	})
}

/*
ForgotPassword initiates the password recovery flow.

POST /api/v1/auth/forgot-password

Description: Emails a reset token if the account exists. The response is
identical either way so the endpoint cannot be used to probe for accounts.

Request:
  - Body: forgotPasswordRequest (Email)

Response:
  - 200: Success: Generic acknowledgement
  - 400: ErrInvalidJSON: Invalid email format
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	v.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.RequestPasswordReset(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "If this email is registered, a reset link has been sent.",
	})
}

/*
ResetPassword completes the password recovery flow.

POST /api/v1/auth/reset-password

Description: Redeems the reset token and stores the new password.

Request:
  - Body: resetPasswordRequest (Token, Password)

Response:
  - 200: Success: Password updated
  - 400: ErrInvalidJSON: Bad token or weak password
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	v.Required(FieldToken, input.Token).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, 8)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResetPassword(request.Context(), input.Token, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password updated successfully",
	})
}

/*
ChangePassword rotates the authenticated account's credential.

POST /api/v1/auth/change-password

Description: Verifies the current password before applying the new one.

Request:
  - Body: changePasswordRequest (CurrentPassword, NewPassword)

Response:
  - 200: Success: Password changed
  - 401: ErrUnauthorized: Current password incorrect or session invalid
  - 400: ErrInvalidJSON: Weak password or validation failure
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	email, err := requestutil.RequiredEmail(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	v.Required(FieldCurrentPassword, input.CurrentPassword).
		Required(FieldNewPassword, input.NewPassword).
		MinLen(FieldNewPassword, input.NewPassword, 8)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.authService.ChangePassword(
		request.Context(),
		email,
		input.CurrentPassword,
		input.NewPassword,
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password changed successfully",
	})
}
