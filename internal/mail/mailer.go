// Copyright (c) 2026 1move Community. All rights reserved.

/*
Package mail delivers transactional messages to account holders.

The Mailer interface keeps the auth domain independent of any particular
delivery channel. LogMailer is the default implementation: it writes the
message to the structured log, which is what development and test
environments want and what production uses until a real provider is wired.
*/
package mail

import (
	"context"
	"fmt"
	"log/slog"
)

// Mailer sends a single plain-text message to one recipient.
type Mailer interface {
	Send(context context.Context, to, subject, body string) error
}

// LogMailer writes outgoing messages to the structured log instead of
// delivering them.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer. A nil logger falls back to slog.Default.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send logs the message and always succeeds.
func (mailer *LogMailer) Send(_ context.Context, to, subject, body string) error {
	mailer.logger.Info("outgoing mail",
		"to", to,
		"subject", subject,
		"body", body,
	)
	return nil
}

// VerificationMessage renders the subject and body for an email
// verification code.
func VerificationMessage(code string, ttlMinutes int) (subject, body string) {
	subject = "Your verification code"
	body = fmt.Sprintf(
		"Your verification code is %s. It expires in %d minutes.\n\n"+
			"If you did not request this code, you can ignore this message.",
		code, ttlMinutes,
	)
	return subject, body
}

// PasswordResetMessage renders the subject and body for a password reset
// token.
func PasswordResetMessage(token string, ttlMinutes int) (subject, body string) {
	subject = "Reset your password"
	body = fmt.Sprintf(
		"Use this token to reset your password: %s\n"+
			"It expires in %d minutes.\n\n"+
			"If you did not request a password reset, you can ignore this message.",
		token, ttlMinutes,
	)
	return subject, body
}
