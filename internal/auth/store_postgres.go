// Copyright (c) 2026 1move Community. All rights reserved.

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/onemove/affiliate-api/internal/platform/apperr"
)

// # Account Repository

// PostgresAccountRepository implements the AccountRepository interface using pgx.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new PostgreSQL implementation of the AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

/*
FindByEmail retrieves an account by its unique (normalized) email.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *Account: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresAccountRepository) FindByEmail(context context.Context, email string) (*Account, error) {
	const query = `
		SELECT id, email, credential, role, is_active, is_verified, created_at, updated_at
		FROM users.account
		WHERE email = $1`

	account := &Account{}
	err := repository.pool.QueryRow(context, query, email).Scan(
		&account.ID,
		&account.Email,
		&account.Credential,
		&account.Role,
		&account.IsActive,
		&account.IsVerified,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_by_email_failed: %w", err)
	}

	return account, nil
}

/*
Create persists a new account record into the users.account table.

Description: Initializes timestamps if not provided by the caller.

Parameters:
  - context: context.Context
  - account: *Account

Returns:
  - error: Database constraint violations or connectivity errors
*/
func (repository *PostgresAccountRepository) Create(context context.Context, account *Account) error {
	const query = `
		INSERT INTO users.account (
			id, email, credential, role, is_active, is_verified, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		account.ID,
		account.Email,
		account.Credential,
		account.Role,
		account.IsActive,
		account.IsVerified,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_account_repo_create_failed: %w", err)
	}

	return nil
}

/*
UpdateCredential replaces the account's stored credential form.

Parameters:
  - context: context.Context
  - email: string
  - storedForm: string

Returns:
  - error: apperr.NotFound or persistence failures
*/
func (repository *PostgresAccountRepository) UpdateCredential(context context.Context, email, storedForm string) error {
	const query = `
		UPDATE users.account
		SET credential = $2, updated_at = NOW()
		WHERE email = $1`

	tag, err := repository.pool.Exec(context, query, email, storedForm)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_credential_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}

	return nil
}

/*
MarkVerified updates the account's status to is_verified = true.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresAccountRepository) MarkVerified(context context.Context, email string) error {
	const query = `
		UPDATE users.account
		SET is_verified = TRUE, updated_at = NOW()
		WHERE email = $1`

	if _, err := repository.pool.Exec(context, query, email); err != nil {
		return fmt.Errorf("postgres_account_repo_mark_verified_failed: %w", err)
	}

	return nil
}

/*
Delete removes the account with the given email.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresAccountRepository) Delete(context context.Context, email string) error {
	const query = `DELETE FROM users.account WHERE email = $1`

	if _, err := repository.pool.Exec(context, query, email); err != nil {
		return fmt.Errorf("postgres_account_repo_delete_failed: %w", err)
	}

	return nil
}

// # Verification Token Repository

// PostgresVerificationTokenRepository implements VerificationTokenRepository using pgx.
type PostgresVerificationTokenRepository struct {
	pool *pgxpool.Pool
}

// NewVerificationTokenRepository creates a new PostgreSQL-backed VerificationTokenRepository.
func NewVerificationTokenRepository(pool *pgxpool.Pool) *PostgresVerificationTokenRepository {
	return &PostgresVerificationTokenRepository{pool: pool}
}

/*
Create persists a fresh unused token record.

Parameters:
  - context: context.Context
  - token: *VerificationToken

Returns:
  - error: Persistence failures
*/
func (repository *PostgresVerificationTokenRepository) Create(context context.Context, token *VerificationToken) error {
	const query = `
		INSERT INTO users.verification_token (
			id, email, code, purpose, expires_at, used, created_at
		) VALUES ($1, $2, $3, $4, $5, FALSE, $6)`

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		token.ID,
		token.Email,
		token.Code,
		token.Purpose,
		token.ExpiresAt,
		token.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_token_repo_create_failed: %w", err)
	}

	return nil
}

/*
Consume atomically marks a matching live token as used and returns it.

Description: The validity check and the used-flag flip happen inside one
conditional UPDATE, so at-most-once consumption holds under concurrency.
Zero rows affected means not-found, already used, or expired — all of which
collapse to ErrInvalidToken.

Parameters:
  - context: context.Context
  - email: string (empty matches any email)
  - code: string
  - purpose: TokenPurpose

Returns:
  - *VerificationToken: Consumed record
  - error: ErrInvalidToken or storage failures
*/
func (repository *PostgresVerificationTokenRepository) Consume(context context.Context, email, code string, purpose TokenPurpose) (*VerificationToken, error) {
	const query = `
		UPDATE users.verification_token
		SET used = TRUE, consumed = TRUE, used_at = NOW()
		WHERE code = $1
		  AND purpose = $2
		  AND ($3 = '' OR email = $3)
		  AND used = FALSE
		  AND expires_at > NOW()
		RETURNING id, email, code, purpose, expires_at, used, consumed, created_at, used_at`

	token := &VerificationToken{}
	err := repository.pool.QueryRow(context, query, code, purpose, email).Scan(
		&token.ID,
		&token.Email,
		&token.Code,
		&token.Purpose,
		&token.ExpiresAt,
		&token.Used,
		&token.Consumed,
		&token.CreatedAt,
		&token.UsedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("postgres_token_repo_consume_failed: %w", err)
	}

	return token, nil
}

/*
InvalidateAll marks every live token for the email and purpose as used.

Description: Called before issuing a replacement so an older leaked code
cannot outlive the resend.

Parameters:
  - context: context.Context
  - email: string
  - purpose: TokenPurpose

Returns:
  - error: Persistence failures
*/
func (repository *PostgresVerificationTokenRepository) InvalidateAll(context context.Context, email string, purpose TokenPurpose) error {
	const query = `
		UPDATE users.verification_token
		SET used = TRUE, used_at = NOW()
		WHERE email = $1 AND purpose = $2 AND used = FALSE`

	if _, err := repository.pool.Exec(context, query, email, purpose); err != nil {
		return fmt.Errorf("postgres_token_repo_invalidate_all_failed: %w", err)
	}

	return nil
}

/*
IsEmailVerified reports whether any registration-purpose token for the email
was genuinely consumed. Consumption is tracked in a dedicated column because
invalidation sweeps also set the used flag.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - bool: Verified state
  - error: Retrieval failures
*/
func (repository *PostgresVerificationTokenRepository) IsEmailVerified(context context.Context, email string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM users.verification_token
			WHERE email = $1
			  AND purpose IN ($2, $3, $4)
			  AND consumed = TRUE
		)`

	var verified bool
	err := repository.pool.QueryRow(context, query,
		email,
		PurposeAdminRegistration,
		PurposeAffiliateRegistration,
		PurposeReferralRegistration,
	).Scan(&verified)

	if err != nil {
		return false, fmt.Errorf("postgres_token_repo_is_verified_failed: %w", err)
	}

	return verified, nil
}
