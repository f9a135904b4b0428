// Copyright (c) 2026 1move Community. All rights reserved.

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/onemove/affiliate-api/internal/platform/apperr"
)

// In-memory repository implementations.
//
// They back the service tests deterministically (injectable clock, no
// external processes) and serve single-instance development deployments.
// Semantics mirror the PostgreSQL implementations exactly — in particular,
// Consume is atomic under the mutex.

// # Account Repository

// MemoryAccountRepository implements AccountRepository in process memory.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*Account // keyed by normalized email
}

// NewMemoryAccountRepository creates an empty in-memory account repository.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[string]*Account)}
}

// FindByEmail returns the account with the given email, or apperr.NotFound.
func (repository *MemoryAccountRepository) FindByEmail(_ context.Context, email string) (*Account, error) {
	repository.mu.RLock()
	defer repository.mu.RUnlock()

	account, exists := repository.accounts[email]
	if !exists {
		return nil, apperr.NotFound("Account")
	}

	// Return a copy so callers cannot mutate repository state.
	clone := *account
	return &clone, nil
}

// Create persists a new account keyed by its email.
func (repository *MemoryAccountRepository) Create(_ context.Context, account *Account) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	if _, exists := repository.accounts[account.Email]; exists {
		return apperr.Conflict("Email is already registered")
	}

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	clone := *account
	repository.accounts[account.Email] = &clone
	return nil
}

// UpdateCredential replaces the stored credential form for the email.
func (repository *MemoryAccountRepository) UpdateCredential(_ context.Context, email, storedForm string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	account, exists := repository.accounts[email]
	if !exists {
		return apperr.NotFound("Account")
	}

	account.Credential = storedForm
	account.UpdatedAt = time.Now()
	return nil
}

// MarkVerified flips is_verified for the email. Missing accounts are a no-op,
// matching the SQL UPDATE semantics.
func (repository *MemoryAccountRepository) MarkVerified(_ context.Context, email string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	if account, exists := repository.accounts[email]; exists {
		account.IsVerified = true
		account.UpdatedAt = time.Now()
	}
	return nil
}

// Delete removes the account with the given email.
func (repository *MemoryAccountRepository) Delete(_ context.Context, email string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	delete(repository.accounts, email)
	return nil
}

// # Verification Token Repository

// MemoryVerificationTokenRepository implements VerificationTokenRepository
// in process memory with an injectable clock.
type MemoryVerificationTokenRepository struct {
	mu     sync.Mutex
	tokens []*VerificationToken

	// now is injectable for deterministic expiry tests.
	now func() time.Time
}

// NewMemoryVerificationTokenRepository creates an empty in-memory token repository.
func NewMemoryVerificationTokenRepository() *MemoryVerificationTokenRepository {
	return &MemoryVerificationTokenRepository{now: time.Now}
}

// WithClock sets the repository's time source. Intended for tests only.
func (repository *MemoryVerificationTokenRepository) WithClock(now func() time.Time) *MemoryVerificationTokenRepository {
	repository.now = now
	return repository
}

// Create appends a fresh unused token record.
func (repository *MemoryVerificationTokenRepository) Create(_ context.Context, token *VerificationToken) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	if token.CreatedAt.IsZero() {
		token.CreatedAt = repository.now()
	}

	clone := *token
	repository.tokens = append(repository.tokens, &clone)
	return nil
}

// Consume atomically marks a matching live token used and returns it.
//
// The expiry check runs before the used check in the same guard, so an
// expired token is rejected even if it was never consumed.
func (repository *MemoryVerificationTokenRepository) Consume(_ context.Context, email, code string, purpose TokenPurpose) (*VerificationToken, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	currentTime := repository.now()
	for _, token := range repository.tokens {
		if token.Code != code || token.Purpose != purpose {
			continue
		}
		if email != "" && token.Email != email {
			continue
		}
		if token.Used || !token.ExpiresAt.After(currentTime) {
			continue
		}

		token.Used = true
		token.Consumed = true
		usedAt := currentTime
		token.UsedAt = &usedAt

		clone := *token
		return &clone, nil
	}

	return nil, ErrInvalidToken
}

// InvalidateAll marks every live token for the email and purpose as used.
func (repository *MemoryVerificationTokenRepository) InvalidateAll(_ context.Context, email string, purpose TokenPurpose) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	currentTime := repository.now()
	for _, token := range repository.tokens {
		if token.Email == email && token.Purpose == purpose && !token.Used {
			token.Used = true
			usedAt := currentTime
			token.UsedAt = &usedAt
		}
	}
	return nil
}

// IsEmailVerified reports whether a registration-purpose token for the email
// was genuinely consumed.
func (repository *MemoryVerificationTokenRepository) IsEmailVerified(_ context.Context, email string) (bool, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	for _, token := range repository.tokens {
		if token.Email == email && token.Consumed && token.Purpose.IsRegistration() {
			return true, nil
		}
	}
	return false, nil
}
