// Copyright (c) 2026 1move Community. All rights reserved.

package sec

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Stored credential format: hex(salt) + ":" + hex(argon2id(password, salt)).
//
// The salt is unique per hash operation and lives only inside the stored
// form — verification always extracts it from there, never from a global.
// Hex output cannot contain ':', so the delimiter is unambiguous.
const (
	saltLength = 16
	keyLength  = 32

	// Argon2id tuning. These match the library's recommended interactive
	// parameters; raising memory is the knob to turn first.
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// HashPassword hashes a plain-text password with argon2id and a fresh
// random salt, returning the stored form "salt:hash".
//
// Argon2id is a deliberately expensive password-hashing primitive. A fast
// general-purpose hash here would make offline brute force cheap.
func HashPassword(plainTextPassword string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("sec: failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(plainTextPassword), salt, argonTime, argonMemory, argonThreads, keyLength)

	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(hash), nil
}

// VerifyPassword compares a plain-text password with a stored credential form.
//
// It returns false — never an error — for malformed stored forms: a corrupted
// credential is a failed login, not a server fault the client should see.
func VerifyPassword(plainTextPassword, storedForm string) bool {
	salt, expectedHash, err := decodeStoredForm(storedForm)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(plainTextPassword), salt, argonTime, argonMemory, argonThreads, keyLength)

	return subtle.ConstantTimeCompare(computed, expectedHash) == 1
}

// decodeStoredForm splits and decodes a "salt:hash" credential string.
//
// Malformed input is a modeled case with an explicit error, so callers decide
// how to degrade instead of catching panics.
func decodeStoredForm(storedForm string) (salt, hash []byte, err error) {
	saltPart, hashPart, found := strings.Cut(storedForm, ":")
	if !found {
		return nil, nil, fmt.Errorf("sec: stored credential missing delimiter")
	}

	salt, err = hex.DecodeString(saltPart)
	if err != nil {
		return nil, nil, fmt.Errorf("sec: invalid salt encoding: %w", err)
	}

	hash, err = hex.DecodeString(hashPart)
	if err != nil {
		return nil, nil, fmt.Errorf("sec: invalid hash encoding: %w", err)
	}

	if len(salt) == 0 || len(hash) == 0 {
		return nil, nil, fmt.Errorf("sec: empty salt or hash segment")
	}

	return salt, hash, nil
}
