// Copyright (c) 2026 1move Community. All rights reserved.

package sec

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// GenerateSecureToken returns a cryptographically random opaque string of
// 2*byteLength hex characters.
func GenerateSecureToken(byteLength int) (string, error) {
	buffer := make([]byte, byteLength)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(buffer), nil
}

// GenerateNumericCode returns a fixed-length numeric code drawn from a
// secure random source, for human-entry flows (verification emails).
//
// Each digit is drawn independently so the code keeps leading zeros.
func GenerateNumericCode(digits int) (string, error) {
	code := make([]byte, digits)
	ten := big.NewInt(10)

	for i := range code {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("sec: failed to generate numeric code: %w", err)
		}
		code[i] = byte('0' + n.Int64())
	}

	return string(code), nil
}
