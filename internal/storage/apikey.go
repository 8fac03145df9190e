package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	randomBytesSize = 32
	apiKeyLength    = 75 // "linelot_ak_" (11) + 64 hex chars from randomBytesSize bytes
	keyPrefix       = "linelot_ak_"
	prefixShowLen   = 18
	suffixShowLen   = 4
	bcryptCost      = 10
)

// ErrTenantIDEmpty is returned when generating a key for an empty tenant ID.
var ErrTenantIDEmpty = errors.New("tenant ID cannot be empty")

// GenerateAPIKey creates a new high-entropy tenant or admin API key in the
// form "linelot_ak_<64 hex chars>".
func GenerateAPIKey(tenantID string) (string, error) {
	if tenantID == "" {
		return "", ErrTenantIDEmpty
	}

	randomBytes := make([]byte, randomBytesSize)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return keyPrefix + hex.EncodeToString(randomBytes), nil
}

// ComputeKeyLookupHash computes the SHA256 hash of an API key for O(1)
// lookup by key_lookup_hash. Separate from the bcrypt hash used for
// security validation (see HashAPIKey/CompareAPIKeyHash).
func ComputeKeyLookupHash(key string) string {
	sum := sha256.Sum256([]byte(key))

	return hex.EncodeToString(sum[:])
}

// HashAPIKey bcrypt-hashes a plaintext API key for storage.
func HashAPIKey(key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}

	return string(hashed), nil
}

// CompareAPIKeyHash reports whether key matches the bcrypt hash.
func CompareAPIKeyHash(hash, key string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// SecureCompare performs a constant-time comparison of two strings,
// independent of the bcrypt comparison above. Strings of different
// lengths never match.
func SecureCompare(a, b string) bool {
	if len(a) != len(b) {
		dummy := make([]byte, len(a))
		subtle.ConstantTimeCompare([]byte(a), dummy)

		return false
	}

	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MaskKey masks an API key for logging/audit display, showing only the
// prefix and the last few characters.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}

	if len(key) <= prefixShowLen+suffixShowLen {
		return strings.Repeat("*", len(key))
	}

	masked := len(key) - prefixShowLen - suffixShowLen

	return key[:prefixShowLen] + strings.Repeat("*", masked) + key[len(key)-suffixShowLen:]
}
