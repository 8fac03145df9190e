package tenant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Authentication error types, mirrored from the teacher's
// middleware.AuthError family (one sentinel per failure mode, generic
// message for anything key-enumeration-adjacent).
var (
	ErrMissingAPIKey = errors.New("missing API key")
	ErrInvalidAPIKey = errors.New("invalid API key")
	ErrAPIKeyExpired = errors.New("API key expired")
	ErrAPIKeyRevoked = errors.New("API key revoked")
	ErrTierMismatch  = errors.New("API key tier not permitted for this operation")
	ErrInvalidLogin  = errors.New("invalid email or password")
	ErrBcryptCost    = errors.New("failed to hash password")
)

const (
	loginBcryptCost = bcrypt.DefaultCost
	keyHeaderName   = "X-API-Key"
	adminHeaderName = "X-Admin-API-Key"
	bearerPrefix    = "Bearer "
)

// AuthError wraps a sentinel with request-specific context, same shape as
// the teacher's middleware.AuthError.
type AuthError struct {
	Type    error
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authentication failed: %s: %s", e.Type.Error(), e.Message)
	}

	return "authentication failed: " + e.Type.Error()
}

func (e *AuthError) Unwrap() error { return e.Type }

// ExtractAPIKey pulls a key from X-API-Key/X-Admin-API-Key first,
// falling back to Authorization: Bearer, rejecting header-injection
// attempts (embedded CR/LF).
func ExtractAPIKey(r *http.Request) (string, bool) {
	for _, header := range []string{keyHeaderName, adminHeaderName} {
		if v := r.Header.Get(header); v != "" {
			return cleanKey(v)
		}
	}

	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
		return cleanKey(strings.TrimPrefix(auth, bearerPrefix))
	}

	return "", false
}

func cleanKey(key string) (string, bool) {
	if strings.ContainsAny(key, "\r\n") {
		return "", false
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return "", false
	}

	return key, true
}

// performDummyBcryptComparison keeps the not-found and wrong-password
// paths constant-time with the found path (timing-attack defense).
func performDummyBcryptComparison() {
	_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$dummydummydummydummyudummydummydummydummydummydumm"), []byte("dummy"))
}

// lookupHash computes the SHA-256 used for O(1) API key lookup; callers in
// internal/storage store this as key_lookup_hash.
func lookupHash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))

	return hex.EncodeToString(sum[:])
}

// LookupHash exposes lookupHash for the storage layer to compute the same
// hash at key-creation time.
func LookupHash(plaintext string) string { return lookupHash(plaintext) }

// Authenticate resolves a plaintext API key to its owning APIKey record,
// requiring tier to match if non-empty (empty tier accepts either).
func Authenticate(ctx context.Context, store Store, plaintextKey string, requireTier Tier) (*APIKey, error) {
	found, err := store.FindAPIKeyByLookupHash(ctx, lookupHash(plaintextKey))
	if err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}

	if found == nil {
		performDummyBcryptComparison()

		return nil, &AuthError{Type: ErrInvalidAPIKey}
	}

	if bcrypt.CompareHashAndPassword([]byte(found.Key), []byte(plaintextKey)) != nil {
		return nil, &AuthError{Type: ErrInvalidAPIKey}
	}

	if found.RevokedAt != nil {
		return nil, &AuthError{Type: ErrAPIKeyRevoked}
	}

	if found.ExpiresAt != nil && time.Now().After(*found.ExpiresAt) {
		return nil, &AuthError{Type: ErrAPIKeyExpired}
	}

	if requireTier != "" && found.Tier != requireTier {
		return nil, &AuthError{Type: ErrTierMismatch}
	}

	_ = store.TouchAPIKeyLastUsed(ctx, found.ID)

	return found, nil
}

// HashPassword bcrypt-hashes a tenant user's plaintext password for
// POST /auth/login (spec §4.I), at bcrypt's default cost.
func HashPassword(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), loginBcryptCost)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBcryptCost, err)
	}

	return string(hashed), nil
}

// Login verifies a tenant user's email/password against the store.
func Login(ctx context.Context, store Store, tenantID, email, password string) (*User, error) {
	user, err := store.GetUserByEmail(ctx, tenantID, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if user == nil {
		performDummyBcryptComparison()

		return nil, ErrInvalidLogin
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidLogin
	}

	return user, nil
}
