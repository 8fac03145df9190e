package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAPIKey(t *testing.T) {
	t.Parallel()

	key, err := GenerateAPIKey("tenant-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, keyPrefix))

	other, err := GenerateAPIKey("tenant-1")
	require.NoError(t, err)
	assert.NotEqual(t, key, other, "each generated key must be unique")
}

func TestGenerateAPIKey_EmptyTenant(t *testing.T) {
	t.Parallel()

	_, err := GenerateAPIKey("")
	assert.ErrorIs(t, err, ErrTenantIDEmpty)
}

func TestComputeKeyLookupHash_Deterministic(t *testing.T) {
	t.Parallel()

	key := "linelot_ak_abc123"
	assert.Equal(t, ComputeKeyLookupHash(key), ComputeKeyLookupHash(key))
	assert.NotEqual(t, ComputeKeyLookupHash(key), ComputeKeyLookupHash("linelot_ak_abc124"))
}

func TestHashAndCompareAPIKey(t *testing.T) {
	t.Parallel()

	key, err := GenerateAPIKey("tenant-1")
	require.NoError(t, err)

	hashed, err := HashAPIKey(key)
	require.NoError(t, err)

	assert.True(t, CompareAPIKeyHash(hashed, key))
	assert.False(t, CompareAPIKeyHash(hashed, "wrong-key"))
}

func TestSecureCompare(t *testing.T) {
	t.Parallel()

	assert.True(t, SecureCompare("abc", "abc"))
	assert.False(t, SecureCompare("abc", "abd"))
	assert.False(t, SecureCompare("abc", "abcd"), "different lengths never match")
}

func TestMaskKey(t *testing.T) {
	t.Parallel()

	key, err := GenerateAPIKey("tenant-1")
	require.NoError(t, err)

	masked := MaskKey(key)
	assert.NotEqual(t, key, masked)
	assert.True(t, strings.HasPrefix(masked, key[:prefixShowLen]))
	assert.True(t, strings.HasSuffix(masked, key[len(key)-suffixShowLen:]))
	assert.Contains(t, masked, "*")
}

func TestMaskKey_ShortKeyFullyMasked(t *testing.T) {
	t.Parallel()

	short := "short"
	assert.Equal(t, strings.Repeat("*", len(short)), MaskKey(short))
}

func TestMaskKey_Empty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", MaskKey(""))
}
