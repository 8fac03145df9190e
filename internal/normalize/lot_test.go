package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLotNo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		wantNorm  int64
		wantCanon string
		wantErr   bool
	}{
		{name: "plain 9 digit", raw: "250717302", wantNorm: 250717302, wantCanon: "2507173_02"},
		{name: "with underscore separator", raw: "2507173_02", wantNorm: 250717302, wantCanon: "2507173_02"},
		{name: "with dash separator", raw: "2507173-02", wantNorm: 250717302, wantCanon: "2507173_02"},
		{name: "short lot left padded", raw: "102", wantNorm: 102, wantCanon: "0000102_02"},
		{name: "non digit rejected", raw: "25A7173_02", wantErr: true},
		{name: "too long rejected", raw: "1234567890123456789", wantErr: true},
		{name: "empty rejected", raw: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeLotNo(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrLotFormat)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantNorm, got.Norm)
			assert.Equal(t, tc.wantCanon, got.Canonical)
		})
	}
}

func TestNormalizeLotNo_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"2507173_02", "2507173-02", "250717302"}

	for _, raw := range inputs {
		first, err := NormalizeLotNo(raw)
		require.NoError(t, err)

		second, err := NormalizeLotNo(first.Canonical)
		require.NoError(t, err)

		assert.Equal(t, first.Canonical, second.Canonical)
	}
}

func TestNormalizeP3LotNo_StripsWinderSuffix(t *testing.T) {
	t.Parallel()

	got, err := NormalizeP3LotNo("2507173_02_05")
	require.NoError(t, err)
	assert.Equal(t, "2507173_02", got.Canonical)
}

func TestExtractSourceWinder(t *testing.T) {
	t.Parallel()

	winder, ok := ExtractSourceWinder("2507173_02_05")
	require.True(t, ok)
	assert.Equal(t, 5, winder)

	_, ok = ExtractSourceWinder("250717302")
	assert.False(t, ok)

	_, ok = ExtractSourceWinder("2507173_abc")
	assert.False(t, ok)
}
