package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{name: "gregorian dash", raw: "2024-11-01", want: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)},
		{name: "gregorian slash", raw: "2024/11/01", want: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)},
		{name: "yymmdd", raw: "241101", want: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)},
		{name: "roc slash", raw: "114/09/02", want: time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)},
		{name: "roc packed", raw: "1140902", want: time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)},
		{name: "roc chinese", raw: "114年09月02日", want: time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeDate(tc.raw)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %v want %v", got, tc.want)
		})
	}
}

func TestNormalizeDate_Invalid(t *testing.T) {
	t.Parallel()

	_, err := NormalizeDate("not-a-date")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDateFormat)
}

func TestNormalizeDate_ROCAlwaysPost1912(t *testing.T) {
	t.Parallel()

	got, err := NormalizeDate("001/01/01")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.Year(), 1912)
}
