package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndParseProductID(t *testing.T) {
	t.Parallel()

	raw := BuildProductID("20250902", "P24", "238-2", "301")
	assert.Equal(t, "20250902_P24_238-2_301", raw)

	parsed, err := ParseProductID(raw)
	require.NoError(t, err)
	assert.Equal(t, ProductID{Date: "20250902", Machine: "P24", Mold: "238-2", Lot: "301"}, parsed)
}

func TestParseProductID_Invalid(t *testing.T) {
	t.Parallel()

	_, err := ParseProductID("not-a-product-id")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProductIDFormat)
}
