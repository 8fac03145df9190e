package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV_HappyPath(t *testing.T) {
	t.Parallel()

	csvData := "lot_no,winder_number,appearance\n2507173-02,1,OK\n\n2507173-02,2,NG\n"

	pf, err := Parse(strings.NewReader(csvData), FormatCSV, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, []string{"lot_no", "winder_number", "appearance"}, pf.Headers)
	require.Len(t, pf.Rows, 2)
	assert.Equal(t, 1, pf.Rows[0].RowIndex)
	assert.Equal(t, 2, pf.Rows[1].RowIndex) // blank line skipped, row_index does not count it
	assert.Equal(t, "2507173-02", pf.Rows[0].Cells["lot_no"])
	assert.NotEmpty(t, pf.SHA256)
}

func TestParseCSV_BOMTolerant(t *testing.T) {
	t.Parallel()

	csvData := "\xef\xbb\xbflot_no,winder_number\n2507173-02,1\n"

	pf, err := Parse(strings.NewReader(csvData), FormatCSV, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "lot_no", pf.Headers[0])
}

func TestParseCSV_EmptyFile(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader(""), FormatCSV, 1<<20)
	require.ErrorIs(t, err, ErrEmptyFile)
}

func TestParseCSV_TooLarge(t *testing.T) {
	t.Parallel()

	csvData := "lot_no\n" + strings.Repeat("123456789,\n", 1000)

	_, err := Parse(strings.NewReader(csvData), FormatCSV, 10)
	require.ErrorIs(t, err, ErrFileTooLarge)
}

func TestParse_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("x"), Format("xls"), 1<<20)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseCSV_HeaderCanonicalization(t *testing.T) {
	t.Parallel()

	csvData := " lot  no , winder   number \n2507173-02,1\n"

	pf, err := Parse(strings.NewReader(csvData), FormatCSV, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, []string{"lot no", "winder number"}, pf.Headers)
}
