// Package parser turns uploaded CSV/XLSX files into staging rows: no
// coercion happens here (that is internal/tracing.Validator's job), only
// header extraction and raw-cell-string capture keyed by canonical header.
package parser

import (
	"bufio"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/qax-os/excelize/v2"
)

// Format is the accepted source file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var (
	// ErrUnsupportedFormat covers .xls and anything else not CSV/XLSX.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrFileTooLarge is returned when a file exceeds the configured max size.
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")
	// ErrEmptyFile is returned when a file has no header row.
	ErrEmptyFile = errors.New("file has no header row")
)

// ParsedFile is the outcome of parsing one uploaded file: its SHA-256 (for
// dedupe/audit), canonical header row, and the staging rows extracted from
// non-blank data rows (1-based row_index following the non-blank sequence).
type ParsedFile struct {
	SHA256  string
	Headers []string
	Rows    []Row
}

// Row is one staging row's raw cell capture: canonical_header -> raw cell
// string, plus the 1-based row_index relative to the non-blank sequence.
type Row struct {
	RowIndex int
	Cells    map[string]string
}

// Parse reads r (of the given format, with maxBytes enforced) and returns
// the parsed file. BOM is tolerated for CSV. Blank lines are skipped
// without consuming a row_index.
func Parse(r io.Reader, format Format, maxBytes int64) (*ParsedFile, error) {
	limited := &countingReader{r: r, limit: maxBytes}

	switch format {
	case FormatCSV:
		return parseCSV(limited)
	case FormatXLSX:
		return parseXLSX(limited)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// countingReader enforces maxBytes and lets the caller retrieve the
// number of bytes actually consumed without buffering more than necessary.
type countingReader struct {
	r     io.Reader
	limit int64
	read  int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)

	if c.read > c.limit {
		return n, ErrFileTooLarge
	}

	return n, err
}

func parseCSV(r io.Reader) (*ParsedFile, error) {
	h := sha256.New()
	tee := io.TeeReader(r, h)

	br := bufio.NewReader(tee)
	stripBOM(br)

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = false

	headerFields, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}

		return nil, fmt.Errorf("read csv header: %w", err)
	}

	headers := canonicalizeHeaders(headerFields)

	var rows []Row

	rowIndex := 0

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		if isBlankRecord(record) {
			continue
		}

		rowIndex++
		rows = append(rows, Row{RowIndex: rowIndex, Cells: zipCells(headers, record)})
	}

	// Drain any trailing bytes so the hash covers the whole file even if
	// the CSV reader stopped before EOF (e.g. trailing blank lines).
	_, _ = io.Copy(io.Discard, tee)

	return &ParsedFile{SHA256: hex.EncodeToString(h.Sum(nil)), Headers: headers, Rows: rows}, nil
}

// stripBOM discards a UTF-8 byte-order-mark if present at the start of br.
func stripBOM(br *bufio.Reader) {
	bom, err := br.Peek(3)
	if err == nil && string(bom) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}

func canonicalizeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	for i, h := range raw {
		out[i] = strings.Join(strings.Fields(strings.TrimSpace(h)), " ")
	}

	return out
}

func zipCells(headers, record []string) map[string]string {
	cells := make(map[string]string, len(headers))

	for i, h := range headers {
		if i < len(record) {
			cells[h] = record[i]
		} else {
			cells[h] = ""
		}
	}

	return cells
}

// parseXLSX buffers the file (the zip-based XLSX format is not
// streamable row-by-row the way CSV is) while still computing the SHA-256
// over the exact bytes read, then parses the first worksheet with
// excelize's row iterator.
func parseXLSX(r io.Reader) (*ParsedFile, error) {
	h := sha256.New()
	tee := io.TeeReader(r, h)

	f, err := excelize.OpenReader(tee)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrEmptyFile
	}

	return extractXLSXSheet(f, sheet, h)
}

func extractXLSXSheet(f *excelize.File, sheet string, h hash.Hash) (*ParsedFile, error) {
	rowsIter, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("iterate xlsx rows: %w", err)
	}
	defer func() { _ = rowsIter.Close() }()

	if !rowsIter.Next() {
		return nil, ErrEmptyFile
	}

	headerFields, err := rowsIter.Columns()
	if err != nil {
		return nil, fmt.Errorf("read xlsx header: %w", err)
	}

	headers := canonicalizeHeaders(headerFields)

	var rows []Row

	rowIndex := 0

	for rowsIter.Next() {
		record, err := rowsIter.Columns()
		if err != nil {
			return nil, fmt.Errorf("read xlsx row: %w", err)
		}

		if isBlankRecord(record) {
			continue
		}

		rowIndex++
		rows = append(rows, Row{RowIndex: rowIndex, Cells: zipCells(headers, record)})
	}

	return &ParsedFile{SHA256: hex.EncodeToString(h.Sum(nil)), Headers: headers, Rows: rows}, nil
}
