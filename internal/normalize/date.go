package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrDateFormat is returned when a raw date string matches none of the
// recognized patterns.
var ErrDateFormat = errors.New("date format invalid")

// rocEpochOffset is the number of years the Republic of China (Minguo)
// calendar trails the Gregorian calendar: ROC year 1 == 1912 CE.
const rocEpochOffset = 1911

var (
	gregorianDash  = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})$`)
	yymmdd6        = regexp.MustCompile(`^(\d{2})(\d{2})(\d{2})$`)
	rocSlash       = regexp.MustCompile(`^(\d{3})/(\d{1,2})/(\d{1,2})$`)
	rocPacked7     = regexp.MustCompile(`^(\d{3})(\d{2})(\d{2})$`)
	rocChinese     = regexp.MustCompile(`^(\d{3})年(\d{1,2})月(\d{1,2})日$`)
)

// NormalizeDate parses raw against the ordered list of recognized date
// patterns (first match wins) and returns the canonical Gregorian date.
//
//	YYYY-MM-DD / YYYY/MM/DD  -> Gregorian
//	YYMMDD (6 digits)        -> 20YY
//	YYY/MM/DD (ROC, 3-digit year) -> year+1911
//	YYYMMDD packed 7 digits (ROC) -> year+1911
//	YYY年MM月DD日 (ROC Chinese)     -> year+1911
func NormalizeDate(raw string) (time.Time, error) {
	if m := gregorianDash.FindStringSubmatch(raw); m != nil {
		return buildDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), raw)
	}

	if m := rocSlash.FindStringSubmatch(raw); m != nil {
		return buildDate(atoi(m[1])+rocEpochOffset, atoi(m[2]), atoi(m[3]), raw)
	}

	if m := rocChinese.FindStringSubmatch(raw); m != nil {
		return buildDate(atoi(m[1])+rocEpochOffset, atoi(m[2]), atoi(m[3]), raw)
	}

	// Packed 7-digit forms are ambiguous between ROC-packed and plain
	// YYMMDD only by length: YYMMDD is exactly 6 digits, ROC-packed is
	// exactly 7, so length alone disambiguates.
	if m := rocPacked7.FindStringSubmatch(raw); m != nil {
		return buildDate(atoi(m[1])+rocEpochOffset, atoi(m[2]), atoi(m[3]), raw)
	}

	if m := yymmdd6.FindStringSubmatch(raw); m != nil {
		return buildDate(2000+atoi(m[1]), atoi(m[2]), atoi(m[3]), raw)
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrDateFormat, raw)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)

	return n
}

func buildDate(year, month, day int, raw string) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrDateFormat, raw)
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)

	// time.Date normalizes overflowing day/month (e.g. Feb 30) instead of
	// erroring; reject those instead of silently rolling the date forward.
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, fmt.Errorf("%w: %q", ErrDateFormat, raw)
	}

	return d, nil
}
