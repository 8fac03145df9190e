package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrProductIDFormat is returned when a raw product ID string does not
// match the "YYYYMMDD_machine_mold_lot" shape.
var ErrProductIDFormat = errors.New("product id format invalid")

// productIDPattern is compiled once from the same kind of named-capture
// template the dataset-aliasing resolver uses ({variable} -> capture
// group), specialized here to the fixed four-field product ID shape
// instead of a tenant-configurable pattern list.
var productIDPattern = compileNamedPattern(`{date}_{machine}_{mold}_{lot}`)

// ProductID is the parsed form of a P3 item's derived identifier:
// "YYYYMMDD_machine_mold_lot" (machine/mold compound codes may themselves
// contain '-', e.g. "238-2").
type ProductID struct {
	Date    string
	Machine string
	Mold    string
	Lot     string
}

// BuildProductID renders the canonical "YYYYMMDD_machine_mold_lot" form.
func BuildProductID(date, machine, mold, lot string) string {
	return strings.Join([]string{date, machine, mold, lot}, "_")
}

// ParseProductID splits raw into its four named fields. Fields containing
// '-' (compound machine/mold codes) are preserved intact within their
// field position since splitting is driven by '_' delimiters only.
func ParseProductID(raw string) (ProductID, error) {
	captures, ok := productIDPattern.match(raw)
	if !ok {
		return ProductID{}, fmt.Errorf("%w: %q", ErrProductIDFormat, raw)
	}

	return ProductID{
		Date:    captures["date"],
		Machine: captures["machine"],
		Mold:    captures["mold"],
		Lot:     captures["lot"],
	}, nil
}

// namedPattern is a compiled "{var}"-templated literal string turned into
// an anchored regex with one named capture group per variable. This is
// the same compile-once-match-many shape as a dataset-aliasing pattern,
// reused here for the fixed product-ID field layout.
type namedPattern struct {
	regex *regexp.Regexp
}

var templateVar = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

func compileNamedPattern(template string) namedPattern {
	escaped := regexp.QuoteMeta(template)

	for _, m := range templateVar.FindAllStringSubmatch(template, -1) {
		name := m[1]
		escapedVar := regexp.QuoteMeta(m[0])
		escaped = strings.Replace(escaped, escapedVar, "(?P<"+name+">[^_]+)", 1)
	}

	return namedPattern{regex: regexp.MustCompile("^" + escaped + "$")}
}

func (p namedPattern) match(s string) (map[string]string, bool) {
	m := p.regex.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}

	captures := make(map[string]string, len(m)-1)

	for i, name := range p.regex.SubexpNames() {
		if i > 0 && name != "" && i < len(m) {
			captures[name] = m[i]
		}
	}

	return captures, true
}
