package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/brokernuam/calificaciones/internal/calificacion"
)

// ErrEmptyCSV is returned when the upload has no header row.
var ErrEmptyCSV = errors.New("el archivo CSV está vacío")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var delimiters = []rune{',', ';', '\t', '|'}

// maxHeaderDistance bounds how far a header may be from a known column name.
const maxHeaderDistance = 2

// Table is a parsed upload. Columns holds the canonical column name for each header
// entry, or "" when the header could not be matched.
type Table struct {
	Header  []string
	Columns []string
	Rows    [][]string
	// Lines holds the 1-based source line of each row.
	Lines []int
}

// Has reports whether a canonical column is present.
func (t Table) Has(column string) bool {
	return t.index(column) >= 0
}

// Value returns the trimmed value of column in row, or "".
func (t Table) Value(row []string, column string) string {
	i := t.index(column)
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t Table) index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// ParseCSV reads an upload: UTF-8 BOM stripped, delimiter sniffed from the header line,
// headers matched to known column names, blank rows skipped.
func ParseCSV(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return Table{}, ErrEmptyCSV
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var t Table
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("parse csv: %w", err)
		}
		if t.Header == nil {
			if blank(rec) {
				continue
			}
			t.Header = make([]string, len(rec))
			t.Columns = make([]string, len(rec))
			for i, h := range rec {
				t.Header[i] = strings.TrimSpace(h)
				t.Columns[i] = CanonicalColumn(h)
			}
			continue
		}
		if blank(rec) {
			continue
		}
		line, _ := cr.FieldPos(0)
		t.Rows = append(t.Rows, rec)
		t.Lines = append(t.Lines, line)
	}
	if t.Header == nil {
		return Table{}, ErrEmptyCSV
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// sniffDelimiter picks the candidate that occurs most often outside quotes on the first
// non-empty line. Comma wins ties and empty input.
func sniffDelimiter(data []byte) rune {
	var line []byte
	for _, l := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(l)) > 0 {
			line = l
			break
		}
	}
	counts := make(map[rune]int, len(delimiters))
	quoted := false
	for _, c := range string(line) {
		if c == '"' {
			quoted = !quoted
			continue
		}
		if !quoted {
			counts[c]++
		}
	}
	best := ','
	for _, d := range delimiters {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

var (
	numbered    = regexp.MustCompile(`^([a-z_]*?)_?(\d+)$`)
	headerSpace = regexp.MustCompile(`[\s\-.]+`)
)

// numberedStems maps the stems of numbered columns to their canonical prefix.
var numberedStems = map[string]string{
	"factor": "factor",
	"monto":  "monto",
	"amount": "monto",
}

var plainColumns = func() []string {
	var out []string
	for _, f := range calificacion.Fields {
		if f.Kind != calificacion.KindDecimal && !f.ReadOnly {
			out = append(out, f.Name)
		}
	}
	return out
}()

// NormalizeHeader lowercases h and folds whitespace, dashes and dots into underscores.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n").Replace(h)
	h = headerSpace.ReplaceAllString(h, "_")
	return strings.Trim(h, "_")
}

// CanonicalColumn maps a CSV header to a known column name, tolerating small typos.
// Numbered columns (factor_N, monto_N, amountN) are matched on their stem so that
// factor_3 never matches factor_13. Unknown headers return "".
func CanonicalColumn(h string) string {
	n := NormalizeHeader(h)
	if n == "" {
		return ""
	}
	if m := numbered.FindStringSubmatch(n); m != nil {
		num, err := strconv.Atoi(m[2])
		if err != nil || num < 1 || num > calificacion.FactorCount {
			return ""
		}
		stem := closest(strings.TrimSuffix(m[1], "_"), keys(numberedStems))
		if stem == "" {
			return ""
		}
		return fmt.Sprintf("%s_%d", numberedStems[stem], num)
	}
	return closest(n, plainColumns)
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// closest returns the candidate within maxHeaderDistance of s, preferring an exact
// match. Ties between different candidates are treated as no match.
func closest(s string, candidates []string) string {
	best, bestDist, tie := "", maxHeaderDistance+1, false
	for _, c := range candidates {
		if c == s {
			return c
		}
		d := levenshtein.ComputeDistance(s, c)
		switch {
		case d < bestDist:
			best, bestDist, tie = c, d, false
		case d == bestDist:
			tie = true
		}
	}
	if tie || best == "" {
		return ""
	}
	return best
}

// MontoColumn is the canonical name of amount column n.
func MontoColumn(n int) string {
	return fmt.Sprintf("monto_%d", n)
}
