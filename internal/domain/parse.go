package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// missingTokens are the spellings treated as an absent value, compared
// case-insensitively after trimming whitespace. "nan" is what pandas writes
// for NaN in object columns.
var missingTokens = []string{"", "nan"}

// IsMissing reports whether a raw cell denotes an absent value.
func IsMissing(s string) bool {
	s = strings.TrimSpace(s)
	for _, tok := range missingTokens {
		if strings.EqualFold(s, tok) {
			return true
		}
	}
	return false
}

// timestampLayouts are tried in order by ParseTimestamp.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// ParseTimestamp parses an index value and returns it in UTC. Values without a
// zone are taken as UTC; values with an offset are converted.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unrecognized layout", s)
}

// InferKind decides the kind of a column from its name and raw cells. Columns
// whose name contains "_path" are always text. Otherwise a column is numeric
// when every present cell parses as a float, including a column with no
// present cells at all.
func InferKind(name string, cells []string) ColumnKind {
	if strings.Contains(name, "_path") {
		return Text
	}
	for _, cell := range cells {
		if IsMissing(cell) {
			continue
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err != nil {
			return Text
		}
	}
	return Numeric
}

// ColumnFromCells converts raw cells into a column of the inferred kind.
// Missing cells become NaN or "".
func ColumnFromCells(name string, cells []string) Column {
	if InferKind(name, cells) == Text {
		values := make([]string, len(cells))
		for i, cell := range cells {
			if !IsMissing(cell) {
				values[i] = cell
			}
		}
		return NewTextColumn(name, values)
	}
	values := make([]float64, len(cells))
	for i, cell := range cells {
		if IsMissing(cell) {
			values[i] = math.NaN()
			continue
		}
		// InferKind already verified the cell parses.
		values[i], _ = strconv.ParseFloat(strings.TrimSpace(cell), 64)
	}
	return NewNumericColumn(name, values)
}

// FormatCell renders cell i of a column for textual output. Missing cells
// render as "".
func FormatCell(col Column, i int) string {
	if col.Kind == Text {
		return col.Strings[i]
	}
	v := col.Floats[i]
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
