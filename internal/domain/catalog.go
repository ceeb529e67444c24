package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultIndexName is the name of the catalog's timestamp index.
const DefaultIndexName = "iso-datetime"

// DefaultPathColumn is the column referencing the NetCDF imagery of a row.
const DefaultPathColumn = "ncdf_path"

var (
	// ErrUnknownColumn is returned when an operation references a column the
	// catalog does not have.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrRaggedCatalog is returned when a column's length differs from the index.
	ErrRaggedCatalog = errors.New("column length does not match index")
)

// ColumnKind distinguishes numeric columns from textual ones.
type ColumnKind int

const (
	Numeric ColumnKind = iota
	Text
)

func (k ColumnKind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Text:
		return "text"
	default:
		return fmt.Sprintf("ColumnKind(%d)", int(k))
	}
}

// Column is one named catalog column. Numeric columns store values in Floats
// with NaN marking a missing cell; text columns store values in Strings with ""
// marking a missing cell.
type Column struct {
	Name    string
	Kind    ColumnKind
	Floats  []float64
	Strings []string
}

// NewNumericColumn builds a numeric column.
func NewNumericColumn(name string, values []float64) Column {
	return Column{Name: name, Kind: Numeric, Floats: values}
}

// NewTextColumn builds a text column.
func NewTextColumn(name string, values []string) Column {
	return Column{Name: name, Kind: Text, Strings: values}
}

// Len returns the number of cells in the column.
func (c Column) Len() int {
	if c.Kind == Text {
		return len(c.Strings)
	}
	return len(c.Floats)
}

// Missing reports whether cell i holds no value.
func (c Column) Missing(i int) bool {
	if c.Kind == Text {
		return IsMissing(c.Strings[i])
	}
	return math.IsNaN(c.Floats[i])
}

func (c Column) take(rows []int) Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Text {
		out.Strings = make([]string, len(rows))
		for i, r := range rows {
			out.Strings[i] = c.Strings[r]
		}
		return out
	}
	out.Floats = make([]float64, len(rows))
	for i, r := range rows {
		out.Floats[i] = c.Floats[r]
	}
	return out
}

// Catalog is a time-indexed table of imagery references and station
// measurements. Row i of every column belongs to Index[i].
type Catalog struct {
	IndexName string
	Index     []time.Time
	Columns   []Column
}

// NewCatalog builds a catalog and checks that every column matches the index.
func NewCatalog(indexName string, index []time.Time, columns ...Column) (*Catalog, error) {
	if indexName == "" {
		indexName = DefaultIndexName
	}
	c := &Catalog{IndexName: indexName, Index: index, Columns: columns}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Len returns the number of rows.
func (c *Catalog) Len() int {
	return len(c.Index)
}

// Validate checks that every column has one cell per index entry and that
// column names are unique.
func (c *Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c.Columns))
	for _, col := range c.Columns {
		if col.Len() != len(c.Index) {
			return fmt.Errorf("%w: %s has %d cells, index has %d", ErrRaggedCatalog, col.Name, col.Len(), len(c.Index))
		}
		if _, dup := seen[col.Name]; dup {
			return fmt.Errorf("duplicate column %q", col.Name)
		}
		seen[col.Name] = struct{}{}
	}
	return nil
}

// ColumnNames returns the column names in catalog order, excluding the index.
func (c *Catalog) ColumnNames() []string {
	names := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		names[i] = col.Name
	}
	return names
}

// Column returns the named column.
func (c *Catalog) Column(name string) (*Column, bool) {
	for i := range c.Columns {
		if c.Columns[i].Name == name {
			return &c.Columns[i], true
		}
	}
	return nil, false
}

// Take returns a new catalog holding the given rows in the given order.
func (c *Catalog) Take(rows []int) *Catalog {
	out := &Catalog{
		IndexName: c.IndexName,
		Index:     make([]time.Time, len(rows)),
		Columns:   make([]Column, len(c.Columns)),
	}
	for i, r := range rows {
		out.Index[i] = c.Index[r]
	}
	for i, col := range c.Columns {
		out.Columns[i] = col.take(rows)
	}
	return out
}

// Clone returns a deep copy of the catalog.
func (c *Catalog) Clone() *Catalog {
	rows := make([]int, c.Len())
	for i := range rows {
		rows[i] = i
	}
	return c.Take(rows)
}

// Days returns the number of distinct UTC calendar dates in the index.
func (c *Catalog) Days() int {
	days := make(map[civilDate]struct{})
	for _, ts := range c.Index {
		days[dateOf(ts)] = struct{}{}
	}
	return len(days)
}

// Record is a single catalog row detached from its table, used by sinks that
// ship rows individually.
type Record struct {
	Timestamp time.Time           `json:"timestamp"`
	Position  int                 `json:"position"`
	Fields    map[string]string   `json:"fields,omitempty"`
	Values    map[string]*float64 `json:"values,omitempty"`
}

// Day returns the record's UTC calendar date as YYYY-MM-DD.
func (r Record) Day() string {
	return r.Timestamp.UTC().Format(time.DateOnly)
}

// Row extracts row i as a Record. Missing text cells are omitted from Fields;
// missing numeric cells map to nil in Values.
func (c *Catalog) Row(i int) Record {
	rec := Record{
		Timestamp: c.Index[i],
		Position:  i,
		Fields:    make(map[string]string),
		Values:    make(map[string]*float64),
	}
	for _, col := range c.Columns {
		if col.Kind == Text {
			if !IsMissing(col.Strings[i]) {
				rec.Fields[col.Name] = col.Strings[i]
			}
			continue
		}
		if math.IsNaN(col.Floats[i]) {
			rec.Values[col.Name] = nil
			continue
		}
		v := col.Floats[i]
		rec.Values[col.Name] = &v
	}
	return rec
}
