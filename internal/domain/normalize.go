package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"

	"gonum.org/v1/gonum/stat"
)

var (
	// observedGHIRe selects measured irradiance: a three-character station
	// code followed by "_GHI", e.g. "BND_GHI" but not "BND_CLEARSKY_GHI".
	observedGHIRe = regexp.MustCompile(`^..._GHI`)

	// ghiRe selects every irradiance column, measured or derived.
	ghiRe = regexp.MustCompile(`_GHI`)
)

var (
	// ErrDegenerateGHI is returned when the observed GHI values cannot yield a
	// usable standard deviation: no observed columns, fewer than two values,
	// or zero spread.
	ErrDegenerateGHI = errors.New("observed GHI has no usable spread")

	// ErrTextGHIColumn is returned when a GHI column holds text.
	ErrTextGHIColumn = errors.New("GHI column is not numeric")
)

// Normalization holds the constants used to standardize GHI columns.
type Normalization struct {
	Mean     float64  `json:"mean"`
	Std      float64  `json:"std"`
	Samples  int      `json:"samples"`
	Observed []string `json:"observed"`
	Columns  []string `json:"columns"`
}

// Apply standardizes a raw GHI value.
func (n Normalization) Apply(v float64) float64 {
	return (v - n.Mean) / n.Std
}

// ObservedGHIColumns returns the names of the measured irradiance columns.
func ObservedGHIColumns(c *Catalog) []string {
	return matchColumns(c, observedGHIRe)
}

// GHIColumns returns the names of every irradiance column.
func GHIColumns(c *Catalog) []string {
	return matchColumns(c, ghiRe)
}

func matchColumns(c *Catalog, re *regexp.Regexp) []string {
	var names []string
	for _, col := range c.Columns {
		if re.MatchString(col.Name) {
			names = append(names, col.Name)
		}
	}
	return names
}

// GHIStats computes the mean and sample standard deviation of every present
// value in the observed GHI columns. Other GHI columns do not contribute.
func GHIStats(c *Catalog) (Normalization, error) {
	n := Normalization{
		Observed: ObservedGHIColumns(c),
		Columns:  GHIColumns(c),
	}
	for _, name := range n.Columns {
		col, _ := c.Column(name)
		if col.Kind != Numeric {
			return Normalization{}, fmt.Errorf("%w: %s", ErrTextGHIColumn, name)
		}
	}

	var values []float64
	for _, name := range n.Observed {
		col, _ := c.Column(name)
		for _, v := range col.Floats {
			if !math.IsNaN(v) {
				values = append(values, v)
			}
		}
	}
	n.Samples = len(values)
	if n.Samples < 2 {
		return Normalization{}, fmt.Errorf("%w: %d observed values in %d columns", ErrDegenerateGHI, n.Samples, len(n.Observed))
	}

	n.Mean, n.Std = stat.MeanStdDev(values, nil)
	if n.Std == 0 || math.IsNaN(n.Std) || math.IsInf(n.Std, 0) {
		return Normalization{}, fmt.Errorf("%w: std=%g", ErrDegenerateGHI, n.Std)
	}
	return n, nil
}

// NormalizeGHI standardizes every GHI column of c in place using statistics
// from the observed GHI columns only. Missing cells stay missing. Calling it
// twice normalizes twice; the returned constants are the only record of the
// transform. On error c is not modified.
func NormalizeGHI(c *Catalog) (Normalization, error) {
	n, err := GHIStats(c)
	if err != nil {
		return Normalization{}, fmt.Errorf("normalize GHI: %w", err)
	}
	for _, name := range n.Columns {
		col, _ := c.Column(name)
		for i, v := range col.Floats {
			if !math.IsNaN(v) {
				col.Floats[i] = n.Apply(v)
			}
		}
	}
	return n, nil
}
