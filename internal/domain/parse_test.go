package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMissing(t *testing.T) {
	tests := []struct {
		in       string
		expected bool
	}{
		{"", true},
		{"   ", true},
		{"nan", true},
		{"NaN", true},
		{" NAN ", true},
		{"/data/2015.01.01.0800.h5.nc", false},
		{"0", false},
		{"none", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsMissing(tt.in))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2015, 1, 1, 8, 15, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
	}{
		{"pandas naive", "2015-01-01 08:15:00"},
		{"pandas with offset", "2015-01-01 08:15:00+00:00"},
		{"pandas fractional", "2015-01-01 08:15:00.000000"},
		{"rfc3339", "2015-01-01T08:15:00Z"},
		{"iso naive", "2015-01-01T08:15:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}

	t.Run("offset converted to UTC", func(t *testing.T) {
		got, err := ParseTimestamp("2015-01-01 20:00:00-07:00")
		require.NoError(t, err)
		assert.Equal(t, time.UTC, got.Location())
		assert.Equal(t, time.Date(2015, 1, 2, 3, 0, 0, 0, time.UTC), got)
	})

	t.Run("date only", func(t *testing.T) {
		got, err := ParseTimestamp("2015-01-01")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseTimestamp("yesterday")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse timestamp")
	})
}

func TestInferKind(t *testing.T) {
	tests := []struct {
		name     string
		column   string
		cells    []string
		expected ColumnKind
	}{
		{"numbers", "BND_GHI", []string{"1.5", "", "nan", "-3"}, Numeric},
		{"all missing", "BND_GHI", []string{"", "nan"}, Numeric},
		{"words", "BND_CLOUDINESS", []string{"clear", "night"}, Text},
		{"path column of numbers", "hdf5_8bit_path", []string{"1", "2"}, Text},
		{"path column all missing", "ncdf_path", []string{"nan", "nan"}, Text},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, InferKind(tt.column, tt.cells))
		})
	}
}

func TestColumnFromCells(t *testing.T) {
	t.Run("numeric", func(t *testing.T) {
		col := ColumnFromCells("BND_GHI", []string{"12.5", "nan", " 3 "})
		require.Equal(t, Numeric, col.Kind)
		assert.Equal(t, 12.5, col.Floats[0])
		assert.True(t, math.IsNaN(col.Floats[1]))
		assert.Equal(t, 3.0, col.Floats[2])
	})

	t.Run("text", func(t *testing.T) {
		col := ColumnFromCells("ncdf_path", []string{"/a.nc", "nan", ""})
		require.Equal(t, Text, col.Kind)
		assert.Equal(t, []string{"/a.nc", "", ""}, col.Strings)
	})
}

func TestFormatCell(t *testing.T) {
	num := NewNumericColumn("BND_GHI", []float64{1.25, math.NaN()})
	txt := NewTextColumn("ncdf_path", []string{"/a.nc"})

	assert.Equal(t, "1.25", FormatCell(num, 0))
	assert.Equal(t, "", FormatCell(num, 1))
	assert.Equal(t, "/a.nc", FormatCell(txt, 0))
}
