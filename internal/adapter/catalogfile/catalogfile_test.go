package catalogfile

import (
	"context"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/sunset-catalog-prep/internal/adapter/csvfile"
	"github.com/couchcryptid/sunset-catalog-prep/internal/adapter/parquetfile"
	"github.com/couchcryptid/sunset-catalog-prep/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdapterSelection(t *testing.T) {
	tests := []struct {
		path    string
		parquet bool
	}{
		{"catalog.parquet", true},
		{"CATALOG.PARQUET", true},
		{"catalog.csv", false},
		{"catalog.csv.gz", false},
		{"catalog.csv.zst", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.parquet, IsParquet(tt.path))

			ext := NewExtractor(tt.path, "", discardLogger())
			ldr := NewLoader(tt.path, discardLogger())
			if tt.parquet {
				assert.IsType(t, &parquetfile.Reader{}, ext)
				assert.IsType(t, &parquetfile.Writer{}, ldr)
				return
			}
			assert.IsType(t, &csvfile.Reader{}, ext)
			assert.IsType(t, &csvfile.Writer{}, ldr)
		})
	}
}

func TestLoadThenExtract(t *testing.T) {
	start := time.Date(2016, 6, 1, 14, 0, 0, 0, time.UTC)
	in, err := domain.NewCatalog("",
		[]time.Time{start, start.Add(15 * time.Minute)},
		domain.NewTextColumn("ncdf_path", []string{"/a.nc", "/b.nc"}),
		domain.NewNumericColumn("PSU_GHI", []float64{-0.5, math.NaN()}),
	)
	require.NoError(t, err)

	for _, name := range []string{"out.parquet", "out.csv.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, NewLoader(path, discardLogger()).Load(context.Background(), in))

			out, err := NewExtractor(path, "", discardLogger()).Extract(context.Background())
			require.NoError(t, err)
			require.Equal(t, 2, out.Len())
			assert.True(t, out.Index[1].Equal(in.Index[1]))

			ghi, ok := out.Column("PSU_GHI")
			require.True(t, ok)
			assert.InDelta(t, -0.5, ghi.Floats[0], 1e-12)
			assert.True(t, math.IsNaN(ghi.Floats[1]))
		})
	}
}
