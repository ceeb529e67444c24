// Package csvfile reads and writes catalogs as CSV, optionally gzip or zstd
// compressed. The index is the first column, named after the catalog index.
// Compression follows the file suffix in both directions: ".gz" or ".zst".
package csvfile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/couchcryptid/sunset-catalog-prep/internal/domain"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

// Reader loads a catalog CSV file. It implements pipeline.Extractor.
type Reader struct {
	path      string
	indexName string
	logger    *slog.Logger
}

// NewReader creates a Reader for path.
func NewReader(path, indexName string, logger *slog.Logger) *Reader {
	return &Reader{path: path, indexName: indexName, logger: logger}
}

// Extract reads the whole file into a catalog.
func (r *Reader) Extract(ctx context.Context) (*domain.Catalog, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	src, closeFn, err := decompress(r.path, f)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer closeFn()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	c, err := Decode(src, r.indexName)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", r.path, err)
	}
	r.logger.Info("catalog read", "path", r.path, "rows", c.Len(), "columns", len(c.Columns), "elapsed", time.Since(start))
	return c, nil
}

func decompress(path string, f io.Reader) (io.Reader, func(), error) {
	path = strings.ToLower(path)
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := pgzip.NewReaderN(f, 256*1024, runtime.NumCPU())
		if err != nil {
			return nil, nil, err
		}
		return gz, func() { _ = gz.Close() }, nil
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	default:
		return f, func() {}, nil
	}
}

func compress(path string, f io.Writer) (io.WriteCloser, error) {
	path = strings.ToLower(path)
	switch {
	case strings.HasSuffix(path, ".gz"):
		return pgzip.NewWriterLevel(f, pgzip.BestSpeed)
	case strings.HasSuffix(path, ".zst"):
		return zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	default:
		return nopCloser{f}, nil
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Decode parses CSV with a header row. The column named indexName holds the
// timestamps; when no column has that name the first column is used and the
// catalog index takes that column's name.
func Decode(r io.Reader, indexName string) (*domain.Catalog, error) {
	// Every column is read as text so that "nan" and empty cells reach the
	// domain's missing-value rules untouched.
	df := dataframe.ReadCSV(r,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return nil, df.Err
	}

	names := df.Names()
	if len(names) == 0 {
		return nil, fmt.Errorf("no header")
	}
	if indexName == "" {
		indexName = domain.DefaultIndexName
	}
	// Without a column named indexName the first column is the index and
	// keeps its own header.
	indexCol := names[0]
	for _, name := range names {
		if name == indexName {
			indexCol = name
			break
		}
	}
	indexName = indexCol

	raw := df.Col(indexCol).Records()
	index := make([]time.Time, len(raw))
	for i, s := range raw {
		ts, err := domain.ParseTimestamp(s)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		index[i] = ts
	}

	columns := make([]domain.Column, 0, len(names)-1)
	for _, name := range names {
		if name == indexCol {
			continue
		}
		columns = append(columns, domain.ColumnFromCells(name, df.Col(name).Records()))
	}
	return domain.NewCatalog(indexName, index, columns...)
}

// Writer stores a prepared catalog as CSV. It implements pipeline.Loader.
type Writer struct {
	path   string
	logger *slog.Logger
}

// NewWriter creates a Writer for path.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

func (w *Writer) Name() string { return "csv" }

// Load writes the catalog to a temporary file and renames it into place.
func (w *Writer) Load(ctx context.Context, c *domain.Catalog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp := w.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	dst, err := compress(w.path, f)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("create csv: %w", err)
	}
	if err := Encode(dst, c); err != nil {
		dst.Close()
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write csv: %w", err)
	}
	if err := dst.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close csv: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("rename csv: %w", err)
	}
	w.logger.Debug("csv written", "path", w.path, "rows", c.Len())
	return nil
}

// Encode writes the catalog as CSV with the index first. Missing cells are
// written empty; timestamps use RFC 3339.
func Encode(w io.Writer, c *domain.Catalog) error {
	seriesList := make([]series.Series, 0, len(c.Columns)+1)

	index := make([]string, c.Len())
	for i, ts := range c.Index {
		index[i] = ts.Format(time.RFC3339Nano)
	}
	seriesList = append(seriesList, series.New(index, series.String, c.IndexName))

	for _, col := range c.Columns {
		cells := make([]string, c.Len())
		for i := range cells {
			cells[i] = domain.FormatCell(col, i)
		}
		seriesList = append(seriesList, series.New(cells, series.String, col.Name))
	}

	df := dataframe.New(seriesList...)
	if df.Err != nil {
		return df.Err
	}
	return df.WriteCSV(w)
}
