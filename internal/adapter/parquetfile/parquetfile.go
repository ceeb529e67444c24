// Package parquetfile reads and writes catalogs as flat Parquet files.
//
// Layout written by Writer: the index is a TIMESTAMP(MICROS) column named
// after the catalog index, numeric columns are optional DOUBLE and text
// columns are optional STRING. Parquet groups store fields sorted by name, so
// the catalog column order is kept in the "sunset.columns" key/value entry
// and restored on read. Reader accepts that layout, string or int64 indexes,
// and any integer or floating point leaf as a numeric column. Indexes are
// UTC instants.
package parquetfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/sunset-catalog-prep/internal/domain"
	"github.com/parquet-go/parquet-go"
)

const readBatch = 1024

// columnOrderKey names the file metadata entry holding the catalog column
// order as a JSON array.
const columnOrderKey = "sunset.columns"

// Reader loads a catalog Parquet file. It implements pipeline.Extractor.
type Reader struct {
	path      string
	indexName string
	logger    *slog.Logger
}

// NewReader creates a Reader for path.
func NewReader(path, indexName string, logger *slog.Logger) *Reader {
	if indexName == "" {
		indexName = domain.DefaultIndexName
	}
	return &Reader{path: path, indexName: indexName, logger: logger}
}

// Extract reads every row group into a catalog.
func (r *Reader) Extract(ctx context.Context) (*domain.Catalog, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat catalog: %w", err)
	}

	start := time.Now()
	c, err := Decode(ctx, f, info.Size(), r.indexName)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", r.path, err)
	}
	r.logger.Info("catalog read", "path", r.path, "rows", c.Len(), "columns", len(c.Columns), "elapsed", time.Since(start))
	return c, nil
}

// columnBuilder accumulates the values of one leaf column.
type columnBuilder struct {
	name    string
	kind    domain.ColumnKind
	floats  []float64
	strings []string
}

func (b *columnBuilder) column() domain.Column {
	if b.kind == domain.Text {
		return domain.NewTextColumn(b.name, b.strings)
	}
	return domain.NewNumericColumn(b.name, b.floats)
}

// Decode reads a Parquet file from r.
func Decode(ctx context.Context, r io.ReaderAt, size int64, indexName string) (*domain.Catalog, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, err
	}

	schema := pf.Schema()
	paths := schema.Columns()
	indexLeaf := -1
	builders := make([]*columnBuilder, len(paths))
	for i, path := range paths {
		if len(path) != 1 {
			return nil, fmt.Errorf("nested column %v is not supported", path)
		}
		name := path[0]
		if name == indexName {
			indexLeaf = i
			continue
		}
		leaf, _ := schema.Lookup(path...)
		builders[i] = &columnBuilder{name: name, kind: kindOf(leaf.Node.Type().Kind())}
	}
	if indexLeaf < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownColumn, indexName)
	}

	var index []time.Time
	rows := make([]parquet.Row, readBatch)
	for _, rg := range pf.RowGroups() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := readRowGroup(rg, rows, indexLeaf, builders, &index); err != nil {
			return nil, err
		}
	}

	columns := make([]domain.Column, 0, len(builders))
	for _, b := range builders {
		if b != nil {
			columns = append(columns, b.column())
		}
	}
	if raw, ok := pf.Lookup(columnOrderKey); ok {
		var order []string
		if err := json.Unmarshal([]byte(raw), &order); err != nil {
			return nil, fmt.Errorf("decode %s metadata: %w", columnOrderKey, err)
		}
		columns = reorder(columns, order)
	}
	return domain.NewCatalog(indexName, index, columns...)
}

// reorder puts the named columns first, in the given order, followed by any
// others in their current order.
func reorder(columns []domain.Column, order []string) []domain.Column {
	pos := make(map[string]int, len(columns))
	for i, col := range columns {
		pos[col.Name] = i
	}
	used := make([]bool, len(columns))
	out := make([]domain.Column, 0, len(columns))
	for _, name := range order {
		if i, ok := pos[name]; ok && !used[i] {
			out = append(out, columns[i])
			used[i] = true
		}
	}
	for i, col := range columns {
		if !used[i] {
			out = append(out, col)
		}
	}
	return out
}

func readRowGroup(rg parquet.RowGroup, buf []parquet.Row, indexLeaf int, builders []*columnBuilder, index *[]time.Time) error {
	rows := rg.Rows()
	defer rows.Close()

	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			if err := appendRow(row, indexLeaf, builders, index); err != nil {
				return err
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

func appendRow(row parquet.Row, indexLeaf int, builders []*columnBuilder, index *[]time.Time) error {
	for _, v := range row {
		col := v.Column()
		if col == indexLeaf {
			ts, err := timestampOf(v)
			if err != nil {
				return fmt.Errorf("row %d: %w", len(*index)+1, err)
			}
			*index = append(*index, ts)
			continue
		}
		b := builders[col]
		if b.kind == domain.Text {
			s := ""
			if !v.IsNull() {
				s = string(v.ByteArray())
			}
			b.strings = append(b.strings, s)
			continue
		}
		b.floats = append(b.floats, floatOf(v))
	}
	return nil
}

func kindOf(k parquet.Kind) domain.ColumnKind {
	switch k {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return domain.Text
	default:
		return domain.Numeric
	}
}

func floatOf(v parquet.Value) float64 {
	if v.IsNull() {
		return math.NaN()
	}
	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			return 1
		}
		return 0
	case parquet.Int32:
		return float64(v.Int32())
	case parquet.Int64:
		return float64(v.Int64())
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	default:
		return math.NaN()
	}
}

func timestampOf(v parquet.Value) (time.Time, error) {
	if v.IsNull() {
		return time.Time{}, errors.New("null index")
	}
	switch v.Kind() {
	case parquet.Int64:
		return time.UnixMicro(v.Int64()).UTC(), nil
	case parquet.ByteArray:
		return domain.ParseTimestamp(string(v.ByteArray()))
	default:
		return time.Time{}, fmt.Errorf("unsupported index type %s", v.Kind())
	}
}

// Writer stores a prepared catalog as Parquet. It implements pipeline.Loader.
type Writer struct {
	path   string
	logger *slog.Logger
}

// NewWriter creates a Writer for path.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

func (w *Writer) Name() string { return "parquet" }

// Load writes the catalog to a temporary file and renames it into place.
func (w *Writer) Load(ctx context.Context, c *domain.Catalog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp := w.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create parquet: %w", err)
	}
	if err := Encode(f, c); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write parquet: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close parquet: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	w.logger.Debug("parquet written", "path", w.path, "rows", c.Len())
	return nil
}

// Schema returns the Parquet schema Encode uses for c.
func Schema(c *domain.Catalog) *parquet.Schema {
	group := parquet.Group{
		c.IndexName: parquet.Timestamp(parquet.Microsecond),
	}
	for _, col := range c.Columns {
		if col.Kind == domain.Text {
			group[col.Name] = parquet.Optional(parquet.String())
			continue
		}
		group[col.Name] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
	}
	return parquet.NewSchema("catalog", group)
}

// Encode writes c as a single Parquet file to w, compressed with zstd.
func Encode(w io.Writer, c *domain.Catalog) error {
	schema := Schema(c)

	indexLeaf, ok := schema.Lookup(c.IndexName)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownColumn, c.IndexName)
	}
	leaves := make([]int, len(c.Columns))
	for i, col := range c.Columns {
		leaf, _ := schema.Lookup(col.Name)
		leaves[i] = leaf.ColumnIndex
	}

	order, err := json.Marshal(c.ColumnNames())
	if err != nil {
		return fmt.Errorf("encode column order: %w", err)
	}
	pw := parquet.NewWriter(w, schema,
		parquet.Compression(&parquet.Zstd),
		parquet.KeyValueMetadata(columnOrderKey, string(order)),
	)
	rows := make([]parquet.Row, 0, readBatch)
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		if _, err := pw.WriteRows(rows); err != nil {
			return err
		}
		rows = rows[:0]
		return nil
	}

	for i := 0; i < c.Len(); i++ {
		row := make(parquet.Row, len(c.Columns)+1)
		row[indexLeaf.ColumnIndex] = parquet.Int64Value(c.Index[i].UnixMicro()).Level(0, 0, indexLeaf.ColumnIndex)
		for j, col := range c.Columns {
			row[leaves[j]] = cellValue(col, i).Level(0, definitionLevel(col, i), leaves[j])
		}
		rows = append(rows, row)
		if len(rows) == cap(rows) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	return pw.Close()
}

func definitionLevel(col domain.Column, i int) int {
	if col.Missing(i) {
		return 0
	}
	return 1
}

func cellValue(col domain.Column, i int) parquet.Value {
	if col.Missing(i) {
		return parquet.NullValue()
	}
	if col.Kind == domain.Text {
		return parquet.ByteArrayValue([]byte(col.Strings[i]))
	}
	return parquet.DoubleValue(col.Floats[i])
}
