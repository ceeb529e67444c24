// Package catalogfile picks the file adapter for a catalog path by extension.
package catalogfile

import (
	"log/slog"
	"strings"

	"github.com/couchcryptid/sunset-catalog-prep/internal/adapter/csvfile"
	"github.com/couchcryptid/sunset-catalog-prep/internal/adapter/parquetfile"
	"github.com/couchcryptid/sunset-catalog-prep/internal/pipeline"
)

// IsParquet reports whether path names a Parquet file.
func IsParquet(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".parquet")
}

// NewExtractor returns a Parquet reader for ".parquet" paths and a CSV reader
// for anything else.
func NewExtractor(path, indexName string, logger *slog.Logger) pipeline.Extractor {
	if IsParquet(path) {
		return parquetfile.NewReader(path, indexName, logger)
	}
	return csvfile.NewReader(path, indexName, logger)
}

// NewLoader returns the file writer matching path.
func NewLoader(path string, logger *slog.Logger) pipeline.Loader {
	if IsParquet(path) {
		return parquetfile.NewWriter(path, logger)
	}
	return csvfile.NewWriter(path, logger)
}
