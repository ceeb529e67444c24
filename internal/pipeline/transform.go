package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/sunset-catalog-prep/internal/domain"
)

// CatalogTransformer implements Transformer using domain.Preprocess.
type CatalogTransformer struct {
	opts   domain.Options
	logger *slog.Logger
}

// NewTransformer creates a CatalogTransformer with fixed preprocessing options.
func NewTransformer(opts domain.Options, logger *slog.Logger) *CatalogTransformer {
	return &CatalogTransformer{
		opts:   opts,
		logger: logger,
	}
}

func (t *CatalogTransformer) Transform(ctx context.Context, c *domain.Catalog) (*domain.Catalog, domain.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Report{}, err
	}

	out, report, err := domain.Preprocess(c, t.opts)
	if err != nil {
		return nil, report, err
	}

	// The constants are not persisted anywhere else; the log line is the
	// record needed to invert predictions.
	t.logger.Info("catalog preprocessed",
		"rows_in", report.RowsIn,
		"rows_dropped", report.RowsDropped,
		"rows_out", report.RowsOut,
		"days", report.Days,
		"shuffled", report.Shuffled,
		"seed", report.Seed,
		"ghi_mean", report.Normalization.Mean,
		"ghi_std", report.Normalization.Std,
		"ghi_samples", report.Normalization.Samples,
		"ghi_columns", len(report.Normalization.Columns),
	)
	return out, report, nil
}
