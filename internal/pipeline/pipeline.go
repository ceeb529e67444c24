package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/sunset-catalog-prep/internal/domain"
	"github.com/couchcryptid/sunset-catalog-prep/internal/observability"
)

// Extractor reads the raw catalog from its source.
type Extractor interface {
	Extract(ctx context.Context) (*domain.Catalog, error)
}

// Transformer prepares a raw catalog for training.
type Transformer interface {
	Transform(ctx context.Context, c *domain.Catalog) (*domain.Catalog, domain.Report, error)
}

// Loader writes a prepared catalog to one destination.
type Loader interface {
	Name() string
	Load(ctx context.Context, c *domain.Catalog) error
}

// Pipeline orchestrates the extract-transform-load run.
type Pipeline struct {
	extractor   Extractor
	transformer Transformer
	loaders     []Loader
	logger      *slog.Logger
	metrics     *observability.Metrics
	interval    time.Duration
	ready       atomic.Bool
	last        atomic.Pointer[Status]
}

// Status describes the last successful run.
type Status struct {
	CompletedAt time.Time     `json:"completed_at"`
	Duration    string        `json:"duration"`
	Report      domain.Report `json:"report"`
}

// New creates a Pipeline. A zero interval makes Run perform a single pass.
func New(e Extractor, t Transformer, loaders []Loader, logger *slog.Logger, metrics *observability.Metrics, interval time.Duration) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loaders:     loaders,
		logger:      logger,
		metrics:     metrics,
		interval:    interval,
	}
}

// Ready reports whether at least one run completed successfully.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// CheckReadiness returns nil once a catalog has been prepared and loaded,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no catalog has been prepared yet")
	}
	return nil
}

// LastStatus returns the outcome of the last successful run, or nil before
// the first one.
func (p *Pipeline) LastStatus() *Status {
	return p.last.Load()
}

// Run prepares the catalog. Without an interval it runs once and returns the
// run's error. With an interval it repeats until the context is cancelled,
// retrying failed runs with exponential backoff, and returns nil on shutdown.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "loaders", len(p.loaders), "interval", p.interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	if p.interval == 0 {
		return p.RunOnce(ctx)
	}

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		if err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			p.logger.Error("run failed, retrying", "error", err, "backoff", backoff)
			if !sleepWithContext(ctx, backoff) {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}

		backoff = 200 * time.Millisecond
		if !sleepWithContext(ctx, p.interval) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RunOnce performs one extract-transform-load cycle. Every loader is attempted
// even when an earlier one fails; their errors are joined.
//
// Delivery is at-least-once per sink: after a failed cycle Run retries the
// whole cycle, so sinks that already succeeded receive the catalog again
// (Kafka republishes every row, and an unseeded run reshuffles with a new
// seed). Set SHUFFLE_SEED to make retried cycles identical.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	start := time.Now()

	report, err := p.runOnce(ctx)
	if err != nil {
		p.metrics.Runs.WithLabelValues("error").Inc()
		return err
	}

	elapsed := time.Since(start)
	p.metrics.Runs.WithLabelValues("success").Inc()
	p.metrics.RunDuration.Observe(elapsed.Seconds())
	p.last.Store(&Status{CompletedAt: time.Now().UTC(), Duration: elapsed.String(), Report: report})
	p.ready.Store(true)
	return nil
}

func (p *Pipeline) runOnce(ctx context.Context) (domain.Report, error) {
	raw, err := p.extractor.Extract(ctx)
	if err != nil {
		return domain.Report{}, fmt.Errorf("extract catalog: %w", err)
	}
	p.metrics.RowsRead.Add(float64(raw.Len()))

	prepared, report, err := p.transformer.Transform(ctx, raw)
	if err != nil {
		return report, fmt.Errorf("transform catalog: %w", err)
	}
	p.metrics.RowsDropped.Add(float64(report.RowsDropped))
	p.metrics.CatalogDays.Set(float64(report.Days))
	p.metrics.GHIMean.Set(report.Normalization.Mean)
	p.metrics.GHIStd.Set(report.Normalization.Std)

	var errs []error
	for _, l := range p.loaders {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if err := l.Load(ctx, prepared); err != nil {
			p.logger.Error("load failed", "sink", l.Name(), "error", err)
			p.metrics.LoadErrors.WithLabelValues(l.Name()).Inc()
			errs = append(errs, fmt.Errorf("load %s: %w", l.Name(), err))
			continue
		}
		p.metrics.RowsWritten.WithLabelValues(l.Name()).Add(float64(prepared.Len()))
		p.logger.Info("catalog loaded", "sink", l.Name(), "rows", prepared.Len())
	}
	return report, errors.Join(errs...)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
