package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/sunset-catalog-prep/internal/domain"
	"github.com/couchcryptid/sunset-catalog-prep/internal/observability"
	"github.com/couchcryptid/sunset-catalog-prep/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	catalog func(t *testing.T) *domain.Catalog
	t       *testing.T
	errs    []error // returned by successive calls before succeeding
	calls   atomic.Int64
}

func (m *mockExtractor) Extract(_ context.Context) (*domain.Catalog, error) {
	i := int(m.calls.Add(1) - 1)
	if i < len(m.errs) {
		return nil, m.errs[i]
	}
	return m.catalog(m.t), nil
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, c *domain.Catalog) (*domain.Catalog, domain.Report, error) {
	if m.err != nil {
		return nil, domain.Report{}, m.err
	}
	return c, domain.Report{RowsIn: c.Len(), RowsOut: c.Len(), Days: c.Days()}, nil
}

type mockLoader struct {
	name string
	err  error

	mu     sync.Mutex
	loaded []*domain.Catalog
}

func (m *mockLoader) Name() string { return m.name }

func (m *mockLoader) Load(_ context.Context, c *domain.Catalog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, c)
	return nil
}

func (m *mockLoader) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	// Use unregistered metrics to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

// makeCatalog returns two days of catalog rows, one of which lacks imagery.
func makeCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	day := time.Date(2015, 1, 1, 8, 0, 0, 0, time.UTC)
	c, err := domain.NewCatalog(domain.DefaultIndexName,
		[]time.Time{day, day.Add(15 * time.Minute), day.AddDate(0, 0, 1), day.AddDate(0, 0, 1).Add(15 * time.Minute)},
		domain.NewTextColumn("ncdf_path", []string{"/a.nc", "", "/c.nc", "/d.nc"}),
		domain.NewNumericColumn("BND_GHI", []float64{10, 20, math.NaN(), 40}),
		domain.NewNumericColumn("BND_CLEARSKY_GHI", []float64{15, 25, 35, 45}),
	)
	require.NoError(t, err)
	return c
}

// --- tests ---

func TestPipeline_RunOnce_HappyPath(t *testing.T) {
	ext := &mockExtractor{catalog: makeCatalog, t: t}
	ldr := &mockLoader{name: "parquet"}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{}, []pipeline.Loader{ldr}, discardLogger(), metrics, 0)

	require.NoError(t, p.Run(context.Background()))
	require.Equal(t, 1, ldr.count())
	assert.Equal(t, 4, ldr.loaded[0].Len())
	assert.True(t, p.Ready())
	require.NoError(t, p.CheckReadiness(context.Background()))

	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.RowsRead))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.RowsWritten.WithLabelValues("parquet")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Runs.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CatalogDays))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning))

	status := p.LastStatus()
	require.NotNil(t, status)
	assert.Equal(t, 4, status.Report.RowsOut)
	assert.Equal(t, 2, status.Report.Days)
	assert.False(t, status.CompletedAt.IsZero())
}

func TestPipeline_RunOnce_ExtractError(t *testing.T) {
	ext := &mockExtractor{catalog: makeCatalog, t: t, errs: []error{errors.New("disk gone")}}
	ldr := &mockLoader{name: "parquet"}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{}, []pipeline.Loader{ldr}, discardLogger(), metrics, 0)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract catalog")
	assert.Zero(t, ldr.count())
	assert.False(t, p.Ready())
	assert.Nil(t, p.LastStatus())
	require.Error(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Runs.WithLabelValues("error")))
}

func TestPipeline_RunOnce_TransformError(t *testing.T) {
	ext := &mockExtractor{catalog: makeCatalog, t: t}
	tfm := &mockTransformer{err: domain.ErrDegenerateGHI}
	ldr := &mockLoader{name: "parquet"}

	p := pipeline.New(ext, tfm, []pipeline.Loader{ldr}, discardLogger(), newTestMetrics(), 0)

	err := p.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrDegenerateGHI)
	assert.Zero(t, ldr.count())
	assert.False(t, p.Ready())
}

func TestPipeline_RunOnce_LoaderErrorDoesNotStopOthers(t *testing.T) {
	ext := &mockExtractor{catalog: makeCatalog, t: t}
	broken := &mockLoader{name: "kafka", err: errors.New("broker down")}
	healthy := &mockLoader{name: "parquet"}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{}, []pipeline.Loader{broken, healthy}, discardLogger(), metrics, 0)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load kafka")
	assert.Equal(t, 1, healthy.count())
	assert.False(t, p.Ready())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LoadErrors.WithLabelValues("kafka")))
}

func TestPipeline_Run_IntervalRetriesAfterFailure(t *testing.T) {
	ext := &mockExtractor{catalog: makeCatalog, t: t, errs: []error{errors.New("not yet")}}
	ldr := &mockLoader{name: "parquet"}

	p := pipeline.New(ext, &mockTransformer{}, []pipeline.Loader{ldr}, discardLogger(), newTestMetrics(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	require.Eventually(t, p.Ready, 3*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)

	assert.Equal(t, int64(2), ext.calls.Load())
	assert.Equal(t, 1, ldr.count())
}

func TestPipeline_Run_IntervalContextCancellation(t *testing.T) {
	ext := &mockExtractor{catalog: makeCatalog, t: t}
	ldr := &mockLoader{name: "parquet"}

	p := pipeline.New(ext, &mockTransformer{}, []pipeline.Loader{ldr}, discardLogger(), newTestMetrics(), 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.GreaterOrEqual(t, ldr.count(), 2)
}

func TestCatalogTransformer_Transform(t *testing.T) {
	seed := uint64(3)
	tfm := pipeline.NewTransformer(domain.Options{Shuffle: true, Seed: &seed}, discardLogger())

	out, report, err := tfm.Transform(context.Background(), makeCatalog(t))
	require.NoError(t, err)

	assert.Equal(t, 3, out.Len())
	assert.Equal(t, 1, report.RowsDropped)
	assert.Equal(t, seed, report.Seed)
	assert.Equal(t, []string{"BND_GHI"}, report.Normalization.Observed)

	path, ok := out.Column("ncdf_path")
	require.True(t, ok)
	for i := 0; i < out.Len(); i++ {
		assert.NotEmpty(t, path.Strings[i])
	}
}

func TestCatalogTransformer_CancelledContext(t *testing.T) {
	tfm := pipeline.NewTransformer(domain.Options{}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := tfm.Transform(ctx, makeCatalog(t))
	require.ErrorIs(t, err, context.Canceled)
}
