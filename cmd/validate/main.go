// Command validate checks a prepared catalog for the properties training
// relies on: every row has imagery, observed GHI is standardized, and each day
// forms one contiguous, time-ordered block. Given the raw catalog it also
// checks that preparation kept exactly the rows with imagery and standardized
// them with the statistics of the raw observed GHI.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -prepared data/mock/prepared.parquet \
//	  -raw data/mock/catalog.csv.gz
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/sunset-catalog-prep/internal/adapter/catalogfile"
	"github.com/couchcryptid/sunset-catalog-prep/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// maxReported caps per-phase error output on large catalogs.
const maxReported = 20

type options struct {
	indexName  string
	pathColumn string
	tolerance  float64
}

func main() {
	prepared := flag.String("prepared", "", "prepared catalog (.parquet, .csv, .csv.gz, .csv.zst)")
	raw := flag.String("raw", "", "optional raw catalog the prepared one was built from")
	indexName := flag.String("index", domain.DefaultIndexName, "index column name")
	pathColumn := flag.String("path-column", domain.DefaultPathColumn, "imagery path column")
	tolerance := flag.Float64("tolerance", 1e-6, "allowed deviation of GHI mean and std")
	flag.Parse()

	if *prepared == "" {
		flag.Usage()
		os.Exit(1)
	}

	opts := options{indexName: *indexName, pathColumn: *pathColumn, tolerance: *tolerance}
	if code := run(*prepared, *raw, opts); code != 0 {
		os.Exit(code)
	}
}

func run(preparedPath, rawPath string, opts options) int {
	fmt.Println("=== Catalog Preparation Validation ===")
	fmt.Println()

	prepared, err := load(preparedPath, opts.indexName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load prepared catalog: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateImagery(prepared, opts.pathColumn),
		validateNormalization(prepared, opts.tolerance),
		validateDayBlocks(prepared),
	}

	if rawPath != "" {
		raw, err := load(rawPath, opts.indexName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load raw catalog: %v\n", err)
			return 1
		}
		phases = append(phases, validateAgainstRaw(prepared, raw, opts))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d prepared, %d days, %d columns\n", prepared.Len(), prepared.Days(), len(prepared.Columns))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxReported {
				fmt.Printf("  ... %d more\n", len(p.errors)-maxReported)
				break
			}
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func load(path, indexName string) (*domain.Catalog, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return catalogfile.NewExtractor(path, indexName, logger).Extract(context.Background())
}

// ── Phase 1: Imagery ──

func validateImagery(c *domain.Catalog, pathColumn string) *phase {
	p := &phase{name: "Phase 1: Imagery paths present"}

	col, ok := c.Column(pathColumn)
	if !ok {
		p.errorf("column %q not found", pathColumn)
		return p
	}
	for i := 0; i < c.Len(); i++ {
		if col.Missing(i) {
			p.errorf("row %d (%s): missing %s", i, c.Index[i].Format(time.RFC3339), pathColumn)
		}
	}
	return p
}

// ── Phase 2: Normalization ──

func validateNormalization(c *domain.Catalog, tolerance float64) *phase {
	p := &phase{name: "Phase 2: Observed GHI standardized"}

	for _, name := range domain.GHIColumns(c) {
		if col, _ := c.Column(name); col.Kind != domain.Numeric {
			p.errorf("column %s is %s, want numeric", name, col.Kind)
		}
	}

	observed := domain.ObservedGHIColumns(c)
	if len(observed) == 0 {
		p.errorf("no observed GHI columns")
		return p
	}

	values := observedValues(c, observed)
	if len(values) < 2 {
		p.errorf("only %d observed GHI values", len(values))
		return p
	}
	mean, std := stat.MeanStdDev(values, nil)
	if math.Abs(mean) > tolerance {
		p.errorf("observed GHI mean is %g, want 0 ± %g", mean, tolerance)
	}
	if math.Abs(std-1) > tolerance {
		p.errorf("observed GHI std is %g, want 1 ± %g", std, tolerance)
	}
	return p
}

func observedValues(c *domain.Catalog, observed []string) []float64 {
	var values []float64
	for _, name := range observed {
		col, _ := c.Column(name)
		if col.Kind != domain.Numeric {
			continue
		}
		for _, v := range col.Floats {
			if !math.IsNaN(v) {
				values = append(values, v)
			}
		}
	}
	return values
}

// ── Phase 3: Day blocks ──

func validateDayBlocks(c *domain.Catalog) *phase {
	p := &phase{name: "Phase 3: Days contiguous and ordered"}

	closed := map[string]bool{}
	current := ""
	for i, ts := range c.Index {
		day := ts.UTC().Format(time.DateOnly)
		if day != current {
			if closed[day] {
				p.errorf("row %d: day %s resumes after another day", i, day)
			}
			if current != "" {
				closed[current] = true
			}
			current = day
			continue
		}
		if !ts.After(c.Index[i-1]) {
			p.errorf("row %d: %s does not follow %s", i, ts.Format(time.RFC3339), c.Index[i-1].Format(time.RFC3339))
		}
	}
	return p
}

// ── Phase 4: Raw parity ──

func validateAgainstRaw(prepared, raw *domain.Catalog, opts options) *phase {
	p := &phase{name: "Phase 4: Parity with raw catalog"}

	filtered, _, err := domain.FilterMissingPaths(raw, opts.pathColumn)
	if err != nil {
		p.errorf("filter raw catalog: %v", err)
		return p
	}
	if filtered.Len() != prepared.Len() {
		p.errorf("row count: raw has %d rows with imagery, prepared has %d", filtered.Len(), prepared.Len())
	}

	norm, err := domain.NormalizeGHI(filtered)
	if err != nil {
		p.errorf("normalize raw catalog: %v", err)
		return p
	}

	rawRows := make(map[int64]int, filtered.Len())
	for i, ts := range filtered.Index {
		rawRows[ts.UnixNano()] = i
	}

	for i, ts := range prepared.Index {
		j, ok := rawRows[ts.UnixNano()]
		if !ok {
			p.errorf("row %d (%s): not in raw catalog", i, ts.Format(time.RFC3339))
			continue
		}
		for _, name := range norm.Columns {
			compareCell(p, prepared, filtered, name, i, j, opts.tolerance)
		}
	}
	return p
}

// compareCell checks prepared row i against raw row j, both already
// normalized.
func compareCell(p *phase, prepared, raw *domain.Catalog, name string, i, j int, tolerance float64) {
	want, _ := raw.Column(name)
	got, ok := prepared.Column(name)
	if !ok || got.Kind != domain.Numeric {
		p.errorf("row %d: column %s missing or not numeric in prepared catalog", i, name)
		return
	}
	w, g := want.Floats[j], got.Floats[i]
	switch {
	case math.IsNaN(w) && math.IsNaN(g):
	case math.IsNaN(w) != math.IsNaN(g) || math.Abs(w-g) > tolerance:
		p.errorf("row %d column %s: want %g, got %g", i, name, w, g)
	}
}
