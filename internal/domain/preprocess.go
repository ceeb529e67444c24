package domain

import "fmt"

// Options controls Preprocess.
type Options struct {
	// PathColumn names the imagery reference that must be present on every
	// row. Defaults to DefaultPathColumn.
	PathColumn string

	// Shuffle enables day-grouped shuffling.
	Shuffle bool

	// Seed fixes the shuffle. When nil a seed is drawn from the clock and
	// reported back so the run can be replayed.
	Seed *uint64
}

// Report summarizes one Preprocess call.
type Report struct {
	RowsIn        int           `json:"rows_in"`
	RowsDropped   int           `json:"rows_dropped"`
	RowsOut       int           `json:"rows_out"`
	Days          int           `json:"days"`
	Shuffled      bool          `json:"shuffled"`
	Seed          uint64        `json:"seed"`
	Normalization Normalization `json:"normalization"`
}

// Preprocess drops rows without imagery, standardizes GHI columns and
// optionally shuffles whole days. The input catalog must not be reused.
func Preprocess(c *Catalog, opts Options) (*Catalog, Report, error) {
	if opts.PathColumn == "" {
		opts.PathColumn = DefaultPathColumn
	}
	report := Report{RowsIn: c.Len()}

	filtered, dropped, err := FilterMissingPaths(c, opts.PathColumn)
	if err != nil {
		return nil, report, fmt.Errorf("preprocess: %w", err)
	}
	report.RowsDropped = dropped

	norm, err := NormalizeGHI(filtered)
	if err != nil {
		return nil, report, fmt.Errorf("preprocess: %w", err)
	}
	report.Normalization = norm

	out := filtered
	if opts.Shuffle {
		seed := uint64(clock.Now().UnixNano())
		if opts.Seed != nil {
			seed = *opts.Seed
		}
		out = ShuffleDays(filtered, NewRand(seed))
		report.Shuffled = true
		report.Seed = seed
	}

	report.RowsOut = out.Len()
	report.Days = out.Days()
	return out, report, nil
}
