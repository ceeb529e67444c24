// Command genmock writes a synthetic SURFRAD-style catalog for local runs and
// tests. It produces one row per time step for every day, with imagery paths,
// per-station daytime flags, cloudiness, clear-sky and measured GHI. A share of
// imagery paths and GHI readings is left missing to exercise preprocessing.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/catalog.csv.gz -days 14 -seed 7
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/sunset-catalog-prep/internal/adapter/catalogfile"
	"github.com/couchcryptid/sunset-catalog-prep/internal/domain"
)

// station is a SURFRAD site; lon shifts solar noon away from 12:00 UTC.
type station struct {
	code string
	lon  float64
}

var stations = []station{
	{"BND", -88.37},
	{"TBL", -105.24},
	{"DRA", -116.02},
	{"FPK", -105.10},
	{"GWN", -89.87},
	{"PSU", -77.93},
	{"SXF", -96.62},
}

type options struct {
	start   time.Time
	days    int
	step    time.Duration
	missing float64
	seed    uint64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path (.csv, .csv.gz, .csv.zst or .parquet)")
	start := flag.String("start", "2015-01-01", "first day (YYYY-MM-DD)")
	days := flag.Int("days", 7, "number of days")
	step := flag.Duration("step", 15*time.Minute, "time between rows")
	missing := flag.Float64("missing", 0.1, "fraction of rows without imagery")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	first, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}

	c, err := generate(options{start: first, days: *days, step: *step, missing: *missing, seed: *seed})
	if err != nil {
		return err
	}

	if err := catalogfile.NewLoader(*out, slog.Default()).Load(context.Background(), c); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}
	log.Printf("wrote %d rows over %d days to %s", c.Len(), c.Days(), *out)
	return nil
}

func generate(opts options) (*domain.Catalog, error) {
	if opts.days <= 0 || opts.step <= 0 {
		return nil, fmt.Errorf("days and step must be positive")
	}
	if opts.missing < 0 || opts.missing > 1 {
		return nil, fmt.Errorf("missing must be within [0, 1]")
	}
	rng := domain.NewRand(opts.seed)
	perDay := int((24 * time.Hour) / opts.step)
	n := perDay * opts.days

	index := make([]time.Time, 0, n)
	paths := make([]string, 0, n)
	offsets := make([]float64, 0, n)
	type stationCols struct {
		daytime, clearsky, ghi []float64
		cloudiness             []string
	}
	cols := make([]stationCols, len(stations))

	for d := 0; d < opts.days; d++ {
		day := opts.start.AddDate(0, 0, d)
		// One cloud regime per station and day, jittered per step.
		regime := make([]float64, len(stations))
		for s := range stations {
			regime[s] = rng.Float64()
		}

		for k := 0; k < perDay; k++ {
			ts := day.Add(time.Duration(k) * opts.step)
			index = append(index, ts)
			if rng.Float64() < opts.missing {
				paths = append(paths, "nan")
				offsets = append(offsets, math.NaN())
			} else {
				paths = append(paths, imageryPath(ts))
				offsets = append(offsets, float64(k))
			}

			for s, st := range stations {
				sky := clearSkyGHI(ts, st.lon)
				cloud := clamp(regime[s]+0.2*(rng.Float64()-0.5), 0, 1)
				ghi := sky*(1-0.75*math.Pow(cloud, 3.4)) + 5*rng.NormFloat64()
				if rng.Float64() < opts.missing/4 {
					ghi = math.NaN()
				}

				c := &cols[s]
				c.daytime = append(c.daytime, boolFloat(sky > 0))
				c.cloudiness = append(c.cloudiness, cloudiness(sky, cloud))
				c.clearsky = append(c.clearsky, sky)
				c.ghi = append(c.ghi, ghi)
			}
		}
	}

	columns := []domain.Column{
		domain.NewTextColumn(domain.DefaultPathColumn, paths),
		domain.NewNumericColumn("hdf5_8bit_offset", offsets),
	}
	for s, st := range stations {
		columns = append(columns,
			domain.NewNumericColumn(st.code+"_DAYTIME", cols[s].daytime),
			domain.NewTextColumn(st.code+"_CLOUDINESS", cols[s].cloudiness),
			domain.NewNumericColumn(st.code+"_CLEARSKY_GHI", cols[s].clearsky),
			domain.NewNumericColumn(st.code+"_GHI", cols[s].ghi),
		)
	}
	return domain.NewCatalog(domain.DefaultIndexName, index, columns...)
}

func imageryPath(ts time.Time) string {
	return fmt.Sprintf("/data/netCDF/GOES-13/%04d/%03d/goes13_%s.nc",
		ts.Year(), ts.YearDay(), ts.Format("20060102T150405"))
}

// clearSkyGHI is a crude clear-sky model: a sine over the local solar day,
// peaking near 1000 W/m² at solar noon.
func clearSkyGHI(ts time.Time, lon float64) float64 {
	hour := float64(ts.Hour()) + float64(ts.Minute())/60 + lon/15
	hour = math.Mod(hour+24, 24)
	if hour <= 6 || hour >= 18 {
		return 0
	}
	return 1000 * math.Pow(math.Sin(math.Pi*(hour-6)/12), 1.2)
}

func cloudiness(sky, cloud float64) string {
	switch {
	case sky == 0:
		return "night"
	case cloud < 0.2:
		return "clear"
	case cloud < 0.5:
		return "slightly cloudy"
	case cloud < 0.8:
		return "cloudy"
	default:
		return "variable"
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
