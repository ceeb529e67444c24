// Package domain models the sunset forecasting catalog and the preprocessing
// applied to it before training.
//
// # Data Source
//
// The catalog is a time-indexed table with one row per 15-minute GOES-13 image
// slot. Each row references the satellite imagery files that cover the slot and
// carries the SURFRAD station measurements for that instant. Catalogs arrive as
// CSV (optionally gzip or zstd compressed) or Parquet files; see the csvfile and
// parquetfile adapters.
//
// # Catalog Conventions
//
// Index:
//
//	Named "iso-datetime". CSV exports write it as "2015-01-01 08:00:00" or
//	"2015-01-01 08:00:00+00:00"; RFC 3339 is accepted too. Parsed values are
//	held in UTC and every day boundary in the repository is a UTC date. See
//	[ParseTimestamp].
//
// File path columns:
//
//	"ncdf_path", "hdf5_8bit_path", "hdf5_16bit_path". Any column whose name
//	contains "_path" is always textual. A row without an ncdf_path has no
//	imagery and is dropped by [FilterMissingPaths].
//
// Station columns (one set per station code, e.g. BND, TBL, DRA, FPK, GWN, PSU, SXF):
//
//	<ST>_DAYTIME      1 when the sun is up at the station
//	<ST>_CLOUDINESS   "night", "cloudy", "slightly cloudy", "clear", "variable"
//	<ST>_CLEARSKY_GHI modeled clear-sky irradiance (W/m²)
//	<ST>_GHI          measured irradiance (W/m²)
//
// Missing values:
//
//	Empty cells and the literal "nan" (any case) are missing. Numeric cells
//	hold NaN, text cells hold "". See [IsMissing].
//
// # GHI Normalization
//
// Observed GHI columns are the ones named by a three-character station code
// followed by "_GHI" (regexp "^..._GHI"). A single mean and sample standard
// deviation computed over every observed value standardizes all columns whose
// name contains "_GHI", so clear-sky targets share the measured scale.
//
// # Day Shuffling
//
// Training batches must not split a day across train and validation folds, so
// shuffling permutes whole calendar days and never reorders rows within a day.
package domain
