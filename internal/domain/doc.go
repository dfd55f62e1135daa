// Package domain models numerical weather-prediction (NWP) model runs and
// the published imagery index.
//
// # Data Source
//
// Model output originates from NOAA's NCEP production suite, mirrored to the
// NOAA Open Data Dissemination (NODD) S3 buckets (e.g. noaa-hrrr-bdp-pds)
// and served over HTTPS from NOMADS at https://nomads.ncep.noaa.gov. Each
// GRIB2 output file carries a sidecar ".idx" inventory listing the byte
// offset of every record, which allows a single field (here TMP at 2 m
// above ground) to be fetched with a ranged request instead of downloading
// the full multi-hundred-megabyte file.
//
// # Run Conventions
//
// Cycle times:
//
//	Runs are identified by their UTC initialization hour ("cycle"), written
//	"t12z" in file names and "12Z" in display labels. HRRR and RRFS run
//	every hour; NAM, NAM 3km and GFS run at 00, 06, 12 and 18Z only.
//
// Readiness:
//
//	A run's analysis (F00) file appears on the buckets before the run has
//	finished, so readiness is probed via the F01 inventory: once F01 exists
//	the analysis is complete and safe to fetch. Discovery walks candidate
//	cycles newest-first across a 12-hour lookback window.
//
// # Published Index
//
// The service publishes a markdown index document alongside the rendered
// images. The document is a small fixed contract: a title, a description
// noting the 6-hour refresh cadence, and a table of exactly five rows
// mapping the model labels HRRR, RRFS, NAM, NAM 3km and GFS (in that
// order) to relative image paths of the form "images/<slug>_temp.png".
// [ValidateDocument] enforces that contract; [ParseDocument] recovers the
// rows from a rendered document so external copies can be checked.
//
// # Run IDs
//
// Run IDs are deterministic SHA-256 hashes of slug|cycle. This enables
// idempotent catalog inserts (ON CONFLICT DO NOTHING) and makes a replayed
// publish cycle a no-op rather than a duplicate. See [Run.ID].
package domain
