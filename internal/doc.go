// Package sentiflow downloads the Avinyó building's sensor telemetry
// from a Sentilo platform and publishes it as normalized per-sensor
// series for the energy dashboard.
//
// # Architecture
//
// The repository is structured into several key packages:
//   - sheet: sensor definition loading (CSV export of the facilities sheet)
//   - api: Sentilo HTTP client for raw observation fetching
//   - series: the normalization core (classification, value extraction,
//     series building, derivation, catalogue assembly)
//   - pipeline: per-run orchestration and metrics
//   - storage: JSON artifact persistence
//   - database: optional TimescaleDB sample archive
//   - scheduler: periodic runs
//   - web: HTTP surface serving the artifacts and /metrics
//
// Key behaviors
//
//   - Counter sensors (energy) report the delta between the first and
//     last raw reading of each observation window; instantaneous sensors
//     report the window average.
//
//   - Calculated sensors are derived from already-fetched series by
//     aligning samples on minute-truncated timestamps and applying a
//     signed sum (e.g. consumed = imported + generated - exported).
//
//   - One sensor's failure never affects another: bad payloads drop
//     samples, failed fetches drop series, and the catalogue simply
//     omits whatever produced no data.
//
// For more information about specific packages, see their respective
// documentation.
package sentiflow
