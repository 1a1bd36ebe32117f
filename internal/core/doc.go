// Package core runs monthly import-registry imports end to end.
//
// This package is the heart of the importer, wiring the pipeline stages
// independent of any transport layer. It is used by the CLI, the HTTP
// server and tests without modification.
//
// # Pipeline
//
// A run processes one period (year, month) strictly sequentially:
//
//  1. The catalog lists the resources of the year's dataset and
//     [catalog.SelectResources] keeps those naming the month.
//  2. Each selected resource is downloaded into the run's staging directory.
//  3. Archive parts are grouped into volume sets and each set is extracted
//     from its entry part.
//  4. Tabular files are ingested largest first into schema-aligned records.
//  5. Records are streamed as a JSON array into a staged file, optionally
//     teed into the database, then wrapped in the envelope and written out.
//
// The staging directory is removed when [Service.Run] returns, on success and
// on failure alike.
//
// # Error Handling
//
// Pipeline errors wrap package sentinels and are mapped to user-facing
// messages with [MapError]. Each category has a code for support reference:
//
//   - CAT001-CAT002: Catalog errors (no matching resource, upstream failure)
//   - DL001: Download errors
//   - EXT001: Archive extraction errors
//   - DATA001-DATA002: Data errors (no tabular file, serialization)
//   - RUN001-RUN004: Run errors (busy, invalid period, persistence, cancelled)
//
// # Concurrency
//
// A single run never runs stages in parallel. The HTTP server bounds
// concurrent runs with a [RunLimiter]; each run stages into its own
// directory.
package core
