// Package diag aggregates simulation diagnostics.
//
// Routing and growth failures are never errors: they are absorbed into
// statistics. When they are worth a log line they are recorded here and
// printed as one consolidated summary per kind instead of one line per
// occurrence.
package diag
