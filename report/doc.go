// Package report builds read-only views of a running world and formats
// them as JSON or XML.
//
// Build takes a Snapshot of every city, station and line. Live wraps a
// world behind a mutex so a simulation loop and an HTTP server can share
// it: the loop advances the world through Live.Run and publishes a new
// snapshot, handlers read the last published one.
package report
