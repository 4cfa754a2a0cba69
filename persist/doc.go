// Package persist writes and reads world state in the protocol buffers
// wire format.
//
// The schema is implicit: each message is a sequence of numbered fields
// written with protowire, fixed-size tables are packed varints. Decode*
// functions report malformed input as an error wrapping ErrCorrupt. Load
// goes through sim.Restore, which substitutes unbound handles and skips
// unusable entities with a diagnostic.
package persist
