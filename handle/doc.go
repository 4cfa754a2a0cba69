// Package handle provides generation-checked references into an arena.
//
// A Handle stays valid after the entity it names is removed: it simply
// resolves to "not bound". Routing tables, ledgers and schedules hold
// handles instead of pointers so that deleting a station or a line can
// never leave a dangling reference behind.
//
// Handles have a stable numeric ID (generation<<32 | slot) which is what
// gets persisted. Loading re-inserts entities at their saved IDs with
// Arena.InsertAt.
package handle
