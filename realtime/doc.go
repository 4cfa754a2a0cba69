// Package realtime applies GTFS-Realtime trip updates to imported lines.
//
// Each update is matched to the line its trip was imported onto through a
// gtfs.Binding. The delay difference between consecutive stops stretches
// or shortens the leg between them; legs of all updated trips of a line
// are averaged and written back with SetSchedule, which reschedules the
// stations of that line and invalidates cached paths:
//
//	u := realtime.NewUpdater(net, binding, diag)
//	raw, err := realtime.Fetch(ctx, client, url)
//	stats, err := u.ApplyBytes(raw)
//
// Legs are never shorter than the binding's MinLeg. Unknown trips and stops
// are reported to the diagnostics aggregator and skipped.
package realtime
