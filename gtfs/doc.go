/*
Package gtfs imports a GTFS static feed as stations and lines.

The loader is data-source agnostic: it accepts zip bytes, an io.ReaderAt or
a local path, and Fetch downloads a zip over HTTP for CLI use. Only the
files needed for a schedule are read: agency.txt, stops.txt, routes.txt,
trips.txt and stop_times.txt.

# Basic Usage

	feed, err := gtfs.LoadFile("google_transit.zip")
	if err != nil {
	    log.Fatal(err)
	}
	proj := gtfs.NewProjection(feed, w.Grid().Area())
	binding, err := gtfs.Import(feed, w.Network(), proj, gtfs.DefaultImportOptions())

# Stops

Every stop served by a trip becomes a station. Coordinates are projected
onto the tile grid by a linear fit of the feed's bounding box.

# Route patterns

Trips of a route that visit the same stops in the same order form a
pattern. Each pattern becomes one mirrored line whose legs and waits come
from the first trip of the pattern, in minutes. A pattern that is the
reverse of an imported one is served by that line. Legs without times
fall back to the straight-line distance at ImportOptions.FallbackSpeedKMH.

The returned Binding maps GTFS IDs to handles so that realtime updates can
find the line and stop index of a trip.
*/
package gtfs
