package gtfs

import (
	"sort"

	"github.com/paulmach/orb"
)

// Stop is a row of stops.txt.
type Stop struct {
	ID   string
	Name string
	// Point is [lon, lat].
	Point orb.Point
}

// Route is a row of routes.txt.
type Route struct {
	ID        string
	ShortName string
	LongName  string
	Type      int
}

// Name returns the short name, falling back to the long name and the ID.
func (r Route) Name() string {
	switch {
	case r.ShortName != "":
		return r.ShortName
	case r.LongName != "":
		return r.LongName
	}
	return r.ID
}

// StopTime is a row of stop_times.txt. Times are seconds after midnight
// of the service day, -1 when absent.
type StopTime struct {
	StopID    string
	Sequence  int
	Arrival   int
	Departure int
}

// Trip is a row of trips.txt with its stop times in sequence order.
type Trip struct {
	ID        string
	RouteID   string
	Headsign  string
	Direction string
	StopTimes []StopTime
}

// Stops returns the stop IDs of the trip in order.
func (t *Trip) Stops() []string {
	out := make([]string, len(t.StopTimes))
	for i, st := range t.StopTimes {
		out[i] = st.StopID
	}
	return out
}

// Feed stores the schedule part of a GTFS static feed.
type Feed struct {
	AgencyID   string
	AgencyName string
	AgencyTZ   string
	stops      map[string]Stop
	routes     map[string]Route
	trips      map[string]*Trip
}

func newFeed() *Feed {
	return &Feed{
		stops:  map[string]Stop{},
		routes: map[string]Route{},
		trips:  map[string]*Trip{},
	}
}

func (f *Feed) Stop(id string) (Stop, bool) {
	s, ok := f.stops[id]
	return s, ok
}

func (f *Feed) Route(id string) (Route, bool) {
	r, ok := f.routes[id]
	return r, ok
}

func (f *Feed) Trip(id string) (*Trip, bool) {
	t, ok := f.trips[id]
	return t, ok
}

// StopIDs returns every stop ID, sorted.
func (f *Feed) StopIDs() []string { return sortedKeys(f.stops) }

// RouteIDs returns every route ID, sorted.
func (f *Feed) RouteIDs() []string { return sortedKeys(f.routes) }

// TripIDs returns every trip ID, sorted.
func (f *Feed) TripIDs() []string { return sortedKeys(f.trips) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
