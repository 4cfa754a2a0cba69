package gtfs

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/theoremus-urban-solutions/haltnet/goods"
	"github.com/theoremus-urban-solutions/haltnet/halt"
)

// ImportOptions controls how a feed becomes stations and lines.
type ImportOptions struct {
	Flags      halt.Flags
	Categories goods.CategorySet
	// FallbackSpeedKMH times legs whose stop times are missing.
	FallbackSpeedKMH float64
	// MinLeg is the shortest leg in minutes.
	MinLeg uint32
}

// DefaultImportOptions carries passengers and mail on every line.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		Flags:            halt.EnablePassengers | halt.EnableMail,
		Categories:       goods.NewCategorySet(goods.CategoryPassengers, goods.CategoryMail),
		FallbackSpeedKMH: 30,
		MinLeg:           1,
	}
}

// TripBinding locates a trip on its line. A reversed trip runs the line's
// stops backwards.
type TripBinding struct {
	Line     halt.LineHandle
	Reversed bool
	Stops    []string
}

// Binding maps feed IDs to network handles.
type Binding struct {
	Stations map[string]halt.Handle
	Lines    map[string]halt.LineHandle
	Trips    map[string]TripBinding
	// Legs are the imported leg times per line, before realtime changes.
	Legs   map[halt.LineHandle][]uint32
	MinLeg uint32
}

func newBinding(minLeg uint32) *Binding {
	return &Binding{
		Stations: map[string]halt.Handle{},
		Lines:    map[string]halt.LineHandle{},
		Trips:    map[string]TripBinding{},
		Legs:     map[halt.LineHandle][]uint32{},
		MinLeg:   minLeg,
	}
}

// Import adds the stops and route patterns of f to n. Trips with fewer
// than two known stops are skipped.
func Import(f *Feed, n *halt.Network, proj Projection, opts ImportOptions) (*Binding, error) {
	b := newBinding(max(opts.MinLeg, 1))
	skipped := 0
	for _, id := range f.TripIDs() {
		t := f.trips[id]
		times := make([]StopTime, 0, len(t.StopTimes))
		for _, st := range t.StopTimes {
			if _, ok := f.stops[st.StopID]; ok {
				times = append(times, st)
			}
		}
		if len(times) < 2 {
			skipped++
			continue
		}
		stops := make([]string, len(times))
		for i, st := range times {
			stops[i] = st.StopID
		}
		key := patternKey(t.RouteID, stops)
		if lh, ok := b.Lines[key]; ok {
			b.Trips[id] = TripBinding{Line: lh, Stops: stops}
			continue
		}
		reversed := slices.Clone(stops)
		slices.Reverse(reversed)
		if lh, ok := b.Lines[patternKey(t.RouteID, reversed)]; ok {
			b.Trips[id] = TripBinding{Line: lh, Reversed: true, Stops: stops}
			continue
		}

		sched, err := b.schedule(f, n, proj, opts, times)
		if err != nil {
			return b, fmt.Errorf("import trip %s: %w", id, err)
		}
		lh, err := n.AddLine(lineName(f, t), sched)
		if err != nil {
			return b, fmt.Errorf("import trip %s: %w", id, err)
		}
		b.Lines[key] = lh
		b.Legs[lh] = slices.Clone(sched.Legs)
		b.Trips[id] = TripBinding{Line: lh, Stops: stops}
	}
	log.Printf("Imported %d stations and %d lines from %d trips (%d skipped)",
		len(b.Stations), len(b.Lines), len(f.trips), skipped)
	return b, nil
}

func (b *Binding) schedule(f *Feed, n *halt.Network, proj Projection, opts ImportOptions, times []StopTime) (halt.Schedule, error) {
	sched := halt.Schedule{Categories: opts.Categories, Mirrored: true}
	for i, st := range times {
		h, err := b.station(f, n, proj, opts, st.StopID)
		if err != nil {
			return sched, err
		}
		var wait uint32
		if st.Arrival >= 0 && st.Departure > st.Arrival {
			wait = uint32((st.Departure - st.Arrival + 59) / 60)
		}
		sched.Entries = append(sched.Entries, halt.ScheduleEntry{Halt: h, Wait: wait})
		if i == 0 {
			continue
		}
		prev := times[i-1]
		from, to := prev.Departure, st.Arrival
		if from < 0 {
			from = prev.Arrival
		}
		if to < 0 {
			to = st.Departure
		}
		var leg uint32
		if from >= 0 && to >= from {
			leg = uint32((to - from + 59) / 60)
		} else {
			leg = travelMinutes(f.stops[prev.StopID].Point, f.stops[st.StopID].Point, opts.FallbackSpeedKMH)
		}
		sched.Legs = append(sched.Legs, max(leg, b.MinLeg))
	}
	return sched, nil
}

// station returns the station of a stop, creating it on first use. Stops
// sharing a name get their ID appended.
func (b *Binding) station(f *Feed, n *halt.Network, proj Projection, opts ImportOptions, id string) (halt.Handle, error) {
	if h, ok := b.Stations[id]; ok {
		return h, nil
	}
	stop := f.stops[id]
	name := stop.Name
	if name == "" {
		name = id
	}
	pos := proj.Tile(stop.Point)
	h, err := n.AddStation(name, pos, opts.Flags)
	if errors.Is(err, halt.ErrDuplicateName) {
		h, err = n.AddStation(fmt.Sprintf("%s (%s)", name, id), pos, opts.Flags)
	}
	if err != nil {
		return halt.Handle{}, fmt.Errorf("stop %s: %w", id, err)
	}
	b.Stations[id] = h
	return h, nil
}

func patternKey(route string, stops []string) string {
	return route + "|" + strings.Join(stops, ">")
}

func lineName(f *Feed, t *Trip) string {
	name := t.RouteID
	if r, ok := f.routes[t.RouteID]; ok {
		name = r.Name()
	}
	if t.Headsign != "" {
		return name + " " + t.Headsign
	}
	last := t.StopTimes[len(t.StopTimes)-1].StopID
	if s, ok := f.stops[last]; ok && s.Name != "" {
		return name + " " + s.Name
	}
	return name
}
