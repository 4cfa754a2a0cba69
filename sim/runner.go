package sim

import (
	"math"
	"slices"

	"github.com/theoremus-urban-solutions/haltnet/goods"
	"github.com/theoremus-urban-solutions/haltnet/halt"
)

// runner is the single vehicle working a line. One tick is one minute of
// schedule time.
type runner struct {
	line  halt.LineHandle
	cats  goods.CategorySet
	stops []halt.Handle
	legs  []uint32
	pos   int
	eta   uint32
	cargo []halt.Packet
	at    halt.Handle
	last  map[halt.Handle]uint64
}

// syncRunners gives every line a runner and retires runners of removed
// lines. It only looks at the lines when the schedule version moved.
func (w *World) syncRunners() {
	v := w.network.ScheduleVersion()
	if w.synced && v == w.schedVer {
		return
	}
	w.schedVer, w.synced = v, true

	lines := w.network.Lines()
	live := make(map[halt.LineHandle]bool, len(lines))
	for _, h := range lines {
		l, ok := w.network.Line(h)
		if !ok {
			continue
		}
		live[h] = true
		r, ok := w.runners[h]
		if !ok {
			r = &runner{line: h, last: make(map[halt.Handle]uint64)}
			w.runners[h] = r
		}
		sched := l.Schedule()
		stops, legs := sched.RoundTrip()
		r.reset(stops, legs, sched.Categories)
	}
	// retire in the previous line order so stranded cargo lands deterministically
	for _, h := range w.order {
		if r, ok := w.runners[h]; ok && !live[h] {
			r.strand(w)
			delete(w.runners, h)
		}
	}
	w.order = w.order[:0]
	for _, h := range lines {
		if live[h] {
			w.order = append(w.order, h)
		}
	}
}

func (r *runner) reset(stops []halt.Handle, legs []uint32, cats goods.CategorySet) {
	r.cats = cats
	if slices.Equal(stops, r.stops) && slices.Equal(legs, r.legs) {
		return
	}
	r.stops, r.legs = stops, legs
	if r.pos >= len(stops) {
		r.pos = 0
	}
}

// strand unloads everything at the last visited station.
func (r *runner) strand(w *World) {
	for _, p := range r.cargo {
		w.network.Deliver(r.at, p)
	}
	r.cargo = nil
}

func (r *runner) step(w *World) {
	if len(r.stops) == 0 {
		return
	}
	if r.eta > 1 {
		r.eta--
		return
	}
	h := r.stops[r.pos]
	if _, ok := w.network.Station(h); ok {
		r.call(w, h)
	}
	r.eta = r.legs[r.pos]
	r.pos = (r.pos + 1) % len(r.stops)
}

// call unloads packets for h or off the route, samples the waiting time
// since the previous call and loads what the rest of the trip can carry.
func (r *runner) call(w *World, h halt.Handle) {
	r.at = h
	w.network.ConvoyArrived(h)
	rest := r.upcoming()

	kept := r.cargo[:0]
	for _, p := range r.cargo {
		onRoute := slices.Contains(rest, p.NextHop) || slices.Contains(rest, p.Destination)
		if p.Destination == h || p.NextHop == h || !onRoute {
			w.network.Deliver(h, p)
			continue
		}
		kept = append(kept, p)
	}
	clear(r.cargo[len(kept):])
	r.cargo = kept

	if prev, ok := r.last[h]; ok && len(rest) > 0 {
		wait := uint16(min((w.tick-prev)/2, math.MaxUint16))
		r.cats.Each(func(c goods.Category) {
			w.network.RecordWaitingTime(h, rest[0], c, wait)
		})
	}
	r.last[h] = w.tick

	var loaded uint32
	for _, p := range r.cargo {
		loaded += p.Amount
	}
	capacity := uint32(w.cfg.Sim.VehicleCapacity)
	if loaded >= capacity {
		return
	}
	free := capacity - loaded
	for _, t := range w.catalog.Types() {
		if free == 0 {
			break
		}
		if !r.cats.Has(t.Category) {
			continue
		}
		for _, p := range w.network.Retrieve(h, t, free, rest) {
			free -= p.Amount
			r.cargo = append(r.cargo, p)
		}
	}
}

// upcoming lists the stops after the current one for one round trip.
func (r *runner) upcoming() []halt.Handle {
	n := len(r.stops)
	out := make([]halt.Handle, 0, n-1)
	for i := 1; i < n; i++ {
		if s := r.stops[(r.pos+i)%n]; s != r.stops[r.pos] {
			out = append(out, s)
		}
	}
	return out
}

// Load returns how much a line's vehicle carries.
func (w *World) Load(h halt.LineHandle) uint32 {
	r, ok := w.runners[h]
	if !ok {
		return 0
	}
	var total uint32
	for _, p := range r.cargo {
		total += p.Amount
	}
	return total
}
