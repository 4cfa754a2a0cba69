package report

import (
	"errors"
	"fmt"

	"github.com/theoremus-urban-solutions/haltnet/city"
	"github.com/theoremus-urban-solutions/haltnet/goods"
	"github.com/theoremus-urban-solutions/haltnet/halt"
	"github.com/theoremus-urban-solutions/haltnet/sim"
)

// ErrUnknownStation is returned for path queries naming no station.
var ErrUnknownStation = errors.New("unknown station")

// Build snapshots w. It must not run concurrently with w.Step.
func Build(w *sim.World) *Snapshot {
	snap := &Snapshot{World: w.ID().String(), Name: w.Name(), Tick: w.Tick()}
	for _, c := range w.Cities() {
		snap.Cities = append(snap.Cities, cityReport(w, c))
	}
	n := w.Network()
	for _, h := range n.Stations() {
		if s, ok := n.Station(h); ok {
			snap.Stations = append(snap.Stations, stationReport(n, s))
		}
	}
	for _, lh := range n.Lines() {
		l, ok := n.Line(lh)
		if !ok {
			continue
		}
		sched := l.Schedule()
		lr := LineReport{
			ID:       lh.ID(),
			Name:     l.Name(),
			Legs:     sched.Legs,
			Mirrored: sched.Mirrored,
			Load:     w.Load(lh),
		}
		for _, e := range sched.Entries {
			lr.Stops = append(lr.Stops, stationName(n, e.Halt))
		}
		snap.Lines = append(snap.Lines, lr)
	}
	return snap
}

func cityReport(w *sim.World, c *city.City) CityReport {
	cr := CityReport{
		ID:              c.ID(),
		Name:            c.Name(),
		X:               c.Pos().X,
		Y:               c.Pos().Y,
		Population:      c.Population(),
		Jobs:            c.Jobs(),
		Buildings:       len(c.Buildings()),
		Growth:          c.Growth(),
		Congestion:      c.Congestion(),
		PasGenerated:    c.HistoryMonth(0, city.HistPasGenerated),
		PasTransported:  c.HistoryMonth(0, city.HistPasTransported),
		PasWalked:       c.HistoryMonth(0, city.HistPasWalked),
		MailGenerated:   c.HistoryMonth(0, city.HistMailGenerated),
		MailTransported: c.HistoryMonth(0, city.HistMailTransported),
		GoodsReceived:   c.HistoryMonth(0, city.HistGoodsReceived),
		CarsIncoming:    c.IncomingPrivateCars(),
		CarsOutgoing:    c.OutgoingPrivateCars(),
	}
	for _, o := range w.Cities() {
		if o.ID() == c.ID() {
			continue
		}
		if _, ok := c.RoadConnexion(city.TargetCity, o.ID()); ok {
			cr.ReachableTargets++
		}
	}
	return cr
}

func stationReport(n *halt.Network, s *halt.Station) StationReport {
	sr := StationReport{
		ID:      s.Handle().ID(),
		Name:    s.Name(),
		X:       s.Pos().X,
		Y:       s.Pos().Y,
		Status:  s.Status().String(),
		Waiting: map[string]uint32{},
		Happy:   s.Happy(),
		Unhappy: s.Unhappy(),
		NoRoute: s.NoRoute(),
	}
	for c := goods.Category(0); c < goods.MaxCategories; c++ {
		if v := s.Waiting(c); v > 0 {
			sr.Waiting[c.String()] = v
		}
		if s.IsOvercrowded(c) {
			sr.Overcrowded = true
		}
		if t := s.Connexions(c); t != nil {
			sr.Connexions += t.Len()
		}
	}
	for _, lh := range s.Lines() {
		if l, ok := n.Line(lh); ok {
			sr.Lines = append(sr.Lines, l.Name())
		}
	}
	return sr
}

func stationName(n *halt.Network, h halt.Handle) string {
	if s, ok := n.Station(h); ok {
		return s.Name()
	}
	return h.String()
}

// Path resolves a route between two stations by name.
func Path(n *halt.Network, from, to string, cat goods.Category) (PathReport, error) {
	a, ok := n.StationByName(from)
	if !ok {
		return PathReport{}, fmt.Errorf("%w: %q", ErrUnknownStation, from)
	}
	b, ok := n.StationByName(to)
	if !ok {
		return PathReport{}, fmt.Errorf("%w: %q", ErrUnknownStation, to)
	}
	pr := PathReport{From: from, To: to, Category: cat.String()}
	p := n.PathTo(a, b, cat)
	if !p.Reachable() {
		return pr, nil
	}
	pr.Reachable = true
	pr.JourneyTime = p.JourneyTime
	pr.Next = stationName(n, p.NextTransfer)
	for _, h := range n.Route(a, b, cat) {
		pr.Stations = append(pr.Stations, stationName(n, h))
	}
	return pr, nil
}
