package halt

import (
	"fmt"
	"image"
	"sort"

	"github.com/theoremus-urban-solutions/haltnet/config"
	"github.com/theoremus-urban-solutions/haltnet/diag"
	"github.com/theoremus-urban-solutions/haltnet/goods"
	"github.com/theoremus-urban-solutions/haltnet/handle"
)

// PacketState is the persisted form of a waiting packet.
type PacketState struct {
	TypeID      uint16
	Amount      uint32
	Origin      uint64
	Destination uint64
	NextHop     uint64
	SourceKind  uint8
	SourceID    uint64
	Enqueued    uint64
	Retries     uint32
}

// WaitState is the persisted waiting-time ring of one category towards
// one target, oldest sample first.
type WaitState struct {
	Category uint8
	Target   uint64
	Samples  []uint16
}

// StationState is the persisted form of a station. Connexions and paths
// are caches and are rebuilt after loading.
type StationState struct {
	ID       uint64
	Name     string
	X, Y     int
	Flags    uint8
	Capacity [goods.NumClasses]uint32
	History  [MaxMonths][NumCostKinds]int64
	Waiting  []PacketState
	Waits    []WaitState
}

// ServiceState is the persisted form of a line or convoy.
type ServiceState struct {
	ID         uint64
	Name       string
	Stops      []uint64
	Waits      []uint32
	Legs       []uint32
	Categories uint16
	Mirrored   bool
}

// NetworkState is everything needed to rebuild a Network.
type NetworkState struct {
	Tick     uint64
	Stations []StationState
	Lines    []ServiceState
	Convoys  []ServiceState
}

// ExportStation captures one station.
func (n *Network) ExportStation(h Handle) (StationState, bool) {
	s, ok := n.stations.Get(h)
	if !ok {
		return StationState{}, false
	}
	st := StationState{
		ID:       h.ID(),
		Name:     s.name,
		X:        s.pos.X,
		Y:        s.pos.Y,
		Flags:    uint8(s.flags),
		Capacity: s.capacity,
		History:  s.history,
	}
	for _, b := range s.ledger {
		if b == nil {
			continue
		}
		for _, p := range b.entries {
			st.Waiting = append(st.Waiting, PacketState{
				TypeID:      p.Type.ID,
				Amount:      p.Amount,
				Origin:      p.Origin.ID(),
				Destination: p.Destination.ID(),
				NextHop:     p.NextHop.ID(),
				SourceKind:  uint8(p.Source.kind),
				SourceID:    p.Source.id,
				Enqueued:    p.Enqueued,
				Retries:     p.Retries,
			})
		}
	}
	for c, m := range s.waits {
		targets := make([]Handle, 0, len(m))
		for h := range m {
			targets = append(targets, h)
		}
		sort.Slice(targets, func(i, j int) bool { return targets[i].ID() < targets[j].ID() })
		for _, h := range targets {
			st.Waits = append(st.Waits, WaitState{Category: uint8(c), Target: h.ID(), Samples: m[h].samples()})
		}
	}
	return st, true
}

func exportSchedule(id uint64, name string, sched Schedule) ServiceState {
	st := ServiceState{
		ID:         id,
		Name:       name,
		Legs:       append([]uint32(nil), sched.Legs...),
		Categories: uint16(sched.Categories),
		Mirrored:   sched.Mirrored,
	}
	for _, e := range sched.Entries {
		st.Stops = append(st.Stops, e.Halt.ID())
		st.Waits = append(st.Waits, e.Wait)
	}
	return st
}

// Export captures the whole network in slot order.
func (n *Network) Export() NetworkState {
	state := NetworkState{Tick: n.tick}
	for _, h := range n.stations.Handles() {
		st, _ := n.ExportStation(h)
		state.Stations = append(state.Stations, st)
	}
	n.lines.Each(func(h LineHandle, l *Line) {
		state.Lines = append(state.Lines, exportSchedule(h.ID(), l.name, l.schedule))
	})
	n.convoys.Each(func(h ConvoyHandle, c *Convoy) {
		state.Convoys = append(state.Convoys, exportSchedule(h.ID(), "", c.schedule))
	})
	return state
}

// Import rebuilds a network from persisted state. Entities that cannot be
// reconstructed are skipped, and references to them become unbound; each
// substitution is recorded in d. Connexions are left flagged for rebuild.
func Import(state NetworkState, routing config.RoutingConfig, policy config.LedgerConfig, catalog *goods.Catalog, d *diag.Aggregator) *Network {
	n := NewNetwork(routing, policy, catalog)
	n.SetDiagnostics(d)
	n.tick = state.Tick

	for _, st := range state.Stations {
		h := handle.FromID[Station](st.ID)
		if _, taken := n.names[st.Name]; taken || st.Name == "" {
			d.Add(diag.UnboundHandle, fmt.Sprintf("station %d: bad name %q", st.ID, st.Name))
			continue
		}
		s := newStation(st.Name, image.Pt(st.X, st.Y), Flags(st.Flags))
		s.capacity = st.Capacity
		s.history = st.History
		if err := n.stations.InsertAt(h, s); err != nil {
			d.Add(diag.UnboundHandle, fmt.Sprintf("station %q: %v", st.Name, err))
			continue
		}
		s.self = h
		n.names[st.Name] = h
		n.queued[h] = true
		n.queue = append(n.queue, h)
	}

	for _, st := range state.Lines {
		l := &Line{name: st.Name, schedule: n.importSchedule(st, d)}
		h := handle.FromID[Line](st.ID)
		if err := n.lines.InsertAt(h, l); err != nil {
			d.Add(diag.UnboundHandle, fmt.Sprintf("line %q: %v", st.Name, err))
			continue
		}
		l.self = h
		n.registerLine(l)
	}
	for _, st := range state.Convoys {
		c := &Convoy{schedule: n.importSchedule(st, d)}
		h := handle.FromID[Convoy](st.ID)
		if err := n.convoys.InsertAt(h, c); err != nil {
			d.Add(diag.UnboundHandle, fmt.Sprintf("convoy %d: %v", st.ID, err))
			continue
		}
		c.self = h
		n.registerConvoy(c)
	}

	// Waiting goods last: their handles must resolve against the full set.
	for _, st := range state.Stations {
		s, ok := n.stations.Get(handle.FromID[Station](st.ID))
		if !ok || s.name != st.Name {
			continue
		}
		for _, ps := range st.Waiting {
			n.importPacket(s, ps, d)
		}
		for _, ws := range st.Waits {
			n.importWaits(s, ws, d)
		}
		s.recalcOvercrowding()
	}
	return n
}

func (n *Network) importSchedule(st ServiceState, d *diag.Aggregator) Schedule {
	sched := Schedule{
		Legs:       append([]uint32(nil), st.Legs...),
		Categories: goods.CategorySet(st.Categories),
		Mirrored:   st.Mirrored,
	}
	for i, id := range st.Stops {
		h := handle.FromID[Station](id)
		if !n.stations.Bound(h) {
			d.Add(diag.UnboundHandle, fmt.Sprintf("service %d stop %d", st.ID, id))
			h = Handle{}
		}
		var wait uint32
		if i < len(st.Waits) {
			wait = st.Waits[i]
		}
		sched.Entries = append(sched.Entries, ScheduleEntry{Halt: h, Wait: wait})
	}
	if err := sched.Validate(); err != nil {
		d.Add(diag.UnboundHandle, fmt.Sprintf("service %d: %v", st.ID, err))
		return Schedule{Categories: sched.Categories}
	}
	return sched
}

func (n *Network) importWaits(s *Station, ws WaitState, d *diag.Aggregator) {
	target := handle.FromID[Station](ws.Target)
	if int(ws.Category) >= goods.MaxCategories || !n.stations.Bound(target) {
		d.Add(diag.UnboundHandle, fmt.Sprintf("waiting times towards %d at %s", ws.Target, s.name))
		return
	}
	for _, v := range ws.Samples {
		n.RecordWaitingTime(s.self, target, goods.Category(ws.Category), v)
	}
}

func (n *Network) importPacket(s *Station, ps PacketState, d *diag.Aggregator) {
	t, ok := n.catalog.Lookup(ps.TypeID)
	if !ok {
		d.Add(diag.UnboundHandle, fmt.Sprintf("goods type %d at %s", ps.TypeID, s.name))
		return
	}
	dest := handle.FromID[Station](ps.Destination)
	if !n.stations.Bound(dest) {
		d.Add(diag.UnboundHandle, fmt.Sprintf("destination %d at %s", ps.Destination, s.name))
		return
	}
	next := handle.FromID[Station](ps.NextHop)
	if !n.stations.Bound(next) {
		next = Handle{}
	}
	origin := handle.FromID[Station](ps.Origin)
	if !n.stations.Bound(origin) {
		origin = Handle{}
	}
	p := Packet{
		Type:        t,
		Amount:      ps.Amount,
		Origin:      origin,
		Destination: dest,
		NextHop:     next,
		Source:      RestoreSource(SourceKind(ps.SourceKind), ps.SourceID),
		Enqueued:    ps.Enqueued,
		Retries:     ps.Retries,
	}
	if s.ledger[t.Category] == nil {
		s.ledger[t.Category] = newBucket()
	}
	s.ledger[t.Category].put(p)
}
