package halt

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/theoremus-urban-solutions/haltnet/config"
	"github.com/theoremus-urban-solutions/haltnet/diag"
	"github.com/theoremus-urban-solutions/haltnet/goods"
	"github.com/theoremus-urban-solutions/haltnet/handle"
)

var (
	// ErrDuplicateName is returned when a station name is already registered.
	ErrDuplicateName = errors.New("station name already in use")
	// ErrUnbound is returned for operations on removed or unknown entities.
	ErrUnbound = errors.New("unbound handle")
)

// Network owns stations, lines and convoys and the routing state derived
// from them.
type Network struct {
	routing config.RoutingConfig
	policy  config.LedgerConfig
	catalog *goods.Catalog

	stations handle.Arena[Station]
	lines    handle.Arena[Line]
	convoys  handle.Arena[Convoy]
	names    map[string]Handle

	// epochs move whenever any schedule carrying the category changes;
	// path caches stamped with an older epoch are stale.
	epochs [goods.MaxCategories]uint64
	// version counts line registrations and removals.
	version uint64

	tick   uint64
	queue  []Handle
	queued map[Handle]bool

	reporter Reporter
	diag     *diag.Aggregator
}

// NewNetwork creates an empty network.
func NewNetwork(routing config.RoutingConfig, policy config.LedgerConfig, catalog *goods.Catalog) *Network {
	if catalog == nil {
		catalog = goods.NewCatalog()
	}
	if routing.MaxExpansions <= 0 {
		routing.MaxExpansions = config.Default().Routing.MaxExpansions
	}
	if routing.RebuildsPerStep <= 0 {
		routing.RebuildsPerStep = 1
	}
	if policy.RerouteInterval <= 0 {
		policy.RerouteInterval = config.Default().Ledger.RerouteInterval
	}
	return &Network{
		routing: routing,
		policy:  policy,
		catalog: catalog,
		names:   make(map[string]Handle),
		queued:  make(map[Handle]bool),
	}
}

// SetReporter installs the receiver of routing outcomes.
func (n *Network) SetReporter(r Reporter) { n.reporter = r }

// SetDiagnostics installs the aggregator for dropped goods and unresolved handles.
func (n *Network) SetDiagnostics(d *diag.Aggregator) { n.diag = d }

func (n *Network) Catalog() *goods.Catalog { return n.catalog }
func (n *Network) Tick() uint64 { return n.tick }

// Epoch returns the reschedule epoch of a category.
func (n *Network) Epoch(cat goods.Category) uint64 { return n.epochs[cat] }

// ScheduleVersion moves every time a line is added, rescheduled or removed.
func (n *Network) ScheduleVersion() uint64 { return n.version }

// AddStation registers a station. An empty name is replaced by a generated one.
func (n *Network) AddStation(name string, pos image.Point, flags Flags) (Handle, error) {
	if name == "" {
		name = fmt.Sprintf("Halt %d", n.stations.Len()+1)
		for i := 2; n.names[name] != (Handle{}); i++ {
			name = fmt.Sprintf("Halt %d-%d", n.stations.Len()+1, i)
		}
	}
	if _, taken := n.names[name]; taken {
		return Handle{}, fmt.Errorf("add station %q: %w", name, ErrDuplicateName)
	}
	s := newStation(name, pos, flags)
	s.capacity = [goods.NumClasses]uint32{
		uint32(n.policy.PassengerCapacity),
		uint32(n.policy.MailCapacity),
		uint32(n.policy.FreightCapacity),
	}
	s.self = n.stations.Insert(s)
	s.recalcStatus()
	n.names[name] = s.self
	return s.self, nil
}

// Station resolves a handle.
func (n *Network) Station(h Handle) (*Station, bool) { return n.stations.Get(h) }

// StationByName looks up the name registry.
func (n *Network) StationByName(name string) (Handle, bool) {
	h, ok := n.names[name]
	return h, ok
}

// Stations returns live station handles in slot order.
func (n *Network) Stations() []Handle { return n.stations.Handles() }

// StationCount returns the number of live stations.
func (n *Network) StationCount() int { return n.stations.Len() }

// Rename changes a station's registered name.
func (n *Network) Rename(h Handle, name string) error {
	s, ok := n.stations.Get(h)
	if !ok {
		return fmt.Errorf("rename %s: %w", h, ErrUnbound)
	}
	if other, taken := n.names[name]; taken && other != h {
		return fmt.Errorf("rename %s to %q: %w", h, name, ErrDuplicateName)
	}
	delete(n.names, s.name)
	s.name = name
	n.names[name] = h
	return nil
}

// SetFlags changes what a station accepts. Stations serving it lose or
// gain connexions, so every category is rescheduled.
func (n *Network) SetFlags(h Handle, f Flags) error {
	s, ok := n.stations.Get(h)
	if !ok {
		return fmt.Errorf("set flags %s: %w", h, ErrUnbound)
	}
	s.setFlags(f)
	all := goods.CategorySet(0xFFFF)
	n.touchServices(s, all)
	n.bumpEpochs(all)
	return nil
}

// RemoveStation unbinds a station. Goods waiting there vanish; services
// keep the stop but skip it until their schedules change.
func (n *Network) RemoveStation(h Handle) bool {
	s, ok := n.stations.Get(h)
	if !ok {
		return false
	}
	var cats goods.CategorySet
	for _, lh := range s.lines {
		if l, ok := n.lines.Get(lh); ok {
			cats |= l.schedule.Categories
			n.markStops(l.schedule, l.schedule.Categories)
		}
	}
	for _, ch := range s.convoys {
		if c, ok := n.convoys.Get(ch); ok {
			cats |= c.schedule.Categories
			n.markStops(c.schedule, c.schedule.Categories)
		}
	}
	delete(n.names, s.name)
	delete(n.queued, h)
	n.stations.Remove(h)
	n.bumpEpochs(cats)
	return true
}

// AddLine registers a line with every stop of its schedule.
func (n *Network) AddLine(name string, sched Schedule) (LineHandle, error) {
	if err := sched.Validate(); err != nil {
		return LineHandle{}, fmt.Errorf("add line %q: %w", name, err)
	}
	l := &Line{name: name, schedule: sched.Clone()}
	l.self = n.lines.Insert(l)
	n.registerLine(l)
	return l.self, nil
}

func (n *Network) registerLine(l *Line) {
	for _, h := range l.schedule.Stops() {
		if s, ok := n.stations.Get(h); ok {
			s.lines = appendUnique(s.lines, l.self)
		}
	}
	n.markStops(l.schedule, l.schedule.Categories)
	n.bumpEpochs(l.schedule.Categories)
	n.version++
}

// Line resolves a line handle.
func (n *Network) Line(h LineHandle) (*Line, bool) { return n.lines.Get(h) }

// Lines returns live line handles in slot order.
func (n *Network) Lines() []LineHandle { return n.lines.Handles() }

// SetSchedule replaces a line's schedule. Stations on either the old or
// the new schedule are rescheduled.
func (n *Network) SetSchedule(h LineHandle, sched Schedule) error {
	l, ok := n.lines.Get(h)
	if !ok {
		return fmt.Errorf("set schedule %s: %w", h, ErrUnbound)
	}
	if err := sched.Validate(); err != nil {
		return fmt.Errorf("set schedule of line %q: %w", l.name, err)
	}
	old := l.schedule
	n.markStops(old, old.Categories)
	for _, st := range old.Stops() {
		if s, ok := n.stations.Get(st); ok {
			s.lines = removeHandle(s.lines, h)
		}
	}
	l.schedule = sched.Clone()
	n.registerLine(l)
	n.bumpEpochs(old.Categories)
	return nil
}

// RemoveLine unregisters a line from its stops.
func (n *Network) RemoveLine(h LineHandle) bool {
	l, ok := n.lines.Get(h)
	if !ok {
		return false
	}
	for _, st := range l.schedule.Stops() {
		if s, ok := n.stations.Get(st); ok {
			s.lines = removeHandle(s.lines, h)
		}
	}
	n.markStops(l.schedule, l.schedule.Categories)
	n.bumpEpochs(l.schedule.Categories)
	n.lines.Remove(h)
	n.version++
	return true
}

// AddConvoy registers a convoy running its own schedule.
func (n *Network) AddConvoy(sched Schedule) (ConvoyHandle, error) {
	if err := sched.Validate(); err != nil {
		return ConvoyHandle{}, fmt.Errorf("add convoy: %w", err)
	}
	c := &Convoy{schedule: sched.Clone()}
	c.self = n.convoys.Insert(c)
	n.registerConvoy(c)
	return c.self, nil
}

func (n *Network) registerConvoy(c *Convoy) {
	for _, h := range c.schedule.Stops() {
		if s, ok := n.stations.Get(h); ok {
			s.convoys = appendUnique(s.convoys, c.self)
		}
	}
	n.markStops(c.schedule, c.schedule.Categories)
	n.bumpEpochs(c.schedule.Categories)
}

// Convoy resolves a convoy handle.
func (n *Network) Convoy(h ConvoyHandle) (*Convoy, bool) { return n.convoys.Get(h) }

// Convoys returns live convoy handles in slot order.
func (n *Network) Convoys() []ConvoyHandle { return n.convoys.Handles() }

// RemoveConvoy unregisters a convoy from its stops.
func (n *Network) RemoveConvoy(h ConvoyHandle) bool {
	c, ok := n.convoys.Get(h)
	if !ok {
		return false
	}
	for _, st := range c.schedule.Stops() {
		if s, ok := n.stations.Get(st); ok {
			s.convoys = removeHandle(s.convoys, h)
		}
	}
	n.markStops(c.schedule, c.schedule.Categories)
	n.bumpEpochs(c.schedule.Categories)
	n.convoys.Remove(h)
	return true
}

// ConvoyArrived books a vehicle arrival at a station.
func (n *Network) ConvoyArrived(h Handle) {
	if s, ok := n.stations.Get(h); ok {
		s.book(1, CostConvoysArrived)
	}
}

// RecordWaitingTime adds an observed waiting time, in minutes, towards
// target. Connexions pick it up on their next rebuild.
func (n *Network) RecordWaitingTime(at, target Handle, cat goods.Category, minutes uint16) {
	s, ok := n.stations.Get(at)
	if !ok {
		return
	}
	if s.waits[cat] == nil {
		s.waits[cat] = make(map[Handle]*waitRing)
	}
	w := s.waits[cat][target]
	if w == nil {
		w = &waitRing{}
		s.waits[cat][target] = w
	}
	w.add(minutes)
}

// markStops flags every stop of a schedule for rebuild.
func (n *Network) markStops(sched Schedule, cats goods.CategorySet) {
	for _, h := range sched.Stops() {
		if s, ok := n.stations.Get(h); ok {
			n.markStation(s, cats)
		}
	}
}

// touchServices flags every station sharing a service with s.
func (n *Network) touchServices(s *Station, cats goods.CategorySet) {
	n.markStation(s, cats)
	for _, lh := range s.lines {
		if l, ok := n.lines.Get(lh); ok {
			n.markStops(l.schedule, cats)
		}
	}
	for _, ch := range s.convoys {
		if c, ok := n.convoys.Get(ch); ok {
			n.markStops(c.schedule, cats)
		}
	}
}

func (n *Network) markStation(s *Station, cats goods.CategorySet) {
	cats.Each(func(c goods.Category) { s.reschedule[c] = true })
	if !n.queued[s.self] {
		n.queued[s.self] = true
		n.queue = append(n.queue, s.self)
	}
}

func (n *Network) bumpEpochs(cats goods.CategorySet) {
	cats.Each(func(c goods.Category) { n.epochs[c]++ })
}

// Pending returns how many stations wait for a connexion rebuild.
func (n *Network) Pending() int { return len(n.queue) }

// Step advances the network by one tick: queued connexion rebuilds up to
// the per-tick budget, then the reroute cycle when it is due.
func (n *Network) Step() {
	n.tick++
	for i := 0; i < n.routing.RebuildsPerStep && len(n.queue) > 0; i++ {
		h := n.queue[0]
		n.queue = n.queue[1:]
		delete(n.queued, h)
		if s, ok := n.stations.Get(h); ok {
			n.rebuildConnexions(s)
		}
	}
	if n.tick%uint64(n.policy.RerouteInterval) == 0 {
		for _, h := range n.stations.Handles() {
			n.Reroute(h)
		}
	}
}

// RebuildAll rebuilds every flagged connexion table using up to workers
// goroutines. Tables are computed first and swapped in only when every
// build finished, so a cancelled rebuild leaves the old tables in place.
func (n *Network) RebuildAll(ctx context.Context, workers int) error {
	if workers < 1 {
		workers = 1
	}
	handles := n.stations.Handles()
	built := make([][goods.MaxCategories]*ConnexionTable, len(handles))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, h := range handles {
		s, _ := n.stations.Get(h)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for c := goods.Category(0); c < goods.MaxCategories; c++ {
				if s.reschedule[c] {
					built[i][c] = n.buildConnexions(s, c)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("rebuild connexions: %w", err)
	}

	for i, h := range handles {
		s, _ := n.stations.Get(h)
		for c, t := range built[i] {
			if t != nil {
				s.connexions[c] = t
				s.reschedule[c] = false
			}
		}
	}
	n.queue = n.queue[:0]
	clear(n.queued)
	log.Printf("Rebuilt connexions of %d stations with %d workers", len(handles), workers)
	return nil
}

// NewMonth rolls every station's monthly history.
func (n *Network) NewMonth() {
	n.stations.Each(func(_ Handle, s *Station) { s.rollMonth() })
}

func appendUnique[T comparable](list []T, v T) []T {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func removeHandle[T comparable](list []T, v T) []T {
	for i, x := range list {
		if x == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
