package sim

import (
	"context"
	"fmt"
	"image"
	"log"
	"math/rand/v2"
	"slices"

	"github.com/google/uuid"

	"github.com/theoremus-urban-solutions/haltnet/city"
	"github.com/theoremus-urban-solutions/haltnet/config"
	"github.com/theoremus-urban-solutions/haltnet/diag"
	"github.com/theoremus-urban-solutions/haltnet/goods"
	"github.com/theoremus-urban-solutions/haltnet/halt"
)

// demandStream seeds the world's own random source, apart from the cities'.
const demandStream = 0x68616c746e6574

// World ties the network, the cities and the grid together.
type World struct {
	id      uuid.UUID
	cfg     config.AppConfig
	catalog *goods.Catalog
	grid    *city.Grid
	network *halt.Network
	diag    *diag.Aggregator

	cities   []*city.City
	byID     map[uint64]*city.City
	nextCity uint64
	demand   map[uint64]*demand

	runners  map[halt.LineHandle]*runner
	order    []halt.LineHandle
	schedVer uint64
	synced   bool

	tick uint64
	pcg  *rand.PCG
	rng  *rand.Rand
}

type demand struct {
	passengers int64
	mail       int64
}

// Identity derives the stable world ID from its name and seed.
func Identity(name string, seed uint64) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("haltnet/%s/%d", name, seed)))
}

// New creates an empty world sized by cfg.Sim.
func New(cfg config.AppConfig) *World {
	area := image.Rect(0, 0, cfg.Sim.MapWidth, cfg.Sim.MapHeight)
	catalog := goods.NewCatalog()
	w := newWorld(cfg, catalog, city.NewGrid(area), rand.NewPCG(cfg.Sim.Seed, demandStream))
	w.attach(halt.NewNetwork(cfg.Routing, cfg.Ledger, catalog))
	return w
}

func newWorld(cfg config.AppConfig, catalog *goods.Catalog, grid *city.Grid, pcg *rand.PCG) *World {
	return &World{
		id:      Identity(cfg.Sim.Name, cfg.Sim.Seed),
		cfg:     cfg,
		catalog: catalog,
		grid:    grid,
		diag:    diag.NewAggregator(),
		byID:    make(map[uint64]*city.City),
		demand:  make(map[uint64]*demand),
		runners: make(map[halt.LineHandle]*runner),
		pcg:     pcg,
		rng:     rand.New(pcg),
	}
}

func (w *World) attach(n *halt.Network) {
	w.network = n
	n.SetReporter(w)
	n.SetDiagnostics(w.diag)
}

func (w *World) ID() uuid.UUID                  { return w.id }
func (w *World) Name() string                   { return w.cfg.Sim.Name }
func (w *World) Tick() uint64                   { return w.tick }
func (w *World) Network() *halt.Network         { return w.network }
func (w *World) Grid() *city.Grid               { return w.grid }
func (w *World) Catalog() *goods.Catalog        { return w.catalog }
func (w *World) Diagnostics() *diag.Aggregator  { return w.diag }
func (w *World) Config() config.AppConfig       { return w.cfg }
func (w *World) Cities() []*city.City           { return slices.Clone(w.cities) }
func (w *World) City(id uint64) (*city.City, bool) {
	c, ok := w.byID[id]
	return c, ok
}

// FoundCity places a new city and grows it to population.
func (w *World) FoundCity(name string, pos image.Point, radius int, population int64) (*city.City, error) {
	f := city.Founding{
		ID:         w.nextCity + 1,
		Name:       name,
		Pos:        pos,
		Radius:     radius,
		Population: population,
		Seed:       w.cfg.Sim.Seed,
	}
	c, err := city.New(f, w.cfg.Growth, w.cfg.Traffic, w.grid, w.diag)
	if err != nil {
		return nil, fmt.Errorf("found city %q: %w", name, err)
	}
	w.addCity(c)
	return c, nil
}

func (w *World) addCity(c *city.City) {
	w.cities = append(w.cities, c)
	w.byID[c.ID()] = c
	w.demand[c.ID()] = &demand{}
	w.nextCity = max(w.nextCity, c.ID())
}

// CityAt returns the city whose bounds, widened by the catchment, cover p.
func (w *World) CityAt(p image.Point) (*city.City, bool) {
	for _, c := range w.cities {
		if p.In(w.catchment(c)) {
			return c, true
		}
	}
	return nil, false
}

func (w *World) catchment(c *city.City) image.Rectangle {
	return c.Bounds().Inset(-w.cfg.Sim.Catchment)
}

// Prepare rebuilds every connexion table in parallel, warms the path
// caches and refreshes the cities' road connexions. Call it once after loading or importing.
func (w *World) Prepare(ctx context.Context) error {
	if err := w.network.RebuildAll(ctx, w.cfg.Routing.LoadWorkers); err != nil {
		return fmt.Errorf("prepare world %s: %w", w.cfg.Sim.Name, err)
	}
	w.network.WarmPaths()
	w.checkRoads()
	return nil
}

// Step advances the world by one tick.
func (w *World) Step() {
	w.tick++
	w.network.Step()
	w.syncRunners()
	for _, h := range w.order {
		w.runners[h].step(w)
	}
	for _, c := range w.cities {
		w.generate(c)
		c.Step(w.tick)
	}
	if w.tick%uint64(w.cfg.Sim.TicksPerMonth) == 0 {
		w.newMonth()
	}
}

// Run steps the world n times or until ctx is done.
func (w *World) Run(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.Step()
	}
	return nil
}

func (w *World) newMonth() {
	w.network.NewMonth()
	for _, c := range w.cities {
		c.NewMonth()
	}
	w.checkRoads()
	log.Printf("World %s month %d: %d cities, %d stations, %d lines",
		w.cfg.Sim.Name, w.tick/uint64(w.cfg.Sim.TicksPerMonth), len(w.cities), w.network.StationCount(), len(w.order))
	w.diag.LogAll(w.cfg.Sim.Name)
}

func (w *World) checkRoads() {
	for _, c := range w.cities {
		c.CheckAllPrivateCarRoutes(w.targets(c), w.grid)
	}
}

// targets lists every other city as a private trip destination.
func (w *World) targets(from *city.City) []city.Target {
	out := make([]city.Target, 0, len(w.cities))
	for _, c := range w.cities {
		if c == from {
			continue
		}
		out = append(out, city.Target{
			Kind:   city.TargetCity,
			ID:     c.ID(),
			Pos:    c.Pos(),
			Weight: int(max(c.Population(), 1)),
		})
	}
	return out
}

// Report receives routing outcomes from the network.
func (w *World) Report(at halt.Handle, p halt.Packet, o halt.Outcome) {
	if id, ok := p.Source.City(); ok {
		c, ok := w.byID[id]
		if !ok {
			return
		}
		switch o {
		case halt.OutcomeDelivered:
			switch p.Type.Category {
			case goods.CategoryPassengers:
				c.AddTransportedPassengers(int64(p.Amount))
			case goods.CategoryMail:
				c.AddTransportedMail(int64(p.Amount))
			}
		case halt.OutcomeNoRoute, halt.OutcomeUnhappy:
			if p.Type.Category == goods.CategoryPassengers {
				w.privateTrip(c, int64(p.Amount))
			}
		}
		return
	}
	if o != halt.OutcomeDelivered || p.Type.Category.IsTraveller() {
		return
	}
	if s, ok := w.network.Station(at); ok {
		if c, ok := w.CityAt(s.Pos()); ok {
			c.AddGoodsReceived(int64(p.Amount))
		}
	}
}

func (w *World) privateTrip(c *city.City, passengers int64) {
	res := c.GeneratePrivateTrip(passengers, w.targets(c), w.grid)
	if !res.Generated || res.Target.Kind != city.TargetCity {
		return
	}
	if dest, ok := w.byID[res.Target.ID]; ok {
		dest.SetPrivateCarTrips(res.Cars)
	}
}

// ShipFreight hands freight from a factory to the network at from, bound
// for to. A destination inside a city's catchment books the amount as
// goods the city needs. It returns the amount the station accepted.
func (w *World) ShipFreight(from, to halt.Handle, t goods.Type, amount uint32, factory uint64) uint32 {
	if s, ok := w.network.Station(to); ok && !t.Category.IsTraveller() {
		if c, ok := w.CityAt(s.Pos()); ok {
			c.AddGoodsNeeded(int64(amount))
		}
	}
	return w.network.Deliver(from, halt.Packet{
		Type:        t,
		Amount:      amount,
		Origin:      from,
		Destination: to,
		Source:      halt.FromFactory(factory),
	})
}

// SupplyPower books a power grid's demand and delivery for one city.
func (w *World) SupplyPower(id uint64, demand, supplied int64) bool {
	c, ok := w.byID[id]
	if !ok {
		return false
	}
	c.AddPowerDemand(demand)
	c.AddPower(supplied)
	return true
}
