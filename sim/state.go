package sim

import (
	"errors"
	"fmt"
	"image"
	"math/rand/v2"

	"github.com/theoremus-urban-solutions/haltnet/city"
	"github.com/theoremus-urban-solutions/haltnet/config"
	"github.com/theoremus-urban-solutions/haltnet/diag"
	"github.com/theoremus-urban-solutions/haltnet/goods"
	"github.com/theoremus-urban-solutions/haltnet/halt"
)

// ErrInvalidState is returned when a world state cannot be restored.
var ErrInvalidState = errors.New("invalid world state")

// CityDemand is the generation remainder carried by a city.
type CityDemand struct {
	City       uint64
	Passengers int64
	Mail       int64
}

// State is the persisted form of a world. Vehicles are not kept; each
// line gets a fresh, empty vehicle at its first stop.
type State struct {
	Name    string
	Seed    uint64
	Tick    uint64
	Width   int
	Height  int
	Goods   []goods.Type
	Roads   []image.Point
	Network halt.NetworkState
	Cities  []city.State
	Demand  []CityDemand
	RNG     []byte
}

// Export captures the world.
func (w *World) Export() (State, error) {
	rng, err := w.pcg.MarshalBinary()
	if err != nil {
		return State{}, fmt.Errorf("export world %s: %w", w.cfg.Sim.Name, err)
	}
	area := w.grid.Area()
	st := State{
		Name:    w.cfg.Sim.Name,
		Seed:    w.cfg.Sim.Seed,
		Tick:    w.tick,
		Width:   area.Dx(),
		Height:  area.Dy(),
		Roads:   w.grid.Roads(),
		Network: w.network.Export(),
		RNG:     rng,
	}
	for _, t := range w.catalog.Types() {
		if t.ID > goods.Mail.ID {
			st.Goods = append(st.Goods, t)
		}
	}
	for _, c := range w.cities {
		cs, err := c.Export()
		if err != nil {
			return State{}, fmt.Errorf("export world %s: %w", w.cfg.Sim.Name, err)
		}
		st.Cities = append(st.Cities, cs)
		d := w.demand[c.ID()]
		st.Demand = append(st.Demand, CityDemand{City: c.ID(), Passengers: d.passengers, Mail: d.mail})
	}
	return st, nil
}

// Restore rebuilds a world from st using the tuning in cfg. Roads off the
// map and cities that cannot be restored are skipped with a diagnostic; a
// broken random state or an empty map is an error.
func Restore(st State, cfg config.AppConfig) (*World, error) {
	if st.Width <= 0 || st.Height <= 0 {
		return nil, fmt.Errorf("restore world %q: %w: map %dx%d", st.Name, ErrInvalidState, st.Width, st.Height)
	}
	var pcg rand.PCG
	if err := pcg.UnmarshalBinary(st.RNG); err != nil {
		return nil, fmt.Errorf("restore world %q: %w: %v", st.Name, ErrInvalidState, err)
	}
	cfg.Sim.Name = st.Name
	cfg.Sim.Seed = st.Seed
	cfg.Sim.MapWidth, cfg.Sim.MapHeight = st.Width, st.Height

	catalog := goods.NewCatalog(st.Goods...)
	w := newWorld(cfg, catalog, city.NewGrid(image.Rect(0, 0, st.Width, st.Height)), &pcg)
	w.tick = st.Tick
	for _, p := range st.Roads {
		if !w.grid.BuildRoad(p) {
			w.diag.Add(diag.UnboundHandle, fmt.Sprintf("road %v", p))
		}
	}
	w.attach(halt.Import(st.Network, cfg.Routing, cfg.Ledger, catalog, w.diag))

	for _, cs := range st.Cities {
		c, err := city.Restore(cs, cfg.Growth, cfg.Traffic, w.grid, w.diag)
		if err != nil {
			w.diag.Add(diag.UnboundHandle, err.Error())
			continue
		}
		w.addCity(c)
	}
	for _, d := range st.Demand {
		if cd, ok := w.demand[d.City]; ok {
			cd.passengers, cd.mail = d.Passengers, d.Mail
		}
	}
	return w, nil
}
