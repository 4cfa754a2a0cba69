package city

import (
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
	"sort"

	"github.com/theoremus-urban-solutions/haltnet/config"
	"github.com/theoremus-urban-solutions/haltnet/diag"
)

// ErrInvalidState is returned when persisted city state cannot be used.
var ErrInvalidState = errors.New("invalid city state")

// BuildingState is the persisted form of a building.
type BuildingState struct {
	X, Y      int
	Kind      uint8
	Level     int
	OwnerKind uint8
	OwnerID   uint64
}

// LinkState is a persisted road connexion.
type LinkState struct {
	Kind  uint8
	ID    uint64
	Tiles uint32
}

// State is the persisted form of a city. Memoised road routes are not kept.
type State struct {
	ID            uint64
	Name          string
	X, Y          int
	Bounds        image.Rectangle
	Bev, Arb, Won int64
	Unsupplied    int64
	Month         [MaxMonths][NumHistory]int64
	Year          [MaxYears][NumHistory]int64
	MonthsElapsed uint32
	Previous      [NumGrowthFactors][2]int64
	Incoming      int64
	Outgoing      int64
	Buildings     []BuildingState
	Links         []LinkState
	RNG           []byte
}

// Export captures the city.
func (c *City) Export() (State, error) {
	rng, err := c.pcg.MarshalBinary()
	if err != nil {
		return State{}, fmt.Errorf("export city %q: %w", c.name, err)
	}
	st := State{
		ID:            c.id,
		Name:          c.name,
		X:             c.pos.X,
		Y:             c.pos.Y,
		Bounds:        c.bounds,
		Bev:           c.bev,
		Arb:           c.arb,
		Won:           c.won,
		Unsupplied:    c.unsupplied,
		Month:         c.month,
		Year:          c.year,
		MonthsElapsed: c.monthsElapsed,
		Incoming:      c.incoming,
		Outgoing:      c.outgoing,
		RNG:           rng,
	}
	for i, f := range c.previous {
		st.Previous[i] = [2]int64{f.demand, f.supplied}
	}
	for _, b := range c.buildings {
		st.Buildings = append(st.Buildings, BuildingState{
			X: b.Pos.X, Y: b.Pos.Y, Kind: uint8(b.Kind), Level: b.Level,
			OwnerKind: uint8(b.Owner.kind), OwnerID: b.Owner.id,
		})
	}
	for _, k := range c.sortedLinks() {
		st.Links = append(st.Links, LinkState{Kind: uint8(k.kind), ID: k.id, Tiles: c.links[k]})
	}
	return st, nil
}

func (c *City) sortedLinks() []targetKey {
	keys := make([]targetKey, 0, len(c.links))
	for k := range c.links {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].kind != keys[j].kind {
			return keys[i].kind < keys[j].kind
		}
		return keys[i].id < keys[j].id
	})
	return keys
}

// Restore rebuilds a city on world. Buildings whose tile is taken are
// skipped with a diagnostic; a broken random state or empty bounds make
// the whole city unusable.
func Restore(st State, growth config.GrowthConfig, traffic config.TrafficConfig, world World, d *diag.Aggregator) (*City, error) {
	var pcg rand.PCG
	if err := pcg.UnmarshalBinary(st.RNG); err != nil {
		return nil, fmt.Errorf("restore city %q: %w: %v", st.Name, ErrInvalidState, err)
	}
	if st.Bounds.Empty() {
		return nil, fmt.Errorf("restore city %q: %w: empty bounds", st.Name, ErrInvalidState)
	}
	c, err := newCity(st.ID, st.Name, image.Pt(st.X, st.Y), growth, traffic, world, d, &pcg)
	if err != nil {
		return nil, err
	}
	c.bounds = st.Bounds
	c.bev, c.arb, c.won = st.Bev, st.Arb, st.Won
	c.unsupplied = st.Unsupplied
	c.month, c.year = st.Month, st.Year
	c.monthsElapsed = st.MonthsElapsed
	c.incoming, c.outgoing = st.Incoming, st.Outgoing
	for i, p := range st.Previous {
		c.previous[i] = factor{demand: p[0], supplied: p[1]}
	}
	world.Claim(c.id, c.bounds)
	for _, bs := range st.Buildings {
		b := &Building{
			Pos:   image.Pt(bs.X, bs.Y),
			Kind:  Kind(bs.Kind),
			Level: min(max(bs.Level, 0), MaxLevel),
			Owner: RestoreOwner(OwnerKind(bs.OwnerKind), bs.OwnerID),
		}
		if b.Kind > Industrial || !world.Place(b.Pos, b.Owner) {
			d.Add(diag.UnboundHandle, fmt.Sprintf("%s: building at %v", st.Name, b.Pos))
			continue
		}
		c.buildings = append(c.buildings, b)
		c.byPos[b.Pos] = b
	}
	for _, l := range st.Links {
		c.links[targetKey{TargetKind(l.Kind), l.ID}] = l.Tiles
	}
	return c, nil
}
