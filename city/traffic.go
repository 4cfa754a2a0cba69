package city

import (
	"cmp"
	"fmt"
	"image"
	"math"
	"slices"

	"github.com/theoremus-urban-solutions/haltnet/diag"
)

// Unreachable marks a target no road leads to.
const Unreachable uint32 = math.MaxUint32

// TargetKind tells what a private trip drives to.
type TargetKind uint8

const (
	TargetCity TargetKind = iota
	TargetFactory
	TargetAttraction
)

func (k TargetKind) String() string {
	switch k {
	case TargetFactory:
		return "factory"
	case TargetAttraction:
		return "attraction"
	}
	return "city"
}

// Target is a candidate destination of private trips.
type Target struct {
	Kind   TargetKind
	ID     uint64
	Pos    image.Point
	Weight int
}

type targetKey struct {
	kind TargetKind
	id   uint64
}

type routeKey struct {
	from, to image.Point
}

// TripResult describes a generated private trip.
type TripResult struct {
	Generated bool
	Walked    bool
	Target    Target
	Tiles     uint32
	Cars      int64
}

// GeneratePrivateTrip turns passengers that public transport could not
// carry into a car trip. Whether a trip happens depends on car ownership;
// the destination is a weighted random pick favouring near, heavy
// targets; the road route comes from router. Only one route search per
// city runs at a time. Outgoing cars count towards congestion and the
// citycars history but not towards growth.
func (c *City) GeneratePrivateTrip(passengers int64, candidates []Target, router RoadRouter) TripResult {
	if passengers <= 0 || len(candidates) == 0 {
		return TripResult{}
	}
	if c.rng.IntN(100) >= c.traffic.CarOwnershipPercent {
		return TripResult{}
	}
	t, ok := c.pickTarget(candidates)
	if !ok {
		return TripResult{}
	}
	res := TripResult{Target: t}
	if manhattan(c.pos, t.Pos) <= c.traffic.WalkingDistance {
		c.AddWalkingPassengers(passengers)
		res.Walked = true
		return res
	}
	tiles, found, busy := c.roadRoute(t, router)
	if busy || !found {
		return res
	}
	res.Generated = true
	res.Tiles = tiles
	res.Cars = 1
	c.outgoing += res.Cars
	c.addHistory(HistCitycars, res.Cars)
	return res
}

// SetPrivateCarTrips books cars arriving from another city. Incoming cars
// only feed congestion.
func (c *City) SetPrivateCarTrips(cars int64) { c.incoming += cars }

// RouteSearchInProgress reports whether a road search is running.
func (c *City) RouteSearchInProgress() bool { return c.routeBusy }

// RoadConnexion returns the last known road route length to a target.
func (c *City) RoadConnexion(kind TargetKind, id uint64) (uint32, bool) {
	v, ok := c.links[targetKey{kind, id}]
	return v, ok && v != Unreachable
}

// CheckAllPrivateCarRoutes forgets memoised routes and recomputes the
// road connexion to every target.
func (c *City) CheckAllPrivateCarRoutes(targets []Target, router RoadRouter) int {
	c.routes.Purge()
	clear(c.links)
	reachable := 0
	for _, t := range targets {
		if t.Kind == TargetCity && t.ID == c.id {
			continue
		}
		if _, found, _ := c.roadRoute(t, router); found {
			reachable++
		}
	}
	return reachable
}

func (c *City) roadRoute(t Target, router RoadRouter) (tiles uint32, found, busy bool) {
	key := routeKey{from: c.pos, to: t.Pos}
	if v, err := c.routes.Get(key); err == nil {
		tiles = v.(uint32)
		return tiles, tiles != Unreachable, false
	}
	if c.routeBusy {
		c.diag.Add(diag.PrivateRouteBusy, c.name)
		return 0, false, true
	}
	c.routeBusy = true
	tiles, found = router.RoadRoute(c.pos, t.Pos)
	c.routeBusy = false
	if !found {
		tiles = Unreachable
	}
	if err := c.routes.Set(key, tiles); err != nil {
		c.diag.Add(diag.PrivateRouteCache, fmt.Sprintf("%s: %v", c.name, err))
	}
	c.links[targetKey{t.Kind, t.ID}] = tiles
	return tiles, found, false
}

// pickTarget draws among the nearest MaxTargets candidates with weight
// divided by distance.
func (c *City) pickTarget(candidates []Target) (Target, bool) {
	type weighted struct {
		t Target
		w int
	}
	pool := make([]weighted, 0, len(candidates))
	for _, t := range candidates {
		if t.Kind == TargetCity && t.ID == c.id {
			continue
		}
		w := max(t.Weight, 1) * 1000 / (1 + manhattan(c.pos, t.Pos))
		pool = append(pool, weighted{t, max(w, 1)})
	}
	if len(pool) == 0 {
		return Target{}, false
	}
	// keep the nearest ones, stable on input order
	slices.SortStableFunc(pool, func(a, b weighted) int {
		return cmp.Compare(manhattan(c.pos, a.t.Pos), manhattan(c.pos, b.t.Pos))
	})
	if len(pool) > c.traffic.MaxTargets {
		pool = pool[:c.traffic.MaxTargets]
	}
	total := 0
	for _, p := range pool {
		total += p.w
	}
	r := c.rng.IntN(total)
	for _, p := range pool {
		if r < p.w {
			return p.t, true
		}
		r -= p.w
	}
	return pool[len(pool)-1].t, true
}

func manhattan(a, b image.Point) int {
	d := a.Sub(b)
	return abs(d.X) + abs(d.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
