package city

import "image"

// Tile is what the growth engine needs to know about one map tile.
type Tile struct {
	Buildable bool
	Road      bool
	Owner     Owner
}

// World is the tile map a city builds on.
type World interface {
	Area() image.Rectangle
	Tile(p image.Point) Tile
	BuildRoad(p image.Point) bool
	Place(p image.Point, o Owner) bool
	// Claim records r as the bounds of city id.
	Claim(id uint64, r image.Rectangle)
	// ClaimedByOther reports whether r overlaps another city's bounds.
	ClaimedByOther(id uint64, r image.Rectangle) bool
}

// RoadRouter finds road routes between tiles. The result is the route
// length in tiles.
type RoadRouter interface {
	RoadRoute(from, to image.Point) (uint32, bool)
}

// Grid is an in-memory World and RoadRouter.
type Grid struct {
	area   image.Rectangle
	tiles  []Tile
	claims map[uint64]image.Rectangle
}

// NewGrid returns a grid where every tile is buildable.
func NewGrid(area image.Rectangle) *Grid {
	g := &Grid{
		area:   area.Canon(),
		claims: make(map[uint64]image.Rectangle),
	}
	g.tiles = make([]Tile, g.area.Dx()*g.area.Dy())
	for i := range g.tiles {
		g.tiles[i].Buildable = true
	}
	return g
}

func (g *Grid) Area() image.Rectangle { return g.area }

func (g *Grid) index(p image.Point) int {
	if !p.In(g.area) {
		return -1
	}
	return (p.Y-g.area.Min.Y)*g.area.Dx() + (p.X - g.area.Min.X)
}

// Tile returns the zero Tile outside the area.
func (g *Grid) Tile(p image.Point) Tile {
	if i := g.index(p); i >= 0 {
		return g.tiles[i]
	}
	return Tile{}
}

// SetBuildable marks terrain that can or cannot carry buildings.
func (g *Grid) SetBuildable(p image.Point, v bool) {
	if i := g.index(p); i >= 0 {
		g.tiles[i].Buildable = v
	}
}

// BuildRoad lays a road on a free buildable tile, or reports an existing one.
func (g *Grid) BuildRoad(p image.Point) bool {
	i := g.index(p)
	if i < 0 {
		return false
	}
	t := &g.tiles[i]
	if t.Road {
		return true
	}
	if !t.Buildable || !t.Owner.IsZero() {
		return false
	}
	t.Road = true
	return true
}

// Place puts a building of o on a free tile.
func (g *Grid) Place(p image.Point, o Owner) bool {
	i := g.index(p)
	if i < 0 {
		return false
	}
	t := &g.tiles[i]
	if !t.Buildable || t.Road || !t.Owner.IsZero() {
		return false
	}
	t.Owner = o
	return true
}

// Clear removes whatever building stands on p.
func (g *Grid) Clear(p image.Point) {
	if i := g.index(p); i >= 0 {
		g.tiles[i].Owner = Owner{}
	}
}

func (g *Grid) Claim(id uint64, r image.Rectangle) { g.claims[id] = r }

// Release forgets a city's claim.
func (g *Grid) Release(id uint64) { delete(g.claims, id) }

func (g *Grid) ClaimedByOther(id uint64, r image.Rectangle) bool {
	for other, c := range g.claims {
		if other != id && c.Overlaps(r) {
			return true
		}
	}
	return false
}

// Roads returns every road tile in row-major order.
func (g *Grid) Roads() []image.Point {
	var out []image.Point
	for i, t := range g.tiles {
		if t.Road {
			out = append(out, image.Pt(g.area.Min.X+i%g.area.Dx(), g.area.Min.Y+i/g.area.Dx()))
		}
	}
	return out
}

var directions = [4]image.Point{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}

// RoadRoute runs a breadth-first search over road tiles. Endpoints off the
// road snap to an adjacent road tile, which costs one extra tile.
func (g *Grid) RoadRoute(from, to image.Point) (uint32, bool) {
	start, extra, ok := g.snap(from)
	if !ok {
		return 0, false
	}
	goal, extraGoal, ok := g.snap(to)
	if !ok {
		return 0, false
	}
	extra += extraGoal
	if start == goal {
		return extra, true
	}
	dist := map[image.Point]uint32{start: 0}
	queue := []image.Point{start}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, d := range directions {
			q := p.Add(d)
			if _, seen := dist[q]; seen || !g.Tile(q).Road {
				continue
			}
			dist[q] = dist[p] + 1
			if q == goal {
				return dist[q] + extra, true
			}
			queue = append(queue, q)
		}
	}
	return 0, false
}

func (g *Grid) snap(p image.Point) (image.Point, uint32, bool) {
	if g.Tile(p).Road {
		return p, 0, true
	}
	for _, d := range directions {
		if q := p.Add(d); g.Tile(q).Road {
			return q, 1, true
		}
	}
	return p, 0, false
}
